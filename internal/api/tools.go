package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"github.com/ShayCichocki/agentboard/internal/tools"
)

// anthropicTools returns the registry's tools as Anthropic tool params.
func anthropicTools(reg *tools.Registry) []anthropic.ToolUnionParam {
	if reg == nil || reg.Len() == 0 {
		return nil
	}
	defs := make([]anthropic.ToolUnionParam, 0, reg.Len())
	for _, t := range reg.Tools() {
		s := t.InputSchema()
		defs = append(defs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name(),
				Description: anthropic.String(t.Description()),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.Properties,
					Required:   s.Required,
				},
			},
		})
	}
	return defs
}

// openAITools returns the registry's tools as OpenAI function tools.
func openAITools(reg *tools.Registry) []openai.ChatCompletionToolParam {
	if reg == nil || reg.Len() == 0 {
		return nil
	}
	defs := make([]openai.ChatCompletionToolParam, 0, reg.Len())
	for _, t := range reg.Tools() {
		defs = append(defs, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  openai.FunctionParameters(t.InputSchema().Document()),
			},
		})
	}
	return defs
}

// executeTool runs a call through the registry. A nil registry knows no tools.
func executeTool(ctx context.Context, reg *tools.Registry, name string, input json.RawMessage) tools.Result {
	if reg == nil {
		return tools.Result{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
	}
	return reg.Execute(ctx, name, input)
}
