package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/agentboard/internal/trace"
)

// Run executes the tool-use loop: send the conversation, execute every
// tool_use block, answer with tool_result blocks, and stop once the model
// replies without calling a tool.
func (c *AnthropicClient) Run(ctx context.Context, req Request) (*Response, error) {
	rec := trace.NewRecorder()
	rec.Prompt(req.Prompt)
	out := &Response{}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Tools:     anthropicTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}

	for out.Iterations < c.maxIterations {
		out.Iterations++

		if err := waitTurn(ctx, c.limiter); err != nil {
			return out.withTrace(rec), fmt.Errorf("rate limit wait: %w", err)
		}

		params.Messages = messages
		resp, err := c.inner.Messages.New(ctx, params)
		if err != nil {
			return out.withTrace(rec), fmt.Errorf("API call failed: %w", err)
		}

		out.TokensIn += resp.Usage.InputTokens
		out.TokensOut += resp.Usage.OutputTokens
		c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var text strings.Builder

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				if variant.Text == "" {
					continue
				}
				text.WriteString(variant.Text)
				rec.Text(variant.Text)
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				rec.Call(variant.ID, variant.Name, variant.Input)
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				result := executeTool(ctx, req.Tools, variant.Name, variant.Input)
				rec.Result(variant.ID, variant.Name, result.Content, result.IsError)

				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, result.Content, result.IsError))
			}
		}

		if len(toolResultBlocks) == 0 {
			out.Text = text.String()
			return out.withTrace(rec), nil
		}

		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(toolResultBlocks...),
		)
	}

	return out.withTrace(rec), fmt.Errorf("max iterations (%d) reached", c.maxIterations)
}

func (r *Response) withTrace(rec *trace.Recorder) *Response {
	r.Trace = rec.Trace()
	return r
}
