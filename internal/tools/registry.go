// Package tools provides the fixed set of functions task agents may call.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Tool is a callable exposed to task agents.
type Tool interface {
	Name() string
	Description() string
	InputSchema() Schema
	Invoke(ctx context.Context, input json.RawMessage) (any, error)
}

// Schema describes a tool's object-typed input.
type Schema struct {
	Properties map[string]any
	Required   []string
}

// Document returns the schema as a JSON Schema object.
func (s Schema) Document() map[string]any {
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	return doc
}

// Result is the outcome of a tool call as fed back to the model.
type Result struct {
	Content string
	IsError bool
}

// Registry holds a closed set of tools keyed by name.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// Builtin returns the three built-in tools.
func Builtin() []Tool {
	return []Tool{
		NewDatetime(nil),
		Prime{},
		Palindrome{},
	}
}

// NewRegistry builds a registry over the built-in tools.
func NewRegistry() (*Registry, error) {
	return newRegistry(Builtin())
}

func newRegistry(list []Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool, len(list)),
		schemas: make(map[string]*jsonschema.Schema, len(list)),
	}

	c := jsonschema.NewCompiler()
	for _, t := range list {
		if _, dup := r.tools[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		url := "tool://" + t.Name() + ".json"
		doc, err := schemaResource(t.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", t.Name(), err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", t.Name(), err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
		}
		r.tools[t.Name()] = t
		r.schemas[t.Name()] = sch
	}
	return r, nil
}

// schemaResource round-trips the schema through JSON so the compiler sees
// only plain JSON values.
func schemaResource(s Schema) (any, error) {
	data, err := json.Marshal(s.Document())
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools ordered by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		out = append(out, r.tools[name])
	}
	return out
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Subset returns a registry restricted to names. An empty list keeps every tool.
func (r *Registry) Subset(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	sub := &Registry{
		tools:   make(map[string]Tool, len(names)),
		schemas: make(map[string]*jsonschema.Schema, len(names)),
	}
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		sub.tools[name] = t
		sub.schemas[name] = r.schemas[name]
	}
	return sub, nil
}

// Execute validates input against the tool's schema and invokes it.
// Failures are reported in the Result, never returned.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	t, ok := r.tools[name]
	if !ok {
		return Result{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
	}

	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage("{}")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
	if err != nil {
		return Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
	}
	if err := r.schemas[name].Validate(inst); err != nil {
		return Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
	}

	out, err := t.Invoke(ctx, input)
	if err != nil {
		return Result{Content: fmt.Sprintf("Error: %v", err), IsError: true}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return Result{Content: fmt.Sprintf("Failed to encode result: %v", err), IsError: true}
	}
	return Result{Content: string(data)}
}
