// Package tools exposes read-only cluster and observability queries to the
// agent as named, JSON-schema described functions.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kube-rca/agent/internal/domain/prompt"
	"github.com/kube-rca/agent/internal/masking"
	"github.com/kube-rca/agent/internal/metrics"
)

// Handler runs a tool. The returned value must be JSON-encodable.
type Handler func(ctx context.Context, args Args) (any, error)

type Param struct {
	Name        string
	Type        string // string or integer
	Description string
	Required    bool
}

type Tool struct {
	Name    string
	Params  []Param
	Handler Handler
}

// Definition is the provider-neutral function declaration sent to a model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Registry dispatches tool calls and masks every result.
type Registry struct {
	tools  map[string]Tool
	order  []string
	masker *masking.Masker
	logger *slog.Logger
}

func NewRegistry(masker *masking.Masker, logger *slog.Logger, tools ...Tool) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool, len(tools)),
		masker: masker,
		logger: logger,
	}
	for _, t := range tools {
		if _, dup := r.tools[t.Name]; dup {
			continue
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		props := make(map[string]any, len(t.Params))
		required := []string{}
		for _, p := range t.Params {
			props[p.Name] = map[string]any{"type": p.Type, "description": p.Description}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, Definition{
			Name:        name,
			Description: description(name),
			Parameters: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	return defs
}

// Call runs the named tool and returns its masked JSON result. Failures are
// encoded as {"warning": ...} so the model can react to them.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.tools[name]
	if !ok {
		metrics.RecordToolCall(name, "unknown")
		return r.encode(map[string]any{"warning": fmt.Sprintf("unknown tool %q", name)})
	}

	a := Args(args)
	for _, p := range t.Params {
		if p.Required && a.String(p.Name) == "" {
			metrics.RecordToolCall(name, "invalid")
			return r.encode(map[string]any{"warning": "missing required argument: " + p.Name})
		}
	}

	result, err := t.Handler(ctx, a)
	if err != nil {
		r.logger.Warn("tool call failed", "tool", name, "error", err)
		metrics.RecordToolCall(name, "error")
		return r.encode(map[string]any{"warning": err.Error()})
	}

	outcome := "ok"
	if m, isMap := result.(map[string]any); isMap {
		if _, failed := m["error"]; failed {
			outcome = "error"
		}
	}
	metrics.RecordToolCall(name, outcome)
	return r.encode(result)
}

func (r *Registry) encode(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"warning":%q}`, "encoding tool result: "+err.Error())
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return r.masker.MaskText(string(raw))
	}
	masked, err := json.Marshal(r.masker.MaskObject(generic))
	if err != nil {
		return r.masker.MaskText(string(raw))
	}
	return string(masked)
}

func description(name string) string {
	for _, info := range prompt.Catalog {
		if info.Name == name {
			return info.Description
		}
	}
	return name
}

// Args are decoded JSON arguments of one call.
type Args map[string]any

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int accepts JSON numbers and numeric strings; anything else is 0.
func (a Args) Int(key string) int64 {
	switch v := a[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
