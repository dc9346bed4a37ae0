// Package llm adapts chat model providers to a single request/response shape
// with tool calling.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
)

// ErrUnavailable is returned by providers that cannot serve requests.
var ErrUnavailable = errors.New("assistant unavailable")

// Stop reasons.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// noResponse is returned when a model answers with no text.
const noResponse = "No response generated"

// Tool describes a callable tool to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one model call. With NoToolUse set the model sees Tools but
// must answer in text.
type Request struct {
	Messages  []chat.Message
	Tools     []Tool
	NoToolUse bool
}

// Response is a model answer. ToolCalls is set when the model wants tools run.
type Response struct {
	Content    string
	ToolCalls  []chat.ToolCall
	StopReason string
}

// Provider generates chat completions.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Tester is implemented by providers with a cheaper health probe than a
// completion.
type Tester interface {
	TestConnection(ctx context.Context) ConnectionStatus
}

// ConnectionStatus reports provider reachability.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Options tunes generation.
type Options struct {
	Temperature float64
	MaxTokens   int
	// Limiter paces outbound calls. Nil disables pacing.
	Limiter *rate.Limiter
}

func (o Options) wait(ctx context.Context) error {
	if o.Limiter == nil {
		return nil
	}
	return o.Limiter.Wait(ctx)
}

// TestConnection probes p. Providers without a Tester are sent "Hello".
func TestConnection(ctx context.Context, p Provider) ConnectionStatus {
	if t, ok := p.(Tester); ok {
		return t.TestConnection(ctx)
	}
	_, err := p.Generate(ctx, Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}}})
	if err != nil {
		return ConnectionStatus{Message: fmt.Sprintf("%s connection failed: %v", p.Name(), err)}
	}
	return ConnectionStatus{Success: true, Message: fmt.Sprintf("%s connected successfully", p.Name())}
}

// None is the provider used when no model is configured.
type None struct{}

func (None) Name() string { return "none" }

func (None) Generate(context.Context, Request) (Response, error) {
	return Response{}, ErrUnavailable
}

func (None) TestConnection(context.Context) ConnectionStatus {
	return ConnectionStatus{Message: "No LLM provider is configured"}
}

// schemaOrEmpty returns the tool's JSON schema, defaulting to an empty object
// schema.
func schemaOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return raw
}

// argsOrEmpty normalises tool call arguments to a JSON object.
func argsOrEmpty(raw string) json.RawMessage {
	if raw == "" || raw == "null" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}
