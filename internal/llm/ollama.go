package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/httputil"
)

// Ollama calls a local Ollama server.
type Ollama struct {
	client *httputil.Client
	model  string
	opts   Options
}

// NewOllama creates an Ollama provider for baseURL.
func NewOllama(baseURL, model string, opts Options) *Ollama {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2048
	}
	return &Ollama{
		client: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, Timeout: 2 * time.Minute, MaxRetries: -1}),
		model:  model,
		opts:   opts,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

func (o *Ollama) Generate(ctx context.Context, req Request) (Response, error) {
	if err := o.opts.wait(ctx); err != nil {
		return Response{}, err
	}
	body := ollamaRequest{
		Model:    o.model,
		Messages: toOllamaMessages(req.Messages),
		Options:  ollamaOptions{Temperature: o.opts.Temperature, NumPredict: o.opts.MaxTokens},
	}
	if !req.NoToolUse {
		for _, t := range req.Tools {
			body.Tools = append(body.Tools, ollamaTool{
				Type:     "function",
				Function: ollamaFunction{Name: t.Name, Description: t.Description, Parameters: schemaOrEmpty(t.Parameters)},
			})
		}
	}

	raw, err := o.chat(ctx, body)
	var statusErr *httputil.StatusError
	if len(body.Tools) > 0 && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
		// Models without tool support reject the request outright.
		body.Tools = nil
		raw, err = o.chat(ctx, body)
	}
	if err != nil {
		return Response{}, err
	}
	return parseOllamaResponse(raw)
}

func (o *Ollama) chat(ctx context.Context, body ollamaRequest) ([]byte, error) {
	resp, err := o.client.Post(ctx, "/api/chat", body)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	var raw json.RawMessage
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return raw, nil
}

func toOllamaMessages(msgs []chat.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(msgs))
	for _, m := range msgs {
		om := ollamaMessage{Role: string(m.Role), Content: m.Content}
		for _, call := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{Function: ollamaFunctionCall{Name: call.Name, Arguments: argsOrEmpty(string(call.Arguments))}})
		}
		out = append(out, om)
	}
	return out
}

func parseOllamaResponse(raw []byte) (Response, error) {
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() {
		return Response{}, fmt.Errorf("ollama error: %s", e.String())
	}

	var calls []chat.ToolCall
	doc.Get("message.tool_calls").ForEach(func(i, item gjson.Result) bool {
		name := item.Get("function.name").String()
		id := item.Get("id").String()
		if id == "" {
			id = fmt.Sprintf("%s_%d", name, i.Int())
		}
		args := item.Get("function.arguments")
		argRaw := args.Raw
		if args.Type == gjson.String {
			// Some models send arguments as an encoded JSON string.
			argRaw = args.String()
		}
		calls = append(calls, chat.ToolCall{ID: id, Name: name, Arguments: argsOrEmpty(argRaw)})
		return true
	})
	if len(calls) > 0 {
		return Response{Content: doc.Get("message.content").String(), ToolCalls: calls, StopReason: StopToolUse}, nil
	}

	content := doc.Get("message.content").String()
	if content == "" {
		content = noResponse
	}
	return Response{Content: content, StopReason: StopEndTurn}, nil
}

// TestConnection checks that the server is up and the model is pulled.
func (o *Ollama) TestConnection(ctx context.Context) ConnectionStatus {
	resp, err := o.client.Get(ctx, "/api/tags")
	if err != nil {
		return ConnectionStatus{Message: fmt.Sprintf("Ollama service not available at %s", o.client.BaseURL())}
	}
	var raw json.RawMessage
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		return ConnectionStatus{Message: fmt.Sprintf("Ollama service not available at %s", o.client.BaseURL())}
	}

	family, _, _ := strings.Cut(o.model, ":")
	found := false
	gjson.GetBytes(raw, "models.#.name").ForEach(func(_, name gjson.Result) bool {
		if strings.Contains(name.String(), family) {
			found = true
			return false
		}
		return true
	})
	if !found {
		return ConnectionStatus{Message: fmt.Sprintf("Model %s not found. Run the setup script to download it.", o.model)}
	}
	return ConnectionStatus{Success: true, Message: fmt.Sprintf("Ollama connected successfully with model %s", o.model)}
}
