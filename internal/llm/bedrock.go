package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the Bedrock runtime call used by Bedrock.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock calls Anthropic models through Amazon Bedrock.
type Bedrock struct {
	client  InvokeModelAPI
	modelID string
	opts    Options
}

// NewBedrock wraps a Bedrock runtime client.
func NewBedrock(client InvokeModelAPI, modelID string, opts Options) *Bedrock {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	return &Bedrock{client: client, modelID: modelID, opts: opts}
}

// LoadAWSConfig loads the default AWS credential chain for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// NewBedrockFromConfig builds a Bedrock provider from an AWS config.
func NewBedrockFromConfig(cfg aws.Config, modelID string, opts Options) *Bedrock {
	return NewBedrock(bedrockruntime.NewFromConfig(cfg), modelID, opts)
}

func (b *Bedrock) Name() string { return "bedrock" }

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Tools            []anthropicTool    `json:"tools,omitempty"`
	ToolChoice       *toolChoice        `json:"tool_choice,omitempty"`
}

type toolChoice struct {
	Type string `json:"type"`
}

// buildAnthropicRequest converts messages into the Messages API body.
// System messages are joined into the system prompt; consecutive tool
// results are folded into one user turn.
func buildAnthropicRequest(req Request, opts Options) anthropicRequest {
	body := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleSystem:
			system = append(system, m.Content)
		case chat.RoleTool:
			block := contentBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}
			if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == "user" && isToolResults(body.Messages[n-1].Content) {
				body.Messages[n-1].Content = append(body.Messages[n-1].Content, block)
				continue
			}
			body.Messages = append(body.Messages, anthropicMessage{Role: "user", Content: []contentBlock{block}})
		case chat.RoleAssistant:
			var blocks []contentBlock
			if m.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				blocks = append(blocks, contentBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: argsOrEmpty(string(call.Arguments))})
			}
			if len(blocks) > 0 {
				body.Messages = append(body.Messages, anthropicMessage{Role: "assistant", Content: blocks})
			}
		default:
			if m.Content == "" {
				continue
			}
			body.Messages = append(body.Messages, anthropicMessage{Role: "user", Content: []contentBlock{{Type: "text", Text: m.Content}}})
		}
	}
	body.System = strings.Join(system, "\n\n")

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			body.Tools = append(body.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schemaOrEmpty(t.Parameters)})
		}
		body.ToolChoice = &toolChoice{Type: "auto"}
		if req.NoToolUse {
			body.ToolChoice.Type = "none"
		}
	}
	return body
}

func isToolResults(blocks []contentBlock) bool {
	return len(blocks) > 0 && blocks[0].Type == "tool_result"
}

// parseAnthropicResponse extracts text or tool calls from a Messages API
// response body.
func parseAnthropicResponse(raw []byte) (Response, error) {
	if !gjson.ValidBytes(raw) {
		return Response{}, fmt.Errorf("bedrock: invalid response body")
	}
	doc := gjson.ParseBytes(raw)
	stop := doc.Get("stop_reason").String()
	content := doc.Get("content")

	if stop == StopToolUse && content.IsArray() {
		var calls []chat.ToolCall
		content.ForEach(func(_, item gjson.Result) bool {
			if item.Get("type").String() == "tool_use" {
				calls = append(calls, chat.ToolCall{
					ID:        item.Get("id").String(),
					Name:      item.Get("name").String(),
					Arguments: argsOrEmpty(item.Get("input").Raw),
				})
			}
			return true
		})
		return Response{ToolCalls: calls, StopReason: stop}, nil
	}

	var text strings.Builder
	content.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "text" {
			text.WriteString(item.Get("text").String())
		}
		return true
	})
	out := text.String()
	if out == "" {
		out = noResponse
	}
	return Response{Content: out, StopReason: stop}, nil
}

func (b *Bedrock) Generate(ctx context.Context, req Request) (Response, error) {
	if err := b.opts.wait(ctx); err != nil {
		return Response{}, err
	}
	body, err := json.Marshal(buildAnthropicRequest(req, b.opts))
	if err != nil {
		return Response{}, fmt.Errorf("bedrock: encode request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Response{}, fmt.Errorf("bedrock: %w", err)
	}
	return parseAnthropicResponse(out.Body)
}

func (b *Bedrock) TestConnection(ctx context.Context) ConnectionStatus {
	if _, err := b.Generate(ctx, Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}}}); err != nil {
		return ConnectionStatus{Message: fmt.Sprintf("Bedrock connection failed: %v", err)}
	}
	return ConnectionStatus{Success: true, Message: fmt.Sprintf("Bedrock connected successfully with %s", b.modelID)}
}
