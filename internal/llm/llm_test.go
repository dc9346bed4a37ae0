package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
)

type fakeInvoker struct {
	body     []byte
	response string
	err      error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.body = in.Body
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.response)}, nil
}

var listTool = Tool{Name: "list_assets", Description: "List assets", Parameters: json.RawMessage(`{"type":"object","properties":{},"required":[]}`)}

func TestBedrockRequestBody(t *testing.T) {
	inv := &fakeInvoker{response: `{"stop_reason":"end_turn","content":[{"type":"text","text":"Hi "},{"type":"text","text":"there"}]}`}
	b := NewBedrock(inv, "model-x", Options{Temperature: 0.7})

	resp, err := b.Generate(context.Background(), Request{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: "be brief"},
			{Role: chat.RoleSystem, Content: "be kind"},
			{Role: chat.RoleUser, Content: "hello"},
			{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{ID: "t1", Name: "list_assets"}, {ID: "t2", Name: "get_profile"}}},
			{Role: chat.RoleTool, ToolCallID: "t1", Content: `{"success":true}`},
			{Role: chat.RoleTool, ToolCallID: "t2", Content: `{"success":true}`},
		},
		Tools: []Tool{listTool},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)

	body := gjson.ParseBytes(inv.body)
	assert.Equal(t, anthropicVersion, body.Get("anthropic_version").String())
	assert.Equal(t, int64(4096), body.Get("max_tokens").Int())
	assert.Equal(t, 0.7, body.Get("temperature").Float())
	assert.Equal(t, "be brief\n\nbe kind", body.Get("system").String())
	assert.Equal(t, int64(3), body.Get("messages.#").Int())
	assert.Equal(t, "tool_use", body.Get("messages.1.content.0.type").String())
	assert.Equal(t, "{}", body.Get("messages.1.content.0.input").Raw)
	assert.Equal(t, int64(2), body.Get("messages.2.content.#").Int())
	assert.Equal(t, "t2", body.Get("messages.2.content.1.tool_use_id").String())
	assert.Equal(t, "list_assets", body.Get("tools.0.name").String())
	assert.True(t, body.Get("tools.0.input_schema").Exists())
	assert.Equal(t, "auto", body.Get("tool_choice.type").String())
}

func TestBedrockFinalRoundKeepsToolDefinitions(t *testing.T) {
	inv := &fakeInvoker{response: `{"stop_reason":"end_turn","content":[{"type":"text","text":"You have one asset."}]}`}
	resp, err := NewBedrock(inv, "m", Options{}).Generate(context.Background(), Request{
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "what do I own?"},
			{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{ID: "t1", Name: "list_assets"}}},
			{Role: chat.RoleTool, ToolCallID: "t1", Content: `{"success":true}`},
		},
		Tools:     []Tool{listTool},
		NoToolUse: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "You have one asset.", resp.Content)

	body := gjson.ParseBytes(inv.body)
	assert.Equal(t, "tool_use", body.Get("messages.1.content.0.type").String())
	assert.Equal(t, "tool_result", body.Get("messages.2.content.0.type").String())
	assert.Equal(t, int64(1), body.Get("tools.#").Int())
	assert.Equal(t, "none", body.Get("tool_choice.type").String())
}

func TestBedrockOmitsEmptySystemAndTools(t *testing.T) {
	inv := &fakeInvoker{response: `{"stop_reason":"end_turn","content":[]}`}
	resp, err := NewBedrock(inv, "m", Options{}).Generate(context.Background(), Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "No response generated", resp.Content)

	body := gjson.ParseBytes(inv.body)
	assert.False(t, body.Get("system").Exists())
	assert.False(t, body.Get("tools").Exists())
	assert.False(t, body.Get("tool_choice").Exists())
}

func TestBedrockToolUse(t *testing.T) {
	inv := &fakeInvoker{response: `{"stop_reason":"tool_use","content":[{"type":"text","text":"Let me check"},{"type":"tool_use","id":"toolu_1","name":"list_assets","input":{"limit":3}}]}`}
	resp, err := NewBedrock(inv, "m", Options{}).Generate(context.Background(), Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}, Tools: []Tool{listTool}})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"limit":3}`, string(resp.ToolCalls[0].Arguments))
}

func TestBedrockConnection(t *testing.T) {
	status := NewBedrock(&fakeInvoker{err: errors.New("denied")}, "m", Options{}).TestConnection(context.Background())
	assert.False(t, status.Success)
	assert.Contains(t, status.Message, "denied")
}

func TestCollectChunks(t *testing.T) {
	events := make(chan types.ResponseStream, 3)
	events <- &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(`{"content":"Hello"}`)}}
	events <- &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(", world")}}
	events <- &types.ResponseStreamMemberTrace{}
	close(events)
	assert.Equal(t, "Hello, world", collectChunks(events))
}

func TestOllamaFallsBackWithoutTools(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		atomic.AddInt32(&calls, 1)
		assert.False(t, gjson.GetBytes(body, "stream").Bool())
		assert.Equal(t, "qwen3:0.6b", gjson.GetBytes(body, "model").String())
		if gjson.GetBytes(body, "tools").Exists() {
			assert.Equal(t, "function", gjson.GetBytes(body, "tools.0.type").String())
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"model does not support tools"}`))
			return
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"plain answer"}}`))
	}))
	defer server.Close()

	o := NewOllama(server.URL, "qwen3:0.6b", Options{Temperature: 0.7})
	resp, err := o.Generate(context.Background(), Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, Tools: []Tool{listTool}})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", resp.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOllamaNoToolUseOmitsTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.False(t, gjson.GetBytes(body, "tools").Exists())
		w.Write([]byte(`{"message":{"role":"assistant","content":"final"}}`))
	}))
	defer server.Close()

	resp, err := NewOllama(server.URL, "m", Options{}).Generate(context.Background(), Request{
		Messages:  []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		Tools:     []Tool{listTool},
		NoToolUse: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "final", resp.Content)
}

func TestOllamaToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"list_assets","arguments":{}}}]}}`))
	}))
	defer server.Close()

	resp, err := NewOllama(server.URL, "m", Options{}).Generate(context.Background(), Request{Tools: []Tool{listTool}})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_assets", resp.ToolCalls[0].Name)
	assert.Equal(t, "list_assets_0", resp.ToolCalls[0].ID)
	assert.Equal(t, StopToolUse, resp.StopReason)
}

func TestOllamaConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"qwen3:0.6b"}]}`))
	}))
	defer server.Close()

	assert.True(t, NewOllama(server.URL, "qwen3:0.6b", Options{}).TestConnection(context.Background()).Success)
	status := NewOllama(server.URL, "llama3", Options{}).TestConnection(context.Background())
	assert.False(t, status.Success)
	assert.Contains(t, status.Message, "llama3 not found")
}

func TestNoneProvider(t *testing.T) {
	_, err := None{}.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, TestConnection(context.Background(), None{}).Success)
}
