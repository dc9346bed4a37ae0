// Package chat defines assistant messages, tool calls and stored
// conversations.
package chat

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is what a tool returns to the model and to the client.
type ToolResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolOutcome pairs a call with its result.
type ToolOutcome struct {
	ToolCallID string     `json:"toolCallId"`
	Name       string     `json:"name"`
	Result     ToolResult `json:"result"`
}

// Completion is the final answer of the assistant for one request.
type Completion struct {
	Content     string        `json:"content"`
	ToolCalls   []ToolCall    `json:"toolCalls,omitempty"`
	ToolResults []ToolOutcome `json:"toolResults,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// DefaultTitle is the title of a conversation that has not been named yet.
const DefaultTitle = "New Conversation"

// Conversation is a persisted chat thread.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     *string   `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StoredMessage is a persisted message of a conversation.
type StoredMessage struct {
	ID             string          `json:"id" db:"id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	Role           Role            `json:"role" db:"role"`
	Content        string          `json:"content" db:"content"`
	ToolCalls      json.RawMessage `json:"tool_calls" db:"tool_calls"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ConversationDetail is a conversation with its messages.
type ConversationDetail struct {
	Conversation
	Messages []StoredMessage `json:"messages"`
}
