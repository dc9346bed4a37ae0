// Package chat runs the estate assistant: a tool-calling loop over the
// configured model, legacy text commands and persisted conversations.
package chat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/metrics"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/llm"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Apology is returned as the reply when the model call fails.
const Apology = "I apologize, but I'm having trouble responding right now. Please try again later."

const (
	defaultMaxRounds = 5
	titleLimit       = 50
)

// AgentInvoker answers through a hosted agent that keeps its own session
// state.
type AgentInvoker interface {
	Invoke(ctx context.Context, sessionID, input string) (string, error)
}

// Options configures the service.
type Options struct {
	// Agent, when set, answers conversation messages instead of the tool loop.
	Agent         AgentInvoker
	MaxToolRounds int
}

// Service is the assistant.
type Service struct {
	provider      llm.Provider
	tools         *Tools
	commands      *Commands
	conversations storage.ConversationStore
	agent         AgentInvoker
	maxRounds     int
	log           *logger.Logger
}

// New constructs the assistant. A nil provider behaves as llm.None.
func New(provider llm.Provider, tools *Tools, commands *Commands, conversations storage.ConversationStore, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	if provider == nil {
		provider = llm.None{}
	}
	rounds := opts.MaxToolRounds
	if rounds <= 0 {
		rounds = defaultMaxRounds
	}
	return &Service{
		provider:      provider,
		tools:         tools,
		commands:      commands,
		conversations: conversations,
		agent:         opts.Agent,
		maxRounds:     rounds,
		log:           log,
	}
}

// Tools exposes the tool table.
func (s *Service) Tools() *Tools { return s.tools }

// ExecuteCommand runs a legacy text command.
func (s *Service) ExecuteCommand(ctx context.Context, userID, text string) CommandResult {
	res := s.commands.Execute(ctx, userID, text)
	s.log.WithContext(ctx).WithField("success", res.Success).Info("chat command executed")
	return res
}

// TestConnection probes the configured provider.
func (s *Service) TestConnection(ctx context.Context) llm.ConnectionStatus {
	return llm.TestConnection(ctx, s.provider)
}

// Complete answers messages, running requested tools for userID between
// model rounds. A provider that is not configured yields a 503; any other
// provider failure is reported inside the completion.
func (s *Service) Complete(ctx context.Context, userID string, messages []domain.Message) (domain.Completion, error) {
	if len(messages) == 0 {
		return domain.Completion{}, errors.BadRequest(errors.CodeMissingFields, "messages are required")
	}
	if last := messages[len(messages)-1]; last.Role == domain.RoleUser && IsCommand(last.Content) {
		res := s.ExecuteCommand(ctx, userID, last.Content)
		return domain.Completion{Content: res.Message}, nil
	}

	convo := make([]domain.Message, 0, len(messages)+1)
	convo = append(convo, domain.Message{Role: domain.RoleSystem, Content: SystemPrompt()})
	convo = append(convo, messages...)

	var out domain.Completion
	tools := s.tools.Definitions()
	for round := 0; ; round++ {
		// rounds exhausted; ask for a plain answer
		final := round == s.maxRounds
		resp, err := s.generate(ctx, llm.Request{Messages: convo, Tools: tools, NoToolUse: final})
		if err != nil {
			if stderrors.Is(err, llm.ErrUnavailable) {
				return domain.Completion{}, errors.Unavailable("llm_unavailable", "The assistant is not configured")
			}
			s.log.WithContext(ctx).WithError(err).Warn("chat completion failed")
			out.Content = Apology
			out.Error = err.Error()
			return out, nil
		}
		if len(resp.ToolCalls) == 0 || final {
			out.Content = resp.Content
			return out, nil
		}

		convo = append(convo, domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result := s.tools.Execute(ctx, userID, call.Name, call.Arguments)
			payload, _ := json.Marshal(result)
			convo = append(convo, domain.Message{Role: domain.RoleTool, Content: string(payload), ToolCallID: call.ID, Name: call.Name})
			out.ToolCalls = append(out.ToolCalls, call)
			out.ToolResults = append(out.ToolResults, domain.ToolOutcome{ToolCallID: call.ID, Name: call.Name, Result: result})
		}
		s.log.WithContext(ctx).
			WithField("round", round+1).
			WithField("tool_calls", len(resp.ToolCalls)).
			Debug("tool round completed")
	}
}

func (s *Service) generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	resp, err := s.provider.Generate(ctx, req)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case len(resp.ToolCalls) > 0:
		outcome = "tool_use"
	}
	metrics.RecordChatCompletion(s.provider.Name(), outcome, time.Since(start))
	return resp, err
}

// Conversations -------------------------------------------------------------

// ListConversations returns the user's conversations, most recent first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	items, err := s.conversations.ListConversations(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed_to_list_conversations", err)
	}
	return items, nil
}

// CreateConversation starts a conversation. A nil or blank title stores the
// default title.
func (s *Service) CreateConversation(ctx context.Context, userID string, title *string) (domain.Conversation, error) {
	t := domain.DefaultTitle
	if title != nil && strings.TrimSpace(*title) != "" {
		t = strings.TrimSpace(*title)
	}
	conv, err := s.conversations.CreateConversation(ctx, domain.Conversation{UserID: userID, Title: &t})
	if err != nil {
		return domain.Conversation{}, errors.Internal("failed_to_create_conversation", err)
	}
	s.log.WithContext(ctx).WithField("conversation_id", conv.ID).Info("conversation created")
	return conv, nil
}

// GetConversation returns a conversation with its messages, oldest first.
func (s *Service) GetConversation(ctx context.Context, userID, id string) (domain.ConversationDetail, error) {
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return domain.ConversationDetail{}, err
	}
	msgs, err := s.conversations.ListMessages(ctx, id)
	if err != nil {
		return domain.ConversationDetail{}, errors.Internal("failed_to_fetch_conversation", err)
	}
	if msgs == nil {
		msgs = []domain.StoredMessage{}
	}
	return domain.ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// UpdateTitle renames a conversation.
func (s *Service) UpdateTitle(ctx context.Context, userID, id string, title *string) (domain.Conversation, error) {
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if title == nil || strings.TrimSpace(*title) == "" {
		return domain.Conversation{}, errors.BadRequest(errors.CodeMissingFields, "title is required")
	}
	t := strings.TrimSpace(*title)
	conv.Title = &t
	updated, err := s.conversations.UpdateConversation(ctx, conv)
	if err != nil {
		return domain.Conversation{}, errors.Internal("failed_to_update_conversation", err)
	}
	return updated, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.conversations.DeleteConversation(ctx, id); err != nil {
		return errors.Internal("failed_to_delete_conversation", err)
	}
	s.log.WithContext(ctx).WithField("conversation_id", id).Info("conversation deleted")
	return nil
}

// Reply is the result of sending a message to a conversation.
type Reply struct {
	Conversation     domain.Conversation  `json:"conversation"`
	UserMessage      domain.StoredMessage `json:"user_message"`
	AssistantMessage domain.StoredMessage `json:"assistant_message"`
	ToolResults      []domain.ToolOutcome `json:"tool_results,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// SendMessage appends content to the conversation, answers it over the full
// history and stores the reply.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID, content string) (Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Reply{}, errors.BadRequest(errors.CodeMissingFields, "content is required")
	}
	conv, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return Reply{}, err
	}

	userMsg, err := s.conversations.AppendMessage(ctx, domain.StoredMessage{
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        content,
	})
	if err != nil {
		return Reply{}, errors.Internal("failed_to_save_message", err)
	}

	if conv.Title == nil || *conv.Title == domain.DefaultTitle {
		title := autoTitle(content)
		conv.Title = &title
	}

	completion, err := s.answer(ctx, userID, conversationID, content)
	if err != nil {
		return Reply{}, err
	}

	var toolCalls json.RawMessage
	if len(completion.ToolCalls) > 0 {
		toolCalls, _ = json.Marshal(completion.ToolCalls)
	}
	assistantMsg, err := s.conversations.AppendMessage(ctx, domain.StoredMessage{
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        completion.Content,
		ToolCalls:      toolCalls,
	})
	if err != nil {
		return Reply{}, errors.Internal("failed_to_save_message", err)
	}

	// also bumps updated_at
	conv, err = s.conversations.UpdateConversation(ctx, conv)
	if err != nil {
		return Reply{}, errors.Internal("failed_to_update_conversation", err)
	}

	return Reply{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		ToolResults:      completion.ToolResults,
		Error:            completion.Error,
	}, nil
}

func (s *Service) answer(ctx context.Context, userID, conversationID, content string) (domain.Completion, error) {
	if s.agent != nil && !IsCommand(content) {
		text, err := s.agent.Invoke(ctx, conversationID, content)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("agent invocation failed")
			return domain.Completion{Content: Apology, Error: err.Error()}, nil
		}
		return domain.Completion{Content: text}, nil
	}

	stored, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return domain.Completion{}, errors.Internal("failed_to_fetch_conversation", err)
	}
	return s.Complete(ctx, userID, History(stored))
}

func (s *Service) owned(ctx context.Context, userID, id string) (domain.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) || (err == nil && conv.UserID != userID) {
		return domain.Conversation{}, errors.NotFound("conversation_not_found")
	}
	if err != nil {
		return domain.Conversation{}, errors.Internal("failed_to_fetch_conversation", err)
	}
	return conv, nil
}

// History converts stored messages into model input. Stored tool calls were
// already resolved when the reply was produced, so only text is replayed.
func History(stored []domain.StoredMessage) []domain.Message {
	out := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, domain.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func autoTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	return string([]rune(content)[:titleLimit]) + "..."
}
