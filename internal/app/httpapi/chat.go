package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	domain "github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/httputil"
)

func (h *handler) complete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	// Clients only author user and assistant text; system prompts and tool
	// traffic are produced server-side.
	messages := make([]domain.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			httputil.WriteServiceError(w, r, errors.BadRequest("invalid_role", "message role must be user or assistant"), "")
			return
		}
		messages = append(messages, domain.Message{Role: m.Role, Content: m.Content})
	}
	completion, err := h.app.Chat.Complete(r.Context(), userID(r), messages)
	if err != nil {
		h.fail(w, r, err, "chat_failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, completion)
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.app.Chat.Tools().List())
}

func (h *handler) executeTool(w http.ResponseWriter, r *http.Request) {
	var args json.RawMessage
	if !h.decode(w, r, &args) {
		return
	}
	result := h.app.Chat.Tools().Execute(r.Context(), userID(r), mux.Vars(r)["name"], args)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) executeCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if body.Command == "" {
		httputil.WriteServiceError(w, r, errors.BadRequest(errors.CodeMissingFields, "command is required"), "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.app.Chat.ExecuteCommand(r.Context(), userID(r), body.Command))
}

func (h *handler) chatHealth(w http.ResponseWriter, r *http.Request) {
	status := h.app.Chat.TestConnection(r.Context())
	code := http.StatusOK
	if !status.Success {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}

// ---- conversations ----

type titleBody struct {
	Title *string `json:"title"`
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Chat.ListConversations(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_list_conversations")
		return
	}
	if items == nil {
		items = []domain.Conversation{}
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var body titleBody
	if !h.decode(w, r, &body) {
		return
	}
	conv, err := h.app.Chat.CreateConversation(r.Context(), userID(r), body.Title)
	if err != nil {
		h.fail(w, r, err, "failed_to_create_conversation")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, conv)
}

func (h *handler) getConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.Chat.GetConversation(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "failed_to_fetch_conversation")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *handler) updateConversation(w http.ResponseWriter, r *http.Request) {
	var body titleBody
	if !h.decode(w, r, &body) {
		return
	}
	conv, err := h.app.Chat.UpdateTitle(r.Context(), userID(r), mux.Vars(r)["id"], body.Title)
	if err != nil {
		h.fail(w, r, err, "failed_to_update_conversation")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conv)
}

func (h *handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Chat.DeleteConversation(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err, "failed_to_delete_conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	reply, err := h.app.Chat.SendMessage(r.Context(), userID(r), mux.Vars(r)["id"], body.Content)
	if err != nil {
		h.fail(w, r, err, "failed_to_send_message")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reply)
}
