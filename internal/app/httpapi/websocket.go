package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	domain "github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/services/chat"
	"github.com/R3E-Network/fortivo/internal/errors"
)

const (
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
	socketWriteWait  = 10 * time.Second
	socketMaxFrame   = 64 << 10
)

// socketRequest is one inbound chat frame. Without a conversation id the
// content is answered statelessly.
type socketRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content"`
}

type socketFrame struct {
	Type       string             `json:"type"`
	Reply      *chat.Reply        `json:"reply,omitempty"`
	Completion *domain.Completion `json:"completion,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (h *handler) chatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.WithContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	uid := userID(r)
	log := h.log.WithContext(r.Context()).WithField("user_id", uid)
	log.Info("chat socket opened")

	conn.SetReadLimit(socketMaxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(socketPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var req socketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("chat socket closed unexpectedly")
			}
			return
		}

		frame := h.answerFrame(r, uid, req)
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			log.WithError(err).Warn("chat socket write failed")
			return
		}
	}
}

func (h *handler) answerFrame(r *http.Request, uid string, req socketRequest) socketFrame {
	ctx := r.Context()
	if strings.TrimSpace(req.Content) == "" {
		return socketFrame{Type: "error", Error: string(errors.CodeMissingFields)}
	}
	if req.ConversationID != "" {
		reply, err := h.app.Chat.SendMessage(ctx, uid, req.ConversationID, req.Content)
		if err != nil {
			return socketFrame{Type: "error", Error: frameError(err)}
		}
		return socketFrame{Type: "reply", Reply: &reply}
	}
	completion, err := h.app.Chat.Complete(ctx, uid, []domain.Message{{Role: domain.RoleUser, Content: req.Content}})
	if err != nil {
		return socketFrame{Type: "error", Error: frameError(err)}
	}
	return socketFrame{Type: "reply", Completion: &completion}
}

func frameError(err error) string {
	if se := errors.GetServiceError(err); se != nil {
		return string(se.Code)
	}
	return "chat_failed"
}
