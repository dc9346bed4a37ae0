package postgres

import (
	"context"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/storage"
)

const conversationColumns = `id, user_id, title, created_at, updated_at`

// --- ConversationStore ------------------------------------------------------

func (s *Store) CreateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	if conv.ID == "" {
		conv.ID = newID()
	}
	now := s.now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`) VALUES ($1, $2, $3, $4, $5)
	`, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return chat.Conversation{}, mapErr(err)
	}
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := s.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return conv, mapErr(err)
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	result := make([]chat.Conversation, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC
	`, userID)
	return result, mapErr(err)
}

func (s *Store) UpdateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	var out chat.Conversation
	err := s.db.GetContext(ctx, &out, `
		UPDATE conversations SET title = $2, updated_at = $3 WHERE id = $1
		RETURNING `+conversationColumns,
		conv.ID, conv.Title, s.now())
	return out, mapErr(err)
}

// DeleteConversation relies on the messages foreign key cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return expectRows(s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id))
}

func (s *Store) AppendMessage(ctx context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
	if msg.ID == "" {
		msg.ID = newID()
	}
	msg.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, jsonArg(msg.ToolCalls), msg.CreatedAt)
	if err != nil {
		return chat.StoredMessage{}, mapErr(err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chat.StoredMessage, error) {
	result := make([]chat.StoredMessage, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, conversation_id, role, content, tool_calls, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`, conversationID)
	return result, mapErr(err)
}

// --- ExchangeRateStore ------------------------------------------------------

func (s *Store) SaveRates(ctx context.Context, snap currency.Snapshot) error {
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for code, rate := range snap.Rates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exchange_rates (currency, rate, fetched_at) VALUES ($1, $2, $3)
			ON CONFLICT (currency) DO UPDATE SET rate = EXCLUDED.rate, fetched_at = EXCLUDED.fetched_at
		`, string(code), rate, fetchedAt); err != nil {
			return mapErr(err)
		}
	}
	return tx.Commit()
}

func (s *Store) LatestRates(ctx context.Context) (currency.Snapshot, error) {
	var rows []struct {
		Currency  string    `db:"currency"`
		Rate      float64   `db:"rate"`
		FetchedAt time.Time `db:"fetched_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT currency, rate, fetched_at FROM exchange_rates`); err != nil {
		return currency.Snapshot{}, mapErr(err)
	}
	if len(rows) == 0 {
		return currency.Snapshot{}, storage.ErrNotFound
	}
	snap := currency.Snapshot{Rates: make(currency.Rates, len(rows))}
	for _, r := range rows {
		snap.Rates[currency.Code(r.Currency)] = r.Rate
		if r.FetchedAt.After(snap.FetchedAt) {
			snap.FetchedAt = r.FetchedAt
		}
	}
	return snap, nil
}
