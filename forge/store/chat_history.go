package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// ChatHistory is the persisted transcript for one project. One row per
// project; saves replace the whole turn list.
type ChatHistory struct {
	ID           string              `json:"id"`
	ProjectID    string              `json:"projectId"`
	BusinessCase string              `json:"businessCase"`
	Messages     []ports.ChatMessage `json:"messages"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ChatHistoryStore persists chat transcripts keyed by project.
type ChatHistoryStore struct {
	db *sql.DB
}

// NewChatHistoryStore creates a chat history store over the given database.
func NewChatHistoryStore(db *sql.DB) *ChatHistoryStore {
	return &ChatHistoryStore{db: db}
}

// Save upserts the transcript for a project.
func (s *ChatHistoryStore) Save(ctx context.Context, projectID, businessCase string, messages []ports.ChatMessage) error {
	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO chat_history (id, project_id, business_case, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			business_case = excluded.business_case,
			messages = excluded.messages,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), projectID, businessCase, string(encoded), now, now); err != nil {
		return fmt.Errorf("failed to upsert chat history: %w", err)
	}
	return nil
}

// Get returns the transcript for a project, or ErrNotFound.
func (s *ChatHistoryStore) Get(ctx context.Context, projectID string) (ChatHistory, error) {
	query := `
		SELECT id, project_id, business_case, messages, created_at, updated_at
		FROM chat_history WHERE project_id = ?
	`
	var h ChatHistory
	var encoded string
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&h.ID, &h.ProjectID, &h.BusinessCase, &encoded, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ChatHistory{}, ErrNotFound
	}
	if err != nil {
		return ChatHistory{}, fmt.Errorf("failed to query chat history: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), &h.Messages); err != nil {
		return ChatHistory{}, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return h, nil
}
