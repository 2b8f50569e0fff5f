package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// LibSQLArtifactStore implements ArtifactStore over the project_code and
// repositories tables. Version rows are append-only; the latest version for a
// (project, path) pair is the highest (created_at, seq), so two writes landing
// in the same instant still resolve deterministically.
type LibSQLArtifactStore struct {
	db *sql.DB
}

// NewLibSQLArtifactStore creates a new libsql-backed artifact store.
func NewLibSQLArtifactStore(db *sql.DB) *LibSQLArtifactStore {
	return &LibSQLArtifactStore{db: db}
}

// LatestContent returns the most recently created version's content for the
// (project, path) pair, or ErrNoVersion when the artifact has no history yet.
func (s *LibSQLArtifactStore) LatestContent(ctx context.Context, projectID, path string) (string, error) {
	query := `
		SELECT code_content FROM project_code
		WHERE project_id = ? AND file_path = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`

	var content string
	err := s.db.QueryRowContext(ctx, query, projectID, path).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrNoVersion
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest version: %w", err)
	}
	return content, nil
}

// RecordVersion appends a new immutable version row, creating the per-project
// repository record on first use.
func (s *LibSQLArtifactStore) RecordVersion(ctx context.Context, v ports.ArtifactVersion) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin version transaction: %w", err)
	}
	defer tx.Rollback()

	repoID, err := ensureRepository(ctx, tx, v.ProjectID)
	if err != nil {
		return "", err
	}

	id := v.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO project_code (id, project_id, repository_id, file_path, code_content, prompt, orchestrator_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		id, v.ProjectID, repoID, v.FilePath, v.Content, v.Prompt, v.DecisionMessage, createdAt,
	); err != nil {
		return "", fmt.Errorf("failed to insert version row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit version transaction: %w", err)
	}
	return id, nil
}

// History returns all versions for the (project, path) pair, newest first.
func (s *LibSQLArtifactStore) History(ctx context.Context, projectID, path string) ([]ports.ArtifactVersion, error) {
	query := `
		SELECT id, seq, project_id, file_path, code_content, prompt, orchestrator_response, created_at
		FROM project_code
		WHERE project_id = ? AND file_path = ?
		ORDER BY created_at DESC, seq DESC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query version history: %w", err)
	}
	defer rows.Close()

	var versions []ports.ArtifactVersion
	for rows.Next() {
		var v ports.ArtifactVersion
		if err := rows.Scan(&v.ID, &v.Seq, &v.ProjectID, &v.FilePath, &v.Content, &v.Prompt, &v.DecisionMessage, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return versions, nil
}

// ensureRepository returns the repository id for a project, inserting the row
// lazily. The UNIQUE constraint on project_id makes concurrent creation
// attempts collapse onto the existing row.
func ensureRepository(ctx context.Context, tx *sql.Tx, projectID string) (string, error) {
	var repoID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM repositories WHERE project_id = ?`, projectID).Scan(&repoID)
	if err == nil {
		return repoID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to query repository: %w", err)
	}

	repoID = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repositories (id, project_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO NOTHING`,
		repoID, projectID, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("failed to insert repository: %w", err)
	}

	// Re-read: the insert may have been a no-op under conflict.
	if err := tx.QueryRowContext(ctx, `SELECT id FROM repositories WHERE project_id = ?`, projectID).Scan(&repoID); err != nil {
		return "", fmt.Errorf("failed to resolve repository after insert: %w", err)
	}
	return repoID, nil
}

// Ensure LibSQLArtifactStore implements the ArtifactStore interface.
var _ ports.ArtifactStore = (*LibSQLArtifactStore)(nil)
