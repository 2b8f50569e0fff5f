// Package store implements CRUD over the project and chat history tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Project is a user's business problem being turned into a program.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DataDescription string    `json:"dataDescription"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProjectStore persists projects.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a project store over the given database.
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Create inserts a new project and returns it with id and timestamps filled in.
func (s *ProjectStore) Create(ctx context.Context, p Project) (Project, error) {
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO projects (id, name, description, data_description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.DataDescription, p.CreatedAt, p.UpdatedAt); err != nil {
		return Project{}, fmt.Errorf("failed to insert project: %w", err)
	}
	return p, nil
}

// List returns all projects, newest first.
func (s *ProjectStore) List(ctx context.Context) ([]Project, error) {
	query := `
		SELECT id, name, description, data_description, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DataDescription, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Get returns one project by id, or ErrNotFound.
func (s *ProjectStore) Get(ctx context.Context, id string) (Project, error) {
	query := `
		SELECT id, name, description, data_description, created_at, updated_at
		FROM projects WHERE id = ?
	`
	var p Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.DataDescription, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

// Delete removes a project and, via cascading foreign keys, its repository,
// versions, and chat history.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
