package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNoVersion is returned by LatestContent when no version exists yet for the
// (project, path) pair. Callers treat it as "empty current content", not a failure.
var ErrNoVersion = errors.New("no artifact version recorded")

// ArtifactVersion is one immutable row in an artifact's version history.
type ArtifactVersion struct {
	ID              string
	Seq             int64 // monotonically increasing, breaks created-at ties
	ProjectID       string
	FilePath        string
	Content         string
	Prompt          string // the user turn that triggered the write
	DecisionMessage string // the decision stage's user-facing reply
	CreatedAt       time.Time
}

// ArtifactStore resolves and appends per-file version rows, one logical
// repository per project. Versions are append-only; "update" always means
// "append a new version".
type ArtifactStore interface {
	// LatestContent returns the content of the most recently created version
	// for the (project, path) pair, or ErrNoVersion when none exists.
	LatestContent(ctx context.Context, projectID, path string) (string, error)

	// RecordVersion appends a new immutable version and returns its identifier.
	// The enclosing repository row is created lazily on first use; a concurrent
	// creation attempt reuses the existing row rather than erroring.
	RecordVersion(ctx context.Context, v ArtifactVersion) (string, error)

	// History returns all versions for the (project, path) pair, newest first.
	History(ctx context.Context, projectID, path string) ([]ArtifactVersion, error)
}
