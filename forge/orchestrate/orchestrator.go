package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// DefaultArtifactPath is the single-file artifact every project builds.
const DefaultArtifactPath = "main.py"

// Request configures one orchestration run.
type Request struct {
	BusinessCase string
	Messages     []ports.ChatMessage
	ProjectID    string
	FilePath     string // defaults to DefaultArtifactPath
}

// FileRef identifies a touched file in the outcome.
type FileRef struct {
	Path string `json:"path"`
}

// GeneratedFile pairs a path with its full replacement content.
type GeneratedFile struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

// Outcome is the shaped result of a completed run. FilesToModify and Code are
// empty (not nil) when no code was needed, so they encode as [] on the wire.
type Outcome struct {
	Message       string          `json:"message"`
	FilesToModify []FileRef       `json:"filesToModify"`
	Code          []GeneratedFile `json:"code"`
}

// Orchestrator sequences sanitize → decide → (generate) → persist for one
// inbound request. All collaborators are injected; the orchestrator holds no
// ambient state beyond the per-artifact lock table.
type Orchestrator struct {
	decision   *DecisionStage
	generation *GenerationStage
	store      ports.ArtifactStore
	tracer     ports.Tracer
	locks      pathLocks
}

// NewOrchestrator wires an orchestrator from its stages and store.
func NewOrchestrator(decision *DecisionStage, generation *GenerationStage, store ports.ArtifactStore, tracer ports.Tracer) *Orchestrator {
	return &Orchestrator{
		decision:   decision,
		generation: generation,
		store:      store,
		tracer:     tracer,
	}
}

// Run executes the state machine once, start to finish. Runs against the same
// (project, path) are serialized; distinct artifacts proceed independently.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	if req.ProjectID == "" {
		return Outcome{}, fmt.Errorf("project id is required")
	}
	if len(req.Messages) == 0 {
		return Outcome{}, fmt.Errorf("at least one conversation turn is required")
	}
	path := req.FilePath
	if path == "" {
		path = DefaultArtifactPath
	}

	ctx, finish := o.tracer.StartSpan(ctx, "orchestrate", map[string]any{
		"project_id": req.ProjectID,
		"file_path":  path,
		"turns":      len(req.Messages),
	})
	var runErr error
	defer func() { finish(runErr) }()

	unlock := o.locks.acquire(req.ProjectID + "\x00" + path)
	defer unlock()

	sanitized := SanitizeTurns(req.Messages)

	currentContent, err := o.store.LatestContent(ctx, req.ProjectID, path)
	if err != nil && !errors.Is(err, ports.ErrNoVersion) {
		runErr = err
		return Outcome{}, err
	}

	decision, err := o.decision.Decide(ctx, req.BusinessCase, currentContent, sanitized)
	if err != nil {
		runErr = err
		return Outcome{}, err
	}

	if decision.Code == nil {
		o.tracer.Event(ctx, "no_code_needed", nil)
		return Outcome{
			Message:       decision.Reply,
			FilesToModify: []FileRef{},
			Code:          []GeneratedFile{},
		}, nil
	}

	generated, err := o.generation.Generate(ctx, decision.Code.Instructions, currentContent)
	if err != nil {
		runErr = err
		return Outcome{}, err
	}

	versionID, err := o.store.RecordVersion(ctx, ports.ArtifactVersion{
		ProjectID:       req.ProjectID,
		FilePath:        path,
		Content:         generated,
		Prompt:          req.Messages[len(req.Messages)-1].Content,
		DecisionMessage: decision.Reply,
	})
	if err != nil {
		runErr = err
		return Outcome{}, err
	}
	o.tracer.Event(ctx, "version_recorded", map[string]any{"version_id": versionID})

	return Outcome{
		Message:       decision.Reply,
		FilesToModify: []FileRef{{Path: path}},
		Code:          []GeneratedFile{{Path: path, Code: generated}},
	}, nil
}

// pathLocks serializes runs per artifact key. The table grows with the number
// of distinct (project, path) pairs seen by this process.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *pathLocks) acquire(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
