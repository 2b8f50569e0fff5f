package orchestrate

import (
	"database/sql"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/ideaforge/forge/config"
	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/adapters"
	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// Service bundles the orchestration pipeline and its sibling stages behind one
// wired entry point for the HTTP layer.
type Service struct {
	Orchestrator *Orchestrator
	Sparring     *SparringStage
	Artifacts    ports.ArtifactStore
}

// Factory creates and wires pipeline components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

// NewFactory creates a new pipeline factory.
func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, db: db, logger: logger}
}

// CreateService wires a Service from config. The completion provider, artifact
// store, and tracer are all constructed here and injected; nothing reaches for
// globals at run time.
func (f *Factory) CreateService() *Service {
	provider := adapters.NewOpenAIProvider(adapters.OpenAIConfig{
		BaseURL:    f.cfg.OpenAI.BaseURL,
		APIKey:     f.cfg.OpenAI.APIKey,
		RetryCount: f.cfg.Orchestrator.RetryCount,
		Backoff:    f.cfg.Orchestrator.RetryBackoff,
		HTTPClient: &http.Client{Timeout: f.cfg.OpenAI.RequestTimeout},
	}, f.logger)

	opts := ports.Options{
		Model:       f.cfg.OpenAI.Model,
		MaxTokens:   f.cfg.OpenAI.MaxTokens,
		Temperature: f.cfg.OpenAI.Temperature,
	}

	var tracer ports.Tracer = adapters.NopTracer{}
	if f.cfg.Orchestrator.EnableTracing {
		tracer = adapters.NewZerologTracer(f.logger)
	}

	store := adapters.NewLibSQLArtifactStore(f.db)

	return &Service{
		Orchestrator: NewOrchestrator(
			NewDecisionStage(provider, opts),
			NewGenerationStage(provider, opts),
			store,
			tracer,
		),
		Sparring:  NewSparringStage(provider, opts),
		Artifacts: store,
	}
}
