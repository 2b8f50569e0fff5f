package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate"
	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
	"github.com/ZanzyTHEbar/ideaforge/forge/store"
)

// orchestrateRequest is the inbound payload for one orchestration run.
type orchestrateRequest struct {
	BusinessCase    string              `json:"businessCase"`
	Messages        []ports.ChatMessage `json:"messages"`
	ProjectID       string              `json:"projectId"`
	CurrentFilePath string              `json:"currentFilePath"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.svc.Orchestrator.Run(r.Context(), orchestrate.Request{
		BusinessCase: req.BusinessCase,
		Messages:     req.Messages,
		ProjectID:    req.ProjectID,
		FilePath:     req.CurrentFilePath,
	})
	if err != nil {
		s.respondError(w, orchestrationStatus(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

// sparringRequest is the inbound payload for the brainstorming endpoint.
type sparringRequest struct {
	BusinessCase string              `json:"businessCase"`
	Messages     []ports.ChatMessage `json:"messages"`
}

func (s *Server) handleSparring(w http.ResponseWriter, r *http.Request) {
	var req sparringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := s.svc.Sparring.Respond(r.Context(), req.BusinessCase, req.Messages)
	if err != nil {
		s.respondError(w, orchestrationStatus(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": reply})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if p.Name == "" {
		s.respondError(w, http.StatusBadRequest, errors.New("project name is required"))
		return
	}

	created, err := s.projects.Create(r.Context(), p)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, storeStatus(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveChatRequest replaces a project's transcript wholesale.
type saveChatRequest struct {
	BusinessCase string              `json:"businessCase"`
	Messages     []ports.ChatMessage `json:"messages"`
}

func (s *Server) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var req saveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.chats.Save(r.Context(), r.PathValue("id"), req.BusinessCase, req.Messages); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	history, err := s.chats.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, storeStatus(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleLatestCode(w http.ResponseWriter, r *http.Request) {
	path := artifactPath(r)
	content, err := s.svc.Artifacts.LatestContent(r.Context(), r.PathValue("id"), path)
	if errors.Is(err, ports.ErrNoVersion) {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "code": content})
}

func (s *Server) handleCodeHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.Artifacts.History(r.Context(), r.PathValue("id"), artifactPath(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if versions == nil {
		versions = []ports.ArtifactVersion{}
	}
	s.respondJSON(w, http.StatusOK, versions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.PingContext(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func artifactPath(r *http.Request) string {
	if path := r.URL.Query().Get("path"); path != "" {
		return path
	}
	return orchestrate.DefaultArtifactPath
}

// orchestrationStatus maps pipeline failures onto HTTP statuses: contract
// violations from the provider are 422, provider outages are 502, everything
// else is 500.
func orchestrationStatus(err error) int {
	var parseErr *orchestrate.DecisionParseError
	if errors.As(err, &parseErr) {
		return http.StatusUnprocessableEntity
	}
	var providerErr *ports.ProviderError
	if errors.As(err, &providerErr) {
		return http.StatusBadGateway
	}
	var genErr *orchestrate.GenerationError
	if errors.As(err, &genErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
