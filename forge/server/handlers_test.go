package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/ideaforge/forge/config"
	"github.com/ZanzyTHEbar/ideaforge/forge/db"
	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate"
	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/adapters"
	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
	"github.com/ZanzyTHEbar/ideaforge/forge/store"
)

// queueProvider returns canned completions in order.
type queueProvider struct {
	replies []ports.Completion
	errs    []error
	calls   int
}

func (p *queueProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return ports.Completion{}, p.errs[idx]
	}
	if idx < len(p.replies) {
		return p.replies[idx], nil
	}
	return ports.Completion{}, errors.New("unexpected provider call")
}

var _ ports.CompletionProvider = (*queueProvider)(nil)

type testEnv struct {
	handler  http.Handler
	projects *store.ProjectStore
	svc      *orchestrate.Service
}

func setupServer(t *testing.T, provider ports.CompletionProvider) testEnv {
	t.Helper()

	conn, err := db.Connect(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	opts := ports.Options{Model: "test-model"}
	artifacts := adapters.NewLibSQLArtifactStore(conn)
	svc := &orchestrate.Service{
		Orchestrator: orchestrate.NewOrchestrator(
			orchestrate.NewDecisionStage(provider, opts),
			orchestrate.NewGenerationStage(provider, opts),
			artifacts,
			adapters.NopTracer{},
		),
		Sparring:  orchestrate.NewSparringStage(provider, opts),
		Artifacts: artifacts,
	}

	projects := store.NewProjectStore(conn)
	srv := New(config.ServerConfig{Addr: ":0", CORSOrigin: "*"}, svc, projects, store.NewChatHistoryStore(conn), conn, zerolog.Nop())
	return testEnv{handler: srv.server.Handler, projects: projects, svc: svc}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createProject(t *testing.T, env testEnv) store.Project {
	t.Helper()
	p, err := env.projects.Create(context.Background(), store.Project{Name: "p", Description: "d"})
	require.NoError(t, err)
	return p
}

func TestHandleOrchestrate_NoCode(t *testing.T) {
	provider := &queueProvider{replies: []ports.Completion{
		{Text: `{"needsCode": false, "userResponse": "Let me explain."}`},
	}}
	env := setupServer(t, provider)
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/orchestrate", map[string]any{
		"businessCase": "sell socks",
		"projectId":    p.ID,
		"messages":     []map[string]string{{"role": "user", "content": "how does it work?"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Let me explain.", "filesToModify": [], "code": []}`, rec.Body.String())
}

func TestHandleOrchestrate_GeneratesCode(t *testing.T) {
	provider := &queueProvider{replies: []ports.Completion{
		{Text: `{"needsCode": true, "userResponse": "I'll write it", "codeInstructions": "write a tracker"}`},
		{Text: "print('tracker')"},
	}}
	env := setupServer(t, provider)
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/orchestrate", map[string]any{
		"businessCase": "sell socks",
		"projectId":    p.ID,
		"messages":     []map[string]string{{"role": "user", "content": "build it"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome orchestrate.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, []orchestrate.FileRef{{Path: "main.py"}}, outcome.FilesToModify)
	require.Len(t, outcome.Code, 1)
	assert.Equal(t, "print('tracker')", outcome.Code[0].Code)

	// The version is queryable through the read API afterwards.
	latest := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID+"/code/latest", nil)
	require.Equal(t, http.StatusOK, latest.Code)
	assert.JSONEq(t, `{"path": "main.py", "code": "print('tracker')"}`, latest.Body.String())
}

func TestHandleOrchestrate_ParseFailureIs422(t *testing.T) {
	provider := &queueProvider{replies: []ports.Completion{
		{Text: "Sure, happy to help!"},
	}}
	env := setupServer(t, provider)
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/orchestrate", map[string]any{
		"projectId": p.ID,
		"messages":  []map[string]string{{"role": "user", "content": "hi"}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleOrchestrate_ProviderOutageIs502(t *testing.T) {
	provider := &queueProvider{errs: []error{
		&ports.ProviderError{Attempts: 2, Err: errors.New("down")},
	}}
	env := setupServer(t, provider)
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/orchestrate", map[string]any{
		"projectId": p.ID,
		"messages":  []map[string]string{{"role": "user", "content": "hi"}},
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleOrchestrate_MalformedBodyIs400(t *testing.T) {
	env := setupServer(t, &queueProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/orchestrate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSparring(t *testing.T) {
	provider := &queueProvider{replies: []ports.Completion{
		{Text: "### Great idea\n- consider margins"},
	}}
	env := setupServer(t, provider)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/sparring", map[string]any{
		"businessCase": "sell socks",
		"messages":     []map[string]string{{"role": "user", "content": "thoughts?"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "Great idea")
}

func TestProjectLifecycle(t *testing.T) {
	env := setupServer(t, &queueProvider{})

	created := doJSON(t, env.handler, http.MethodPost, "/api/projects", map[string]string{
		"name":        "tracker",
		"description": "track prices",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	var p store.Project
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &p))
	require.NotEmpty(t, p.ID)

	list := doJSON(t, env.handler, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var projects []store.Project
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &projects))
	require.Len(t, projects, 1)

	get := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, get.Code)

	del := doJSON(t, env.handler, http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	missing := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCreateProject_RequiresName(t *testing.T) {
	env := setupServer(t, &queueProvider{})

	rec := doJSON(t, env.handler, http.MethodPost, "/api/projects", map[string]string{
		"description": "no name",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRoundTrip(t *testing.T) {
	env := setupServer(t, &queueProvider{})
	p := createProject(t, env)

	put := doJSON(t, env.handler, http.MethodPut, "/api/projects/"+p.ID+"/chat", map[string]any{
		"businessCase": "sell socks",
		"messages":     []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.Equal(t, http.StatusNoContent, put.Code)

	get := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID+"/chat", nil)
	require.Equal(t, http.StatusOK, get.Code)
	var history store.ChatHistory
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &history))
	assert.Equal(t, "sell socks", history.BusinessCase)
	require.Len(t, history.Messages, 1)
}

func TestLatestCode_NoVersionsIs404(t *testing.T) {
	env := setupServer(t, &queueProvider{})
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID+"/code/latest", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCodeHistory_EmptyIsArray(t *testing.T) {
	env := setupServer(t, &queueProvider{})
	p := createProject(t, env)

	rec := doJSON(t, env.handler, http.MethodGet, "/api/projects/"+p.ID+"/code/history", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	env := setupServer(t, &queueProvider{})

	rec := doJSON(t, env.handler, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t, &queueProvider{})

	req := httptest.NewRequest(http.MethodOptions, "/api/orchestrate", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "content-type")
}
