// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-journey/internal/directory"
	"github.com/pdiddy/research-journey/internal/export"
	"github.com/pdiddy/research-journey/internal/journey"
	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/metrics"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/internal/topic"
	"github.com/pdiddy/research-journey/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	verifier *session.Verifier
	ledger   *ledger.Ledger
	journey  *journey.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tr := tasks.New(s, nil)
	projects := project.New(s, tr, nil)
	l := ledger.New(s, ledger.WithRecorder(m))
	ctrl := journey.New(s, projects, tr, l, nil)
	ctrl.Subscribe(m.Observe)

	svc := Services{
		Store:     s,
		Projects:  projects,
		Tasks:     tr,
		Journey:   ctrl,
		Ledger:    l,
		Topics:    topic.NewFlow(topic.DefaultCatalog(), nil, ctrl, nil),
		Directory: directory.New(s, nil, l, nil),
		Exporter:  export.New(projects, tr, l, t.TempDir(), nil, nil),
	}
	v := session.NewVerifier("test-secret", "")
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return &testServer{router: NewRouter(svc, v, handler, nil), verifier: v, ledger: l, journey: ctrl}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.verifier.Issue(session.User{ID: userID, DisplayName: userID}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "unauthenticated", body.Error.Code)

	other := session.NewVerifier("other-secret", "")
	forged, err := other.Issue(session.User{ID: "ada"}, time.Hour)
	require.NoError(t, err)
	w = ts.do(t, http.MethodGet, "/api/v1/projects", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/me", ts.token(t, "ada"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJourneyOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.token(t, "ada")

	w := ts.do(t, http.MethodPost, "/api/v1/projects", ada, map[string]any{"title": "Coastal flooding"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[types.ResearchProject](t, w)
	assert.Equal(t, types.PhaseDiscovery, p.Phase)

	w = ts.do(t, http.MethodGet, "/api/v1/projects/"+p.ID, ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[journey.View](t, w)
	require.Len(t, view.Phases, 4)
	assert.Equal(t, journey.StateActive, view.Phases[0].State)

	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/topic", ada, map[string]any{"topic_id": "climate-resilience"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	q := decode[topic.Questionnaire](t, w)
	assert.Contains(t, q.Keywords, "risk")

	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/topic/confirm", ada, topic.Answers{
		Reason:    "Floods at home",
		Interests: []string{"risk"},
		Goals:     []string{"Publish a paper"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p = decode[types.ResearchProject](t, w)
	assert.Equal(t, types.PhaseDesign, p.Phase)

	w = ts.do(t, http.MethodGet, "/api/v1/points", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[types.UserPoints](t, w)
	assert.Equal(t, journey.TopicBonus+journey.PhaseBonus(types.PhaseDiscovery), points.Total)

	w = ts.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/export?format=json", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	j := decode[export.Journal](t, w)
	assert.Equal(t, p.ID, j.Project.ID)
	assert.Equal(t, points.Total, j.Points.Total)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `research_journey_phase_transitions_total{phase="design"} 1`)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.token(t, "ada")

	w := ts.do(t, http.MethodPost, "/api/v1/projects", ada, map[string]any{"title": "Soil carbon"})
	require.Equal(t, http.StatusCreated, w.Code)
	p := decode[types.ResearchProject](t, w)

	_, err := ts.ledger.CreateReward(t.Context(), types.Reward{ID: "mug", Title: "Mug", Cost: 500})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"stranger cannot see project", http.MethodGet, "/api/v1/projects/" + p.ID, ts.token(t, "eve"), nil, http.StatusNotFound, "not_found"},
		{"phase mismatch", http.MethodPost, "/api/v1/projects/" + p.ID + "/phases/design/complete", ada, nil, http.StatusConflict, "phase_mismatch"},
		{"final phase", http.MethodPost, "/api/v1/projects/" + p.ID + "/phases/evaluation/complete", ada, nil, http.StatusConflict, "final_phase"},
		{"insufficient points", http.MethodPost, "/api/v1/rewards/mug/redeem", ada, nil, http.StatusPaymentRequired, "insufficient_points"},
		{"empty title", http.MethodPost, "/api/v1/projects", ada, map[string]any{"title": " "}, http.StatusUnprocessableEntity, "invalid_input"},
		{"malformed body", http.MethodPost, "/api/v1/projects", ada, "{", http.StatusBadRequest, "bad_request"},
		{"nothing staged", http.MethodPost, "/api/v1/projects/" + p.ID + "/topic/confirm", ada, topic.Answers{Reason: "x"}, http.StatusConflict, "nothing_staged"},
		{"unknown platform", http.MethodPost, "/api/v1/communities/myspace/123/join", ada, nil, http.StatusUnprocessableEntity, "unknown_platform"},
		{"invalid status", http.MethodPost, "/api/v1/projects/" + p.ID + "/tasks", ada, map[string]any{"title": "x", "status": "someday"}, http.StatusUnprocessableEntity, "invalid_status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, w).Error.Code)
		})
	}
}

func TestTasksAndDirectoryOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ada, bob := ts.token(t, "ada"), ts.token(t, "bob")

	w := ts.do(t, http.MethodPost, "/api/v1/projects", ada, map[string]any{"title": "Soil carbon"})
	require.Equal(t, http.StatusCreated, w.Code)
	p := decode[types.ResearchProject](t, w)

	body := map[string]any{"title": "Read five papers", "request_id": "r-1"}
	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/tasks", ada, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[types.ResearchTask](t, w)
	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/tasks", ada, body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, first.ID, decode[types.ResearchTask](t, w).ID)

	w = ts.do(t, http.MethodPatch, "/api/v1/tasks/"+first.ID, bob, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPatch, "/api/v1/tasks/"+first.ID, ada, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.TaskCompleted, decode[types.ResearchTask](t, w).Status)

	w = ts.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/tasks?group=status", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	grouped := decode[map[types.TaskStatus][]types.ResearchTask](t, w)
	assert.Len(t, grouped[types.TaskCompleted], 1)

	w = ts.do(t, http.MethodPost, "/api/v1/communities", ada, map[string]any{"name": "Soil Nerds", "topics": []string{"soil"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decode[types.Community](t, w)

	for i := 0; i < 2; i++ {
		w = ts.do(t, http.MethodPost, "/api/v1/communities/custom/"+c.ID+"/join", bob, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, "/api/v1/communities?topic=soil", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[directory.SearchResult](t, w)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, 2, res.Listings[0].MemberCount)

	w = ts.do(t, http.MethodDelete, "/api/v1/communities/custom/"+c.ID+"/membership", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/v1/communities/custom/"+c.ID+"/membership", bob, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateTaskStatus_BusyProject(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.token(t, "ada")

	w := ts.do(t, http.MethodPost, "/api/v1/projects", ada, map[string]any{"title": "Soil carbon"})
	require.Equal(t, http.StatusCreated, w.Code)
	p := decode[types.ResearchProject](t, w)
	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/tasks", ada, map[string]any{"title": "Read five papers"})
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[types.ResearchTask](t, w)

	// Observers run before the project is released, so a PATCH issued from
	// one races a change that is still in flight.
	var during *httptest.ResponseRecorder
	ts.journey.Subscribe(func(e journey.Event) {
		if during == nil && e.ProjectID == p.ID {
			during = ts.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID, ada, map[string]any{"status": "completed"})
		}
	})
	w = ts.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/progress", ada, map[string]any{"phase": "discovery", "progress": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, during)
	assert.Equal(t, http.StatusConflict, during.Code, during.Body.String())
	assert.Equal(t, "busy", decode[errorBody](t, during).Error.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/tasks", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, got := range decode[[]types.ResearchTask](t, w) {
		if got.ID == task.ID {
			assert.Equal(t, types.TaskTodo, got.Status, "a rejected PATCH leaves the task alone")
		}
	}

	w = ts.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID, ada, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.TaskCompleted, decode[types.ResearchTask](t, w).Status)
}
