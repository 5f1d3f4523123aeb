// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package topic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-journey/internal/httputil"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/pkg/types"
)

var ada = session.ForUser(session.User{ID: "ada"})

type fakeConfirmer struct {
	calls []types.Topic
	err   error
}

func (f *fakeConfirmer) ConfirmTopic(_ context.Context, _ session.Session, projectID string, t types.Topic) (types.ResearchProject, error) {
	if f.err != nil {
		return types.ResearchProject{}, f.err
	}
	f.calls = append(f.calls, t)
	return types.ResearchProject{ID: projectID, Phase: types.PhaseDesign, Topic: &t}, nil
}

type failingRecommender struct{}

func (failingRecommender) Recommend(context.Context, []string, int) ([]types.Topic, error) {
	return nil, errors.New("model overloaded")
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NotEmpty(t, c.Topics)
	require.NotEmpty(t, c.Goals)

	for _, topic := range c.Topics {
		assert.NotEmpty(t, topic.ID)
		assert.NotEmpty(t, topic.Keywords, topic.ID)
	}
	assert.Contains(t, c.Categories(), "Environment")
}

func TestCatalogSearch(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name     string
		query    string
		category string
		wantID   string
		wantNone bool
	}{
		{name: "title match", query: "climate", wantID: "climate-resilience"},
		{name: "keyword match", query: "QUBITS", wantID: "quantum-computing"},
		{name: "category filter", query: "policy", category: "environment", wantID: "climate-resilience"},
		{name: "no match", query: "volcanology", wantNone: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Search(tt.query, tt.category)
			if tt.wantNone {
				assert.Empty(t, got)
				return
			}
			require.NotEmpty(t, got)
			assert.Equal(t, tt.wantID, got[0].ID)
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Relevance, got[i].Relevance)
			}
		})
	}
}

func TestParseCatalog_DuplicateIDs(t *testing.T) {
	_, err := ParseCatalog([]byte("topics:\n  - title: A\n  - id: a\n    title: Other\n"))
	assert.Error(t, err)
}

func TestHTTPRecommender(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		var req recommendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"reefs"}, req.Interests)
		assert.Equal(t, 2, req.Count)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"topics":[
			{"title":"Coral Restoration","keywords":["reefs","genetics"]},
			{"title":""},
			{"id":"x","title":"Heat Stress","keywords":["reefs"]},
			{"title":"Extra"}
		]}`))
	}))
	defer ts.Close()

	client := &httputil.Client{HTTP: ts.Client()}
	rec := NewHTTPRecommender(types.TopicConfig{RecommenderURL: ts.URL, APIKey: "key-1"}, client)

	topics, err := rec.Recommend(context.Background(), []string{"reefs"}, 2)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "ai-coral-restoration", topics[0].ID)
	assert.Equal(t, "x", topics[1].ID)
}

func TestFlow_SuggestUsesRecommendations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"topics":[{"title":"Coral Restoration","keywords":["reefs"]}]}`))
	}))
	defer ts.Close()

	rec := NewHTTPRecommender(types.TopicConfig{RecommenderURL: ts.URL}, &httputil.Client{HTTP: ts.Client()})
	f := NewFlow(DefaultCatalog(), rec, &fakeConfirmer{}, nil)

	topics, err := f.Suggest(context.Background(), ada, []string{"reefs"}, 3)
	require.NoError(t, err)
	require.Len(t, topics, 1)

	// A recommended topic can be staged by the user it was recommended to.
	_, err = f.Select(ada, "p1", "ai-coral-restoration")
	require.NoError(t, err)
	_, err = f.Select(session.ForUser(session.User{ID: "bob"}), "p1", "ai-coral-restoration")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

// batchRecommender returns one batch per call, in order.
type batchRecommender struct {
	batches [][]types.Topic
}

func (b *batchRecommender) Recommend(context.Context, []string, int) ([]types.Topic, error) {
	next := b.batches[0]
	b.batches = b.batches[1:]
	return next, nil
}

func TestFlow_RecommendationsAreBounded(t *testing.T) {
	first := types.Topic{ID: "ai-first", Title: "First", Keywords: []string{"reefs"}}
	second := types.Topic{ID: "ai-second", Title: "Second", Keywords: []string{"reefs"}}
	answers := Answers{Reason: "why", Interests: []string{"reefs"}, Goals: []string{"Publish a paper"}}

	tests := []struct {
		name       string
		after      func(t *testing.T, f *Flow)
		selectable []string
		gone       []string
	}{
		{
			name:       "a new batch replaces the old one",
			after:      func(t *testing.T, f *Flow) {},
			selectable: []string{second.ID},
			gone:       []string{first.ID},
		},
		{
			name:  "cancel forgets the batch",
			after: func(t *testing.T, f *Flow) { f.Cancel(ada, "p1") },
			gone:  []string{first.ID, second.ID},
		},
		{
			name: "confirm forgets the batch",
			after: func(t *testing.T, f *Flow) {
				_, err := f.Confirm(context.Background(), ada, "p1", answers)
				require.NoError(t, err)
			},
			gone: []string{first.ID, second.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &batchRecommender{batches: [][]types.Topic{{first}, {second}}}
			f := NewFlow(DefaultCatalog(), rec, &fakeConfirmer{}, nil)
			ctx := context.Background()

			_, err := f.Suggest(ctx, ada, []string{"reefs"}, 3)
			require.NoError(t, err)
			_, err = f.Suggest(ctx, ada, []string{"reefs"}, 3)
			require.NoError(t, err)
			_, err = f.Select(ada, "p1", second.ID)
			require.NoError(t, err)

			tt.after(t, f)

			for _, id := range tt.selectable {
				_, err := f.Select(ada, "p2", id)
				assert.NoError(t, err, id)
			}
			for _, id := range tt.gone {
				_, err := f.Select(ada, "p2", id)
				assert.ErrorIs(t, err, ErrUnknownTopic, id)
			}
			_, kept := f.recommended["ada"]
			assert.Equal(t, len(tt.selectable) > 0, kept)
		})
	}
}

func TestFlow_SuggestFallsBackToCatalog(t *testing.T) {
	f := NewFlow(DefaultCatalog(), failingRecommender{}, &fakeConfirmer{}, nil)

	topics, err := f.Suggest(context.Background(), ada, []string{"machine learning"}, 3)
	require.NoError(t, err)
	require.NotEmpty(t, topics)
	assert.Equal(t, "ai-in-healthcare", topics[0].ID)

	_, err = f.Suggest(context.Background(), session.Anonymous(), nil, 3)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestFlow_SelectConfirm(t *testing.T) {
	conf := &fakeConfirmer{}
	f := NewFlow(DefaultCatalog(), nil, conf, nil)
	ctx := context.Background()

	_, err := f.Confirm(ctx, ada, "p1", Answers{Reason: "x"})
	assert.ErrorIs(t, err, ErrNothingStaged)

	q, err := f.Select(ada, "p1", "climate-resilience")
	require.NoError(t, err)
	assert.Equal(t, []string{"adaptation", "ecosystems", "risk", "policy", "modelling"}, q.Keywords)
	assert.Contains(t, q.Goals, "Publish a paper")

	_, err = f.Select(ada, "p1", "nope")
	assert.ErrorIs(t, err, ErrUnknownTopic)

	invalid := []Answers{
		{Reason: " ", Interests: []string{"risk"}, Goals: []string{"Publish a paper"}},
		{Reason: "why", Goals: []string{"Publish a paper"}},
		{Reason: "why", Interests: []string{"qubits"}, Goals: []string{"Publish a paper"}},
		{Reason: "why", Interests: []string{"risk"}},
		{Reason: "why", Interests: []string{"risk"}, Goals: []string{"Get famous"}},
	}
	for _, a := range invalid {
		_, err := f.Confirm(ctx, ada, "p1", a)
		assert.ErrorIs(t, err, ErrInvalidAnswers, "%+v", a)
	}
	assert.Empty(t, conf.calls)

	p, err := f.Confirm(ctx, ada, "p1", Answers{
		Reason:    "  Floods at home  ",
		Interests: []string{"risk", "policy"},
		Goals:     []string{"Publish a paper"},
	})
	require.NoError(t, err)
	require.Len(t, conf.calls, 1)
	require.NotNil(t, p.Topic.Selection)
	assert.Equal(t, "Floods at home", p.Topic.Selection.Reason)
	assert.Equal(t, []string{"risk", "policy"}, p.Topic.Selection.Interests)
	assert.False(t, p.Topic.Selection.SelectedAt.IsZero())

	_, ok := f.Staged(ada, "p1")
	assert.False(t, ok)
}

func TestFlow_ConfirmFailureKeepsStaging(t *testing.T) {
	conf := &fakeConfirmer{err: errors.New("store down")}
	f := NewFlow(DefaultCatalog(), nil, conf, nil)

	_, err := f.Select(ada, "p1", "microbiome")
	require.NoError(t, err)
	_, err = f.Confirm(context.Background(), ada, "p1", Answers{Reason: "r", Interests: []string{"gut"}, Goals: []string{"Learn the field"}})
	require.Error(t, err)

	staged, ok := f.Staged(ada, "p1")
	require.True(t, ok)
	assert.Equal(t, "microbiome", staged.ID)
}

func TestFlow_Cancel(t *testing.T) {
	conf := &fakeConfirmer{}
	f := NewFlow(DefaultCatalog(), nil, conf, nil)

	_, err := f.Select(ada, "p1", "microbiome")
	require.NoError(t, err)
	f.Cancel(ada, "p1")

	_, ok := f.Staged(ada, "p1")
	assert.False(t, ok)
	_, err = f.Confirm(context.Background(), ada, "p1", Answers{Reason: "r", Interests: []string{"gut"}, Goals: []string{"Learn the field"}})
	assert.ErrorIs(t, err, ErrNothingStaged)
	assert.Empty(t, conf.calls)
}
