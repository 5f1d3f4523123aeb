// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-journey/pkg/types"
)

type note struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Rank  int      `json:"rank"`
	Done  bool     `json:"done"`
	Tags  []string `json:"tags"`
	Meta  struct {
		Kind string `json:"kind"`
	} `json:"meta"`
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "db", "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "notes", Doc{Owner: "u1", Body: note{Title: "first"}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := s.Get(ctx, "notes", id)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.Owner)
	assert.False(t, rec.CreatedAt.IsZero())

	n, err := Decode[note](rec)
	require.NoError(t, err)
	assert.Equal(t, "first", n.Title)
}

func TestCreate_DuplicateID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "notes", Doc{ID: "n1", Body: note{Title: "a"}})
	require.NoError(t, err)

	_, err = s.Create(ctx, "notes", Doc{ID: "n1", Body: note{Title: "b"}})
	assert.ErrorIs(t, err, ErrConflict)

	// Same id in another collection is fine.
	_, err = s.Create(ctx, "other", Doc{ID: "n1", Body: note{Title: "c"}})
	assert.NoError(t, err)
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "notes", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_MergesFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "notes", Doc{Body: note{Title: "a", Rank: 1, Tags: []string{"x"}}})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, "notes", id, map[string]any{"rank": 7}))

	n, err := GetAs[note](ctx, s, "notes", id)
	require.NoError(t, err)
	assert.Equal(t, "a", n.Title)
	assert.Equal(t, 7, n.Rank)
	assert.Equal(t, []string{"x"}, n.Tags)

	err = s.Update(ctx, "notes", "missing", map[string]any{"rank": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceAndDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "notes", Doc{Body: note{Title: "a", Rank: 3}})
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, "notes", id, note{Title: "b"}))
	n, err := GetAs[note](ctx, s, "notes", id)
	require.NoError(t, err)
	assert.Equal(t, "b", n.Title)
	assert.Zero(t, n.Rank)

	require.NoError(t, s.Delete(ctx, "notes", id))
	_, err = s.Get(ctx, "notes", id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "notes", id), ErrNotFound)
}

func TestQuery(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seed := []note{
		{Title: "alpha", Rank: 3, Done: true, Tags: []string{"go", "db"}},
		{Title: "beta", Rank: 1, Tags: []string{"go"}},
		{Title: "gamma", Rank: 2, Done: true},
	}
	seed[2].Meta.Kind = "draft"
	for i, n := range seed {
		owner := "u1"
		if i == 2 {
			owner = "u2"
		}
		_, err := s.Create(ctx, "notes", Doc{Owner: owner, Body: n})
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all in creation order", query: Query{}, want: []string{"alpha", "beta", "gamma"}},
		{name: "newest first", query: Query{Desc: true}, want: []string{"gamma", "beta", "alpha"}},
		{name: "owner", query: Query{Owner: "u1"}, want: []string{"alpha", "beta"}},
		{name: "bool eq", query: Query{Where: []Cond{Eq("done", true)}}, want: []string{"alpha", "gamma"}},
		{name: "ne", query: Query{Where: []Cond{Ne("title", "beta")}}, want: []string{"alpha", "gamma"}},
		{name: "gt", query: Query{Where: []Cond{{Field: "rank", Op: OpGt, Value: 1}}}, want: []string{"alpha", "gamma"}},
		{name: "lt", query: Query{Where: []Cond{{Field: "rank", Op: OpLt, Value: 3}}}, want: []string{"beta", "gamma"}},
		{name: "contains", query: Query{Where: []Cond{Contains("tags", "db")}}, want: []string{"alpha"}},
		{name: "like", query: Query{Where: []Cond{Like("title", "%MM%")}}, want: []string{"gamma"}},
		{name: "nested field", query: Query{Where: []Cond{Eq("meta.kind", "draft")}}, want: []string{"gamma"}},
		{name: "order by field", query: Query{OrderBy: "rank"}, want: []string{"beta", "gamma", "alpha"}},
		{name: "limit", query: Query{OrderBy: "rank", Desc: true, Limit: 1}, want: []string{"alpha"}},
		{name: "no match", query: Query{Where: []Cond{Eq("title", "delta")}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QueryAs[note](ctx, s, "notes", tt.query)
			require.NoError(t, err)
			require.NotNil(t, got)
			titles := []string{}
			for _, n := range got {
				titles = append(titles, n.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestQuery_InvalidField(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Query(ctx, "notes", Query{Where: []Cond{Eq("title') OR 1=1 --", "x")}})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Query(ctx, "notes", Query{OrderBy: "bad field"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Query(ctx, "notes", Query{Where: []Cond{{Field: "title", Op: "regex", Value: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "notes", Doc{Body: note{Title: "a", Rank: 1}})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Atomic(ctx, func(c Collections) error {
		if err := c.Update(ctx, "notes", id, map[string]any{"rank": 99}); err != nil {
			return err
		}
		if _, err := c.Create(ctx, "notes", Doc{ID: "n2", Body: note{Title: "b"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := GetAs[note](ctx, s, "notes", id)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Rank)
	_, err = s.Get(ctx, "notes", "n2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAtomic_NestedJoinsOuter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(c Collections) error {
		return c.Atomic(ctx, func(inner Collections) error {
			_, err := inner.Create(ctx, "notes", Doc{ID: "n1", Body: note{Title: "a"}})
			return err
		})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, func(c Collections) error {
		if err := c.Atomic(ctx, func(inner Collections) error {
			_, err := inner.Create(ctx, "notes", Doc{ID: "n2", Body: note{Title: "b"}})
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)

	_, err = s.Get(ctx, "notes", "n1")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "notes", "n2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAfterCommit(t *testing.T) {
	tests := []struct {
		name    string
		fail    bool
		nested  bool
		wantRan []string
	}{
		{name: "runs after commit", wantRan: []string{"outer"}},
		{name: "nested waits for the outer commit", nested: true, wantRan: []string{"outer", "inner"}},
		{name: "dropped on rollback", fail: true},
		{name: "nested dropped on rollback", fail: true, nested: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			ctx := context.Background()
			var ran []string

			err := s.Atomic(ctx, func(c Collections) error {
				c.AfterCommit(func() { ran = append(ran, "outer") })
				if tt.nested {
					if err := c.Atomic(ctx, func(inner Collections) error {
						inner.AfterCommit(func() { ran = append(ran, "inner") })
						return nil
					}); err != nil {
						return err
					}
				}
				assert.Empty(t, ran, "nothing runs before commit")
				if tt.fail {
					return errors.New("outer fails")
				}
				return nil
			})
			if tt.fail {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantRan, ran)
		})
	}

	s := testStore(t)
	ran := false
	s.AfterCommit(func() { ran = true })
	assert.True(t, ran, "outside a transaction hooks run at once")
}
