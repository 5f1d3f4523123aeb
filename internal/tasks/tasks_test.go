// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/pkg/types"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "tasks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil)
}

func TestAddTask_Defaults(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	task, err := tr.AddTask(ctx, "p1", NewTask{Title: "  Read papers  "})
	require.NoError(t, err)
	assert.Equal(t, "Read papers", task.Title)
	assert.Equal(t, types.TaskTodo, task.Status)
	assert.Equal(t, types.PriorityMedium, task.Priority)
	assert.Equal(t, "p1", task.ProjectID)
}

func TestAddTask_Validation(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		task    NewTask
		wantErr error
	}{
		{name: "bad status", task: NewTask{Title: "x", Status: "blocked"}, wantErr: ErrInvalidStatus},
		{name: "bad priority", task: NewTask{Title: "x", Priority: "urgent"}, wantErr: ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.AddTask(ctx, "p1", tt.task)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := tr.AddTask(ctx, "p1", NewTask{Title: " "})
	assert.Error(t, err)
}

func TestAddTask_RequestIDIsIdempotent(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	first, err := tr.AddTask(ctx, "p1", NewTask{Title: "Write intro", RequestID: "req-1"})
	require.NoError(t, err)
	second, err := tr.AddTask(ctx, "p1", NewTask{Title: "Write intro", RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The same request id under another project is a different task.
	other, err := tr.AddTask(ctx, "p2", NewTask{Title: "Write intro", RequestID: "req-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	list, err := tr.ListTasks(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateTaskStatus_AnyTransition(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	task, err := tr.AddTask(ctx, "p1", NewTask{Title: "t"})
	require.NoError(t, err)

	for _, s := range []types.TaskStatus{types.TaskCompleted, types.TaskTodo, types.TaskInProgress, types.TaskCompleted} {
		got, err := tr.UpdateTaskStatus(ctx, task.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, got.Status)
	}

	_, err = tr.UpdateTaskStatus(ctx, task.ID, "done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = tr.UpdateTaskStatus(ctx, "missing", types.TaskTodo)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTaskStatus_SameStatusWritesNothing(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.SetClock(func() time.Time { return base })

	task, err := tr.AddTask(ctx, "p1", NewTask{Title: "t"})
	require.NoError(t, err)

	tr.SetClock(func() time.Time { return base.Add(time.Hour) })
	first, err := tr.UpdateTaskStatus(ctx, task.ID, types.TaskCompleted)
	require.NoError(t, err)

	tr.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	second, err := tr.UpdateTaskStatus(ctx, task.ID, types.TaskCompleted)
	require.NoError(t, err)

	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	stored, err := tr.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(base.Add(time.Hour)))
}

func TestListTasks(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	empty, err := tr.ListTasks(ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, title := range []string{"one", "two", "three"} {
		_, err := tr.AddTask(ctx, "p1", NewTask{Title: title})
		require.NoError(t, err)
	}
	_, err = tr.AddTask(ctx, "p2", NewTask{Title: "elsewhere"})
	require.NoError(t, err)

	list, err := tr.ListTasks(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "one", list[0].Title)
	assert.Equal(t, "three", list[2].Title)
}

func TestGroupByStatus_CompletedTaskInOneGroup(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	task, err := tr.AddTask(ctx, "p1", NewTask{Title: "finish"})
	require.NoError(t, err)
	_, err = tr.AddTask(ctx, "p1", NewTask{Title: "other"})
	require.NoError(t, err)
	_, err = tr.UpdateTaskStatus(ctx, task.ID, types.TaskCompleted)
	require.NoError(t, err)

	list, err := tr.ListTasks(ctx, "p1")
	require.NoError(t, err)
	groups := GroupByStatus(list)

	require.Len(t, groups, 3)
	assert.Empty(t, groups[types.TaskInProgress])
	require.Len(t, groups[types.TaskCompleted], 1)
	assert.Equal(t, task.ID, groups[types.TaskCompleted][0].ID)
	for _, g := range groups[types.TaskTodo] {
		assert.NotEqual(t, task.ID, g.ID)
	}
}

func TestSeedAndCompleteHelpers(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	seeded, err := tr.SeedDefaults(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, seeded, len(Defaults))

	// Seeding twice does not duplicate.
	_, err = tr.SeedDefaults(ctx, "p1")
	require.NoError(t, err)
	list, err := tr.ListTasks(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, len(Defaults))

	changed, err := tr.CompleteByKey(ctx, "p1", KeySelectTopic)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = tr.CompleteByKey(ctx, "p1", KeySelectTopic)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := tr.CompletePhaseTasks(ctx, "p1", types.PhaseDesign)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = tr.CompletePhaseTasks(ctx, "p1", types.PhaseDiscovery)
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err := tr.DeleteProjectTasks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, len(Defaults), removed)
}

func TestDeleteTask(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	task, err := tr.AddTask(ctx, "p1", NewTask{Title: "gone"})
	require.NoError(t, err)
	require.NoError(t, tr.DeleteTask(ctx, task.ID))
	assert.ErrorIs(t, tr.DeleteTask(ctx, task.ID), store.ErrNotFound)
}
