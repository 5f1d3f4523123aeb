// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tasks tracks the todo items of research projects.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Collection holds ResearchTask documents, owned by their project id.
const Collection = "research_tasks"

// Well-known task keys seeded on every new project.
const (
	KeySelectTopic      = "select-topic"
	KeyDesignPlan       = "design-plan"
	KeyDevelopmentBuild = "development-build"
	KeyEvaluationReport = "evaluation-report"
)

var (
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPriority = errors.New("invalid task priority")
)

var requestNamespace = uuid.MustParse("0b8e4f6a-2d7c-4c1e-b1a4-5f9d3e7a2c60")

// NewTask holds the fields of a task to create.
type NewTask struct {
	Key         string             `json:"key,omitempty"`
	Phase       types.Phase        `json:"phase,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Status      types.TaskStatus   `json:"status,omitempty"`
	Priority    types.TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Assignee    string             `json:"assignee,omitempty"`

	// RequestID is a client-generated id; repeating a request with the same
	// id returns the task created the first time.
	RequestID string `json:"request_id,omitempty"`
}

// Tracker manages tasks in the store.
type Tracker struct {
	store  store.Collections
	logger *zap.Logger
	clock  func() time.Time
}

// New returns a tracker over s. A nil logger disables logging.
func New(s store.Collections, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: s, logger: logger, clock: time.Now}
}

// WithCollections returns a copy of t bound to c.
func (t *Tracker) WithCollections(c store.Collections) *Tracker {
	cp := *t
	cp.store = c
	return &cp
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(clock func() time.Time) { t.clock = clock }

// AddTask creates a task under projectID. Status defaults to todo and
// priority to medium.
func (t *Tracker) AddTask(ctx context.Context, projectID string, nt NewTask) (types.ResearchTask, error) {
	if projectID == "" {
		return types.ResearchTask{}, fmt.Errorf("project id is empty: %w", types.ErrInvalidInput)
	}
	if strings.TrimSpace(nt.Title) == "" {
		return types.ResearchTask{}, fmt.Errorf("task title is empty: %w", types.ErrInvalidInput)
	}
	if nt.Status == "" {
		nt.Status = types.TaskTodo
	}
	if !nt.Status.Valid() {
		return types.ResearchTask{}, fmt.Errorf("%q: %w", nt.Status, ErrInvalidStatus)
	}
	if nt.Priority == "" {
		nt.Priority = types.PriorityMedium
	}
	if !nt.Priority.Valid() {
		return types.ResearchTask{}, fmt.Errorf("%q: %w", nt.Priority, ErrInvalidPriority)
	}
	if nt.Phase != "" && !nt.Phase.Valid() {
		return types.ResearchTask{}, fmt.Errorf("unknown phase %q: %w", nt.Phase, types.ErrInvalidInput)
	}

	now := t.clock().UTC()
	task := types.ResearchTask{
		ProjectID:   projectID,
		Key:         nt.Key,
		Phase:       nt.Phase,
		Title:       strings.TrimSpace(nt.Title),
		Description: nt.Description,
		Status:      nt.Status,
		Priority:    nt.Priority,
		DueDate:     nt.DueDate,
		Assignee:    nt.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.RequestID != "" {
		task.ID = uuid.NewSHA1(requestNamespace, []byte(projectID+"\x00"+nt.RequestID)).String()
	} else {
		task.ID = uuid.NewString()
	}

	_, err := t.store.Create(ctx, Collection, store.Doc{ID: task.ID, Owner: projectID, Body: task})
	if errors.Is(err, store.ErrConflict) && nt.RequestID != "" {
		return store.GetAs[types.ResearchTask](ctx, t.store, Collection, task.ID)
	}
	if err != nil {
		return types.ResearchTask{}, fmt.Errorf("creating task: %w", err)
	}
	t.logger.Debug("task added", zap.String("project_id", projectID), zap.String("task_id", task.ID))
	return task, nil
}

// Get returns one task.
func (t *Tracker) Get(ctx context.Context, taskID string) (types.ResearchTask, error) {
	return store.GetAs[types.ResearchTask](ctx, t.store, Collection, taskID)
}

// UpdateTaskStatus sets the task's status. Any valid status is accepted
// from any other; setting the current status writes nothing.
func (t *Tracker) UpdateTaskStatus(ctx context.Context, taskID string, status types.TaskStatus) (types.ResearchTask, error) {
	if !status.Valid() {
		return types.ResearchTask{}, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}
	var task types.ResearchTask
	err := t.store.Atomic(ctx, func(c store.Collections) error {
		var err error
		task, err = store.GetAs[types.ResearchTask](ctx, c, Collection, taskID)
		if err != nil {
			return err
		}
		if task.Status == status {
			return nil
		}
		task.Status = status
		task.UpdatedAt = t.clock().UTC()
		return c.Update(ctx, Collection, taskID, map[string]any{
			"status":     status,
			"updated_at": task.UpdatedAt,
		})
	})
	if err != nil {
		return types.ResearchTask{}, fmt.Errorf("updating task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasks returns the project's tasks, oldest first. A project with no
// tasks yields an empty slice.
func (t *Tracker) ListTasks(ctx context.Context, projectID string) ([]types.ResearchTask, error) {
	out, err := store.QueryAs[types.ResearchTask](ctx, t.store, Collection, store.Query{Owner: projectID})
	if err != nil {
		return nil, fmt.Errorf("listing tasks for %s: %w", projectID, err)
	}
	return out, nil
}

// GroupByStatus buckets tasks by status. Every status has an entry, and
// each task lands in exactly one bucket.
func GroupByStatus(tasks []types.ResearchTask) map[types.TaskStatus][]types.ResearchTask {
	groups := make(map[types.TaskStatus][]types.ResearchTask, 3)
	for _, s := range types.TaskStatuses() {
		groups[s] = []types.ResearchTask{}
	}
	for _, task := range tasks {
		groups[task.Status] = append(groups[task.Status], task)
	}
	return groups
}

// CompleteByKey marks the project's task with the given key completed. It
// reports whether a task changed; a missing or already completed task is
// not an error.
func (t *Tracker) CompleteByKey(ctx context.Context, projectID, key string) (bool, error) {
	found, err := store.QueryAs[types.ResearchTask](ctx, t.store, Collection, store.Query{
		Owner: projectID,
		Where: []store.Cond{store.Eq("key", key)},
	})
	if err != nil {
		return false, fmt.Errorf("finding task %s: %w", key, err)
	}
	return t.completeAll(ctx, found)
}

// CompletePhaseTasks marks every task of the phase completed and returns
// how many changed.
func (t *Tracker) CompletePhaseTasks(ctx context.Context, projectID string, phase types.Phase) (int, error) {
	found, err := store.QueryAs[types.ResearchTask](ctx, t.store, Collection, store.Query{
		Owner: projectID,
		Where: []store.Cond{
			store.Eq("phase", phase),
			store.Ne("status", types.TaskCompleted),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("finding %s tasks: %w", phase, err)
	}
	n := 0
	for _, task := range found {
		if _, err := t.UpdateTaskStatus(ctx, task.ID, types.TaskCompleted); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (t *Tracker) completeAll(ctx context.Context, found []types.ResearchTask) (bool, error) {
	changed := false
	for _, task := range found {
		if task.Status == types.TaskCompleted {
			continue
		}
		if _, err := t.UpdateTaskStatus(ctx, task.ID, types.TaskCompleted); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// DeleteTask removes one task.
func (t *Tracker) DeleteTask(ctx context.Context, taskID string) error {
	if err := t.store.Delete(ctx, Collection, taskID); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	return nil
}

// DeleteProjectTasks removes every task of a project.
func (t *Tracker) DeleteProjectTasks(ctx context.Context, projectID string) (int, error) {
	records, err := t.store.Query(ctx, Collection, store.Query{Owner: projectID})
	if err != nil {
		return 0, fmt.Errorf("listing tasks for %s: %w", projectID, err)
	}
	for _, r := range records {
		if err := t.store.Delete(ctx, Collection, r.ID); err != nil {
			return 0, fmt.Errorf("deleting task %s: %w", r.ID, err)
		}
	}
	return len(records), nil
}

// Defaults is the task list seeded on every new project.
var Defaults = []NewTask{
	{
		Key:         KeySelectTopic,
		Phase:       types.PhaseDiscovery,
		Title:       "Select a research topic",
		Description: "Pick a topic and answer the guided questions.",
		Priority:    types.PriorityHigh,
	},
	{
		Key:         KeyDesignPlan,
		Phase:       types.PhaseDesign,
		Title:       "Draft the research design",
		Description: "Write down questions, methods and the data you need.",
	},
	{
		Key:         KeyDevelopmentBuild,
		Phase:       types.PhaseDevelopment,
		Title:       "Run the study",
		Description: "Build the tooling and collect results.",
	},
	{
		Key:         KeyEvaluationReport,
		Phase:       types.PhaseEvaluation,
		Title:       "Evaluate and report",
		Description: "Analyse the results and write them up.",
	},
}

// SeedDefaults adds the default tasks to a new project.
func (t *Tracker) SeedDefaults(ctx context.Context, projectID string) ([]types.ResearchTask, error) {
	out := make([]types.ResearchTask, 0, len(Defaults))
	for _, nt := range Defaults {
		nt.RequestID = "seed:" + nt.Key
		task, err := t.AddTask(ctx, projectID, nt)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}
