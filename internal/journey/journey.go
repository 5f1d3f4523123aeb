// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journey drives a research project through its four phases:
// discovery, design, development and evaluation. Every transition is a
// single store transaction covering the phase write, the progress reset,
// task completion and the ledger side effects.
package journey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/pkg/types"
)

var (
	// ErrFinalPhase is returned when completing evaluation through
	// CompletePhase; evaluation ends with CompleteResearch.
	ErrFinalPhase = errors.New("evaluation is the final phase")

	// ErrPhaseMismatch is returned when the caller's view of the current
	// phase is stale.
	ErrPhaseMismatch = errors.New("project is not in that phase")

	// ErrBusy is returned while another change to the same project is in flight.
	ErrBusy = errors.New("project is being updated")

	// ErrCompleted is returned for changes to a finished project.
	ErrCompleted = errors.New("research already completed")
)

// State is how a phase relates to the project's current phase.
type State string

const (
	StateCompleted State = "completed"
	StateActive    State = "active"
	StateLocked    State = "locked"
)

// PhaseState places phase relative to the project's current phase: earlier
// phases are completed, the current one is active and later ones are locked.
// Every phase of a completed project is completed.
func PhaseState(p types.ResearchProject, phase types.Phase) State {
	if p.Completed {
		return StateCompleted
	}
	cur, i := p.Phase.Index(), phase.Index()
	switch {
	case i < cur:
		return StateCompleted
	case i == cur:
		return StateActive
	default:
		return StateLocked
	}
}

// PhaseView is one row of the phase table.
type PhaseView struct {
	Phase types.Phase `json:"phase"`
	State State       `json:"state"`
	Bonus int         `json:"bonus"`
}

// View is what a client needs to render a project's journey.
type View struct {
	Project types.ResearchProject                     `json:"project"`
	Phases  []PhaseView                               `json:"phases"`
	Tasks   map[types.TaskStatus][]types.ResearchTask `json:"tasks"`
}

// EventKind names a journey event.
type EventKind string

const (
	EventTopicConfirmed    EventKind = "topic_confirmed"
	EventProgress          EventKind = "progress"
	EventPhaseChanged      EventKind = "phase_changed"
	EventResearchCompleted EventKind = "research_completed"
)

// Event describes a committed change.
type Event struct {
	Kind      EventKind   `json:"kind"`
	ProjectID string      `json:"project_id"`
	UserID    string      `json:"user_id"`
	Phase     types.Phase `json:"phase"`

	// From is the phase left by a phase change.
	From     types.Phase `json:"from,omitempty"`
	Progress int         `json:"progress"`
	At       time.Time   `json:"at"`
}

// Observer receives events after the transaction that produced them commits.
type Observer func(Event)

// Controller owns phase transitions.
type Controller struct {
	store    store.Collections
	projects *project.Registry
	tasks    *tasks.Tracker
	ledger   *ledger.Ledger
	logger   *zap.Logger
	clock    func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}

	obsMu     sync.RWMutex
	observers []Observer
}

// New returns a controller. All collaborators must be built over s.
func New(s store.Collections, projects *project.Registry, tr *tasks.Tracker, l *ledger.Ledger, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:    s,
		projects: projects,
		tasks:    tr,
		ledger:   l,
		logger:   logger,
		clock:    time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Subscribe registers o for every future event.
func (c *Controller) Subscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Controller) emit(events []Event) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, e := range events {
		for _, o := range c.observers {
			o(e)
		}
	}
}

// acquire marks projectID in flight; the returned func releases it.
func (c *Controller) acquire(projectID string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[projectID]; busy {
		return nil, fmt.Errorf("%s: %w", projectID, ErrBusy)
	}
	c.inflight[projectID] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, projectID)
		c.mu.Unlock()
	}, nil
}

// txn is the set of services bound to one transaction.
type txn struct {
	projects *project.Registry
	tasks    *tasks.Tracker
	ledger   *ledger.Ledger
	user     session.User
	events   []Event
	now      time.Time
}

// mutate runs fn for the project inside one transaction, guarded against
// concurrent changes, and emits the collected events after commit.
func (c *Controller) mutate(ctx context.Context, sess session.Session, projectID string, fn func(t *txn, p *types.ResearchProject) error) (types.ResearchProject, error) {
	user, err := sess.Require()
	if err != nil {
		return types.ResearchProject{}, err
	}
	release, err := c.acquire(projectID)
	if err != nil {
		return types.ResearchProject{}, err
	}
	defer release()

	var (
		p  types.ResearchProject
		tx *txn
	)
	err = c.store.Atomic(ctx, func(col store.Collections) error {
		tx = &txn{
			projects: c.projects.WithCollections(col),
			tasks:    c.tasks.WithCollections(col),
			ledger:   c.ledger.WithCollections(col),
			user:     user,
			now:      c.clock().UTC(),
		}
		var err error
		if p, err = tx.projects.Get(ctx, sess, projectID); err != nil {
			return err
		}
		return fn(tx, &p)
	})
	if err != nil {
		return types.ResearchProject{}, err
	}
	c.emit(tx.events)
	return p, nil
}

func (t *txn) record(kind EventKind, p types.ResearchProject, from types.Phase) {
	t.events = append(t.events, Event{
		Kind:      kind,
		ProjectID: p.ID,
		UserID:    t.user.ID,
		Phase:     p.Phase,
		From:      from,
		Progress:  p.Progress,
		At:        t.now,
	})
}

// SelectProject returns the project's journey view. It writes nothing.
func (c *Controller) SelectProject(ctx context.Context, sess session.Session, projectID string) (View, error) {
	p, err := c.projects.Get(ctx, sess, projectID)
	if err != nil {
		return View{}, err
	}
	ts, err := c.tasks.ListTasks(ctx, projectID)
	if err != nil {
		return View{}, err
	}
	v := View{Project: p, Tasks: tasks.GroupByStatus(ts)}
	for _, ph := range types.Phases() {
		v.Phases = append(v.Phases, PhaseView{Phase: ph, State: PhaseState(p, ph), Bonus: PhaseBonus(ph)})
	}
	return v, nil
}

// CompletePhase moves the project from current to its successor. current
// must match the stored phase. The phase's auto-advance requirements are
// not consulted. Evaluation has no successor here.
func (c *Controller) CompletePhase(ctx context.Context, sess session.Session, projectID string, current types.Phase) (types.ResearchProject, error) {
	if current == types.PhaseEvaluation {
		return types.ResearchProject{}, ErrFinalPhase
	}
	if !current.Valid() {
		return types.ResearchProject{}, fmt.Errorf("unknown phase %q: %w", current, types.ErrInvalidInput)
	}
	p, err := c.mutate(ctx, sess, projectID, func(t *txn, p *types.ResearchProject) error {
		if err := ensureOpen(*p, current); err != nil {
			return err
		}
		return c.advance(ctx, t, p)
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("completing %s of %s: %w", current, projectID, err)
	}
	return p, nil
}

// SetProgress stores the phase's progress clamped to 0..100. A phase that
// auto-advances is completed in the same transaction once it reaches 100
// and its requirements are met.
func (c *Controller) SetProgress(ctx context.Context, sess session.Session, projectID string, phase types.Phase, progress int) (types.ResearchProject, error) {
	p, err := c.mutate(ctx, sess, projectID, func(t *txn, p *types.ResearchProject) error {
		if err := ensureOpen(*p, phase); err != nil {
			return err
		}
		return c.applyProgress(ctx, t, p, progress)
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("setting progress of %s: %w", projectID, err)
	}
	return p, nil
}

// RefreshProgress recomputes the current phase's progress from its tasks.
// Phases whose progress is set by hand are left alone.
func (c *Controller) RefreshProgress(ctx context.Context, sess session.Session, projectID string) (types.ResearchProject, error) {
	p, err := c.mutate(ctx, sess, projectID, func(t *txn, p *types.ResearchProject) error {
		return c.refresh(ctx, t, p)
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("refreshing progress of %s: %w", projectID, err)
	}
	return p, nil
}

// UpdateTaskStatus sets a task's status and recomputes its project's
// progress in the same transaction, so a busy project rejects the status
// change as well.
func (c *Controller) UpdateTaskStatus(ctx context.Context, sess session.Session, taskID string, status types.TaskStatus) (types.ResearchTask, types.ResearchProject, error) {
	task, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return types.ResearchTask{}, types.ResearchProject{}, err
	}
	p, err := c.mutate(ctx, sess, task.ProjectID, func(t *txn, p *types.ResearchProject) error {
		updated, err := t.tasks.UpdateTaskStatus(ctx, taskID, status)
		if err != nil {
			return err
		}
		task = updated
		return c.refresh(ctx, t, p)
	})
	if err != nil {
		return types.ResearchTask{}, types.ResearchProject{}, fmt.Errorf("updating task %s: %w", taskID, err)
	}
	return task, p, nil
}

func (c *Controller) refresh(ctx context.Context, t *txn, p *types.ResearchProject) error {
	if p.Completed {
		return nil
	}
	u, err := unitFor(p.Phase)
	if err != nil {
		return err
	}
	if u.progress == nil {
		return nil
	}
	ts, err := t.tasks.ListTasks(ctx, p.ID)
	if err != nil {
		return err
	}
	v := u.progress(*p, ts)
	if v == p.Progress {
		return nil
	}
	return c.applyProgress(ctx, t, p, v)
}

// ConfirmTopic commits topic onto a project in discovery: the snapshot is
// stored, the select-topic task completed, the topic bonus paid and the
// discovery progress recomputed, which completes discovery when it reaches
// 100.
func (c *Controller) ConfirmTopic(ctx context.Context, sess session.Session, projectID string, topic types.Topic) (types.ResearchProject, error) {
	p, err := c.mutate(ctx, sess, projectID, func(t *txn, p *types.ResearchProject) error {
		if err := ensureOpen(*p, types.PhaseDiscovery); err != nil {
			return err
		}

		snapshot := topic
		p.Topic = &snapshot
		if _, err := t.tasks.CompleteByKey(ctx, p.ID, tasks.KeySelectTopic); err != nil {
			return err
		}
		if _, _, err := t.ledger.AwardPointsOnce(ctx, t.user.ID, "topic:"+p.ID, TopicBonus,
			fmt.Sprintf("Selected topic %q", topic.Title)); err != nil {
			return err
		}
		if err := t.award(ctx, ledger.KeyTopicChosen); err != nil {
			return err
		}
		t.record(EventTopicConfirmed, *p, "")

		ts, err := t.tasks.ListTasks(ctx, p.ID)
		if err != nil {
			return err
		}
		return c.applyProgress(ctx, t, p, discovery.progress(*p, ts))
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("confirming topic for %s: %w", projectID, err)
	}
	c.logger.Info("topic confirmed",
		zap.String("project_id", projectID),
		zap.String("topic_id", topic.ID),
		zap.String("phase", string(p.Phase)),
	)
	return p, nil
}

// CompleteResearch finishes a project in evaluation. The phase stays
// evaluation and Completed is set.
func (c *Controller) CompleteResearch(ctx context.Context, sess session.Session, projectID string) (types.ResearchProject, error) {
	p, err := c.mutate(ctx, sess, projectID, func(t *txn, p *types.ResearchProject) error {
		if err := ensureOpen(*p, types.PhaseEvaluation); err != nil {
			return err
		}
		if _, err := t.tasks.CompletePhaseTasks(ctx, p.ID, types.PhaseEvaluation); err != nil {
			return err
		}

		done := t.now
		p.Completed = true
		p.CompletedAt = &done
		p.Progress = 100
		if err := t.projects.Save(ctx, p); err != nil {
			return err
		}
		if err := t.payPhase(ctx, *p, evaluation); err != nil {
			return err
		}
		t.record(EventResearchCompleted, *p, types.PhaseEvaluation)
		return nil
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("completing research %s: %w", projectID, err)
	}
	c.logger.Info("research completed", zap.String("project_id", projectID))
	return p, nil
}

func ensureOpen(p types.ResearchProject, phase types.Phase) error {
	if p.Completed {
		return ErrCompleted
	}
	if p.Phase != phase {
		return fmt.Errorf("stored phase is %s, not %s: %w", p.Phase, phase, ErrPhaseMismatch)
	}
	return nil
}

// applyProgress writes progress and, for auto-advancing phases at 100 whose
// requirements hold, completes the phase. The progress event precedes the
// phase change.
func (c *Controller) applyProgress(ctx context.Context, t *txn, p *types.ResearchProject, progress int) error {
	p.Progress = min(max(progress, 0), 100)
	if err := t.projects.Save(ctx, p); err != nil {
		return err
	}
	t.record(EventProgress, *p, "")

	u, err := unitFor(p.Phase)
	if err != nil {
		return err
	}
	if !u.autoAdvance || p.Progress < 100 {
		return nil
	}
	ts, err := t.tasks.ListTasks(ctx, p.ID)
	if err != nil {
		return err
	}
	if !u.isReady(*p, ts) {
		return nil
	}
	return c.advance(ctx, t, p)
}

// advance moves p to the next phase with progress 0, completes the old
// phase's tasks and pays the phase bonus and achievement.
func (c *Controller) advance(ctx context.Context, t *txn, p *types.ResearchProject) error {
	u, err := unitFor(p.Phase)
	if err != nil {
		return err
	}
	next, ok := p.Phase.Next()
	if !ok {
		return ErrFinalPhase
	}
	if _, err := t.tasks.CompletePhaseTasks(ctx, p.ID, u.phase); err != nil {
		return err
	}

	from := p.Phase
	p.Phase = next
	p.Progress = 0
	if err := t.projects.Save(ctx, p); err != nil {
		return err
	}
	if err := t.payPhase(ctx, *p, u); err != nil {
		return err
	}
	t.record(EventPhaseChanged, *p, from)

	c.logger.Info("phase completed",
		zap.String("project_id", p.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	return nil
}

func (t *txn) payPhase(ctx context.Context, p types.ResearchProject, u unit) error {
	key := fmt.Sprintf("phase:%s:%s", p.ID, u.phase)
	desc := fmt.Sprintf("Completed %s phase of %q", u.phase, p.Title)
	if _, _, err := t.ledger.AwardPointsOnce(ctx, t.user.ID, key, u.bonus, desc); err != nil {
		return err
	}
	return t.award(ctx, u.achievement)
}

func (t *txn) award(ctx context.Context, key string) error {
	a, err := ledger.Achievement(key)
	if err != nil {
		return err
	}
	_, _, err = t.ledger.AwardAchievement(ctx, t.user.ID, a)
	return err
}
