// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project is the registry of research projects. A project is
// visible to its owner and collaborators; everyone else gets not-found.
package project

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Collection holds ResearchProject documents, owned by the owner's user id.
const Collection = "research_projects"

// NewProject holds the fields of a project to create.
type NewProject struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Collaborators []string `json:"collaborators"`
}

// Changes lists editable project fields; nil fields are left alone.
type Changes struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Registry stores projects and seeds their default tasks.
type Registry struct {
	store  store.Collections
	tasks  *tasks.Tracker
	logger *zap.Logger
	clock  func() time.Time
}

// New returns a registry over s.
func New(s store.Collections, tr *tasks.Tracker, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: s, tasks: tr, logger: logger, clock: time.Now}
}

// WithCollections returns a copy of r (and its tracker) bound to c.
func (r *Registry) WithCollections(c store.Collections) *Registry {
	cp := *r
	cp.store = c
	cp.tasks = r.tasks.WithCollections(c)
	return &cp
}

// SetClock replaces the time source.
func (r *Registry) SetClock(clock func() time.Time) { r.clock = clock }

// Create stores a new project at discovery with zero progress and seeds the
// default task list in the same transaction.
func (r *Registry) Create(ctx context.Context, sess session.Session, np NewProject) (types.ResearchProject, error) {
	user, err := sess.Require()
	if err != nil {
		return types.ResearchProject{}, err
	}
	title := strings.TrimSpace(np.Title)
	if title == "" {
		return types.ResearchProject{}, fmt.Errorf("project title is empty: %w", types.ErrInvalidInput)
	}

	now := r.clock().UTC()
	p := types.ResearchProject{
		ID:            uuid.NewString(),
		OwnerID:       user.ID,
		Title:         title,
		Description:   np.Description,
		Phase:         types.PhaseDiscovery,
		Progress:      0,
		Collaborators: dedupe(np.Collaborators, user.ID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = r.store.Atomic(ctx, func(c store.Collections) error {
		if _, err := c.Create(ctx, Collection, store.Doc{ID: p.ID, Owner: user.ID, Body: p}); err != nil {
			return err
		}
		_, err := r.tasks.WithCollections(c).SeedDefaults(ctx, p.ID)
		return err
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("creating project: %w", err)
	}

	r.logger.Info("project created", zap.String("project_id", p.ID), zap.String("owner_id", user.ID))
	return p, nil
}

// Get returns a project the caller can see.
func (r *Registry) Get(ctx context.Context, sess session.Session, id string) (types.ResearchProject, error) {
	user, err := sess.Require()
	if err != nil {
		return types.ResearchProject{}, err
	}
	p, err := r.Load(ctx, id)
	if err != nil {
		return types.ResearchProject{}, err
	}
	if !p.HasMember(user.ID) {
		return types.ResearchProject{}, fmt.Errorf("%s/%s: %w", Collection, id, store.ErrNotFound)
	}
	return p, nil
}

// Load reads a project without an access check.
func (r *Registry) Load(ctx context.Context, id string) (types.ResearchProject, error) {
	p, err := store.GetAs[types.ResearchProject](ctx, r.store, Collection, id)
	if err != nil {
		return types.ResearchProject{}, err
	}
	if p.Collaborators == nil {
		p.Collaborators = []string{}
	}
	return p, nil
}

// Save overwrites the stored project and stamps UpdatedAt.
func (r *Registry) Save(ctx context.Context, p *types.ResearchProject) error {
	p.UpdatedAt = r.clock().UTC()
	if err := r.store.Replace(ctx, Collection, p.ID, p); err != nil {
		return fmt.Errorf("saving project %s: %w", p.ID, err)
	}
	return nil
}

// List returns the projects the caller owns or collaborates on, newest first.
func (r *Registry) List(ctx context.Context, sess session.Session) ([]types.ResearchProject, error) {
	user, err := sess.Require()
	if err != nil {
		return nil, err
	}
	owned, err := store.QueryAs[types.ResearchProject](ctx, r.store, Collection, store.Query{Owner: user.ID, Desc: true})
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	shared, err := store.QueryAs[types.ResearchProject](ctx, r.store, Collection, store.Query{
		Where: []store.Cond{store.Contains("collaborators", user.ID)},
		Desc:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing shared projects: %w", err)
	}

	out := append(owned, shared...)
	slices.SortStableFunc(out, func(a, b types.ResearchProject) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Update applies ch to the project.
func (r *Registry) Update(ctx context.Context, sess session.Session, id string, ch Changes) (types.ResearchProject, error) {
	var p types.ResearchProject
	err := r.store.Atomic(ctx, func(c store.Collections) error {
		rc := r.WithCollections(c)
		var err error
		if p, err = rc.Get(ctx, sess, id); err != nil {
			return err
		}
		if ch.Title != nil {
			title := strings.TrimSpace(*ch.Title)
			if title == "" {
				return fmt.Errorf("project title is empty: %w", types.ErrInvalidInput)
			}
			p.Title = title
		}
		if ch.Description != nil {
			p.Description = *ch.Description
		}
		return rc.Save(ctx, &p)
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("updating project %s: %w", id, err)
	}
	return p, nil
}

// AddCollaborator shares the project with userID. Adding an existing member
// is a no-op.
func (r *Registry) AddCollaborator(ctx context.Context, sess session.Session, id, userID string) (types.ResearchProject, error) {
	if strings.TrimSpace(userID) == "" {
		return types.ResearchProject{}, fmt.Errorf("collaborator id is empty: %w", types.ErrInvalidInput)
	}
	var p types.ResearchProject
	err := r.store.Atomic(ctx, func(c store.Collections) error {
		rc := r.WithCollections(c)
		var err error
		if p, err = rc.Get(ctx, sess, id); err != nil {
			return err
		}
		if p.HasMember(userID) {
			return nil
		}
		p.Collaborators = append(p.Collaborators, userID)
		return rc.Save(ctx, &p)
	})
	if err != nil {
		return types.ResearchProject{}, fmt.Errorf("adding collaborator to %s: %w", id, err)
	}
	return p, nil
}

// Delete removes the project and its tasks.
func (r *Registry) Delete(ctx context.Context, sess session.Session, id string) error {
	err := r.store.Atomic(ctx, func(c store.Collections) error {
		rc := r.WithCollections(c)
		if _, err := rc.Get(ctx, sess, id); err != nil {
			return err
		}
		if _, err := rc.tasks.DeleteProjectTasks(ctx, id); err != nil {
			return err
		}
		return c.Delete(ctx, Collection, id)
	})
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	r.logger.Info("project deleted", zap.String("project_id", id))
	return nil
}

func dedupe(ids []string, owner string) []string {
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == owner || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
