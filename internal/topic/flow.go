// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package topic lets a user pick a research topic for a project: browse the
// catalog or AI recommendations, stage a topic, answer the questionnaire and
// confirm. Nothing is persisted before confirmation.
package topic

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/pkg/types"
)

var (
	ErrNothingStaged  = errors.New("no topic staged")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrInvalidAnswers = errors.New("invalid answers")
)

// Confirmer commits a topic onto a project. journey.Controller implements it.
type Confirmer interface {
	ConfirmTopic(ctx context.Context, sess session.Session, projectID string, topic types.Topic) (types.ResearchProject, error)
}

// Questionnaire is shown after a topic is staged.
type Questionnaire struct {
	Topic types.Topic `json:"topic"`

	// Keywords are the interest options; Goals the goal options.
	Keywords []string `json:"keywords"`
	Goals    []string `json:"goals"`
}

// Answers are the user's questionnaire answers.
type Answers struct {
	Reason    string   `json:"reason"`
	Interests []string `json:"interests"`
	Goals     []string `json:"goals"`
}

type stageKey struct {
	userID    string
	projectID string
}

// Flow holds staged selections per user and project.
type Flow struct {
	catalog     *Catalog
	recommender Recommender
	confirmer   Confirmer
	logger      *zap.Logger
	clock       func() time.Time

	mu          sync.Mutex
	staged      map[stageKey]types.Topic
	recommended map[string]map[string]types.Topic
}

// NewFlow returns a flow. recommender may be nil, in which case suggestions
// come from the catalog only.
func NewFlow(catalog *Catalog, recommender Recommender, confirmer Confirmer, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		catalog:     catalog,
		recommender: recommender,
		confirmer:   confirmer,
		logger:      logger,
		clock:       time.Now,
		staged:      make(map[stageKey]types.Topic),
		recommended: make(map[string]map[string]types.Topic),
	}
}

// Catalog returns the flow's catalog.
func (f *Flow) Catalog() *Catalog { return f.catalog }

// Suggest returns up to n topics for the user's interests. Recommender
// failures fall back to catalog search. Only the user's latest batch of
// recommendations can be selected.
func (f *Flow) Suggest(ctx context.Context, sess session.Session, interests []string, n int) ([]types.Topic, error) {
	user, err := sess.Require()
	if err != nil {
		return nil, err
	}
	if f.recommender != nil {
		topics, err := f.recommender.Recommend(ctx, interests, n)
		if err == nil {
			byID := make(map[string]types.Topic, len(topics))
			for _, t := range topics {
				byID[t.ID] = t
			}
			f.mu.Lock()
			f.recommended[user.ID] = byID
			f.mu.Unlock()
			return topics, nil
		}
		f.logger.Warn("topic recommender failed, using catalog", zap.Error(err))
	}

	var out []types.Topic
	seen := map[string]bool{}
	for _, interest := range interests {
		for _, t := range f.catalog.Search(interest, "") {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		out = f.catalog.Search("", "")
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *Flow) lookup(userID, topicID string) (types.Topic, bool) {
	if t, ok := f.catalog.Find(topicID); ok {
		return t, true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.recommended[userID][topicID]
	return t, ok
}

// Select stages topicID for the project and returns the questionnaire.
// Selecting again replaces the staged topic.
func (f *Flow) Select(sess session.Session, projectID, topicID string) (Questionnaire, error) {
	user, err := sess.Require()
	if err != nil {
		return Questionnaire{}, err
	}
	t, ok := f.lookup(user.ID, topicID)
	if !ok {
		return Questionnaire{}, fmt.Errorf("%q: %w", topicID, ErrUnknownTopic)
	}

	f.mu.Lock()
	f.staged[stageKey{user.ID, projectID}] = t
	f.mu.Unlock()

	return Questionnaire{
		Topic:    t,
		Keywords: slices.Clone(t.Keywords),
		Goals:    slices.Clone(f.catalog.Goals),
	}, nil
}

// Staged returns the topic currently staged for the project.
func (f *Flow) Staged(sess session.Session, projectID string) (types.Topic, bool) {
	user, err := sess.Require()
	if err != nil {
		return types.Topic{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.staged[stageKey{user.ID, projectID}]
	return t, ok
}

// Cancel discards the staged topic and the user's recommendations.
func (f *Flow) Cancel(sess session.Session, projectID string) {
	user, err := sess.Require()
	if err != nil {
		return
	}
	f.forget(user.ID, projectID)
}

func (f *Flow) forget(userID, projectID string) {
	f.mu.Lock()
	delete(f.staged, stageKey{userID, projectID})
	delete(f.recommended, userID)
	f.mu.Unlock()
}

// Confirm validates answers against the staged topic and commits it onto
// the project. The staging is kept when the commit fails so the user can
// retry.
func (f *Flow) Confirm(ctx context.Context, sess session.Session, projectID string, a Answers) (types.ResearchProject, error) {
	user, err := sess.Require()
	if err != nil {
		return types.ResearchProject{}, err
	}
	t, ok := f.Staged(sess, projectID)
	if !ok {
		return types.ResearchProject{}, ErrNothingStaged
	}
	if err := validate(a, t.Keywords, f.catalog.Goals); err != nil {
		return types.ResearchProject{}, err
	}

	t.Selection = &types.TopicSelection{
		Reason:     strings.TrimSpace(a.Reason),
		Interests:  a.Interests,
		Goals:      a.Goals,
		SelectedAt: f.clock().UTC(),
	}
	p, err := f.confirmer.ConfirmTopic(ctx, sess, projectID, t)
	if err != nil {
		return types.ResearchProject{}, err
	}

	f.forget(user.ID, projectID)
	return p, nil
}

func validate(a Answers, keywords, goals []string) error {
	if strings.TrimSpace(a.Reason) == "" {
		return fmt.Errorf("reason is empty: %w", ErrInvalidAnswers)
	}
	if len(a.Interests) == 0 {
		return fmt.Errorf("pick at least one interest: %w", ErrInvalidAnswers)
	}
	for _, i := range a.Interests {
		if !slices.Contains(keywords, i) {
			return fmt.Errorf("interest %q is not a keyword of the topic: %w", i, ErrInvalidAnswers)
		}
	}
	if len(a.Goals) == 0 {
		return fmt.Errorf("pick at least one goal: %w", ErrInvalidAnswers)
	}
	for _, g := range a.Goals {
		if !slices.Contains(goals, g) {
			return fmt.Errorf("unknown goal %q: %w", g, ErrInvalidAnswers)
		}
	}
	return nil
}
