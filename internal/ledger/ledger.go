// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps each user's points total, the append-only history
// behind it, unlocked achievements and the reward catalog.
//
// The total and its history entry are always written in the same store
// transaction, so Total equals the sum of history amounts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Collection names.
const (
	PointsCollection       = "user_points"
	TransactionsCollection = "point_transactions"
	AchievementsCollection = "user_achievements"
	RewardsCollection      = "rewards"
)

var (
	// ErrInsufficientPoints is returned when a redemption costs more than the
	// user's total.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrInvalidAmount is returned for non-positive awards or reward costs.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// keyNamespace derives deterministic transaction ids from idempotency keys.
var keyNamespace = uuid.MustParse("6f1c2b1e-8a51-4d3a-9a57-0c3f0c8e5d21")

// Recorder receives ledger counters once the writes they count commit.
// internal/metrics implements it.
type Recorder interface {
	PointsAwarded(amount int)
	RewardRedeemed()
	RedemptionRefused()
	DriftCorrected()
}

type nopRecorder struct{}

func (nopRecorder) PointsAwarded(int)  {}
func (nopRecorder) RewardRedeemed()    {}
func (nopRecorder) RedemptionRefused() {}
func (nopRecorder) DriftCorrected()    {}

// Ledger is bound to a store.Collections.
type Ledger struct {
	store    store.Collections
	logger   *zap.Logger
	recorder Recorder
	clock    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(lg *Ledger) {
		if r != nil {
			lg.recorder = r
		}
	}
}

// WithClock sets the time source for transaction and achievement timestamps.
func WithClock(clock func() time.Time) Option {
	return func(lg *Ledger) { lg.clock = clock }
}

// New returns a ledger over s.
func New(s store.Collections, opts ...Option) *Ledger {
	l := &Ledger{store: s, logger: zap.NewNop(), recorder: nopRecorder{}, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithCollections returns a copy of l that reads and writes through c,
// typically a transaction handed out by store.Atomic.
func (l *Ledger) WithCollections(c store.Collections) *Ledger {
	cp := *l
	cp.store = c
	return &cp
}

type pointsDoc struct {
	UserID string `json:"user_id"`
	Total  int    `json:"total"`
}

// AwardPoints adds amount to the user's total and appends an earned entry.
func (l *Ledger) AwardPoints(ctx context.Context, userID string, amount int, description string) (types.PointTransaction, error) {
	tx, _, err := l.award(ctx, userID, "", amount, description)
	return tx, err
}

// AwardPointsOnce is AwardPoints keyed by key: the first call for a
// (user, key) pair awards, later calls return the original entry and false.
func (l *Ledger) AwardPointsOnce(ctx context.Context, userID, key string, amount int, description string) (types.PointTransaction, bool, error) {
	if key == "" {
		return types.PointTransaction{}, false, fmt.Errorf("award key is empty: %w", types.ErrInvalidInput)
	}
	return l.award(ctx, userID, key, amount, description)
}

func (l *Ledger) award(ctx context.Context, userID, key string, amount int, description string) (types.PointTransaction, bool, error) {
	if userID == "" {
		return types.PointTransaction{}, false, fmt.Errorf("user id is empty: %w", types.ErrInvalidInput)
	}
	if amount <= 0 {
		return types.PointTransaction{}, false, fmt.Errorf("awarding %d points: %w", amount, ErrInvalidAmount)
	}

	entry := types.PointTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        types.TransactionEarned,
		Description: description,
		Key:         key,
		CreatedAt:   l.clock().UTC(),
	}
	if key != "" {
		entry.ID = uuid.NewSHA1(keyNamespace, []byte(userID+"\x00"+key)).String()
	} else {
		entry.ID = uuid.NewString()
	}

	awarded := true
	err := l.store.Atomic(ctx, func(c store.Collections) error {
		if key != "" {
			existing, err := store.GetAs[types.PointTransaction](ctx, c, TransactionsCollection, entry.ID)
			if err == nil {
				entry = existing
				awarded = false
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return appendEntry(ctx, c, entry)
	})
	if err != nil {
		return types.PointTransaction{}, false, fmt.Errorf("awarding points to %s: %w", userID, err)
	}

	if awarded {
		l.store.AfterCommit(func() {
			l.recorder.PointsAwarded(amount)
			l.logger.Info("points awarded",
				zap.String("user_id", userID),
				zap.Int("amount", amount),
				zap.String("key", key),
			)
		})
	}
	return entry, awarded, nil
}

// appendEntry writes the history entry and moves the total by its amount.
func appendEntry(ctx context.Context, c store.Collections, entry types.PointTransaction) error {
	if _, err := c.Create(ctx, TransactionsCollection, store.Doc{ID: entry.ID, Owner: entry.UserID, Body: entry}); err != nil {
		return err
	}
	pts, err := store.GetAs[pointsDoc](ctx, c, PointsCollection, entry.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_, err = c.Create(ctx, PointsCollection, store.Doc{
			ID:    entry.UserID,
			Owner: entry.UserID,
			Body:  pointsDoc{UserID: entry.UserID, Total: entry.Amount},
		})
		return err
	}
	if err != nil {
		return err
	}
	return c.Update(ctx, PointsCollection, entry.UserID, map[string]any{"total": pts.Total + entry.Amount})
}

// RedeemReward spends the reward's cost. When the total is below the cost
// it returns ErrInsufficientPoints and writes nothing. The balance check and
// both writes share one transaction.
func (l *Ledger) RedeemReward(ctx context.Context, userID, rewardID string) (types.PointTransaction, error) {
	var entry types.PointTransaction
	err := l.store.Atomic(ctx, func(c store.Collections) error {
		reward, err := store.GetAs[types.Reward](ctx, c, RewardsCollection, rewardID)
		if err != nil {
			return fmt.Errorf("reading reward: %w", err)
		}
		total, err := total(ctx, c, userID)
		if err != nil {
			return err
		}
		if total < reward.Cost {
			return fmt.Errorf("%q costs %d, have %d: %w", reward.Title, reward.Cost, total, ErrInsufficientPoints)
		}
		entry = types.PointTransaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Amount:      -reward.Cost,
			Type:        types.TransactionSpent,
			Description: "Redeemed " + reward.Title,
			CreatedAt:   l.clock().UTC(),
		}
		return appendEntry(ctx, c, entry)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			l.recorder.RedemptionRefused()
		}
		return types.PointTransaction{}, fmt.Errorf("redeeming %s for %s: %w", rewardID, userID, err)
	}

	l.store.AfterCommit(func() {
		l.recorder.RewardRedeemed()
		l.logger.Info("reward redeemed",
			zap.String("user_id", userID),
			zap.String("reward_id", rewardID),
			zap.Int("cost", -entry.Amount),
		)
	})
	return entry, nil
}

func total(ctx context.Context, c store.Collections, userID string) (int, error) {
	pts, err := store.GetAs[pointsDoc](ctx, c, PointsCollection, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading points: %w", err)
	}
	return pts.Total, nil
}

// Points returns the user's total and history, oldest entry first. A user
// with no entries has a zero total and an empty history.
func (l *Ledger) Points(ctx context.Context, userID string) (types.UserPoints, error) {
	t, err := total(ctx, l.store, userID)
	if err != nil {
		return types.UserPoints{}, err
	}
	history, err := l.history(ctx, l.store, userID)
	if err != nil {
		return types.UserPoints{}, err
	}
	return types.UserPoints{UserID: userID, Total: t, History: history}, nil
}

func (l *Ledger) history(ctx context.Context, c store.Collections, userID string) ([]types.PointTransaction, error) {
	history, err := store.QueryAs[types.PointTransaction](ctx, c, TransactionsCollection, store.Query{Owner: userID})
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", userID, err)
	}
	return history, nil
}

// Reconcile recomputes the user's total from history and repairs the
// stored value. It returns the drift that was corrected (stored minus
// computed); zero means the ledger was consistent.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (int, error) {
	var drift int
	err := l.store.Atomic(ctx, func(c store.Collections) error {
		history, err := l.history(ctx, c, userID)
		if err != nil {
			return err
		}
		sum := 0
		for _, e := range history {
			sum += e.Amount
		}

		pts, err := store.GetAs[pointsDoc](ctx, c, PointsCollection, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if sum == 0 {
				return nil
			}
			drift = -sum
			_, err = c.Create(ctx, PointsCollection, store.Doc{
				ID:    userID,
				Owner: userID,
				Body:  pointsDoc{UserID: userID, Total: sum},
			})
			return err
		case err != nil:
			return err
		}

		drift = pts.Total - sum
		if drift == 0 {
			return nil
		}
		return c.Update(ctx, PointsCollection, userID, map[string]any{"total": sum})
	})
	if err != nil {
		return 0, fmt.Errorf("reconciling %s: %w", userID, err)
	}
	if drift != 0 {
		l.store.AfterCommit(func() {
			l.recorder.DriftCorrected()
			l.logger.Warn("ledger drift corrected", zap.String("user_id", userID), zap.Int("drift", drift))
		})
	}
	return drift, nil
}

// ReconcileAll reconciles every user with a stored total or history. It
// returns the number of users whose totals were repaired.
func (l *Ledger) ReconcileAll(ctx context.Context) (int, error) {
	users := map[string]struct{}{}
	var order []string
	for _, coll := range []string{PointsCollection, TransactionsCollection} {
		records, err := l.store.Query(ctx, coll, store.Query{})
		if err != nil {
			return 0, fmt.Errorf("listing %s: %w", coll, err)
		}
		for _, r := range records {
			if _, ok := users[r.Owner]; ok || r.Owner == "" {
				continue
			}
			users[r.Owner] = struct{}{}
			order = append(order, r.Owner)
		}
	}

	repaired := 0
	for _, userID := range order {
		drift, err := l.Reconcile(ctx, userID)
		if err != nil {
			return repaired, err
		}
		if drift != 0 {
			repaired++
		}
	}
	return repaired, nil
}

// AwardAchievement unlocks a for the user. A user holds at most one
// achievement per key; when a.Key is empty it is derived from the title.
// The second award for a key returns the stored achievement and false.
func (l *Ledger) AwardAchievement(ctx context.Context, userID string, a types.UserAchievement) (types.UserAchievement, bool, error) {
	if userID == "" {
		return types.UserAchievement{}, false, fmt.Errorf("user id is empty: %w", types.ErrInvalidInput)
	}
	if a.Key == "" {
		a.Key = Slug(a.Title)
	}
	if a.Key == "" {
		return types.UserAchievement{}, false, fmt.Errorf("achievement has neither key nor title: %w", types.ErrInvalidInput)
	}
	if a.Type == "" {
		a.Type = types.AchievementBadge
	}
	a.ID = userID + ":" + a.Key
	a.UserID = userID
	a.EarnedAt = l.clock().UTC()

	awarded := true
	err := l.store.Atomic(ctx, func(c store.Collections) error {
		existing, err := store.GetAs[types.UserAchievement](ctx, c, AchievementsCollection, a.ID)
		if err == nil {
			a = existing
			awarded = false
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		_, err = c.Create(ctx, AchievementsCollection, store.Doc{ID: a.ID, Owner: userID, Body: a})
		return err
	})
	if err != nil {
		return types.UserAchievement{}, false, fmt.Errorf("awarding achievement %s: %w", a.Key, err)
	}
	if awarded {
		l.logger.Info("achievement unlocked", zap.String("user_id", userID), zap.String("key", a.Key))
	}
	return a, awarded, nil
}

// Achievements lists the user's achievements in the order they were earned.
func (l *Ledger) Achievements(ctx context.Context, userID string) ([]types.UserAchievement, error) {
	out, err := store.QueryAs[types.UserAchievement](ctx, l.store, AchievementsCollection, store.Query{Owner: userID})
	if err != nil {
		return nil, fmt.Errorf("listing achievements for %s: %w", userID, err)
	}
	return out, nil
}

// CreateReward adds a reward to the catalog.
func (l *Ledger) CreateReward(ctx context.Context, r types.Reward) (types.Reward, error) {
	if strings.TrimSpace(r.Title) == "" {
		return types.Reward{}, fmt.Errorf("reward title is empty: %w", types.ErrInvalidInput)
	}
	if r.Cost <= 0 {
		return types.Reward{}, fmt.Errorf("reward cost %d: %w", r.Cost, ErrInvalidAmount)
	}
	if r.ID == "" {
		r.ID = Slug(r.Title)
	}
	r.CreatedAt = l.clock().UTC()
	if _, err := l.store.Create(ctx, RewardsCollection, store.Doc{ID: r.ID, Body: r}); err != nil {
		return types.Reward{}, fmt.Errorf("creating reward: %w", err)
	}
	return r, nil
}

// ListRewards returns the reward catalog, cheapest first.
func (l *Ledger) ListRewards(ctx context.Context) ([]types.Reward, error) {
	out, err := store.QueryAs[types.Reward](ctx, l.store, RewardsCollection, store.Query{OrderBy: "cost"})
	if err != nil {
		return nil, fmt.Errorf("listing rewards: %w", err)
	}
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and joins its words with dashes.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
