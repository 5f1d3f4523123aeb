// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TransactionType distinguishes earned from spent points.
type TransactionType string

const (
	TransactionEarned TransactionType = "earned"
	TransactionSpent  TransactionType = "spent"
)

// PointTransaction is one append-only entry in a user's points history.
type PointTransaction struct {
	ID     string `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`

	// Amount is signed: positive when earned, negative when spent.
	Amount      int             `json:"amount" yaml:"amount"`
	Type        TransactionType `json:"type" yaml:"type"`
	Description string          `json:"description" yaml:"description"`

	// Key deduplicates awards that must happen at most once
	// (e.g. the bonus for completing a phase of a given project).
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// UserPoints is a user's running total and its history.
type UserPoints struct {
	UserID  string             `json:"user_id" yaml:"user_id"`
	Total   int                `json:"total" yaml:"total"`
	History []PointTransaction `json:"history" yaml:"history"`
}

// AchievementType classifies an achievement.
type AchievementType string

const (
	AchievementBadge     AchievementType = "badge"
	AchievementMilestone AchievementType = "milestone"
	AchievementReward    AchievementType = "reward"
)

// UserAchievement is an unlocked achievement. Points are informational and
// do not feed UserPoints.
type UserAchievement struct {
	ID     string `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`

	// Key identifies the achievement for deduplication; a user holds at most
	// one achievement per key.
	Key         string          `json:"key" yaml:"key"`
	Type        AchievementType `json:"type" yaml:"type"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Icon        string          `json:"icon" yaml:"icon"`
	Category    string          `json:"category" yaml:"category"`
	Points      int             `json:"points" yaml:"points"`
	EarnedAt    time.Time       `json:"earned_at" yaml:"earned_at"`
}

// Reward is something points can be redeemed for.
type Reward struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Cost        int       `json:"cost" yaml:"cost"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}
