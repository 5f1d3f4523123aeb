// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Platform is where a community lives.
type Platform string

const (
	PlatformDiscord Platform = "discord"
	PlatformSlack   Platform = "slack"
	PlatformReddit  Platform = "reddit"
	PlatformCustom  Platform = "custom"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformDiscord, PlatformSlack, PlatformReddit, PlatformCustom:
		return true
	}
	return false
}

// Community is a custom community stored locally. Platform communities are
// never persisted except through CommunityJoin audit records.
type Community struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Platform    Platform `json:"platform" yaml:"platform"`

	// MemberCount always equals len(Members).
	MemberCount int      `json:"member_count" yaml:"member_count"`
	Members     []string `json:"members" yaml:"members"`

	Topics    []string  `json:"topics" yaml:"topics"`
	CreatorID string    `json:"creator_id" yaml:"creator_id"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// CommunityJoin records that a user joined a community, custom or proxied.
type CommunityJoin struct {
	ID          string    `json:"id" yaml:"id"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	CommunityID string    `json:"community_id" yaml:"community_id"`
	Platform    Platform  `json:"platform" yaml:"platform"`
	InviteURL   string    `json:"invite_url,omitempty" yaml:"invite_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at" yaml:"joined_at"`
}

// Resource is a locally stored research resource (dataset, tool, paper, course).
type Resource struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Type        string    `json:"type" yaml:"type"`
	Category    string    `json:"category" yaml:"category"`
	URL         string    `json:"url" yaml:"url"`
	Downloads   int       `json:"downloads" yaml:"downloads"`
	Rating      float64   `json:"rating" yaml:"rating"`
	CreatorID   string    `json:"creator_id" yaml:"creator_id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// SavedResource records that a user saved a resource.
type SavedResource struct {
	ID         string    `json:"id" yaml:"id"`
	UserID     string    `json:"user_id" yaml:"user_id"`
	ResourceID string    `json:"resource_id" yaml:"resource_id"`
	SavedAt    time.Time `json:"saved_at" yaml:"saved_at"`
}

// Listing is one entry of a merged directory view.
type Listing struct {
	// ID is the platform-local identifier (community id, subreddit name, guild id).
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Platform    Platform `json:"platform" yaml:"platform"`
	MemberCount int      `json:"member_count" yaml:"member_count"`
	Topics      []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`

	// Source names the backend that produced the listing ("local" for the store).
	Source    string    `json:"source" yaml:"source"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
