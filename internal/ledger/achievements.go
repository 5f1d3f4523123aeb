// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"fmt"

	"github.com/pdiddy/research-journey/pkg/types"
)

// Built-in achievement keys.
const (
	KeyTopicChosen        = "topic-chosen"
	KeyDiscoveryMaster    = "discovery-master"
	KeyDesignArchitect    = "design-architect"
	KeyDevelopmentBuilder = "development-builder"
	KeyResearchComplete   = "research-complete"
	KeyCommunityMember    = "community-member"
	KeyResourceCollector  = "resource-collector"
)

// Catalog holds the built-in achievements by key.
var Catalog = map[string]types.UserAchievement{
	KeyTopicChosen: {
		Key:         KeyTopicChosen,
		Type:        types.AchievementBadge,
		Title:       "Topic Chosen",
		Description: "Picked a research topic and explained why",
		Icon:        "🎯",
		Category:    "discovery",
		Points:      50,
	},
	KeyDiscoveryMaster: {
		Key:         KeyDiscoveryMaster,
		Type:        types.AchievementMilestone,
		Title:       "Discovery Master",
		Description: "Completed the discovery phase",
		Icon:        "🔭",
		Category:    "discovery",
		Points:      100,
	},
	KeyDesignArchitect: {
		Key:         KeyDesignArchitect,
		Type:        types.AchievementMilestone,
		Title:       "Design Architect",
		Description: "Completed the design phase",
		Icon:        "📐",
		Category:    "design",
		Points:      150,
	},
	KeyDevelopmentBuilder: {
		Key:         KeyDevelopmentBuilder,
		Type:        types.AchievementMilestone,
		Title:       "Development Builder",
		Description: "Completed the development phase",
		Icon:        "🛠️",
		Category:    "development",
		Points:      200,
	},
	KeyResearchComplete: {
		Key:         KeyResearchComplete,
		Type:        types.AchievementReward,
		Title:       "Research Complete",
		Description: "Took a project through every phase",
		Icon:        "🏆",
		Category:    "evaluation",
		Points:      250,
	},
	KeyCommunityMember: {
		Key:         KeyCommunityMember,
		Type:        types.AchievementBadge,
		Title:       "Community Member",
		Description: "Joined a research community",
		Icon:        "🤝",
		Category:    "community",
		Points:      10,
	},
	KeyResourceCollector: {
		Key:         KeyResourceCollector,
		Type:        types.AchievementBadge,
		Title:       "Resource Collector",
		Description: "Saved a research resource",
		Icon:        "📚",
		Category:    "resources",
		Points:      10,
	},
}

// Achievement returns the catalog entry for key.
func Achievement(key string) (types.UserAchievement, error) {
	a, ok := Catalog[key]
	if !ok {
		return types.UserAchievement{}, fmt.Errorf("unknown achievement %q: %w", key, types.ErrInvalidInput)
	}
	return a, nil
}
