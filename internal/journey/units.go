// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journey

import (
	"fmt"

	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/pkg/types"
)

// TopicBonus is awarded once per project when its topic is confirmed.
const TopicBonus = 50

// unit is one phase of the journey: what it pays, what it unlocks and when
// it may be left.
type unit struct {
	phase       types.Phase
	bonus       int
	achievement string

	// autoAdvance completes the phase as soon as progress reaches 100.
	autoAdvance bool

	// ready gates auto-advance; nil means always ready. An explicit
	// CompletePhase does not consult it.
	ready func(p types.ResearchProject, ts []types.ResearchTask) bool

	// progress derives the phase's progress; nil means it is set by hand.
	progress func(p types.ResearchProject, ts []types.ResearchTask) int
}

var (
	discovery = unit{
		phase:       types.PhaseDiscovery,
		bonus:       100,
		achievement: ledger.KeyDiscoveryMaster,
		autoAdvance: true,
		ready: func(p types.ResearchProject, _ []types.ResearchTask) bool {
			return p.Topic != nil
		},
		progress: func(p types.ResearchProject, ts []types.ResearchTask) int {
			n := 0
			if p.Topic != nil {
				n += 50
			}
			for _, t := range ts {
				if t.Key == tasks.KeySelectTopic && t.Status == types.TaskCompleted {
					n += 50
					break
				}
			}
			return n
		},
	}

	design = unit{
		phase:       types.PhaseDesign,
		bonus:       150,
		achievement: ledger.KeyDesignArchitect,
		progress: func(_ types.ResearchProject, ts []types.ResearchTask) int {
			return completedShare(ts, types.PhaseDesign)
		},
	}

	development = unit{
		phase:       types.PhaseDevelopment,
		bonus:       200,
		achievement: ledger.KeyDevelopmentBuilder,
	}

	evaluation = unit{
		phase:       types.PhaseEvaluation,
		bonus:       250,
		achievement: ledger.KeyResearchComplete,
		progress: func(_ types.ResearchProject, ts []types.ResearchTask) int {
			return completedShare(ts, types.PhaseEvaluation)
		},
	}
)

// unitFor maps every phase to its unit.
func unitFor(p types.Phase) (unit, error) {
	switch p {
	case types.PhaseDiscovery:
		return discovery, nil
	case types.PhaseDesign:
		return design, nil
	case types.PhaseDevelopment:
		return development, nil
	case types.PhaseEvaluation:
		return evaluation, nil
	}
	return unit{}, fmt.Errorf("unknown phase %q: %w", p, types.ErrInvalidInput)
}

// PhaseBonus returns the points paid for completing phase p.
func PhaseBonus(p types.Phase) int {
	u, err := unitFor(p)
	if err != nil {
		return 0
	}
	return u.bonus
}

// completedShare is the percentage of the phase's tasks that are completed;
// zero when the phase has no tasks.
func completedShare(ts []types.ResearchTask, phase types.Phase) int {
	total, done := 0, 0
	for _, t := range ts {
		if t.Phase != phase {
			continue
		}
		total++
		if t.Status == types.TaskCompleted {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return done * 100 / total
}

func (u unit) isReady(p types.ResearchProject, ts []types.ResearchTask) bool {
	return u.ready == nil || u.ready(p, ts)
}
