// Package lineup selects multi-leg combinations from qualified candidates.
package lineup

import (
	"context"
	"fmt"
	"sort"

	"github.com/yourusername/prop-edge/internal/models"
)

// Pick is one qualified candidate with its selection score.
type Pick struct {
	Candidate models.Candidate
	Score     float64 // combined confidence/edge score, higher is better
}

// Constraints bound the selected combination.
type Constraints struct {
	MinLegs     int
	MaxLegs     int
	MaxSameTeam int // 0 means unconstrained
}

// Validate checks constraint consistency.
func (c Constraints) Validate() error {
	if c.MinLegs <= 0 || c.MaxLegs < c.MinLegs {
		return fmt.Errorf("%w: leg range %d..%d", models.ErrConfiguration, c.MinLegs, c.MaxLegs)
	}
	if c.MaxSameTeam < 0 {
		return fmt.Errorf("%w: max same team cannot be negative", models.ErrConfiguration)
	}
	return nil
}

// Optimizer selects a subset of picks under constraints.
type Optimizer interface {
	Select(ctx context.Context, picks []Pick, constraints Constraints) ([]Pick, error)
}

// Greedy selects the highest-scoring picks while honoring the per-team cap.
// Candidates already sorted equal on score keep their input order, so a run
// is deterministic for a given candidate set.
type Greedy struct{}

// NewGreedy creates the default optimizer.
func NewGreedy() *Greedy {
	return &Greedy{}
}

// Select returns up to MaxLegs picks; fewer than MinLegs qualifying picks
// yields an empty selection rather than an undersized lineup.
func (g *Greedy) Select(ctx context.Context, picks []Pick, constraints Constraints) ([]Pick, error) {
	_ = ctx
	if err := constraints.Validate(); err != nil {
		return nil, err
	}

	ordered := make([]Pick, len(picks))
	copy(ordered, picks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	selected := make([]Pick, 0, constraints.MaxLegs)
	teamCount := make(map[string]int)
	for _, pick := range ordered {
		if len(selected) == constraints.MaxLegs {
			break
		}
		team := pick.Candidate.Team
		if constraints.MaxSameTeam > 0 && team != "" && teamCount[team] >= constraints.MaxSameTeam {
			continue
		}
		selected = append(selected, pick)
		if team != "" {
			teamCount[team]++
		}
	}

	if len(selected) < constraints.MinLegs {
		return nil, nil
	}
	return selected, nil
}
