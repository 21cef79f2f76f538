package lineup

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/prop-edge/internal/models"
)

func pick(id, team string, score float64) Pick {
	return Pick{
		Candidate: models.Candidate{ID: id, Team: team, Line: 20, Odds: 2.0},
		Score:     score,
	}
}

func TestGreedySelectsHighestScores(t *testing.T) {
	picks := []Pick{
		pick("a", "AAA", 0.5),
		pick("b", "BBB", 0.9),
		pick("c", "CCC", 0.7),
	}

	selected, err := NewGreedy().Select(context.Background(), picks, Constraints{MinLegs: 1, MaxLegs: 2})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "b", selected[0].Candidate.ID)
	assert.Equal(t, "c", selected[1].Candidate.ID)
}

func TestGreedyHonorsTeamCap(t *testing.T) {
	picks := []Pick{
		pick("a", "AAA", 0.9),
		pick("b", "AAA", 0.8),
		pick("c", "AAA", 0.7),
		pick("d", "BBB", 0.1),
	}

	selected, err := NewGreedy().Select(context.Background(), picks, Constraints{MinLegs: 1, MaxLegs: 4, MaxSameTeam: 2})
	require.NoError(t, err)
	require.Len(t, selected, 3)
	assert.Equal(t, "a", selected[0].Candidate.ID)
	assert.Equal(t, "b", selected[1].Candidate.ID)
	assert.Equal(t, "d", selected[2].Candidate.ID)
}

func TestGreedyUndersizedLineupYieldsNothing(t *testing.T) {
	picks := []Pick{pick("a", "AAA", 0.9)}

	selected, err := NewGreedy().Select(context.Background(), picks, Constraints{MinLegs: 3, MaxLegs: 5})
	require.NoError(t, err)
	assert.Nil(t, selected)
}

func TestGreedyInvalidConstraints(t *testing.T) {
	_, err := NewGreedy().Select(context.Background(), nil, Constraints{MinLegs: 0, MaxLegs: 2})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewGreedy().Select(context.Background(), nil, Constraints{MinLegs: 3, MaxLegs: 2})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestGreedyDeterministicOnEqualScores(t *testing.T) {
	picks := make([]Pick, 6)
	for i := range picks {
		picks[i] = pick(fmt.Sprintf("p%d", i), "", 0.5)
	}

	first, err := NewGreedy().Select(context.Background(), picks, Constraints{MinLegs: 1, MaxLegs: 3})
	require.NoError(t, err)
	second, err := NewGreedy().Select(context.Background(), picks, Constraints{MinLegs: 1, MaxLegs: 3})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "p0", first[0].Candidate.ID)
}
