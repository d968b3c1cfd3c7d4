package brackets

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/courtside/tournament-engine/models"
	"github.com/google/uuid"
)

var (
	ErrInvalidGroupCount  = errors.New("number of groups must be greater than zero")
	ErrNotEnoughForGroups = errors.New("not enough participants for the requested number of groups")
)

// GroupName returns "Group A", "Group B", ... for 0-based indexes.
func GroupName(index int) string {
	if index < 26 {
		return "Group " + string(rune('A'+index))
	}
	return fmt.Sprintf("Group %d", index+1)
}

// GenerateBalancedGroups sorts participants by ELO (highest first, ties keep
// registration order) and deals them into groups in a snake: 0..n-1, then
// n-1..0, and so on. Group i gets seed i+1.
func GenerateBalancedGroups(participants []models.SeededParticipant, numberOfGroups int) ([]models.Group, error) {
	if numberOfGroups <= 0 {
		return nil, ErrInvalidGroupCount
	}
	if len(participants) < numberOfGroups {
		return nil, fmt.Errorf("%w: %d participants, %d groups", ErrNotEnoughForGroups, len(participants), numberOfGroups)
	}

	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b models.SeededParticipant) int {
		return cmp.Compare(b.Elo, a.Elo)
	})

	groups := make([]models.Group, numberOfGroups)
	for i := range groups {
		groups[i] = models.Group{
			ID:           uuid.NewString(),
			Name:         GroupName(i),
			Seed:         i + 1,
			Participants: []string{},
			Matches:      []models.GroupStageMatch{},
			Standings:    []models.GroupStanding{},
		}
	}

	for i, p := range sorted {
		offset := i % numberOfGroups
		target := offset
		if (i/numberOfGroups)%2 == 1 {
			target = numberOfGroups - 1 - offset
		}
		g := &groups[target]
		g.Participants = append(g.Participants, p.UserID)
		g.Standings = append(g.Standings, models.GroupStanding{
			PlayerID: p.UserID,
			Position: len(g.Standings) + 1,
		})
	}

	return groups, nil
}

// compareStandings orders standings best first: points, set difference,
// game difference, sets won, games won.
func compareStandings(a, b models.GroupStanding) int {
	return cmp.Or(
		cmp.Compare(b.Points, a.Points),
		cmp.Compare(b.SetDifference, a.SetDifference),
		cmp.Compare(b.GameDifference, a.GameDifference),
		cmp.Compare(b.SetsWon, a.SetsWon),
		cmp.Compare(b.GamesWon, a.GamesWon),
	)
}

// RecalculateStandings returns a re-ranked copy of standings. The sort is
// stable, so full ties keep their previous relative order.
func RecalculateStandings(standings []models.GroupStanding) []models.GroupStanding {
	ranked := slices.Clone(standings)
	slices.SortStableFunc(ranked, compareStandings)
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}
