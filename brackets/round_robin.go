package brackets

import (
	"github.com/courtside/tournament-engine/models"
	"github.com/google/uuid"
)

// GenerateRoundRobinFixtures pairs every participant with every other one
// exactly once, k*(k-1)/2 matches in total. Rounds follow the circle method
// (one fixed player, the rest rotate) and only serve display purposes.
func GenerateRoundRobinFixtures(participantIDs []string, groupID string) []models.GroupStageMatch {
	k := len(participantIDs)
	matches := make([]models.GroupStageMatch, 0, k*(k-1)/2)
	if k < 2 {
		return matches
	}

	// -1 marks the resting slot when k is odd
	slots := make([]int, 0, k+1)
	for i := range participantIDs {
		slots = append(slots, i)
	}
	if k%2 == 1 {
		slots = append(slots, -1)
	}
	n := len(slots)

	for round := 1; round < n; round++ {
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a < 0 || b < 0 {
				continue
			}
			if a > b {
				a, b = b, a
			}
			matches = append(matches, models.GroupStageMatch{
				ID:        uuid.NewString(),
				GroupID:   groupID,
				Round:     round,
				Player1ID: participantIDs[a],
				Player2ID: participantIDs[b],
			})
		}

		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}

	return matches
}
