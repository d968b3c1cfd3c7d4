package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
	"github.com/google/uuid"
)

var ErrNotEnoughParticipants = errors.New("not enough participants to generate a single elimination bracket (minimum 2)")

type SingleEliminationGenerator struct {
	newID func() string
}

func NewSingleEliminationGenerator() *SingleEliminationGenerator {
	return &SingleEliminationGenerator{newID: uuid.NewString}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the full match tree for the seeded participants.
// Matches come back as a flat list ordered by round (final first) and position.
// First-round byes are resolved immediately and their winner is placed one
// round forward; nothing is cascaded further.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.BracketMatch, error) {
	participants := params.Participants
	n := len(participants)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughParticipants, n)
	}

	size := NextPowerOfTwo(n)
	numRounds := NumRounds(size)

	matches := make([]models.BracketMatch, 0, size-1)
	// slots[r][p] is the index in matches of the match at round r, position p
	slots := make([][]int, numRounds+1)
	for r := 1; r <= numRounds; r++ {
		count := 1 << (r - 1)
		slots[r] = make([]int, count)
		for p := 0; p < count; p++ {
			slots[r][p] = len(matches)
			matches = append(matches, models.BracketMatch{
				ID:       g.newID(),
				Round:    r,
				Position: p,
			})
		}
	}

	for r := 1; r < numRounds; r++ {
		for p, parentIdx := range slots[r] {
			for _, child := range []int{2 * p, 2*p + 1} {
				nextID := matches[parentIdx].ID
				matches[slots[r+1][child]].NextMatchID = &nextID
			}
		}
	}

	firstRound := slots[numRounds]
	for p, pair := range SeedPairs(size) {
		m := &matches[firstRound[p]]
		if pair[0] <= n {
			id := participants[pair[0]-1]
			m.Player1ID = &id
		}
		if pair[1] <= n {
			id := participants[pair[1]-1]
			m.Player2ID = &id
		}
	}

	for p, idx := range firstRound {
		m := &matches[idx]
		if m.PlayerCount() != 1 {
			continue
		}
		winner := m.Player1ID
		if winner == nil {
			winner = m.Player2ID
		}
		winnerID := *winner
		m.WinnerID = &winnerID
		if numRounds > 1 {
			matches[slots[numRounds-1][p/2]].PlaceWinner(p, winnerID)
		}
	}

	return matches, nil
}
