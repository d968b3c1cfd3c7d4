package brackets

import (
	"context"

	"github.com/courtside/tournament-engine/models"
)

type GenerateBracketParams struct {
	TournamentID string
	CategoryID   string
	// Participants are user ids ordered by seed, best first.
	Participants []string
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]models.BracketMatch, error)

	GetName() string
}
