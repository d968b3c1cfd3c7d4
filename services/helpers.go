package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// Notifier pushes live updates to viewers of a tournament. *brackets.Hub implements it.
type Notifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

// ResultArchiver stores the final results of a finished tournament and
// returns where they were put.
type ResultArchiver interface {
	ArchiveResults(ctx context.Context, tournament *models.Tournament, brackets []models.Bracket) (string, error)
}

// Ranking is the rating collaborator used for seeding and for reporting
// decided tournament matches.
type Ranking interface {
	EloScore(ctx context.Context, userID, tenantID string) (int, error)
	ProcessMatchResult(ctx context.Context, exec repositories.SQLExecutor, outcome models.MatchOutcome) error
}

const eloLookupConcurrency = 8

func loadTournamentCategory(ctx context.Context, repo repositories.TournamentRepository, tournamentID, categoryID string) (*models.Tournament, *models.Category, error) {
	tournament, err := repo.FindByID(ctx, tournamentID)
	if err != nil {
		return nil, nil, handleRepositoryError(err)
	}
	category := tournament.Category(categoryID)
	if category == nil {
		return nil, nil, fmt.Errorf("%w: %s in tournament %s", ErrCategoryNotFound, categoryID, tournamentID)
	}
	return tournament, category, nil
}

func isTournamentEditable(status models.TournamentStatus) bool {
	return status == models.TournamentStatusDraft || status == models.TournamentStatusInProgress
}

// fetchElos looks up every participant's rating concurrently. The result
// keeps the order of participantIDs.
func fetchElos(ctx context.Context, ranking Ranking, tenantID string, participantIDs []string) ([]models.SeededParticipant, error) {
	seeded := make([]models.SeededParticipant, len(participantIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eloLookupConcurrency)
	for i, id := range participantIDs {
		g.Go(func() error {
			elo, err := ranking.EloScore(gctx, id, tenantID)
			if err != nil {
				return fmt.Errorf("failed to fetch rating of %s: %w", id, err)
			}
			seeded[i] = models.SeededParticipant{UserID: id, Elo: elo}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return seeded, nil
}

// seedOrder returns participant ids best first; equal ratings keep their
// registration order.
func seedOrder(seeded []models.SeededParticipant) []string {
	sorted := slices.Clone(seeded)
	slices.SortStableFunc(sorted, func(a, b models.SeededParticipant) int {
		return cmp.Compare(b.Elo, a.Elo)
	})
	ids := make([]string, len(sorted))
	for i, p := range sorted {
		ids[i] = p.UserID
	}
	return ids
}

func notify(n Notifier, tournamentID, messageType string, payload interface{}) {
	if n == nil {
		return
	}
	n.BroadcastToRoom(brackets.TournamentRoom(tournamentID), brackets.WebSocketMessage{
		Type:    messageType,
		Payload: payload,
		RoomID:  brackets.TournamentRoom(tournamentID),
	})
}

func strPtr(s string) *string {
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
