package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
)

const (
	eloKFactor           = 32
	eloKFactorTournament = 40
)

// RankingService keeps per-tenant ELO ratings.
type RankingService struct {
	repo       repositories.RankingRepository
	defaultElo int
	logger     *slog.Logger
}

func NewRankingService(repo repositories.RankingRepository, defaultElo int, logger *slog.Logger) *RankingService {
	return &RankingService{repo: repo, defaultElo: defaultElo, logger: logger}
}

// EloScore returns the player's rating, or the default rating for players
// who have never played.
func (s *RankingService) EloScore(ctx context.Context, userID, tenantID string) (int, error) {
	ranking, err := s.repo.FindByUserAndTenant(ctx, userID, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrRankingNotFound) {
			return s.defaultElo, nil
		}
		return 0, err
	}
	return ranking.EloScore, nil
}

func (s *RankingService) GetRanking(ctx context.Context, userID, tenantID string) (*models.PlayerRanking, error) {
	ranking, err := s.repo.FindByUserAndTenant(ctx, userID, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrRankingNotFound) {
			return s.newRanking(userID, tenantID), nil
		}
		return nil, err
	}
	return ranking, nil
}

// ProcessMatchResult applies one decided match to both players' ratings.
func (s *RankingService) ProcessMatchResult(ctx context.Context, exec repositories.SQLExecutor, outcome models.MatchOutcome) error {
	if outcome.WinnerID == "" || outcome.LoserID == "" || outcome.WinnerID == outcome.LoserID {
		return fmt.Errorf("%w: match outcome needs two different players", ErrValidationFailed)
	}

	winner, err := s.GetRanking(ctx, outcome.WinnerID, outcome.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load ranking of %s: %w", outcome.WinnerID, err)
	}
	loser, err := s.GetRanking(ctx, outcome.LoserID, outcome.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load ranking of %s: %w", outcome.LoserID, err)
	}

	k := eloKFactor
	if outcome.IsTournament {
		k = eloKFactorTournament
	}
	winnerDelta, loserDelta := EloDelta(winner.EloScore, loser.EloScore, k)

	winner.EloScore += winnerDelta
	winner.MatchesPlayed++
	winner.MatchesWon++
	loser.EloScore += loserDelta
	loser.MatchesPlayed++
	if outcome.IsTournament {
		winner.TournamentMatches++
		loser.TournamentMatches++
	}

	if err := s.repo.Upsert(ctx, exec, winner); err != nil {
		return fmt.Errorf("failed to save ranking of %s: %w", winner.UserID, err)
	}
	if err := s.repo.Upsert(ctx, exec, loser); err != nil {
		return fmt.Errorf("failed to save ranking of %s: %w", loser.UserID, err)
	}

	s.logger.InfoContext(ctx, "Rankings updated",
		slog.String("tenant_id", outcome.TenantID),
		slog.String("winner_id", winner.UserID), slog.Int("winner_elo", winner.EloScore),
		slog.String("loser_id", loser.UserID), slog.Int("loser_elo", loser.EloScore),
	)
	return nil
}

func (s *RankingService) newRanking(userID, tenantID string) *models.PlayerRanking {
	return &models.PlayerRanking{UserID: userID, TenantID: tenantID, EloScore: s.defaultElo}
}

// EloDelta returns the rating changes of the winner and the loser.
func EloDelta(winnerElo, loserElo, k int) (int, int) {
	expectedWinner := 1 / (1 + math.Pow(10, float64(loserElo-winnerElo)/400))
	expectedLoser := 1 - expectedWinner
	winnerDelta := int(math.Round(float64(k) * (1 - expectedWinner)))
	loserDelta := int(math.Round(float64(k) * (0 - expectedLoser)))
	return winnerDelta, loserDelta
}
