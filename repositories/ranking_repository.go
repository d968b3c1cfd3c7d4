package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/tournament-engine/models"
)

var ErrRankingNotFound = errors.New("player ranking not found")

type RankingRepository interface {
	FindByUserAndTenant(ctx context.Context, userID, tenantID string) (*models.PlayerRanking, error)
	Upsert(ctx context.Context, exec SQLExecutor, ranking *models.PlayerRanking) error
}

type postgresRankingRepository struct {
	db *sql.DB
}

func NewPostgresRankingRepository(db *sql.DB) RankingRepository {
	return &postgresRankingRepository{db: db}
}

func (r *postgresRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRankingRepository) FindByUserAndTenant(ctx context.Context, userID, tenantID string) (*models.PlayerRanking, error) {
	query := `
		SELECT user_id, tenant_id, elo_score, matches_played, matches_won, tournament_matches, updated_at
		FROM player_rankings
		WHERE user_id = $1 AND tenant_id = $2`

	var pr models.PlayerRanking
	err := r.db.QueryRowContext(ctx, query, userID, tenantID).Scan(
		&pr.UserID, &pr.TenantID, &pr.EloScore, &pr.MatchesPlayed, &pr.MatchesWon, &pr.TournamentMatches, &pr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankingNotFound
		}
		return nil, err
	}
	return &pr, nil
}

func (r *postgresRankingRepository) Upsert(ctx context.Context, exec SQLExecutor, pr *models.PlayerRanking) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_rankings (user_id, tenant_id, elo_score, matches_played, matches_won, tournament_matches, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET
			elo_score = EXCLUDED.elo_score,
			matches_played = EXCLUDED.matches_played,
			matches_won = EXCLUDED.matches_won,
			tournament_matches = EXCLUDED.tournament_matches,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	return executor.QueryRowContext(ctx, query,
		pr.UserID, pr.TenantID, pr.EloScore, pr.MatchesPlayed, pr.MatchesWon, pr.TournamentMatches,
	).Scan(&pr.UpdatedAt)
}
