package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

var (
	ErrGroupStageNotFound = errors.New("group stage not found")
	ErrGroupStageExists   = errors.New("group stage already exists for this category")
)

type GroupStageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, stage *models.GroupStage) error
	FindByTournamentAndCategory(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error)
	// Update is version-checked the same way as BracketRepository.Update.
	Update(ctx context.Context, exec SQLExecutor, stage *models.GroupStage) error
	Delete(ctx context.Context, exec SQLExecutor, tournamentID, categoryID string) error
}

type postgresGroupStageRepository struct {
	db *sql.DB
}

func NewPostgresGroupStageRepository(db *sql.DB) GroupStageRepository {
	return &postgresGroupStageRepository{db: db}
}

func (r *postgresGroupStageRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupStageRepository) Create(ctx context.Context, exec SQLExecutor, gs *models.GroupStage) error {
	executor := r.getExecutor(exec)
	groups, err := json.Marshal(gs.Groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	query := `
		INSERT INTO group_stages (id, tournament_id, category_id, status, groups, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING version, created_at, updated_at`

	err = executor.QueryRowContext(ctx, query,
		gs.ID, gs.TournamentID, gs.CategoryID, gs.Status, string(groups),
	).Scan(&gs.Version, &gs.CreatedAt, &gs.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "group_stages_tournament_id_category_id_key" {
			return ErrGroupStageExists
		}
		return err
	}
	return nil
}

func (r *postgresGroupStageRepository) FindByTournamentAndCategory(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	query := `
		SELECT id, tournament_id, category_id, status, groups, version, created_at, updated_at
		FROM group_stages
		WHERE tournament_id = $1 AND category_id = $2`

	var (
		gs     models.GroupStage
		groups []byte
	)
	err := r.db.QueryRowContext(ctx, query, tournamentID, categoryID).Scan(
		&gs.ID, &gs.TournamentID, &gs.CategoryID, &gs.Status, &groups, &gs.Version, &gs.CreatedAt, &gs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupStageNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(groups, &gs.Groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups of group stage %s: %w", gs.ID, err)
	}
	return &gs, nil
}

func (r *postgresGroupStageRepository) Update(ctx context.Context, exec SQLExecutor, gs *models.GroupStage) error {
	executor := r.getExecutor(exec)
	groups, err := json.Marshal(gs.Groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	query := `
		UPDATE group_stages SET
			status = $1,
			groups = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at`

	err = executor.QueryRowContext(ctx, query, gs.Status, string(groups), gs.ID, gs.Version).Scan(&gs.Version, &gs.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update group stage %s: %w", gs.ID, err)
	}

	var exists bool
	if err := executor.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM group_stages WHERE id = $1)`, gs.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleAggregate
	}
	return ErrGroupStageNotFound
}

func (r *postgresGroupStageRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, categoryID string) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM group_stages WHERE tournament_id = $1 AND category_id = $2`
	result, err := executor.ExecContext(ctx, query, tournamentID, categoryID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupStageNotFound)
}
