package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/tournament-engine/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this tenant")
	ErrCategoryNotFound       = errors.New("category not found")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	FindByID(ctx context.Context, id string) (*models.Tournament, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.Tournament, error)
	ListDraftsStartedBefore(ctx context.Context, now time.Time) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error
	UpdateCategory(ctx context.Context, exec SQLExecutor, tournamentID string, category models.Category) error
	AddParticipantToCategory(ctx context.Context, tournamentID, categoryID, userID string) error
	RemoveParticipantFromCategory(ctx context.Context, tournamentID, categoryID, userID string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, tenant_id, name, start_date, end_date, status, categories, created_at, updated_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	categories, err := json.Marshal(t.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		INSERT INTO tournaments (id, tenant_id, name, start_date, end_date, status, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		t.ID, t.TenantID, t.Name, t.StartDate, t.EndDate, t.Status, string(categories),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) FindByID(ctx context.Context, id string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE tenant_id = $1 ORDER BY start_date DESC, created_at DESC`
	return r.list(ctx, query, tenantID)
}

// ListDraftsStartedBefore returns DRAFT tournaments whose start date is not after now.
func (r *postgresTournamentRepository) ListDraftsStartedBefore(ctx context.Context, now time.Time) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE status = $1 AND start_date <= $2`
	return r.list(ctx, query, models.TournamentStatusDraft, now)
}

func (r *postgresTournamentRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	categories, err := json.Marshal(t.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		UPDATE tournaments SET
			name = $1,
			start_date = $2,
			end_date = $3,
			status = $4,
			categories = $5,
			updated_at = NOW()
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.StartDate, t.EndDate, t.Status, string(categories), t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateCategory replaces the category with the same id inside the
// tournament's categories document, keeping the array order.
func (r *postgresTournamentRepository) UpdateCategory(ctx context.Context, exec SQLExecutor, tournamentID string, category models.Category) error {
	executor := r.getExecutor(exec)
	doc, err := json.Marshal(category)
	if err != nil {
		return fmt.Errorf("failed to encode category: %w", err)
	}

	query := `
		UPDATE tournaments SET
			categories = (
				SELECT jsonb_agg(CASE WHEN c.elem->>'id' = $2 THEN $3::jsonb ELSE c.elem END ORDER BY c.ord)
				FROM jsonb_array_elements(categories) WITH ORDINALITY AS c(elem, ord)
			),
			updated_at = NOW()
		WHERE id = $1 AND categories @> jsonb_build_array(jsonb_build_object('id', $2::text))`

	result, err := executor.ExecContext(ctx, query, tournamentID, category.ID, string(doc))
	if err != nil {
		return fmt.Errorf("failed to update category %s of tournament %s: %w", category.ID, tournamentID, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresTournamentRepository) AddParticipantToCategory(ctx context.Context, tournamentID, categoryID, userID string) error {
	query := `
		UPDATE tournaments SET
			categories = (
				SELECT jsonb_agg(
					CASE WHEN c.elem->>'id' = $2
						THEN jsonb_set(c.elem, '{participants}', COALESCE(c.elem->'participants', '[]'::jsonb) || to_jsonb($3::text))
						ELSE c.elem
					END ORDER BY c.ord)
				FROM jsonb_array_elements(categories) WITH ORDINALITY AS c(elem, ord)
			),
			updated_at = NOW()
		WHERE id = $1 AND categories @> jsonb_build_array(jsonb_build_object('id', $2::text))`

	result, err := r.db.ExecContext(ctx, query, tournamentID, categoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to add participant %s to category %s: %w", userID, categoryID, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresTournamentRepository) RemoveParticipantFromCategory(ctx context.Context, tournamentID, categoryID, userID string) error {
	query := `
		UPDATE tournaments SET
			categories = (
				SELECT jsonb_agg(
					CASE WHEN c.elem->>'id' = $2
						THEN jsonb_set(c.elem, '{participants}', (
							SELECT COALESCE(jsonb_agg(p.value ORDER BY p.ord), '[]'::jsonb)
							FROM jsonb_array_elements(COALESCE(c.elem->'participants', '[]'::jsonb)) WITH ORDINALITY AS p(value, ord)
							WHERE p.value <> to_jsonb($3::text)
						))
						ELSE c.elem
					END ORDER BY c.ord)
				FROM jsonb_array_elements(categories) WITH ORDINALITY AS c(elem, ord)
			),
			updated_at = NOW()
		WHERE id = $1 AND categories @> jsonb_build_array(jsonb_build_object('id', $2::text))`

	result, err := r.db.ExecContext(ctx, query, tournamentID, categoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant %s from category %s: %w", userID, categoryID, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var (
		t          models.Tournament
		categories []byte
	)
	if err := row.Scan(
		&t.ID, &t.TenantID, &t.Name, &t.StartDate, &t.EndDate, &t.Status, &categories, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &t.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories of tournament %s: %w", t.ID, err)
	}
	if t.Categories == nil {
		t.Categories = []models.Category{}
	}
	return &t, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok && constraint == "tournaments_tenant_id_name_key" {
		return ErrTournamentNameConflict
	}
	return err
}
