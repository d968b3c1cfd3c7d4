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
	ErrBracketNotFound = errors.New("bracket not found")
	ErrBracketExists   = errors.New("bracket already exists for this category")
	// ErrStaleAggregate means the document changed since it was read.
	ErrStaleAggregate = errors.New("document was modified concurrently")
)

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	FindByID(ctx context.Context, id string) (*models.Bracket, error)
	FindByTournamentAndCategory(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]models.Bracket, error)
	// Update writes matches and status when the stored version equals
	// bracket.Version, then increments bracket.Version.
	Update(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	Delete(ctx context.Context, exec SQLExecutor, tournamentID, categoryID string) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const bracketColumns = `id, tournament_id, category_id, status, matches, version, created_at, updated_at`

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	executor := r.getExecutor(exec)
	matches, err := json.Marshal(b.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode bracket matches: %w", err)
	}

	query := `
		INSERT INTO brackets (id, tournament_id, category_id, status, matches, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING version, created_at, updated_at`

	err = executor.QueryRowContext(ctx, query,
		b.ID, b.TournamentID, b.CategoryID, b.Status, string(matches),
	).Scan(&b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "brackets_tournament_id_category_id_key" {
			return ErrBracketExists
		}
		return err
	}
	return nil
}

func (r *postgresBracketRepository) FindByID(ctx context.Context, id string) (*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresBracketRepository) FindByTournamentAndCategory(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE tournament_id = $1 AND category_id = $2`
	return r.findOne(ctx, query, tournamentID, categoryID)
}

func (r *postgresBracketRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Bracket, error) {
	b, err := scanBracket(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, tournamentID string) ([]models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE tournament_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	brackets := make([]models.Bracket, 0)
	for rows.Next() {
		b, scanErr := scanBracket(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		brackets = append(brackets, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return brackets, nil
}

func (r *postgresBracketRepository) Update(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	executor := r.getExecutor(exec)
	matches, err := json.Marshal(b.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode bracket matches: %w", err)
	}

	query := `
		UPDATE brackets SET
			status = $1,
			matches = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at`

	err = executor.QueryRowContext(ctx, query, b.Status, string(matches), b.ID, b.Version).Scan(&b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrStale(ctx, executor, b.ID)
		}
		return fmt.Errorf("failed to update bracket %s: %w", b.ID, err)
	}
	return nil
}

func (r *postgresBracketRepository) missingOrStale(ctx context.Context, executor SQLExecutor, id string) error {
	var exists bool
	if err := executor.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM brackets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleAggregate
	}
	return ErrBracketNotFound
}

func (r *postgresBracketRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, categoryID string) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM brackets WHERE tournament_id = $1 AND category_id = $2`
	result, err := executor.ExecContext(ctx, query, tournamentID, categoryID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func scanBracket(row rowScanner) (*models.Bracket, error) {
	var (
		b       models.Bracket
		matches []byte
	)
	if err := row.Scan(&b.ID, &b.TournamentID, &b.CategoryID, &b.Status, &matches, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(matches, &b.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches of bracket %s: %w", b.ID, err)
	}
	return &b, nil
}
