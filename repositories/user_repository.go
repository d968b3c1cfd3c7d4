package repositories

import (
	"context"
	"database/sql"

	"github.com/courtside/tournament-engine/models"
	"github.com/lib/pq"
)

// UserRepository is a read-only view of the club's member directory.
type UserRepository interface {
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	query := `
		SELECT id, tenant_id, first_name, last_name, nickname, created_at
		FROM users
		WHERE tenant_id = $1 AND id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		var u models.User
		if scanErr := rows.Scan(&u.ID, &u.TenantID, &u.FirstName, &u.LastName, &u.Nickname, &u.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
