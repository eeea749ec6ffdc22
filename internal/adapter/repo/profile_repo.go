package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

// ProfileRepositoryPG reads quota-relevant fields of user profiles.
type ProfileRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{pool: pool}
}

// GetByID fetches a profile by user id.
func (r *ProfileRepositoryPG) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, email, display_name, is_dev_mode, created_at
FROM user_profiles
WHERE id = $1;
`, userID)
	var p domain.Profile
	var displayName *string
	if err := row.Scan(&p.ID, &p.Email, &displayName, &p.IsDevMode, &p.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.DisplayName = derefString(displayName)
	return &p, nil
}

// SetDevMode toggles the unlimited-quota flag.
func (r *ProfileRepositoryPG) SetDevMode(ctx context.Context, userID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE user_profiles SET is_dev_mode = $2, updated_at = now() WHERE id = $1;
`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ProfileRepository = (*ProfileRepositoryPG)(nil)
