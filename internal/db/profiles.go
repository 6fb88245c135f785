package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, email, password_hash, name, age, created_at, updated_at`

func scanProfile(row pgx.Row) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.Age, &p.CreatedAt, &p.UpdatedAt)
	return p, notFound(err)
}

// CreateProfile inserts a new profile. A duplicate email surfaces as a
// unique violation; see IsUniqueViolation.
func (s *Store) CreateProfile(ctx context.Context, p UserProfile) (UserProfile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `
		INSERT INTO user_profiles (id, email, password_hash, name, age)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+profileColumns, p.ID, p.Email, p.PasswordHash, p.Name, p.Age))
}

func (s *Store) GetProfile(ctx context.Context, id string) (UserProfile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, id))
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (UserProfile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE email = $1`, email))
}

// UpdateProfile changes name and age, keeping the stored value for any nil
// argument.
func (s *Store) UpdateProfile(ctx context.Context, id string, name *string, age *int) (UserProfile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `
		UPDATE user_profiles SET
			name = COALESCE($2, name),
			age = COALESCE($3, age),
			updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, name, age))
}

func (s *Store) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
