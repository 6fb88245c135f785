package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const deviceColumns = `id, name, type, user_id, created_at, last_seen`

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.Name, &d.Type, &d.UserID, &d.CreatedAt, &d.LastSeen)
	return d, err
}

// UpsertDevice registers a device or refreshes an existing one. Name and type
// are overwritten, the owning user is only replaced when userID is non-nil,
// and last_seen is always refreshed.
func (s *Store) UpsertDevice(ctx context.Context, id, name, deviceType string, userID *string) (Device, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO devices (id, name, type, user_id, last_seen)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			user_id = COALESCE(EXCLUDED.user_id, devices.user_id),
			last_seen = now()
		RETURNING `+deviceColumns, id, name, deviceType, userID)
	return scanDevice(row)
}

func (s *Store) LinkDeviceUser(ctx context.Context, deviceID, userID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE devices SET user_id = $2 WHERE id = $1`, deviceID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetDevice(ctx context.Context, id string) (Device, error) {
	d, err := scanDevice(s.Pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	return d, notFound(err)
}

func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY last_seen DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
