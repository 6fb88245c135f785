package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/xerrors"
)

// ResolveService returns the id of the named service, creating it on first
// use. When a concurrent caller wins the insert, the surviving row is re-read
// and raced is true.
func (s *Store) ResolveService(ctx context.Context, name string) (id int64, raced bool, err error) {
	err = s.Pool.QueryRow(ctx, `SELECT id FROM ai_services WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}

	err = s.Pool.QueryRow(ctx, `
		INSERT INTO ai_services (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}

	if err := s.Pool.QueryRow(ctx, `SELECT id FROM ai_services WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, false, xerrors.Errorf("re-read service %q: %w", name, err)
	}
	return id, true, nil
}

// LogUsage appends one usage event. The device must already be registered;
// its last_seen is refreshed and, when a user id is supplied, it is linked
// to that user.
func (s *Store) LogUsage(ctx context.Context, u NewUsage) (UsageResult, error) {
	serviceID, raced, err := s.ResolveService(ctx, u.ServiceName)
	if err != nil {
		return UsageResult{}, xerrors.Errorf("resolve service: %w", err)
	}
	res := UsageResult{ServiceID: serviceID, ServiceRaced: raced}

	var metadata any
	if len(u.Metadata) > 0 {
		metadata = u.Metadata
	}

	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		var deviceID string
		err := tx.QueryRow(ctx, `
			UPDATE devices SET last_seen = now(), user_id = COALESCE($2, user_id)
			WHERE id = $1
			RETURNING id`, u.DeviceID, u.UserID).Scan(&deviceID)
		if err != nil {
			return notFound(err)
		}
		return tx.QueryRow(ctx, `
			INSERT INTO usage_logs (device_id, service_id, duration_seconds, request_count, metadata)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`, deviceID, serviceID, u.DurationSeconds, u.RequestCount, metadata).Scan(&res.LogID)
	})
	if err != nil {
		return UsageResult{}, err
	}
	return res, nil
}

func (s *Store) Stats(ctx context.Context, f UsageFilter) ([]UsageStat, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT
			d.name AS device_name,
			d.type AS device_type,
			s.name AS service_name,
			s.category AS service_category,
			SUM(ul.duration_seconds)::bigint AS total_duration,
			SUM(ul.request_count)::bigint AS total_requests,
			COUNT(*) AS session_count,
			to_char((ul.recorded_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS date
		FROM usage_logs ul
		JOIN devices d ON d.id = ul.device_id
		JOIN ai_services s ON s.id = ul.service_id
		WHERE ($1::timestamptz IS NULL OR ul.recorded_at >= $1)
		  AND ($2::text IS NULL OR ul.device_id = $2)
		  AND ($3::bigint IS NULL OR ul.service_id = $3)
		  AND ($4::text IS NULL OR d.user_id = $4)
		GROUP BY d.id, d.name, d.type, s.id, s.name, s.category, (ul.recorded_at AT TIME ZONE 'UTC')::date
		ORDER BY date DESC, total_duration DESC, service_name`,
		f.Since, f.DeviceID, f.ServiceID, f.UserID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[UsageStat])
}

func (s *Store) Summary(ctx context.Context, since *time.Time, userID *string) (UsageSummary, error) {
	var sum UsageSummary
	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT ul.device_id),
			COUNT(DISTINCT ul.service_id),
			COALESCE(SUM(ul.duration_seconds), 0)::bigint,
			COALESCE(SUM(ul.request_count), 0)::bigint,
			COUNT(ul.id)
		FROM usage_logs ul
		JOIN devices d ON d.id = ul.device_id
		WHERE ($1::timestamptz IS NULL OR ul.recorded_at >= $1)
		  AND ($2::text IS NULL OR d.user_id = $2)`, since, userID).
		Scan(&sum.DeviceCount, &sum.ServiceCount, &sum.TotalDuration, &sum.TotalRequests, &sum.TotalSessions)
	return sum, err
}

// Monthly rolls a user's usage up per UTC day within [from, to).
func (s *Store) Monthly(ctx context.Context, userID string, from, to time.Time) ([]DailyUsage, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT
			to_char((ul.recorded_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS date,
			(SUM(ul.duration_seconds) / 3600.0)::double precision AS total_hours,
			SUM(ul.request_count)::bigint AS total_requests,
			COUNT(DISTINCT ul.device_id) AS device_count,
			COUNT(DISTINCT ul.service_id) AS service_count
		FROM usage_logs ul
		JOIN devices d ON d.id = ul.device_id
		WHERE d.user_id = $1
		  AND ul.recorded_at >= $2
		  AND ul.recorded_at < $3
		GROUP BY (ul.recorded_at AT TIME ZONE 'UTC')::date
		ORDER BY date`, userID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[DailyUsage])
}

// UserHours sums the usage recorded on a user's devices in [since, until).
// A nil bound is open.
func (s *Store) UserHours(ctx context.Context, userID string, since, until *time.Time) (float64, error) {
	var hours float64
	err := s.Pool.QueryRow(ctx, `
		SELECT (COALESCE(SUM(ul.duration_seconds), 0) / 3600.0)::double precision
		FROM usage_logs ul
		JOIN devices d ON d.id = ul.device_id
		WHERE d.user_id = $1
		  AND ($2::timestamptz IS NULL OR ul.recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR ul.recorded_at < $3)`, userID, since, until).Scan(&hours)
	return hours, err
}

func (s *Store) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, category, created_at FROM ai_services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []Service{}
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Category, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}
