package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/cognitive"
)

const snapshotColumns = `id, user_id, to_char(date, 'YYYY-MM-DD') AS date, ai_usage_hours,
	brain_activity_score, cognitive_load_score, memory_usage_score,
	critical_thinking_score, creativity_score, notes`

// UpsertSnapshot stores the scores for (userID, day). Recomputing with the
// same scores rewrites the row unchanged.
func (s *Store) UpsertSnapshot(ctx context.Context, userID string, day time.Time, scores cognitive.Scores) (CognitiveSnapshot, error) {
	rows, err := s.Pool.Query(ctx, `
		INSERT INTO cognitive_health (
			user_id, date, ai_usage_hours, brain_activity_score, cognitive_load_score,
			memory_usage_score, critical_thinking_score, creativity_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, date) DO UPDATE SET
			ai_usage_hours = EXCLUDED.ai_usage_hours,
			brain_activity_score = EXCLUDED.brain_activity_score,
			cognitive_load_score = EXCLUDED.cognitive_load_score,
			memory_usage_score = EXCLUDED.memory_usage_score,
			critical_thinking_score = EXCLUDED.critical_thinking_score,
			creativity_score = EXCLUDED.creativity_score
		RETURNING `+snapshotColumns,
		userID, Day(day), scores.AIUsageHours, scores.BrainActivityScore, scores.CognitiveLoadScore,
		scores.MemoryUsageScore, scores.CriticalThinkingScore, scores.CreativityScore)
	if err != nil {
		return CognitiveSnapshot{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[CognitiveSnapshot])
}

// ListSnapshots returns a user's snapshots newest first, optionally limited to
// dates on or after since.
func (s *Store) ListSnapshots(ctx context.Context, userID string, since *time.Time) ([]CognitiveSnapshot, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM cognitive_health
		WHERE user_id = $1
		  AND ($2::date IS NULL OR date >= $2)
		ORDER BY cognitive_health.date DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[CognitiveSnapshot])
}

func (s *Store) UpsertAssessment(ctx context.Context, b BrainImpact) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO brain_impact (
			user_id, date, total_ai_hours, avg_daily_hours, impact_level, risk_factors, recommendations
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_ai_hours = EXCLUDED.total_ai_hours,
			avg_daily_hours = EXCLUDED.avg_daily_hours,
			impact_level = EXCLUDED.impact_level,
			risk_factors = EXCLUDED.risk_factors,
			recommendations = EXCLUDED.recommendations`,
		b.UserID, Day(b.Date), b.TotalAIHours, b.AvgDailyHours, b.ImpactLevel,
		nonNil(b.RiskFactors), nonNil(b.Recommendations))
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RecomputeSnapshot scores the usage recorded on userID's devices during the
// UTC day containing day and stores the result.
func (s *Store) RecomputeSnapshot(ctx context.Context, userID string, day time.Time) (CognitiveSnapshot, error) {
	from := Day(day)
	to := from.AddDate(0, 0, 1)
	hours, err := s.UserHours(ctx, userID, &from, &to)
	if err != nil {
		return CognitiveSnapshot{}, err
	}
	return s.UpsertSnapshot(ctx, userID, from, cognitive.Compute(hours))
}
