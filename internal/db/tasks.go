package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, category, difficulty, age_group,
	video_url, duration_minutes, cognitive_benefits, created_at`

const defaultSuggestionLimit = 5

func (s *Store) ListTasks(ctx context.Context) ([]TaskSuggestion, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM task_suggestions ORDER BY category, title`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[TaskSuggestion])
}

// SuggestTasks picks a random sample of tasks matching the filter.
func (s *Store) SuggestTasks(ctx context.Context, f TaskFilter) ([]TaskSuggestion, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	groups := f.AgeGroups
	if len(groups) == 0 {
		groups = []string{"all"}
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM task_suggestions
		WHERE age_group = ANY($1)
		  AND ($2::text IS NULL OR difficulty = $2)
		  AND ($3::text IS NULL OR category = $3)
		ORDER BY random()
		LIMIT $4`, groups, f.Difficulty, f.Category, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[TaskSuggestion])
}

// AgeGroups maps an age to the task groups suitable for it.
func AgeGroups(age *int) []string {
	switch {
	case age == nil:
		return []string{"all"}
	case *age < 18:
		return []string{"all", "young"}
	case *age >= 50:
		return []string{"all", "senior"}
	default:
		return []string{"all"}
	}
}
