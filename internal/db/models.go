package db

import "time"

type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type Service struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

type NewUsage struct {
	DeviceID        string
	ServiceName     string
	DurationSeconds int64
	RequestCount    int
	Metadata        map[string]any
	UserID          *string
}

type UsageResult struct {
	LogID     int64
	ServiceID int64
	// ServiceRaced is set when another writer created the service between
	// our lookup and insert.
	ServiceRaced bool
}

type UsageFilter struct {
	Since     *time.Time
	DeviceID  *string
	ServiceID *int64
	UserID    *string
}

type UsageStat struct {
	DeviceName      string `json:"device_name" db:"device_name"`
	DeviceType      string `json:"device_type" db:"device_type"`
	ServiceName     string `json:"service_name" db:"service_name"`
	ServiceCategory string `json:"service_category" db:"service_category"`
	TotalDuration   int64  `json:"total_duration" db:"total_duration"`
	TotalRequests   int64  `json:"total_requests" db:"total_requests"`
	SessionCount    int64  `json:"session_count" db:"session_count"`
	Date            string `json:"date" db:"date"`
}

type UsageSummary struct {
	DeviceCount   int64 `json:"device_count"`
	ServiceCount  int64 `json:"service_count"`
	TotalDuration int64 `json:"total_duration"`
	TotalRequests int64 `json:"total_requests"`
	TotalSessions int64 `json:"total_sessions"`
}

type DailyUsage struct {
	Date          string  `json:"date" db:"date"`
	TotalHours    float64 `json:"total_hours" db:"total_hours"`
	TotalRequests int64   `json:"total_requests" db:"total_requests"`
	DeviceCount   int64   `json:"device_count" db:"device_count"`
	ServiceCount  int64   `json:"service_count" db:"service_count"`
}

type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name"`
	Age          *int      `json:"age"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CognitiveSnapshot struct {
	ID                    int64   `json:"id" db:"id"`
	UserID                string  `json:"user_id" db:"user_id"`
	Date                  string  `json:"date" db:"date"`
	AIUsageHours          float64 `json:"ai_usage_hours" db:"ai_usage_hours"`
	BrainActivityScore    float64 `json:"brain_activity_score" db:"brain_activity_score"`
	CognitiveLoadScore    float64 `json:"cognitive_load_score" db:"cognitive_load_score"`
	MemoryUsageScore      float64 `json:"memory_usage_score" db:"memory_usage_score"`
	CriticalThinkingScore float64 `json:"critical_thinking_score" db:"critical_thinking_score"`
	CreativityScore       float64 `json:"creativity_score" db:"creativity_score"`
	Notes                 *string `json:"notes" db:"notes"`
}

type BrainImpact struct {
	UserID          string
	Date            time.Time
	TotalAIHours    float64
	AvgDailyHours   float64
	ImpactLevel     string
	RiskFactors     []string
	Recommendations []string
}

type TaskSuggestion struct {
	ID                int64     `json:"id" db:"id"`
	Title             string    `json:"title" db:"title"`
	Description       *string   `json:"description" db:"description"`
	Category          *string   `json:"category" db:"category"`
	Difficulty        *string   `json:"difficulty" db:"difficulty"`
	AgeGroup          string    `json:"age_group" db:"age_group"`
	VideoURL          *string   `json:"video_url" db:"video_url"`
	DurationMinutes   *int32    `json:"duration_minutes" db:"duration_minutes"`
	CognitiveBenefits *string   `json:"cognitive_benefits" db:"cognitive_benefits"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type TaskFilter struct {
	AgeGroups  []string
	Difficulty *string
	Category   *string
	Limit      int
}
