package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/cognitive"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type computeSnapshotRequest struct {
	UserID string  `json:"userId" validate:"required"`
	Date   *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type computeSnapshotResponse struct {
	Success bool             `json:"success"`
	Metrics cognitive.Scores `json:"metrics"`
}

type brainImpactResponse struct {
	UserID           string          `json:"userId"`
	Age              int             `json:"age"`
	Period           string          `json:"period"`
	TotalAIHours     float64         `json:"total_ai_hours"`
	AvgDailyHours    float64         `json:"avg_daily_hours"`
	ImpactLevel      cognitive.Level `json:"impact_level"`
	RiskFactors      []string        `json:"risk_factors"`
	Recommendations  []string        `json:"recommendations"`
	AgeSpecificNotes string          `json:"age_specific_notes"`
}

func (s *Server) handleComputeSnapshot(w http.ResponseWriter, r *http.Request) {
	var req computeSnapshotRequest
	if !readJSON(w, r, &req) {
		return
	}
	day := db.Day(s.now())
	if req.Date != nil {
		parsed, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			writeFieldErrors(w, fieldError{Field: "date", Detail: "must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	snap, err := s.store.RecomputeSnapshot(r.Context(), req.UserID, day)
	if err != nil {
		s.serverError(w, r, "compute cognitive snapshot", err)
		return
	}
	s.metrics.snapshots.Inc()
	writeJSON(w, http.StatusOK, computeSnapshotResponse{
		Success: true,
		Metrics: cognitive.Scores{
			AIUsageHours:          snap.AIUsageHours,
			BrainActivityScore:    snap.BrainActivityScore,
			CognitiveLoadScore:    snap.CognitiveLoadScore,
			MemoryUsageScore:      snap.MemoryUsageScore,
			CriticalThinkingScore: snap.CriticalThinkingScore,
			CreativityScore:       snap.CreativityScore,
		},
	})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	since, err := db.SnapshotSince(r.URL.Query().Get("period"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	snapshots, err := s.store.ListSnapshots(r.Context(), chi.URLParam(r, "userId"), since)
	if err != nil {
		s.serverError(w, r, "list cognitive snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleBrainImpact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userId")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = db.DefaultPeriod
	}
	days, err := db.PeriodDays(period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if err != nil {
		s.serverError(w, r, "load profile", err)
		return
	}
	age := cognitive.DefaultAge
	if profile.Age != nil {
		age = *profile.Age
	}

	now := s.now()
	since, err := db.UsageSince(period, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	hours, err := s.store.UserHours(ctx, userID, since, nil)
	if err != nil {
		s.serverError(w, r, "sum user hours", err)
		return
	}

	a := cognitive.Assess(hours, days, age)
	err = s.store.UpsertAssessment(ctx, db.BrainImpact{
		UserID:          userID,
		Date:            now,
		TotalAIHours:    a.TotalHours,
		AvgDailyHours:   a.AvgDailyHours,
		ImpactLevel:     string(a.Level),
		RiskFactors:     a.RiskFactors,
		Recommendations: a.Recommendations,
	})
	if err != nil {
		s.serverError(w, r, "store brain impact", err)
		return
	}

	writeJSON(w, http.StatusOK, brainImpactResponse{
		UserID:           userID,
		Age:              a.Age,
		Period:           period,
		TotalAIHours:     a.TotalHours,
		AvgDailyHours:    a.AvgDailyHours,
		ImpactLevel:      a.Level,
		RiskFactors:      a.RiskFactors,
		Recommendations:  a.Recommendations,
		AgeSpecificNotes: a.AgeSpecificNotes,
	})
}
