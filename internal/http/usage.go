package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cdr.dev/slog/v3"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type logUsageRequest struct {
	DeviceID        string         `json:"deviceId" validate:"required"`
	ServiceName     string         `json:"serviceName" validate:"required,max=200"`
	DurationSeconds *int64         `json:"durationSeconds" validate:"omitempty,gte=0"`
	RequestCount    *int           `json:"requestCount" validate:"omitempty,gte=0"`
	Metadata        map[string]any `json:"metadata"`
	UserID          *string        `json:"userId" validate:"omitempty,min=1"`
}

type logUsageResponse struct {
	Success   bool  `json:"success"`
	LogID     int64 `json:"logId"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

func (s *Server) handleLogUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req logUsageRequest
	if !readJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > maxIdempotencyKey {
		writeError(w, http.StatusBadRequest, "invalid_idempotency_key")
		return
	}
	dedupe := key != "" && s.redis != nil
	if dedupe {
		prior, err := s.claimIdempotencyKey(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "idempotency check failed, accepting without dedup", slog.Error(err))
			dedupe = false
		case prior.found && prior.logID == 0:
			writeError(w, http.StatusConflict, "request_in_progress")
			return
		case prior.found:
			s.metrics.usageDuplicates.Inc()
			writeJSON(w, http.StatusOK, logUsageResponse{Success: true, LogID: prior.logID, Duplicate: true})
			return
		}
	}

	usage := db.NewUsage{
		DeviceID:     req.DeviceID,
		ServiceName:  req.ServiceName,
		RequestCount: 1,
		Metadata:     req.Metadata,
		UserID:       req.UserID,
	}
	if req.DurationSeconds != nil {
		usage.DurationSeconds = *req.DurationSeconds
	}
	if req.RequestCount != nil && *req.RequestCount > 0 {
		usage.RequestCount = *req.RequestCount
	}

	res, err := s.store.LogUsage(ctx, usage)
	if err != nil {
		if dedupe {
			if relErr := s.releaseIdempotencyKey(ctx, key); relErr != nil {
				s.logger.Warn(ctx, "release idempotency key", slog.Error(relErr))
			}
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device_not_found")
			return
		}
		s.serverError(w, r, "log usage", err)
		return
	}
	if dedupe {
		if err := s.completeIdempotencyKey(ctx, key, res.LogID); err != nil {
			s.logger.Warn(ctx, "store idempotency key", slog.Error(err))
		}
	}

	s.metrics.usageLogged.WithLabelValues(req.ServiceName).Inc()
	if res.ServiceRaced {
		s.metrics.serviceRaces.Inc()
	}
	writeJSON(w, http.StatusOK, logUsageResponse{Success: true, LogID: res.LogID})
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := db.UsageSince(q.Get("period"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	filter := db.UsageFilter{
		Since:    since,
		DeviceID: optionalParam(q.Get("deviceId")),
		UserID:   optionalParam(q.Get("userId")),
	}
	if raw := q.Get("serviceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeFieldErrors(w, fieldError{Field: "serviceId", Detail: "must be an integer"})
			return
		}
		filter.ServiceID = &id
	}

	stats, err := s.store.Stats(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, "usage stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := db.UsageSince(q.Get("period"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}

	summary, err := s.store.Summary(r.Context(), since, optionalParam(q.Get("userId")))
	if err != nil {
		s.serverError(w, r, "usage summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUsageMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fields []fieldError
	userID := q.Get("userId")
	if userID == "" {
		fields = append(fields, fieldError{Field: "userId", Detail: "required"})
	}
	// Year and month default to the current UTC month.
	now := s.now().UTC()
	year, month := now.Year(), int(now.Month())
	var err error
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			fields = append(fields, fieldError{Field: "year", Detail: "must be an integer"})
		}
	}
	if v := q.Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			fields = append(fields, fieldError{Field: "month", Detail: "must be an integer"})
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields...)
		return
	}

	from, to, err := db.MonthRange(year, time.Month(month))
	if err != nil {
		writeFieldErrors(w, fieldError{Field: "month", Detail: "out of range"})
		return
	}
	days, err := s.store.Monthly(r.Context(), userID, from, to)
	if err != nil {
		s.serverError(w, r, "monthly usage", err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
