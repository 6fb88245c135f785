package http

import (
	"net/http"
	"strconv"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.serverError(w, r, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleSuggestTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var age *int
	if raw := q.Get("age"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeFieldErrors(w, fieldError{Field: "age", Detail: "must be a non-negative integer"})
			return
		}
		age = &n
	}

	tasks, err := s.store.SuggestTasks(r.Context(), db.TaskFilter{
		AgeGroups:  db.AgeGroups(age),
		Difficulty: optionalParam(q.Get("difficulty")),
		Category:   optionalParam(q.Get("category")),
	})
	if err != nil {
		s.serverError(w, r, "suggest tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
