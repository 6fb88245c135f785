package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/auth"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/crypto"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Name     *string `json:"name"`
	Age      *int    `json:"age" validate:"omitempty,gte=0,lte=150"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Success bool    `json:"success"`
	UserID  string  `json:"userId"`
	Email   string  `json:"email"`
	Name    *string `json:"name"`
	Age     *int    `json:"age"`
	Token   string  `json:"token"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Age       *int      `json:"age"`
	CreatedAt time.Time `json:"created_at"`
}

type updateProfileRequest struct {
	ID   string  `json:"id" validate:"required"`
	Name *string `json:"name"`
	Age  *int    `json:"age" validate:"omitempty,gte=0,lte=150"`
}

type updateProfileResponse struct {
	Success bool           `json:"success"`
	Profile db.UserProfile `json:"profile"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !readJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.serverError(w, r, "hash password", err)
		return
	}
	profile, err := s.store.CreateProfile(r.Context(), db.UserProfile{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		Age:          req.Age,
	})
	if db.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "email_registered")
		return
	}
	if err != nil {
		s.serverError(w, r, "create profile", err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Success: true,
		UserID:  profile.ID,
		Email:   profile.Email,
		Message: "User registered successfully",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}

	profile, err := s.store.GetProfileByEmail(r.Context(), normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		s.serverError(w, r, "load profile", err)
		return
	}
	if err := crypto.CheckPassword(profile.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: profile.ID,
		Email:  profile.Email,
	})
	if err != nil {
		s.serverError(w, r, "sign token", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		UserID:  profile.ID,
		Email:   profile.Email,
		Name:    profile.Name,
		Age:     profile.Age,
		Token:   token,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.loadProfile(w, r, chi.URLParam(r, "userId"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		Name:      profile.Name,
		Age:       profile.Age,
		CreatedAt: profile.CreatedAt,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.loadProfile(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !readJSON(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())
	if claims == nil || claims.UserID != req.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	profile, err := s.store.UpdateProfile(r.Context(), req.ID, req.Name, req.Age)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if err != nil {
		s.serverError(w, r, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, updateProfileResponse{Success: true, Profile: profile})
}

func (s *Server) loadProfile(w http.ResponseWriter, r *http.Request, id string) (db.UserProfile, bool) {
	profile, err := s.store.GetProfile(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found")
		return db.UserProfile{}, false
	}
	if err != nil {
		s.serverError(w, r, "load profile", err)
		return db.UserProfile{}, false
	}
	return profile, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
