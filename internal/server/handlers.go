package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/webhook"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20 // 1MB

// handleWebhook is the ingestion endpoint: verify the delivery signature,
// apply exactly one store mutation, acknowledge. Analysis runs downstream
// of the dispatcher and never affects the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	evt, err := s.verifier.Verify(body, r.Header)
	if err != nil {
		if errors.Is(err, webhook.ErrMissingHeaders) {
			writeError(w, http.StatusBadRequest, "missing webhook headers")
			return
		}
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Webhook verification failed")
		writeError(w, http.StatusBadRequest, "webhook verification failed")
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), evt); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("type", evt.Type).Msg("Failed to process webhook")
		writeError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook received and processed"})
}

type fetchSessionRequest struct {
	UserID string `json:"userId"`
}

type fetchSessionResponse struct {
	UserID   string                  `json:"userId"`
	Sessions []*models.SessionRecord `json:"sessions"`
}

// handleFetchSession returns the caller's current session snapshot.
func (s *Server) handleFetchSession(w http.ResponseWriter, r *http.Request) {
	var req fetchSessionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := s.sessions.ListByUser(r.Context(), req.UserID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("user_id", req.UserID).Msg("Failed to fetch sessions")
		writeError(w, http.StatusInternalServerError, "failed to fetch session data")
		return
	}

	if sessions == nil {
		sessions = []*models.SessionRecord{}
	}

	writeJSON(w, http.StatusOK, fetchSessionResponse{
		UserID:   req.UserID,
		Sessions: sessions,
	})
}

type profileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email"`
}

// handleProfile upserts the caller's account profile. Role always defaults;
// it is never recomputed here.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	profile := &models.UserProfile{
		Name:   req.Name,
		Avatar: req.Avatar,
		Email:  req.Email,
		Role:   models.DefaultProfileRole,
	}

	if err := s.profiles.Put(r.Context(), profile); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("email", req.Email).Msg("Failed to save profile")
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "profile saved"})
}

// handleAnalysis schedules an analysis pass out of band.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	s.trigger.TriggerAnalysis()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "analysis scheduled"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
