package gamification

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/middleware"
	"github.com/learnquest/backend/internal/models"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// ── Progress ────────────────────────────────────────────

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.Progress(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "Failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Topic Mastery ───────────────────────────────────────

func (h *Handler) GetMastery(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.Mastery(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "Failed to get topic mastery")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Helpers ─────────────────────────────────────────────

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.log.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
