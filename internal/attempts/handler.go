package attempts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

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

// Routes mounts the attempt endpoints for both assessment kinds on an
// authenticated router.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/quizzes/{id}/attempts", h.Start(models.KindQuiz)).Methods("POST")
	r.HandleFunc("/practice-tests/{id}/attempts", h.Start(models.KindPracticeTest)).Methods("POST")
	r.HandleFunc("/quiz-attempts/{id}/submit", h.Submit(models.KindQuiz)).Methods("POST")
	r.HandleFunc("/practice-test-attempts/{id}/submit", h.Submit(models.KindPracticeTest)).Methods("POST")
	r.HandleFunc("/quiz-attempts/{id}", h.Get(models.KindQuiz)).Methods("GET")
	r.HandleFunc("/practice-test-attempts/{id}", h.Get(models.KindPracticeTest)).Methods("GET")
}

// ── Start ───────────────────────────────────────────────

func (h *Handler) Start(kind models.AttemptKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		resp, err := h.service.Start(r.Context(), kind, userID, id)
		if err != nil {
			h.writeError(w, err, "Failed to start attempt")
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// ── Submit ──────────────────────────────────────────────

func (h *Handler) Submit(kind models.AttemptKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req models.SubmitAttemptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
			return
		}

		resp, err := h.service.Submit(r.Context(), kind, userID, id, req)
		if err != nil {
			h.writeError(w, err, "Failed to submit attempt")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ── Get ─────────────────────────────────────────────────

func (h *Handler) Get(kind models.AttemptKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		resp, err := h.service.Get(r.Context(), kind, userID, id)
		if err != nil {
			h.writeError(w, err, "Failed to get attempt")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ── Helpers ─────────────────────────────────────────────

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: verr.Message, QuestionIDs: verr.QuestionIDs})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error(msg, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
