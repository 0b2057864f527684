package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"rangeday-service/internal/app"
	"rangeday-service/internal/domain"
)

// Handler exposes the game engine over JSON.
type Handler struct {
	service *app.GameService
	logger  *zap.Logger
}

func NewHandler(service *app.GameService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires the REST routes onto a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/game/start", h.Start)
	mux.HandleFunc("/api/game/answer", h.Answer)
	mux.HandleFunc("/api/game/finalize", h.Finalize)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
}

type startRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type answerRequest struct {
	SessionID  string   `json:"sessionId"`
	QuestionID string   `json:"questionId"`
	Lower      *float64 `json:"lower"`
	Upper      *float64 `json:"upper"`
}

type finalizeRequest struct {
	SessionID string `json:"sessionId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.Start(r.Context(), req.UserID, req.DisplayName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}
	if req.Lower == nil || req.Upper == nil {
		writeError(w, http.StatusBadRequest, "lower and upper bounds are required")
		return
	}
	if err := h.service.SubmitAnswer(r.Context(), req.SessionID, req.QuestionID, *req.Lower, *req.Upper); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	result, err := h.service.Finalize(r.Context(), req.SessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Leaderboard serves the session-independent read path:
// type=overall ranks personal-best days, type=best-guesses shows today's
// winning answer per question.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch r.URL.Query().Get("type") {
	case "", "overall":
		rows, err := h.service.OverallLeaderboard(r.Context(), r.URL.Query().Get("userId"))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case "best-guesses":
		best, err := h.service.BestGuesses(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, best)
	default:
		writeError(w, http.StatusBadRequest, "unknown leaderboard type")
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var consistency *domain.ConsistencyError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrNoQuestions):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionFinalized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &consistency):
		h.logger.Error("finalize consistency failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
