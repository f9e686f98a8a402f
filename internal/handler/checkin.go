package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/middleware"
	"github.com/tandem-app/checkin-server-go/internal/service"
)

const defaultListLimit = 20

type CheckinHandler struct {
	sessionService *service.SessionService
}

func NewCheckinHandler(sessionService *service.SessionService) *CheckinHandler {
	return &CheckinHandler{
		sessionService: sessionService,
	}
}

func (h *CheckinHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)
	r.Get("/{sessionID}", h.GetSession)
	r.Get("/{sessionID}/notes", h.ListNotes)

	return r
}

type createSessionRequest struct {
	CoupleID      string `json:"coupleId"`
	TurnBasedMode bool   `json:"turnBasedMode"`
}

// POST /v1/checkins
func (h *CheckinHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	coupleID := req.CoupleID
	if coupleID == "" {
		coupleID = participant.CoupleID
	}

	session, err := h.sessionService.Create(r.Context(), participant.ID, coupleID, req.TurnBasedMode)
	if err != nil {
		log.Error().Err(err).Str("participantId", participant.ID).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// GET /v1/checkins
func (h *CheckinHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())

	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.sessionService.ListForCouple(r.Context(), participant.ID, participant.CoupleID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /v1/checkins/{sessionID}
func (h *CheckinHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessionService.Get(r.Context(), sessionID, participant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /v1/checkins/{sessionID}/notes
func (h *CheckinHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	notes, err := h.sessionService.ListNotes(r.Context(), sessionID, participant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
