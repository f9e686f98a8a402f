package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/command"
	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/middleware"
	"github.com/tandem-app/checkin-server-go/internal/service"
)

// CommandHandler accepts session commands over HTTP. Broadcast effects fan
// out on the event stream; the HTTP response carries the caller's own
// outcome, including turn denials and edit conflicts with their
// reconciliation details.
type CommandHandler struct {
	presenceService *service.PresenceService
	turnService     *service.TurnService
	stepService     *service.StepService
	noteService     *service.NoteService
}

func NewCommandHandler(
	presenceService *service.PresenceService,
	turnService *service.TurnService,
	stepService *service.StepService,
	noteService *service.NoteService,
) *CommandHandler {
	return &CommandHandler{
		presenceService: presenceService,
		turnService:     turnService,
		stepService:     stepService,
		noteService:     noteService,
	}
}

// POST /v1/checkins/{sessionID}/commands
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.ValidationError("Failed to read request body"))
		return
	}

	cmd, err := command.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.presenceService.Authorize(ctx, sessionID, participant.ID); err != nil {
		writeError(w, err)
		return
	}

	log.Debug().
		Str("sessionId", sessionID).
		Str("participantId", participant.ID).
		Str("commandType", string(cmd.CommandType())).
		Msg("command received")

	var result any

	switch c := cmd.(type) {
	case command.RequestTurn:
		result, err = h.turnService.RequestTurn(ctx, sessionID, participant.ID)
	case command.ReleaseTurn:
		result, err = h.turnService.ReleaseTurn(ctx, sessionID, participant.ID)
	case command.AdvanceStep:
		result, err = h.stepService.AdvanceStep(ctx, sessionID, participant.ID, c.Step)
	case command.CompleteStep:
		result, err = h.stepService.CompleteStep(ctx, sessionID, participant.ID)
	case command.StartSession:
		result, err = h.stepService.Start(ctx, sessionID, participant.ID)
	case command.PauseSession:
		result, err = h.stepService.Pause(ctx, sessionID, participant.ID, c.ElapsedSeconds)
	case command.ResumeSession:
		result, err = h.stepService.Resume(ctx, sessionID, participant.ID)
	case command.CompleteSession:
		result, err = h.stepService.Complete(ctx, sessionID, participant.ID, c.Summary)
	case command.CreateNote:
		result, err = h.noteService.Create(ctx, sessionID, participant.ID, c.Content, c.Privacy, c.CategoryID)
	case command.UpdateNote:
		result, err = h.noteService.Update(ctx, sessionID, participant.ID, c.NoteID, c.Content, c.Version)
	case command.LockNote:
		result, err = h.noteService.Lock(ctx, sessionID, participant.ID, c.NoteID)
	case command.UnlockNote:
		result, err = h.noteService.Unlock(ctx, sessionID, participant.ID, c.NoteID)
	case command.TypingIndicator:
		h.presenceService.Typing(ctx, sessionID, participant.ID, c.Context, c.IsTyping)
		result = map[string]string{"status": "ok"}
	case command.SendReaction:
		h.presenceService.React(ctx, sessionID, participant.ID, c.Emoji)
		result = map[string]string{"status": "ok"}
	default:
		err = apperrors.InvalidInput("type", "unknown command "+string(cmd.CommandType()))
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
