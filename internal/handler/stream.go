package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/middleware"
	"github.com/tandem-app/checkin-server-go/internal/service"
	"github.com/tandem-app/checkin-server-go/internal/sse"
)

const leaveTimeout = 10 * time.Second

// EventStream is the subscription side of the SSE broker.
type EventStream interface {
	Subscribe(sessionID, participantID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// StreamHandler serves the per-session SSE stream. Subscribing is joining:
// presence is tied to the connection, so stream teardown is the one and only
// leave signal.
type StreamHandler struct {
	stream          EventStream
	presenceService *service.PresenceService
	sessionService  *service.SessionService
}

func NewStreamHandler(stream EventStream, presenceService *service.PresenceService, sessionService *service.SessionService) *StreamHandler {
	return &StreamHandler{
		stream:          stream,
		presenceService: presenceService,
		sessionService:  sessionService,
	}
}

// GET /v1/checkins/{sessionID}/events
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	session, err := h.presenceService.Join(r.Context(), sessionID, participant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	notes, err := h.sessionService.ListNotes(r.Context(), sessionID, participant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.stream.Subscribe(sessionID, participant.ID)
	defer func() {
		h.stream.Unsubscribe(client)

		// The request context is already canceled by the time the stream
		// tears down.
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := h.presenceService.Leave(ctx, sessionID, participant.ID); err != nil {
			log.Error().
				Err(err).
				Str("sessionId", sessionID).
				Str("participantId", participant.ID).
				Msg("failed to record participant leave")
		}
	}()

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participant.ID).
		Msg("sse connection established")

	h.sendEvent(w, flusher, "connected", map[string]any{
		"session": session,
		"notes":   notes,
	})

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", sessionID).
				Str("participantId", participant.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("sessionId", sessionID).
				Str("participantId", participant.ID).
				Msg("sse connection closed by broker")
			return

		case env := <-client.Events:
			if err := h.sendRawEvent(w, flusher, env); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", sessionID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, event.Envelope{Type: event.Type(eventType), Data: jsonData})
}

func (h *StreamHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, env event.Envelope) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", env.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", env.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
