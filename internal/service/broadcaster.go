package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/event"
)

// Broadcaster fans one session's events out to its subscribers. The SSE
// broker implements it; it is an explicit constructed dependency of every
// service rather than shared module state.
type Broadcaster interface {
	Publish(ctx context.Context, sessionID string, e event.Event) error
}

// publish logs and swallows broadcast failures: a mutation that already
// committed must not be reported as failed because fan-out hiccuped.
func publish(ctx context.Context, b Broadcaster, sessionID string, e event.Event) {
	if err := b.Publish(ctx, sessionID, e); err != nil {
		log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Str("eventType", string(e.EventType())).
			Msg("failed to publish session event")
	}
}
