package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

// TurnService arbitrates the exclusive turn token of turn-based sessions.
// Requests never queue: the caller gets a grant or a denial immediately.
type TurnService struct {
	store       store.Store
	broadcaster Broadcaster
	now         func() time.Time
}

func NewTurnService(st store.Store, broadcaster Broadcaster) *TurnService {
	return &TurnService{
		store:       st,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CanModify reports whether participantID may run step-mutating commands:
// always in free-form mode, holder-only in turn-based mode. An unheld token
// does not block anyone, otherwise a paused turn-based session could never be
// resumed after the pause cleared the holder.
func CanModify(session *model.CheckinSession, participantID string) bool {
	if !session.TurnBasedMode {
		return true
	}
	if session.CurrentTurnHolder == nil {
		return true
	}
	return session.HoldsTurn(participantID)
}

// RequestTurn grants the token iff it is free or already held by the caller.
// A denial carries the current holder back to the requester and is not
// broadcast.
func (s *TurnService) RequestTurn(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	now := s.now()

	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if !sess.TurnBasedMode {
			return apperrors.InvalidState("Session is not in turn-based mode")
		}
		if sess.Status != model.SessionStatusInProgress {
			return apperrors.InvalidState("Session is not in progress")
		}
		if sess.CurrentTurnHolder != nil && *sess.CurrentTurnHolder != participantID {
			return apperrors.TurnDenied(*sess.CurrentTurnHolder)
		}

		sess.CurrentTurnHolder = &participantID
		sess.TurnStartedAt = &now
		sess.LastActivityAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("holderId", participantID).
		Msg("turn granted")

	publish(ctx, s.broadcaster, sessionID, event.TurnChanged{
		HolderID: participantID,
		Since:    now,
	})

	return session, nil
}

// ReleaseTurn clears the token; only the holder may release it.
func (s *TurnService) ReleaseTurn(ctx context.Context, sessionID, participantID string) (*model.CheckinSession, error) {
	session, err := s.store.Mutate(ctx, sessionID, func(sess *model.CheckinSession) error {
		if !sess.TurnBasedMode {
			return apperrors.InvalidState("Session is not in turn-based mode")
		}
		if !sess.HoldsTurn(participantID) {
			return apperrors.InvalidState("Participant does not hold the turn")
		}

		sess.CurrentTurnHolder = nil
		sess.TurnStartedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Msg("turn released")

	publish(ctx, s.broadcaster, sessionID, event.TurnReleased{By: participantID})

	return session, nil
}
