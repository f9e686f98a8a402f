package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/repository"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

// SessionService handles session creation and membership-gated reads. All
// state transitions after creation go through the step, turn, presence and
// note services.
type SessionService struct {
	store    store.Store
	sessions repository.SessionRepository
	couples  repository.CoupleRepository
}

func NewSessionService(st store.Store, sessions repository.SessionRepository, couples repository.CoupleRepository) *SessionService {
	return &SessionService{
		store:    st,
		sessions: sessions,
		couples:  couples,
	}
}

// Create starts a new not_started session for the requester's couple.
func (s *SessionService) Create(ctx context.Context, requesterID, coupleID string, turnBasedMode bool) (*model.CheckinSession, error) {
	couple, err := s.couples.FindByID(ctx, coupleID)
	if err != nil {
		return nil, err
	}
	if couple == nil {
		return nil, apperrors.NotFound("Couple")
	}
	if !couple.HasPartner(requesterID) {
		return nil, apperrors.Forbidden("You are not a member of this couple")
	}

	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		CoupleID:      coupleID,
		TurnBasedMode: turnBasedMode,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("coupleId", coupleID).
		Str("createdBy", requesterID).
		Bool("turnBasedMode", turnBasedMode).
		Msg("checkin session created")

	return session, nil
}

// Get returns the session if the requester belongs to its couple.
func (s *SessionService) Get(ctx context.Context, sessionID, requesterID string) (*model.CheckinSession, error) {
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	couple, err := s.couples.FindByID(ctx, session.CoupleID)
	if err != nil {
		return nil, err
	}
	if couple == nil || !couple.HasPartner(requesterID) {
		return nil, apperrors.Unauthorized("You are not a participant in this session")
	}

	return session, nil
}

// ListForCouple returns the couple's sessions, newest first.
func (s *SessionService) ListForCouple(ctx context.Context, requesterID, coupleID string, limit, offset int) ([]model.CheckinSession, error) {
	couple, err := s.couples.FindByID(ctx, coupleID)
	if err != nil {
		return nil, err
	}
	if couple == nil || !couple.HasPartner(requesterID) {
		return nil, apperrors.Forbidden("You are not a member of this couple")
	}

	return s.sessions.FindByCoupleID(ctx, coupleID, limit, offset)
}

// ListNotes returns the session's notes the requester is allowed to see.
// Private and draft notes only show up for their author.
func (s *SessionService) ListNotes(ctx context.Context, sessionID, requesterID string) ([]model.Note, error) {
	if _, err := s.Get(ctx, sessionID, requesterID); err != nil {
		return nil, err
	}

	notes, err := s.store.ListNotes(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Note, 0, len(notes))
	for _, note := range notes {
		if note.VisibleTo(requesterID) {
			visible = append(visible, note)
		}
	}
	return visible, nil
}
