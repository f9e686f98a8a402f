// Package store is the single source of truth for check-in session state.
// Every component mutates sessions and their notes exclusively through
// Mutate/MutateNote, which enforce the single-writer-per-session discipline:
// an in-process keyed mutex in front of a transaction that re-reads the row
// under a FOR UPDATE lock. Operations on different sessions never contend.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tandem-app/checkin-server-go/internal/database"
	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/repository"
)

// Store owns all session and session-scoped note state.
type Store interface {
	Load(ctx context.Context, sessionID string) (*model.CheckinSession, error)
	// Mutate applies fn to the session atomically. Concurrent calls for the
	// same session serialize; a completed session rejects fn with
	// SessionClosed before it runs.
	Mutate(ctx context.Context, sessionID string, fn func(session *model.CheckinSession) error) (*model.CheckinSession, error)

	CreateNote(ctx context.Context, sessionID string, params model.CreateNoteParams) (*model.Note, error)
	LoadNote(ctx context.Context, sessionID, noteID string) (*model.Note, error)
	// MutateNote applies fn to a note under the owning session's write lock.
	MutateNote(ctx context.Context, sessionID, noteID string, fn func(session *model.CheckinSession, note *model.Note) error) (*model.Note, error)
	ListNotes(ctx context.Context, sessionID string) ([]model.Note, error)
}

type sqlStore struct {
	db       *database.DB
	sessions repository.SessionRepository
	notes    repository.NoteRepository
	locks    *keyedMutex
}

func New(db *database.DB, sessions repository.SessionRepository, notes repository.NoteRepository) Store {
	return &sqlStore{
		db:       db,
		sessions: sessions,
		notes:    notes,
		locks:    newKeyedMutex(),
	}
}

func (s *sqlStore) Load(ctx context.Context, sessionID string) (*model.CheckinSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

func (s *sqlStore) Mutate(ctx context.Context, sessionID string, fn func(session *model.CheckinSession) error) (*model.CheckinSession, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var out *model.CheckinSession
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.sessions.WithTx(tx)

		session, err := repo.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			return apperrors.NotFound("Session")
		}
		if session.Status == model.SessionStatusCompleted {
			return apperrors.SessionClosed()
		}

		if err := fn(session); err != nil {
			return err
		}

		session.UpdatedAt = time.Now().UTC()
		if err := repo.Save(ctx, session); err != nil {
			return apperrors.Database(err)
		}

		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) CreateNote(ctx context.Context, sessionID string, params model.CreateNoteParams) (*model.Note, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var out *model.Note
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessionRepo := s.sessions.WithTx(tx)

		session, err := sessionRepo.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			return apperrors.NotFound("Session")
		}
		if session.Status == model.SessionStatusCompleted {
			return apperrors.SessionClosed()
		}

		params.SessionID = session.ID
		params.CoupleID = session.CoupleID

		note, err := s.notes.WithTx(tx).Create(ctx, params)
		if err != nil {
			return apperrors.Database(err)
		}

		out = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) LoadNote(ctx context.Context, sessionID, noteID string) (*model.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if note == nil || note.SessionID != sessionID {
		return nil, apperrors.NotFound("Note")
	}
	return note, nil
}

func (s *sqlStore) MutateNote(ctx context.Context, sessionID, noteID string, fn func(session *model.CheckinSession, note *model.Note) error) (*model.Note, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var out *model.Note
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		session, err := s.sessions.WithTx(tx).FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			return apperrors.NotFound("Session")
		}
		if session.Status == model.SessionStatusCompleted {
			return apperrors.SessionClosed()
		}

		noteRepo := s.notes.WithTx(tx)
		note, err := noteRepo.FindByIDForUpdate(ctx, noteID)
		if err != nil {
			return apperrors.Database(err)
		}
		if note == nil || note.SessionID != sessionID {
			return apperrors.NotFound("Note")
		}

		if err := fn(session, note); err != nil {
			return err
		}

		note.UpdatedAt = time.Now().UTC()
		if err := noteRepo.Save(ctx, note); err != nil {
			return apperrors.Database(err)
		}

		out = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) ListNotes(ctx context.Context, sessionID string) ([]model.Note, error) {
	notes, err := s.notes.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return notes, nil
}
