package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

// errLockSuperseded marks a TTL expiry that found the lock already released
// or re-taken; the expiry is then a no-op with no event.
var errLockSuperseded = errors.New("lock superseded")

const lockExpiryTimeout = 10 * time.Second

// NoteService is the note synchronization engine: optimistic versioned
// create/update plus exclusive edit locks with deferred TTL release. Updates
// never merge; a stale version gets the authoritative state back and nothing
// changes.
type NoteService struct {
	store       store.Store
	broadcaster Broadcaster
	lockTTL     time.Duration
	now         func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer // noteID -> pending TTL release
}

func NewNoteService(st store.Store, broadcaster Broadcaster, lockTTL time.Duration) *NoteService {
	return &NoteService{
		store:       st,
		broadcaster: broadcaster,
		lockTTL:     lockTTL,
		now:         func() time.Time { return time.Now().UTC() },
		timers:      make(map[string]*time.Timer),
	}
}

// Create persists a synchronized note at version 0.
func (s *NoteService) Create(ctx context.Context, sessionID, authorID, content string, privacy model.NotePrivacy, categoryID *string) (*model.Note, error) {
	if privacy == "" {
		privacy = model.NotePrivacyShared
	}
	if !privacy.Valid() {
		return nil, apperrors.InvalidInput("privacy", "unknown privacy "+string(privacy))
	}

	note, err := s.store.CreateNote(ctx, sessionID, model.CreateNoteParams{
		CategoryID:   categoryID,
		AuthorID:     authorID,
		Content:      content,
		Privacy:      privacy,
		Synchronized: true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("noteId", note.ID).
		Str("authorId", authorID).
		Str("privacy", string(privacy)).
		Msg("note created")

	publish(ctx, s.broadcaster, sessionID, event.NoteCreated{Note: *note})

	return note, nil
}

// Update applies new content iff observedVersion matches the stored version.
// On mismatch the caller gets a VersionConflict with the current content and
// version; the note is untouched.
func (s *NoteService) Update(ctx context.Context, sessionID, requesterID, noteID, content string, observedVersion int) (*model.Note, error) {
	note, err := s.store.MutateNote(ctx, sessionID, noteID, func(_ *model.CheckinSession, n *model.Note) error {
		if n.Version != observedVersion {
			return apperrors.VersionConflict(n.ID, n.Version, n.Content)
		}

		n.Content = content
		n.Version++
		n.LastEditedBy = &requesterID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("noteId", noteID).
		Str("editedBy", requesterID).
		Int("version", note.Version).
		Msg("note updated")

	publish(ctx, s.broadcaster, sessionID, event.NoteUpdated{Note: *note})

	return note, nil
}

// Lock takes the exclusive edit lock and schedules its TTL release. Taking a
// lock already held by the requester refreshes it.
func (s *NoteService) Lock(ctx context.Context, sessionID, requesterID, noteID string) (*model.Note, error) {
	// Postgres timestamptz keeps microseconds; the acquisition time must
	// survive the round trip intact or the scheduled expiry would never
	// match it.
	now := s.now().Truncate(time.Microsecond)

	note, err := s.store.MutateNote(ctx, sessionID, noteID, func(_ *model.CheckinSession, n *model.Note) error {
		if n.LockedByOther(requesterID) {
			return apperrors.AlreadyLocked(n.ID, *n.LockedBy)
		}

		n.LockedBy = &requesterID
		n.LockedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("noteId", noteID).
		Str("lockedBy", requesterID).
		Time("expiresAt", now.Add(s.lockTTL)).
		Msg("note locked")

	publish(ctx, s.broadcaster, sessionID, event.NoteLocked{
		NoteID: noteID,
		By:     requesterID,
		Until:  now.Add(s.lockTTL),
	})

	s.scheduleExpiry(sessionID, noteID, requesterID, now)

	return note, nil
}

// Unlock releases the lock; only the holder may do so. The pending TTL timer
// is cancelled, and even if it already fired it finds nothing to release.
func (s *NoteService) Unlock(ctx context.Context, sessionID, requesterID, noteID string) (*model.Note, error) {
	note, err := s.store.MutateNote(ctx, sessionID, noteID, func(_ *model.CheckinSession, n *model.Note) error {
		if n.LockedBy == nil {
			return apperrors.InvalidState("Note is not locked")
		}
		if *n.LockedBy != requesterID {
			return apperrors.AlreadyLocked(n.ID, *n.LockedBy)
		}

		n.LockedBy = nil
		n.LockedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cancelExpiry(noteID)

	log.Info().
		Str("sessionId", sessionID).
		Str("noteId", noteID).
		Str("unlockedBy", requesterID).
		Msg("note unlocked")

	publish(ctx, s.broadcaster, sessionID, event.NoteUnlocked{NoteID: noteID})

	return note, nil
}

func (s *NoteService) scheduleExpiry(sessionID, noteID, holderID string, lockedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[noteID]; ok {
		timer.Stop()
	}
	s.timers[noteID] = time.AfterFunc(s.lockTTL, func() {
		s.expireLock(sessionID, noteID, holderID, lockedAt)
	})
}

func (s *NoteService) cancelExpiry(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[noteID]; ok {
		timer.Stop()
		delete(s.timers, noteID)
	}
}

// expireLock clears the lock only if it is still the exact lock that was
// scheduled (same holder, same acquisition time). Anything else means the
// lock was explicitly released or re-taken and the expiry is a no-op, so an
// explicit unlock racing the timer is always safe.
func (s *NoteService) expireLock(sessionID, noteID, holderID string, lockedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), lockExpiryTimeout)
	defer cancel()

	s.cancelExpiry(noteID)

	_, err := s.store.MutateNote(ctx, sessionID, noteID, func(_ *model.CheckinSession, n *model.Note) error {
		if n.LockedBy == nil || *n.LockedBy != holderID || n.LockedAt == nil || !n.LockedAt.Equal(lockedAt) {
			return errLockSuperseded
		}

		n.LockedBy = nil
		n.LockedAt = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, errLockSuperseded) || apperrors.GetCode(err) == apperrors.ErrCodeSessionClosed {
			return
		}
		log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Str("noteId", noteID).
			Msg("failed to expire note lock")
		return
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("noteId", noteID).
		Str("holderId", holderID).
		Msg("note lock expired")

	publish(ctx, s.broadcaster, sessionID, event.NoteUnlocked{NoteID: noteID})
}

// Close stops all pending lock timers. The cleanup job picks up anything
// still locked after a restart.
func (s *NoteService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for noteID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, noteID)
	}
}
