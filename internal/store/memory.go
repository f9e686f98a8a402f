package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/model"
)

// Memory is an in-memory Store with the same serialization discipline as the
// SQL store. It backs service and handler tests, where spinning up Postgres
// would test the driver rather than the coordinator.
type Memory struct {
	mu       sync.Mutex
	locks    *keyedMutex
	sessions map[string]*model.CheckinSession
	notes    map[string]*model.Note
	noteSeq  int
}

func NewMemory() *Memory {
	return &Memory{
		locks:    newKeyedMutex(),
		sessions: make(map[string]*model.CheckinSession),
		notes:    make(map[string]*model.Note),
	}
}

// Put seeds a session.
func (m *Memory) Put(session *model.CheckinSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
}

func (m *Memory) Load(_ context.Context, sessionID string) (*model.CheckinSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("Session")
	}
	copied := *session
	return &copied, nil
}

func (m *Memory) Mutate(_ context.Context, sessionID string, fn func(session *model.CheckinSession) error) (*model.CheckinSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	m.mu.Lock()
	stored, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, apperrors.NotFound("Session")
	}
	working := *stored
	m.mu.Unlock()

	if working.Status == model.SessionStatusCompleted {
		return nil, apperrors.SessionClosed()
	}

	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.sessions[sessionID] = &working
	m.mu.Unlock()

	copied := working
	return &copied, nil
}

func (m *Memory) CreateNote(_ context.Context, sessionID string, params model.CreateNoteParams) (*model.Note, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("Session")
	}
	if session.Status == model.SessionStatusCompleted {
		return nil, apperrors.SessionClosed()
	}

	m.noteSeq++
	now := time.Now().UTC()
	note := &model.Note{
		ID:           fmt.Sprintf("note-%d", m.noteSeq),
		SessionID:    session.ID,
		CoupleID:     session.CoupleID,
		CategoryID:   params.CategoryID,
		AuthorID:     params.AuthorID,
		Content:      params.Content,
		Privacy:      params.Privacy,
		Synchronized: params.Synchronized,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.notes[note.ID] = note

	copied := *note
	return &copied, nil
}

func (m *Memory) LoadNote(_ context.Context, sessionID, noteID string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	note, ok := m.notes[noteID]
	if !ok || note.SessionID != sessionID {
		return nil, apperrors.NotFound("Note")
	}
	copied := *note
	return &copied, nil
}

func (m *Memory) MutateNote(_ context.Context, sessionID, noteID string, fn func(session *model.CheckinSession, note *model.Note) error) (*model.Note, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, apperrors.NotFound("Session")
	}
	stored, ok := m.notes[noteID]
	if !ok || stored.SessionID != sessionID {
		m.mu.Unlock()
		return nil, apperrors.NotFound("Note")
	}
	workingSession := *session
	workingNote := *stored
	m.mu.Unlock()

	if workingSession.Status == model.SessionStatusCompleted {
		return nil, apperrors.SessionClosed()
	}

	if err := fn(&workingSession, &workingNote); err != nil {
		return nil, err
	}
	workingNote.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.notes[noteID] = &workingNote
	m.mu.Unlock()

	copied := workingNote
	return &copied, nil
}

func (m *Memory) ListNotes(_ context.Context, sessionID string) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notes := []model.Note{}
	for _, note := range m.notes {
		if note.SessionID == sessionID {
			notes = append(notes, *note)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

var _ Store = (*Memory)(nil)
