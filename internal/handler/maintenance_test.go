package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tandem-app/checkin-server-go/internal/jobs"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/repository"
)

type sweepSessionRepo struct {
	mu    sync.Mutex
	calls int
}

func (m *sweepSessionRepo) FindByID(context.Context, string) (*model.CheckinSession, error) {
	return nil, nil
}

func (m *sweepSessionRepo) FindByIDForUpdate(context.Context, string) (*model.CheckinSession, error) {
	return nil, nil
}

func (m *sweepSessionRepo) FindByCoupleID(context.Context, string, int, int) ([]model.CheckinSession, error) {
	return nil, nil
}

func (m *sweepSessionRepo) Create(context.Context, model.CreateSessionParams) (*model.CheckinSession, error) {
	return nil, nil
}

func (m *sweepSessionRepo) Save(context.Context, *model.CheckinSession) error { return nil }

func (m *sweepSessionRepo) DeleteStaleNotStarted(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return 0, nil
}

func (m *sweepSessionRepo) WithTx(*sqlx.Tx) repository.SessionRepository { return m }

type sweepNoteRepo struct {
	mu    sync.Mutex
	calls int
}

func (m *sweepNoteRepo) FindByID(context.Context, string) (*model.Note, error) { return nil, nil }

func (m *sweepNoteRepo) FindByIDForUpdate(context.Context, string) (*model.Note, error) {
	return nil, nil
}

func (m *sweepNoteRepo) FindBySessionID(context.Context, string) ([]model.Note, error) {
	return nil, nil
}

func (m *sweepNoteRepo) Create(context.Context, model.CreateNoteParams) (*model.Note, error) {
	return nil, nil
}

func (m *sweepNoteRepo) Save(context.Context, *model.Note) error { return nil }

func (m *sweepNoteRepo) ClearExpiredLocks(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return 0, nil
}

func (m *sweepNoteRepo) WithTx(*sqlx.Tx) repository.NoteRepository { return m }

func TestMaintenanceSweep(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sweep-now"), bcrypt.MinCost)
	require.NoError(t, err)

	newHandler := func(passwordHash string) (*MaintenanceHandler, *sweepNoteRepo) {
		notes := &sweepNoteRepo{}
		job := jobs.NewCleanupJob(&sweepSessionRepo{}, notes, 5*time.Minute, time.Hour)
		return NewMaintenanceHandler(job, passwordHash), notes
	}

	post := func(handler *MaintenanceHandler, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/maintenance/sweep", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Sweep(rec, req)
		return rec
	}

	t.Run("runs the sweep with the right password", func(t *testing.T) {
		handler, notes := newHandler(string(hash))

		rec := post(handler, `{"password":"sweep-now"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, notes.calls)
	})

	t.Run("rejects the wrong password", func(t *testing.T) {
		handler, notes := newHandler(string(hash))

		rec := post(handler, `{"password":"guess"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, notes.calls)
	})

	t.Run("disabled without a configured hash", func(t *testing.T) {
		handler, notes := newHandler("")

		rec := post(handler, `{"password":"sweep-now"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, notes.calls)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler, _ := newHandler(string(hash))

		rec := post(handler, `{broken`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
