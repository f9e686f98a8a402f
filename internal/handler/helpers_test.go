package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/middleware"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/service"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

const (
	testSessionID = "session-1"
	testCoupleID  = "couple-1"
	partnerA      = "partner-a"
	partnerB      = "partner-b"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []event.Event
}

func (f *fakeBroadcaster) Publish(_ context.Context, _ string, e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeBroadcaster) types() []event.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeCouples struct {
	couple *model.Couple
}

func (f *fakeCouples) FindByID(_ context.Context, id string) (*model.Couple, error) {
	if f.couple != nil && f.couple.ID == id {
		return f.couple, nil
	}
	return nil, apperrors.NotFound("Couple")
}

// testEnv wires real services over the in-memory store for handler tests.
type testEnv struct {
	mem         *store.Memory
	broadcaster *fakeBroadcaster
	presence    *service.PresenceService
	turns       *service.TurnService
	steps       *service.StepService
	notes       *service.NoteService
	sessions    *service.SessionService
}

func newTestEnv(session *model.CheckinSession) *testEnv {
	mem := store.NewMemory()
	mem.Put(session)

	broadcaster := &fakeBroadcaster{}
	couples := &fakeCouples{couple: &model.Couple{
		ID:         testCoupleID,
		Partner1ID: partnerA,
		Partner2ID: partnerB,
	}}

	return &testEnv{
		mem:         mem,
		broadcaster: broadcaster,
		presence:    service.NewPresenceService(mem, couples, broadcaster),
		turns:       service.NewTurnService(mem, broadcaster),
		steps:       service.NewStepService(mem, broadcaster),
		notes:       service.NewNoteService(mem, broadcaster, 5*time.Minute),
		sessions:    service.NewSessionService(mem, nil, couples),
	}
}

func testSession(status model.SessionStatus, turnBased bool) *model.CheckinSession {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return &model.CheckinSession{
		ID:            testSessionID,
		CoupleID:      testCoupleID,
		Status:        status,
		CurrentStep:   model.StepWelcome,
		TurnBasedMode: turnBased,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// asParticipant injects an authenticated participant the way the auth
// middleware would.
func asParticipant(r *http.Request, participantID string) *http.Request {
	participant := &model.Participant{
		ID:       participantID,
		CoupleID: testCoupleID,
	}
	ctx := context.WithValue(r.Context(), middleware.ParticipantContextKey, participant)
	return r.WithContext(ctx)
}
