package service

import (
	"context"
	"sync"
	"time"

	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

const (
	testSessionID = "session-1"
	testCoupleID  = "couple-1"
	partnerA      = "partner-a"
	partnerB      = "partner-b"
	outsiderID    = "outsider"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// fakeBroadcaster records published events in order.
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

func (f *fakeBroadcaster) published() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Event, len(f.events))
	copy(out, f.events)
	return out
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

// fakeCouples serves only the fixture couple. Unknown ids return (nil, nil),
// matching the repository contract.
type fakeCouples struct {
	couple *model.Couple
}

func (f *fakeCouples) FindByID(_ context.Context, id string) (*model.Couple, error) {
	if f.couple != nil && f.couple.ID == id {
		return f.couple, nil
	}
	return nil, nil
}

func testCouple() *model.Couple {
	return &model.Couple{
		ID:         testCoupleID,
		Partner1ID: partnerA,
		Partner2ID: partnerB,
		CreatedAt:  baseTime,
	}
}

func testSession(status model.SessionStatus, turnBased bool) *model.CheckinSession {
	return &model.CheckinSession{
		ID:            testSessionID,
		CoupleID:      testCoupleID,
		Status:        status,
		CurrentStep:   model.StepWelcome,
		TurnBasedMode: turnBased,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

func seededMemory(session *model.CheckinSession) *store.Memory {
	mem := store.NewMemory()
	mem.Put(session)
	return mem
}
