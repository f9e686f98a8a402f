// Package event defines the closed set of outbound session events. Every
// state mutation in the coordinator ends with exactly one publish of one of
// these types; caller-local outcomes (turn denials, edit conflicts) are not
// events, they travel back on the command response.
package event

import (
	"encoding/json"
	"time"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

type Type string

const (
	TypeParticipantJoined Type = "participant_joined"
	TypeParticipantLeft   Type = "participant_left"
	TypeTurnChanged       Type = "turn_changed"
	TypeTurnReleased      Type = "turn_released"
	TypeStepChanged       Type = "step_changed"
	TypeStepCompleted     Type = "step_completed"
	TypeSessionStarted    Type = "session_started"
	TypeSessionPaused     Type = "session_paused"
	TypeSessionResumed    Type = "session_resumed"
	TypeSessionCompleted  Type = "session_completed"
	TypeNoteCreated       Type = "note_created"
	TypeNoteUpdated       Type = "note_updated"
	TypeNoteLocked        Type = "note_locked"
	TypeNoteUnlocked      Type = "note_unlocked"
	TypeTypingIndicator   Type = "typing_indicator"
	TypeReactionReceived  Type = "reaction_received"
)

// Event is implemented by every outbound payload type.
type Event interface {
	EventType() Type
}

// Envelope is the wire form published to subscribers.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Wrap marshals an event into its wire envelope.
func Wrap(e Event) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: e.EventType(), Data: data}, nil
}

type ParticipantJoined struct {
	ParticipantID string    `json:"participantId"`
	JoinedAt      time.Time `json:"joinedAt"`
}

func (ParticipantJoined) EventType() Type { return TypeParticipantJoined }

type ParticipantLeft struct {
	ParticipantID string    `json:"participantId"`
	LeftAt        time.Time `json:"leftAt"`
}

func (ParticipantLeft) EventType() Type { return TypeParticipantLeft }

type TurnChanged struct {
	HolderID string    `json:"holderId"`
	Since    time.Time `json:"since"`
}

func (TurnChanged) EventType() Type { return TypeTurnChanged }

type TurnReleased struct {
	By string `json:"by"`
}

func (TurnReleased) EventType() Type { return TypeTurnReleased }

type StepChanged struct {
	NewStep model.Step `json:"newStep"`
	By      string     `json:"by"`
}

func (StepChanged) EventType() Type { return TypeStepChanged }

type StepCompleted struct {
	Step            model.Step `json:"step"`
	DurationSeconds float64    `json:"durationSeconds"`
	CompletedAt     time.Time  `json:"completedAt"`
}

func (StepCompleted) EventType() Type { return TypeStepCompleted }

type SessionStarted struct {
	By        string    `json:"by"`
	StartedAt time.Time `json:"startedAt"`
}

func (SessionStarted) EventType() Type { return TypeSessionStarted }

type SessionPaused struct {
	By       string    `json:"by"`
	PausedAt time.Time `json:"pausedAt"`
}

func (SessionPaused) EventType() Type { return TypeSessionPaused }

type SessionResumed struct {
	By string `json:"by"`
}

func (SessionResumed) EventType() Type { return TypeSessionResumed }

type SessionCompleted struct {
	By      string               `json:"by"`
	Metrics model.SessionMetrics `json:"metrics"`
}

func (SessionCompleted) EventType() Type { return TypeSessionCompleted }

type NoteCreated struct {
	Note model.Note `json:"note"`
}

func (NoteCreated) EventType() Type { return TypeNoteCreated }

type NoteUpdated struct {
	Note model.Note `json:"note"`
}

func (NoteUpdated) EventType() Type { return TypeNoteUpdated }

type NoteLocked struct {
	NoteID string    `json:"noteId"`
	By     string    `json:"by"`
	Until  time.Time `json:"until"`
}

func (NoteLocked) EventType() Type { return TypeNoteLocked }

type NoteUnlocked struct {
	NoteID string `json:"noteId"`
}

func (NoteUnlocked) EventType() Type { return TypeNoteUnlocked }

type TypingIndicator struct {
	ParticipantID string `json:"participantId"`
	Context       string `json:"context,omitempty"`
	IsTyping      bool   `json:"isTyping"`
}

func (TypingIndicator) EventType() Type { return TypeTypingIndicator }

type ReactionReceived struct {
	Emoji string `json:"emoji"`
	By    string `json:"by"`
}

func (ReactionReceived) EventType() Type { return TypeReactionReceived }
