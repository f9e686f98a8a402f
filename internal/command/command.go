// Package command defines the closed set of inbound client commands. A
// command arrives as a JSON object with a "type" tag plus command-specific
// fields; decoding is exhaustive and unknown types are rejected up front.
package command

import (
	"encoding/json"
	"strings"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/model"
)

type Type string

const (
	TypeRequestTurn     Type = "request_turn"
	TypeReleaseTurn     Type = "release_turn"
	TypeAdvanceStep     Type = "advance_step"
	TypeCompleteStep    Type = "complete_step"
	TypeStartSession    Type = "start_session"
	TypePauseSession    Type = "pause_session"
	TypeResumeSession   Type = "resume_session"
	TypeCompleteSession Type = "complete_session"
	TypeCreateNote      Type = "create_note"
	TypeUpdateNote      Type = "update_note"
	TypeLockNote        Type = "lock_note"
	TypeUnlockNote      Type = "unlock_note"
	TypeTypingIndicator Type = "typing_indicator"
	TypeSendReaction    Type = "send_reaction"
)

// Command is implemented by every inbound command type.
type Command interface {
	CommandType() Type
}

type RequestTurn struct{}

func (RequestTurn) CommandType() Type { return TypeRequestTurn }

type ReleaseTurn struct{}

func (ReleaseTurn) CommandType() Type { return TypeReleaseTurn }

type AdvanceStep struct {
	Step model.Step `json:"step"`
}

func (AdvanceStep) CommandType() Type { return TypeAdvanceStep }

type CompleteStep struct{}

func (CompleteStep) CommandType() Type { return TypeCompleteStep }

type StartSession struct{}

func (StartSession) CommandType() Type { return TypeStartSession }

// PauseSession carries the client's displayed elapsed counter; it is stored
// as-is and never feeds server-side duration math.
type PauseSession struct {
	ElapsedSeconds int `json:"elapsedSeconds"`
}

func (PauseSession) CommandType() Type { return TypePauseSession }

type ResumeSession struct{}

func (ResumeSession) CommandType() Type { return TypeResumeSession }

type CompleteSession struct {
	Summary string `json:"summary"`
}

func (CompleteSession) CommandType() Type { return TypeCompleteSession }

type CreateNote struct {
	Content    string            `json:"content"`
	Privacy    model.NotePrivacy `json:"privacy"`
	CategoryID *string           `json:"categoryId,omitempty"`
}

func (CreateNote) CommandType() Type { return TypeCreateNote }

type UpdateNote struct {
	NoteID  string `json:"noteId"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

func (UpdateNote) CommandType() Type { return TypeUpdateNote }

type LockNote struct {
	NoteID string `json:"noteId"`
}

func (LockNote) CommandType() Type { return TypeLockNote }

type UnlockNote struct {
	NoteID string `json:"noteId"`
}

func (UnlockNote) CommandType() Type { return TypeUnlockNote }

type TypingIndicator struct {
	Context  string `json:"context,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

func (TypingIndicator) CommandType() Type { return TypeTypingIndicator }

type SendReaction struct {
	Emoji string `json:"emoji"`
}

func (SendReaction) CommandType() Type { return TypeSendReaction }

// Decode parses a command envelope. The type switch is exhaustive over the
// command set; anything else is an input error.
func Decode(data []byte) (Command, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperrors.ValidationError("Malformed command").WithCause(err)
	}

	switch envelope.Type {
	case TypeRequestTurn:
		return RequestTurn{}, nil
	case TypeReleaseTurn:
		return ReleaseTurn{}, nil
	case TypeAdvanceStep:
		var cmd AdvanceStep
		return decodeInto(data, &cmd, cmd.validate)
	case TypeCompleteStep:
		return CompleteStep{}, nil
	case TypeStartSession:
		return StartSession{}, nil
	case TypePauseSession:
		var cmd PauseSession
		return decodeInto(data, &cmd, cmd.validate)
	case TypeResumeSession:
		return ResumeSession{}, nil
	case TypeCompleteSession:
		var cmd CompleteSession
		return decodeInto(data, &cmd, nil)
	case TypeCreateNote:
		var cmd CreateNote
		return decodeInto(data, &cmd, cmd.validate)
	case TypeUpdateNote:
		var cmd UpdateNote
		return decodeInto(data, &cmd, cmd.validate)
	case TypeLockNote:
		var cmd LockNote
		return decodeInto(data, &cmd, cmd.validate)
	case TypeUnlockNote:
		var cmd UnlockNote
		return decodeInto(data, &cmd, cmd.validate)
	case TypeTypingIndicator:
		var cmd TypingIndicator
		return decodeInto(data, &cmd, nil)
	case TypeSendReaction:
		var cmd SendReaction
		return decodeInto(data, &cmd, cmd.validate)
	case "":
		return nil, apperrors.MissingRequired("type")
	default:
		return nil, apperrors.InvalidInput("type", "unknown command "+string(envelope.Type))
	}
}

func decodeInto[C Command](data []byte, cmd *C, validate func() error) (Command, error) {
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, apperrors.ValidationError("Malformed command").WithCause(err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return *cmd, nil
}

func (c *AdvanceStep) validate() error {
	if c.Step == "" {
		return apperrors.MissingRequired("step")
	}
	return nil
}

func (c *PauseSession) validate() error {
	if c.ElapsedSeconds < 0 {
		return apperrors.InvalidInput("elapsedSeconds", "must be non-negative")
	}
	return nil
}

func (c *CreateNote) validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return apperrors.MissingRequired("content")
	}
	return nil
}

func (c *UpdateNote) validate() error {
	if c.NoteID == "" {
		return apperrors.MissingRequired("noteId")
	}
	if c.Version < 0 {
		return apperrors.InvalidInput("version", "must be non-negative")
	}
	return nil
}

func (c *LockNote) validate() error {
	if c.NoteID == "" {
		return apperrors.MissingRequired("noteId")
	}
	return nil
}

func (c *UnlockNote) validate() error {
	if c.NoteID == "" {
		return apperrors.MissingRequired("noteId")
	}
	return nil
}

func (c *SendReaction) validate() error {
	if c.Emoji == "" {
		return apperrors.MissingRequired("emoji")
	}
	return nil
}
