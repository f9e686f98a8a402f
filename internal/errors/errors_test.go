package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Note not found")
		assert.Equal(t, "NOT_FOUND: Note not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "content", "reason": "empty"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidToken", func() *AppError { return InvalidToken("test") }, ErrCodeInvalidToken},
		{"NotFound", func() *AppError { return NotFound("Session") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("step", "unknown") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("noteId") }, ErrCodeMissingRequired},
		{"InvalidState", func() *AppError { return InvalidState("test") }, ErrCodeInvalidState},
		{"SessionClosed", func() *AppError { return SessionClosed() }, ErrCodeSessionClosed},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestTurnDenied(t *testing.T) {
	t.Run("carries current holder in details", func(t *testing.T) {
		err := TurnDenied("partner-a")
		assert.Equal(t, ErrCodeTurnDenied, err.Code)
		details := err.Details.(map[string]any)
		assert.Equal(t, "partner-a", details["currentHolderId"])
	})
}

func TestVersionConflict(t *testing.T) {
	t.Run("carries authoritative state in details", func(t *testing.T) {
		err := VersionConflict("note-1", 3, "current text")
		assert.Equal(t, ErrCodeVersionConflict, err.Code)
		details := err.Details.(map[string]any)
		assert.Equal(t, "note-1", details["noteId"])
		assert.Equal(t, 3, details["currentVersion"])
		assert.Equal(t, "current text", details["currentContent"])
	})
}

func TestAlreadyLocked(t *testing.T) {
	t.Run("carries lock holder in details", func(t *testing.T) {
		err := AlreadyLocked("note-1", "partner-b")
		assert.Equal(t, ErrCodeAlreadyLocked, err.Code)
		details := err.Details.(map[string]any)
		assert.Equal(t, "partner-b", details["lockedBy"])
	})
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError from wrapped error", func(t *testing.T) {
		appErr := NotFound("Note")
		wrapped := errors.Join(errors.New("outer"), appErr)

		extracted, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeNotFound, extracted.Code)
	})

	t.Run("returns false for plain error", func(t *testing.T) {
		_, ok := AsAppError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		assert.Equal(t, ErrCodeTurnDenied, GetCode(TurnDenied("a")))
	})

	t.Run("returns internal for plain error", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}
