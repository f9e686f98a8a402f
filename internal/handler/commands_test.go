package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-app/checkin-server-go/internal/event"
	"github.com/tandem-app/checkin-server-go/internal/model"
)

func postCommand(t *testing.T, env *testEnv, participantID, body string) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewCommandHandler(env.presence, env.turns, env.steps, env.notes)

	r := chi.NewRouter()
	r.Post("/v1/checkins/{sessionID}/commands", handler.ServeHTTP)

	req := httptest.NewRequest("POST", "/v1/checkins/"+testSessionID+"/commands", strings.NewReader(body))
	req = asParticipant(req, participantID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCommandLifecycle(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusNotStarted, false))

	rec := postCommand(t, env, partnerA, `{"type":"start_session"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "in_progress", body["status"])

	rec = postCommand(t, env, partnerA, `{"type":"advance_step","step":"category_selection"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "category_selection", decodeBody(t, rec)["currentStep"])

	rec = postCommand(t, env, partnerB, `{"type":"complete_step"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCommand(t, env, partnerA, `{"type":"complete_session","summary":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "done", body["summary"])

	rec = postCommand(t, env, partnerB, `{"type":"advance_step","step":"reflection"}`)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "SESSION_CLOSED", decodeBody(t, rec)["code"])
}

func TestCommandTurnArbitration(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusInProgress, true))

	rec := postCommand(t, env, partnerA, `{"type":"request_turn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, partnerA, decodeBody(t, rec)["currentTurnHolder"])

	rec = postCommand(t, env, partnerB, `{"type":"request_turn"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "TURN_DENIED", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, partnerA, details["currentHolderId"])

	rec = postCommand(t, env, partnerB, `{"type":"advance_step","step":"reflection"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postCommand(t, env, partnerA, `{"type":"release_turn"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCommand(t, env, partnerB, `{"type":"request_turn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, partnerB, decodeBody(t, rec)["currentTurnHolder"])
}

func TestCommandNoteFlow(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusInProgress, false))
	defer env.notes.Close()

	rec := postCommand(t, env, partnerA, `{"type":"create_note","content":"first thought","privacy":"shared"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeBody(t, rec)
	noteID := created["id"].(string)
	assert.Equal(t, float64(0), created["version"])

	rec = postCommand(t, env, partnerB, `{"type":"update_note","noteId":"`+noteID+`","content":"revised","version":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["version"])

	// Concurrent edit from a stale snapshot.
	rec = postCommand(t, env, partnerA, `{"type":"update_note","noteId":"`+noteID+`","content":"stale","version":0}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VERSION_CONFLICT", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "revised", details["currentContent"])
	assert.Equal(t, float64(1), details["currentVersion"])

	rec = postCommand(t, env, partnerA, `{"type":"lock_note","noteId":"`+noteID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCommand(t, env, partnerB, `{"type":"lock_note","noteId":"`+noteID+`"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_LOCKED", decodeBody(t, rec)["code"])

	rec = postCommand(t, env, partnerA, `{"type":"unlock_note","noteId":"`+noteID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCommandTransientSignals(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusInProgress, false))

	rec := postCommand(t, env, partnerA, `{"type":"typing_indicator","context":"notes","isTyping":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCommand(t, env, partnerB, `{"type":"send_reaction","emoji":"❤️"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []event.Type{event.TypeTypingIndicator, event.TypeReactionReceived}, env.broadcaster.types())
}

func TestCommandValidation(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusInProgress, false))

	t.Run("unknown type", func(t *testing.T) {
		rec := postCommand(t, env, partnerA, `{"type":"self_destruct"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing type", func(t *testing.T) {
		rec := postCommand(t, env, partnerA, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := postCommand(t, env, partnerA, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank note content", func(t *testing.T) {
		rec := postCommand(t, env, partnerA, `{"type":"create_note","content":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("outsider command is unauthorized", func(t *testing.T) {
		rec := postCommand(t, env, "stranger", `{"type":"start_session"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCommandUnknownSession(t *testing.T) {
	env := newTestEnv(testSession(model.SessionStatusInProgress, false))
	handler := NewCommandHandler(env.presence, env.turns, env.steps, env.notes)

	r := chi.NewRouter()
	r.Post("/v1/checkins/{sessionID}/commands", handler.ServeHTTP)

	req := httptest.NewRequest("POST", "/v1/checkins/missing/commands", strings.NewReader(`{"type":"start_session"}`))
	req = asParticipant(req, partnerA)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
