package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.CheckinSession, error)
	// FindByIDForUpdate takes a row lock; callers must be inside a transaction.
	FindByIDForUpdate(ctx context.Context, id string) (*model.CheckinSession, error)
	FindByCoupleID(ctx context.Context, coupleID string, limit, offset int) ([]model.CheckinSession, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.CheckinSession, error)
	Save(ctx context.Context, session *model.CheckinSession) error
	DeleteStaleNotStarted(ctx context.Context, before time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.CheckinSession, error) {
	var session model.CheckinSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM checkin_sessions WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.CheckinSession, error) {
	var session model.CheckinSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM checkin_sessions WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByCoupleID(ctx context.Context, coupleID string, limit, offset int) ([]model.CheckinSession, error) {
	sessions := []model.CheckinSession{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM checkin_sessions
		WHERE couple_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, coupleID, limit, offset)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.CheckinSession, error) {
	var session model.CheckinSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO checkin_sessions (couple_id, turn_based_mode)
		VALUES ($1, $2)
		RETURNING *
	`, params.CoupleID, params.TurnBasedMode)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Save(ctx context.Context, session *model.CheckinSession) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE checkin_sessions SET
			status = $2,
			current_step = $3,
			turn_based_mode = $4,
			current_turn_holder = $5,
			turn_started_at = $6,
			step_started_at = $7,
			started_at = $8,
			paused_at = $9,
			completed_at = $10,
			last_activity_at = $11,
			active_participants = $12,
			step_durations = $13,
			step_completions = $14,
			elapsed_seconds = $15,
			summary = $16,
			metrics = $17,
			updated_at = $18
		WHERE id = $1
	`,
		session.ID,
		session.Status,
		session.CurrentStep,
		session.TurnBasedMode,
		session.CurrentTurnHolder,
		session.TurnStartedAt,
		session.StepStartedAt,
		session.StartedAt,
		session.PausedAt,
		session.CompletedAt,
		session.LastActivityAt,
		session.ActiveParticipants,
		session.StepDurations,
		session.StepCompletions,
		session.ElapsedSeconds,
		session.Summary,
		session.Metrics,
		time.Now(),
	)
	return err
}

func (r *sessionRepo) DeleteStaleNotStarted(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM checkin_sessions
		WHERE status = 'not_started' AND created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
