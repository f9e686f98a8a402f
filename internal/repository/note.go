package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

type NoteRepository interface {
	FindByID(ctx context.Context, id string) (*model.Note, error)
	// FindByIDForUpdate takes a row lock; callers must be inside a transaction.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Note, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]model.Note, error)
	Create(ctx context.Context, params model.CreateNoteParams) (*model.Note, error)
	Save(ctx context.Context, note *model.Note) error
	// ClearExpiredLocks releases locks taken before the cutoff. This is the
	// restart safety net; live lock expiry is handled by the note engine's
	// deferred unlock timers.
	ClearExpiredLocks(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) NoteRepository
}

type noteDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type noteRepo struct {
	db noteDB
}

func NewNoteRepository(db *sqlx.DB) NoteRepository {
	return &noteRepo{db: db}
}

func (r *noteRepo) WithTx(tx *sqlx.Tx) NoteRepository {
	return &noteRepo{db: tx}
}

func (r *noteRepo) FindByID(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	err := r.db.GetContext(ctx, &note, `
		SELECT * FROM notes WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	err := r.db.GetContext(ctx, &note, `
		SELECT * FROM notes WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.Note, error) {
	notes := []model.Note{}
	err := r.db.SelectContext(ctx, &notes, `
		SELECT * FROM notes
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepo) Create(ctx context.Context, params model.CreateNoteParams) (*model.Note, error) {
	var note model.Note
	err := r.db.GetContext(ctx, &note, `
		INSERT INTO notes (session_id, couple_id, category_id, author_id, content, privacy, synchronized)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.SessionID, params.CoupleID, params.CategoryID, params.AuthorID,
		params.Content, params.Privacy, params.Synchronized)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepo) Save(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notes SET
			content = $2,
			privacy = $3,
			version = $4,
			locked_by = $5,
			locked_at = $6,
			last_edited_by = $7,
			updated_at = $8
		WHERE id = $1
	`,
		note.ID,
		note.Content,
		note.Privacy,
		note.Version,
		note.LockedBy,
		note.LockedAt,
		note.LastEditedBy,
		time.Now(),
	)
	return err
}

func (r *noteRepo) ClearExpiredLocks(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notes SET
			locked_by = NULL,
			locked_at = NULL,
			updated_at = $1
		WHERE locked_by IS NOT NULL AND locked_at < $2
	`, time.Now(), cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
