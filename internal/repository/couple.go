package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/tandem-app/checkin-server-go/internal/model"
)

// CoupleRepository is read-only: the coordinator consults couples for
// membership checks but never mutates them.
type CoupleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Couple, error)
}

type coupleRepo struct {
	db *sqlx.DB
}

func NewCoupleRepository(db *sqlx.DB) CoupleRepository {
	return &coupleRepo{db: db}
}

func (r *coupleRepo) FindByID(ctx context.Context, id string) (*model.Couple, error) {
	var couple model.Couple
	err := r.db.GetContext(ctx, &couple, `
		SELECT * FROM couples WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &couple, nil
}
