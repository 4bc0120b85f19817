package command

import (
	"context"
	"database/sql"
)

// MarkRepository is the idempotency gate for envelope processing. Claim
// returns false when another worker already claimed the ID, turning the
// queue's at-least-once delivery into at-most-once side effects.
type MarkRepository interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type PostgresMarkRepo struct {
	db *sql.DB
}

func NewPostgresMarkRepo(db *sql.DB) *PostgresMarkRepo {
	return &PostgresMarkRepo{db: db}
}

func (r *PostgresMarkRepo) Claim(ctx context.Context, id string) (bool, error) {
	query := `INSERT INTO processed_jobs (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Release undoes a claim after an infrastructure failure so the queue's
// redelivery is not swallowed by the gate.
func (r *PostgresMarkRepo) Release(ctx context.Context, id string) error {
	query := `DELETE FROM processed_jobs WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
