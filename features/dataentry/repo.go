package dataentry

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	Save(ctx context.Context, token *Token) error
	Get(ctx context.Context, ext string) (*Token, error)
	Consume(ctx context.Context, ext string) error
	PurgeExpired(ctx context.Context) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, t *Token) error {
	query := `INSERT INTO data_entry_queue (url_ext, table_name, response_url, user_id, channel_id, message_ts, exp_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, t.Ext, t.TableName, t.ResponseURL, t.UserID, t.ChannelID, t.MessageTS, t.ExpDate)
	return err
}

// Get returns the token only while it is unexpired and unconsumed.
func (r *PostgresRepo) Get(ctx context.Context, ext string) (*Token, error) {
	t := &Token{}
	query := `SELECT url_ext, table_name, response_url, user_id, channel_id, message_ts, exp_date
		FROM data_entry_queue WHERE url_ext = $1 AND exp_date > now()`
	err := r.db.QueryRowContext(ctx, query, ext).
		Scan(&t.Ext, &t.TableName, &t.ResponseURL, &t.UserID, &t.ChannelID, &t.MessageTS, &t.ExpDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Consume deletes the token row, enforcing single use. ErrTokenInvalid if a
// concurrent submission got there first.
func (r *PostgresRepo) Consume(ctx context.Context, ext string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_entry_queue WHERE url_ext = $1`, ext)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenInvalid
	}
	return nil
}

func (r *PostgresRepo) PurgeExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM data_entry_queue WHERE exp_date <= now()`)
	return err
}
