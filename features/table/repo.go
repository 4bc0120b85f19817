package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Insert(ctx context.Context, name, key, value string) error
	Upsert(ctx context.Context, name, key, value string) error
	Delete(ctx context.Context, name, key string) error
	Lookup(ctx context.Context, name, key string) (string, error)
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ident validates name against the identifier charset before quoting it for
// interpolation into DDL/DML, which cannot take placeholders for table names.
func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", ErrBadName
	}
	return pq.QuoteIdentifier(name), nil
}

func (r *PostgresRepo) Create(ctx context.Context, name string) error {
	quoted, err := ident(name)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`CREATE TABLE %s (key VARCHAR PRIMARY KEY, value VARCHAR, date_modified TIMESTAMPTZ NOT NULL DEFAULT now())`, quoted)
	_, err = r.db.ExecContext(ctx, query)
	return err
}

func (r *PostgresRepo) Drop(ctx context.Context, name string) error {
	quoted, err := ident(name)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s`, quoted))
	return err
}

func (r *PostgresRepo) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_tables WHERE tablename = $1)`
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, name, key, value string) error {
	quoted, err := ident(name)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)`, quoted)
	_, err = r.db.ExecContext(ctx, query, key, value)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

func (r *PostgresRepo) Upsert(ctx context.Context, name, key, value string) error {
	quoted, err := ident(name)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, date_modified = now()`, quoted)
	_, err = r.db.ExecContext(ctx, query, key, value)
	return err
}

func (r *PostgresRepo) Delete(ctx context.Context, name, key string) error {
	quoted, err := ident(name)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, quoted), key)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrKeyMissing
	}
	return nil
}

func (r *PostgresRepo) Lookup(ctx context.Context, name, key string) (string, error) {
	quoted, err := ident(name)
	if err != nil {
		return "", err
	}
	var value string
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, quoted), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyMissing
	}
	return value, err
}

func (r *PostgresRepo) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_name LIKE $1 ORDER BY table_name`
	rows, err := r.db.QueryContext(ctx, query, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
