package table_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"teamdict/features/table"
)

func TestPostgresRepo_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM pg_tables WHERE tablename = $1)`)).
		WithArgs("acme_c1_widgets").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "acme_c1_widgets")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "acme_c1_widgets" (key VARCHAR PRIMARY KEY, value VARCHAR, date_modified TIMESTAMPTZ NOT NULL DEFAULT now())`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Create(context.Background(), "acme_c1_widgets"))
}

func TestPostgresRepo_Create_RejectsBadIdentifier(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	err = repo.Create(context.Background(), `widgets";DROP TABLE users;--`)
	assert.ErrorIs(t, err, table.ErrBadName)
}

func TestPostgresRepo_Insert_DuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "acme_c1_widgets" (key, value) VALUES ($1, $2)`)).
		WithArgs("color", "blue").
		WillReturnError(&pq.Error{Code: "23505"})

	err = repo.Insert(context.Background(), "acme_c1_widgets", "color", "blue")
	assert.ErrorIs(t, err, table.ErrDuplicateKey)
}

func TestPostgresRepo_Delete_KeyMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "acme_c1_widgets" WHERE key = $1`)).
		WithArgs("color").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Delete(context.Background(), "acme_c1_widgets", "color")
	assert.ErrorIs(t, err, table.ErrKeyMissing)
}

func TestPostgresRepo_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM "acme_c1_widgets" WHERE key = $1`)).
			WithArgs("color").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("blue"))

		value, err := repo.Lookup(context.Background(), "acme_c1_widgets", "color")
		assert.NoError(t, err)
		assert.Equal(t, "blue", value)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM "acme_c1_widgets" WHERE key = $1`)).
			WithArgs("shape").
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, err := repo.Lookup(context.Background(), "acme_c1_widgets", "shape")
		assert.True(t, errors.Is(err, table.ErrKeyMissing))
	})
}

func TestPostgresRepo_ListByPrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := table.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_name LIKE $1 ORDER BY table_name`)).
		WithArgs("acme_c1_%").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("acme_c1_gadgets").
			AddRow("acme_c1_widgets"))

	names, err := repo.ListByPrefix(context.Background(), "acme_c1_")
	assert.NoError(t, err)
	assert.Equal(t, []string{"acme_c1_gadgets", "acme_c1_widgets"}, names)
}
