package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStoreGetFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"language", "title", "language_title", "description", "created_at", "updated_at", "is_active", "version",
	}).AddRow("nodejs", "calculator", "nodejs-calculator", nil, now, now, true, "1.0.0")

	mock.ExpectQuery("SELECT(.|\n)*FROM meta.functions WHERE language_title").
		WithArgs("nodejs-calculator").WillReturnRows(rows)

	f, err := store.Get(context.Background(), "nodejs-calculator")
	require.NoError(t, err)
	assert.Equal(t, "nodejs-calculator", f.LanguageTitle)
	assert.True(t, f.IsActive)
}

func TestSQLStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT(.|\n)*FROM meta.functions WHERE language_title").
		WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{
		"language", "title", "language_title", "description", "created_at", "updated_at", "is_active", "version",
	}))

	_, err = store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindNotFound, lambdaerr.KindOf(err))
}

func TestSQLStoreCreateWithoutScript(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)
	f := &Function{Language: "python", Title: "sum", LanguageTitle: "python-sum", IsActive: true, Version: "1.0.0"}

	mock.ExpectExec("INSERT INTO meta.functions").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Create(context.Background(), f))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, f.CreatedAt.IsZero())
}

func TestSQLStoreCreateWithScript(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)
	script := "def sum(a, b): return a + b"
	f := &Function{Language: "python", Title: "sum", LanguageTitle: "python-sum", IsActive: true, Version: "1.0.0", ScriptContent: &script}

	mock.ExpectExec("INSERT INTO meta.functions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO meta.scripts").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Create(context.Background(), f))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)
	f := &Function{Language: "python", Title: "sum", LanguageTitle: "python-sum", IsActive: false, Version: "1.0.1"}

	mock.ExpectExec("UPDATE meta.functions SET").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Update(context.Background(), f))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"language", "title", "language_title", "description", "created_at", "updated_at", "is_active", "version",
	}).AddRow("python", "sum", "python-sum", nil, now, now, true, "1.0.0")

	mock.ExpectQuery("SELECT(.|\n)*FROM meta.functions WHERE language").
		WithArgs("python").WillReturnRows(rows)

	functions, err := store.List(context.Background(), "python")
	require.NoError(t, err)
	require.Len(t, functions, 1)
	assert.Equal(t, "python-sum", functions[0].LanguageTitle)
}
