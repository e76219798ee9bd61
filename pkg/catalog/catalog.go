// Package catalog stores advisory metadata about known scripts. The
// catalog is purely descriptive: execution never consults it.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

// Function is one catalog entry, keyed by LanguageTitle.
type Function struct {
	LanguageTitle string
	Language      string
	Title         string
	Description   *string
	ScriptContent *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	IsActive      bool
	Version       string
}

// Store is the catalog's persistence contract.
type Store interface {
	Get(ctx context.Context, languageTitle string) (*Function, error)
	List(ctx context.Context, language string) ([]*Function, error)
	Create(ctx context.Context, f *Function) error
	Update(ctx context.Context, f *Function) error
}

// SQLStore implements Store over meta.functions.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open *sql.DB.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (st *SQLStore) Get(ctx context.Context, languageTitle string) (*Function, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT language, title, language_title, description, created_at, updated_at, is_active, version
		FROM meta.functions WHERE language_title = $1
	`, languageTitle)

	f, err := scanFunction(row)
	if err == sql.ErrNoRows {
		return nil, lambdaerr.NotFound("function not found", nil)
	}
	if err != nil {
		return nil, lambdaerr.Store("get function", err)
	}
	return f, nil
}

func (st *SQLStore) List(ctx context.Context, language string) ([]*Function, error) {
	var rows *sql.Rows
	var err error
	if language != "" {
		rows, err = st.db.QueryContext(ctx, `
			SELECT language, title, language_title, description, created_at, updated_at, is_active, version
			FROM meta.functions WHERE language = $1 ORDER BY created_at DESC
		`, language)
	} else {
		rows, err = st.db.QueryContext(ctx, `
			SELECT language, title, language_title, description, created_at, updated_at, is_active, version
			FROM meta.functions ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, lambdaerr.Store("list functions", err)
	}
	defer rows.Close()

	var functions []*Function
	for rows.Next() {
		f, err := scanFunction(rows)
		if err != nil {
			return nil, lambdaerr.Store("scan function", err)
		}
		functions = append(functions, f)
	}
	if err := rows.Err(); err != nil {
		return nil, lambdaerr.Store("list functions", err)
	}
	return functions, nil
}

func (st *SQLStore) Create(ctx context.Context, f *Function) error {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := st.db.ExecContext(ctx, `
		INSERT INTO meta.functions (id, language, title, language_title, description, created_at, updated_at, is_active, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.NewString(), f.Language, f.Title, f.LanguageTitle, f.Description, f.CreatedAt, f.UpdatedAt, f.IsActive, f.Version)
	if err != nil {
		return lambdaerr.Store("create function", err)
	}

	if f.ScriptContent != nil {
		_, err := st.db.ExecContext(ctx, `
			INSERT INTO meta.scripts (function_id, content, created_at, updated_at)
			SELECT id, $1, $2, $2 FROM meta.functions WHERE language_title = $3
		`, *f.ScriptContent, now, f.LanguageTitle)
		if err != nil {
			return lambdaerr.Store("create function script", err)
		}
	}

	return nil
}

func (st *SQLStore) Update(ctx context.Context, f *Function) error {
	f.UpdatedAt = time.Now().UTC()

	_, err := st.db.ExecContext(ctx, `
		UPDATE meta.functions SET
			language = $1, title = $2, description = $3, updated_at = $4, is_active = $5, version = $6
		WHERE language_title = $7
	`, f.Language, f.Title, f.Description, f.UpdatedAt, f.IsActive, f.Version, f.LanguageTitle)
	if err != nil {
		return lambdaerr.Store("update function", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFunction(row scanner) (*Function, error) {
	var f Function
	err := row.Scan(&f.Language, &f.Title, &f.LanguageTitle, &f.Description, &f.CreatedAt, &f.UpdatedAt, &f.IsActive, &f.Version)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

var _ Store = (*SQLStore)(nil)
