package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultTokensTable = "tokens"

// Repository is the Postgres token store.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs a token repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultTokensTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Touch increments request_count for a known key in a single statement.
func (r *Repository) Touch(ctx context.Context, apiKey string) (*Usage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tokens repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET request_count = request_count + 1,
	updated_at = NOW()
WHERE api_key = $1
RETURNING api_key, request_count, updated_at`, r.table)

	var usage Usage
	if err := r.db.QueryRowContext(ctx, query, apiKey).Scan(&usage.APIKey, &usage.RequestCount, &usage.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	usage.UpdatedAt = usage.UpdatedAt.UTC()
	return &usage, nil
}

// Create registers an api key. Existing keys are left untouched.
func (r *Repository) Create(ctx context.Context, apiKey, owner string) error {
	if r == nil || r.db == nil {
		return errors.New("tokens repo: nil db")
	}
	if apiKey == "" {
		return errors.New("tokens repo: empty api key")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (api_key, owner)
VALUES ($1, $2)
ON CONFLICT (api_key) DO NOTHING`, r.table)
	_, err := r.db.ExecContext(ctx, query, apiKey, owner)
	return err
}
