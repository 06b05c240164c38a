package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

// SourceRepository persists source identities.
type SourceRepository struct {
	db    DBTX
	table string
}

// SourceOption configures the repository.
type SourceOption func(*SourceRepository)

// WithSourceTable overrides the default table name.
func WithSourceTable(table string) SourceOption {
	return func(repo *SourceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSourceRepository constructs a repository.
func NewSourceRepository(db DBTX, opts ...SourceOption) *SourceRepository {
	repo := &SourceRepository{db: db, table: defaultSourcesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindStationID resolves a source identity to its station.
func (r *SourceRepository) FindStationID(ctx context.Context, source string, innerID int64) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("source repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT station_id
FROM %s
WHERE source = $1 AND station_inner_id = $2
LIMIT 1`, r.table)

	var stationID int64
	if err := r.db.QueryRowContext(ctx, query, source, innerID).Scan(&stationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, classify(err)
	}
	return stationID, true, nil
}

// Add binds a source identity to a station.
func (r *SourceRepository) Add(ctx context.Context, identity stations.SourceIdentity) error {
	if r == nil || r.db == nil {
		return errors.New("source repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (station_id, source, station_inner_id)
VALUES ($1, $2, $3)`, r.table)
	if _, err := r.db.ExecContext(ctx, query, identity.StationID, identity.Source, identity.InnerID); err != nil {
		return classify(err)
	}
	return nil
}

// ListByStationIDs groups source identities by station id.
func (r *SourceRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.SourceIdentity, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("source repo: nil db")
	}
	out := make(map[int64][]stations.SourceIdentity)
	if len(stationIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
SELECT station_id, source, station_inner_id
FROM %s
WHERE station_id = ANY($1)
ORDER BY station_id, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationIDs)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var identity stations.SourceIdentity
		if err := rows.Scan(&identity.StationID, &identity.Source, &identity.InnerID); err != nil {
			return nil, classify(err)
		}
		out[identity.StationID] = append(out[identity.StationID], identity)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
