package postgres

import (
	"context"
	"errors"
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

const defaultChargersTable = "chargers"

// ChargerRepository persists charger rows.
type ChargerRepository struct {
	db    DBTX
	table string
}

// ChargerOption configures the repository.
type ChargerOption func(*ChargerRepository)

// WithChargerTable overrides the default table name.
func WithChargerTable(table string) ChargerOption {
	return func(repo *ChargerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewChargerRepository constructs a repository.
func NewChargerRepository(db DBTX, opts ...ChargerOption) *ChargerRepository {
	repo := &ChargerRepository{db: db, table: defaultChargersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListByStationIDs groups charger rows by station id in insertion order.
func (r *ChargerRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Charger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("charger repo: nil db")
	}
	out := make(map[int64][]stations.Charger)
	if len(stationIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
SELECT station_id, network, ocpi_ids
FROM %s
WHERE station_id = ANY($1)
ORDER BY station_id, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationIDs)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			charger stations.Charger
			ids     []byte
		)
		if err := rows.Scan(&charger.StationID, &charger.Network, &ids); err != nil {
			return nil, classify(err)
		}
		if charger.IDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		out[charger.StationID] = append(out[charger.StationID], charger)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Insert writes charger rows in one statement.
func (r *ChargerRepository) Insert(ctx context.Context, stationID int64, chargers []stations.Charger) error {
	if r == nil || r.db == nil {
		return errors.New("charger repo: nil db")
	}
	rows := make([][]any, 0, len(chargers))
	for _, charger := range chargers {
		ids, err := encodeIDs(charger.IDs)
		if err != nil {
			return err
		}
		rows = append(rows, []any{stationID, charger.Network, ids})
	}
	return bulkInsert(ctx, r.db, r.table, []string{"station_id", "network", "ocpi_ids"}, rows)
}
