package maintenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository runs the maintenance statements against Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository constructs a Repository over the chargers table.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, table: "chargers"}
}

// IdentifyDuplicateChargers groups rows sharing station, network and ids.
func (r *Repository) IdentifyDuplicateChargers(ctx context.Context) ([]DuplicateGroup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT station_id, network, ocpi_ids, COUNT(*)
FROM %s
GROUP BY station_id, network, ocpi_ids
HAVING COUNT(*) > 1
ORDER BY station_id, network`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []DuplicateGroup
	for rows.Next() {
		var (
			group DuplicateGroup
			ids   []byte
		)
		if err := rows.Scan(&group.StationID, &group.Network, &ids, &group.Count); err != nil {
			return nil, err
		}
		if len(ids) > 0 && string(ids) != "null" {
			if err := json.Unmarshal(ids, &group.OCPIIDs); err != nil {
				return nil, fmt.Errorf("decode ocpi_ids: %w", err)
			}
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// DeleteDuplicateChargers removes every duplicate except the lowest id.
func (r *Repository) DeleteDuplicateChargers(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("maintenance repo: nil db")
	}
	query := fmt.Sprintf(`
DELETE FROM %[1]s
WHERE id IN (
	SELECT c.id
	FROM %[1]s c
	INNER JOIN (
		SELECT station_id, network, ocpi_ids, MIN(id) AS min_id
		FROM %[1]s
		GROUP BY station_id, network, ocpi_ids
		HAVING COUNT(*) > 1
	) dg ON c.station_id = dg.station_id
		AND c.network = dg.network
		AND c.ocpi_ids IS NOT DISTINCT FROM dg.ocpi_ids
	WHERE c.id > dg.min_id
)`, r.table)

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
