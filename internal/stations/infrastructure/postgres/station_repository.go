package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

const (
	defaultStationsTable = "stations"
	defaultSourcesTable  = "sources"
)

// StationRepository is a PostGIS-backed station store.
type StationRepository struct {
	db           *sql.DB
	table        string
	sourcesTable string
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithStationSourcesTable overrides the source identity table used by joins.
func WithStationSourcesTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.sourcesTable = table
		}
	}
}

// NewStationRepository constructs a repository.
func NewStationRepository(db *sql.DB, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, table: defaultStationsTable, sourcesTable: defaultSourcesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindNearest returns the closest station within radius meters.
func (r *StationRepository) FindNearest(ctx context.Context, point stations.Point, radiusMeters float64) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("station repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id
FROM %s
WHERE ST_DWithin(coordinates, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
ORDER BY ST_Distance(coordinates, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography), id
LIMIT 1`, r.table)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, point.Lon, point.Lat, radiusMeters).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, classify(err)
	}
	return id, true, nil
}

// Create inserts a station and its first source identity in one transaction.
func (r *StationRepository) Create(ctx context.Context, station stations.Station, source stations.SourceRef) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("station repo: nil db")
	}
	ids, err := encodeIDs(station.ExternalIDs)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
INSERT INTO %s (coordinates, geo, address, ocpi_ids, rating)
VALUES (ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, $4, $5, $6)
RETURNING id`, r.table),
		station.Point.Lon,
		station.Point.Lat,
		jsonArg(station.Geo),
		nullString(station.Address),
		ids,
		nullFloat(station.Rating),
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return 0, classify(err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (station_id, source, station_inner_id)
VALUES ($1, $2, $3)`, r.sourcesTable), id, source.Source, source.InnerID)
	if err != nil {
		_ = tx.Rollback()
		return 0, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}
	return id, nil
}

// GetBySource loads the station bound to a source identity.
func (r *StationRepository) GetBySource(ctx context.Context, source string, innerID int64) (*stations.StationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	query := fmt.Sprintf(`
%s
WHERE s.id = (
	SELECT station_id FROM %s WHERE source = $1 AND station_inner_id = $2
)
GROUP BY s.id`, r.selectRecords(), r.sourcesTable)

	rows, err := r.db.QueryContext(ctx, query, source, innerID)
	if err != nil {
		return nil, classify(err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListByArea returns stations intersecting the box ordered by id.
func (r *StationRepository) ListByArea(ctx context.Context, box stations.BoundingBox, limit, offset int) ([]stations.StationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	query := fmt.Sprintf(`
%s
WHERE ST_Intersects(s.coordinates, ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography)
GROUP BY s.id
ORDER BY s.id
LIMIT $5 OFFSET $6`, r.selectRecords())

	rows, err := r.db.QueryContext(ctx, query,
		box.SouthWest.Lon,
		box.SouthWest.Lat,
		box.NorthEast.Lon,
		box.NorthEast.Lat,
		limit,
		offset,
	)
	if err != nil {
		return nil, classify(err)
	}
	return scanRecords(rows)
}

func (r *StationRepository) selectRecords() string {
	return fmt.Sprintf(`
SELECT
	s.id,
	ST_AsGeoJSON(s.coordinates)::jsonb -> 'coordinates',
	s.geo,
	s.address,
	s.ocpi_ids,
	s.rating,
	json_agg(json_build_object('source', src.source, 'inner_id', src.station_inner_id) ORDER BY src.id)
FROM %s s
JOIN %s src ON src.station_id = s.id`, r.table, r.sourcesTable)
}

type sourceJSON struct {
	Source  string `json:"source"`
	InnerID int64  `json:"inner_id"`
}

func scanRecords(rows *sql.Rows) ([]stations.StationRecord, error) {
	defer rows.Close()

	records := make([]stations.StationRecord, 0)
	for rows.Next() {
		var (
			record      stations.StationRecord
			coordinates []byte
			geo         []byte
			address     sql.NullString
			ocpiIDs     []byte
			rating      sql.NullFloat64
			sources     []byte
		)
		if err := rows.Scan(&record.ID, &coordinates, &geo, &address, &ocpiIDs, &rating, &sources); err != nil {
			return nil, classify(err)
		}
		record.Coordinates = rawJSON(coordinates)
		record.Geo = rawJSON(geo)
		record.Address = stringPtr(address)
		ids, err := decodeIDs(ocpiIDs)
		if err != nil {
			return nil, err
		}
		record.ExternalIDs = ids
		if rating.Valid {
			value := rating.Float64
			record.Rating = &value
		}

		var refs []sourceJSON
		if err := json.Unmarshal(sources, &refs); err != nil {
			return nil, fmt.Errorf("decode station %d sources: %w", record.ID, err)
		}
		for _, ref := range refs {
			record.Sources = append(record.Sources, stations.SourceIdentity{
				StationID: record.ID,
				Source:    ref.Source,
				InnerID:   ref.InnerID,
			})
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
