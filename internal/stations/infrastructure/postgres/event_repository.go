package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

const defaultEventsTable = "events"

// EventRepository persists charging events.
type EventRepository struct {
	db    DBTX
	table string
}

// EventOption configures the repository.
type EventOption func(*EventRepository)

// WithEventTable overrides the default table name.
func WithEventTable(table string) EventOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewEventRepository constructs a repository.
func NewEventRepository(db DBTX, opts ...EventOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListByStationIDs groups events by station id, newest first.
func (r *EventRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	out := make(map[int64][]stations.Event)
	if len(stationIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
SELECT station_id, source, charged_at, name, is_problem
FROM %s
WHERE station_id = ANY($1)
ORDER BY station_id, charged_at DESC, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationIDs)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			event     stations.Event
			name      sql.NullString
			isProblem sql.NullBool
		)
		if err := rows.Scan(&event.StationID, &event.Source, &event.ChargedAt, &name, &isProblem); err != nil {
			return nil, classify(err)
		}
		event.ChargedAt = event.ChargedAt.UTC()
		event.Name = stringPtr(name)
		if isProblem.Valid {
			value := isProblem.Bool
			event.IsProblem = &value
		}
		out[event.StationID] = append(out[event.StationID], event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Insert writes events in one statement.
func (r *EventRepository) Insert(ctx context.Context, stationID int64, events []stations.Event) error {
	if r == nil || r.db == nil {
		return errors.New("event repo: nil db")
	}
	rows := make([][]any, 0, len(events))
	for _, event := range events {
		var isProblem sql.NullBool
		if event.IsProblem != nil {
			isProblem = sql.NullBool{Bool: *event.IsProblem, Valid: true}
		}
		rows = append(rows, []any{stationID, event.Source, event.ChargedAt.UTC(), nullString(event.Name), isProblem})
	}
	return bulkInsert(ctx, r.db, r.table, []string{"station_id", "source", "charged_at", "name", "is_problem"}, rows)
}
