package stations

import "context"

// StationRepository persists stations and answers spatial lookups.
type StationRepository interface {
	// FindNearest returns the id of the closest station within radius meters.
	FindNearest(ctx context.Context, point Point, radiusMeters float64) (int64, bool, error)
	// Create inserts a station together with its first source identity.
	Create(ctx context.Context, station Station, source SourceRef) (int64, error)
	// GetBySource loads the station bound to a source identity, or nil.
	GetBySource(ctx context.Context, source string, innerID int64) (*StationRecord, error)
	// ListByArea returns stations inside the box ordered by id.
	ListByArea(ctx context.Context, box BoundingBox, limit, offset int) ([]StationRecord, error)
}

// SourceRepository persists source identities.
type SourceRepository interface {
	FindStationID(ctx context.Context, source string, innerID int64) (int64, bool, error)
	Add(ctx context.Context, identity SourceIdentity) error
	ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]SourceIdentity, error)
}

// ChargerRepository persists charger rows.
type ChargerRepository interface {
	ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]Charger, error)
	Insert(ctx context.Context, stationID int64, chargers []Charger) error
}

// EventRepository persists events. Lists are ordered by charged_at descending.
type EventRepository interface {
	ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]Event, error)
	Insert(ctx context.Context, stationID int64, events []Event) error
}

// CommentRepository persists comments. Lists are ordered by created_at descending.
type CommentRepository interface {
	ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]Comment, error)
	Insert(ctx context.Context, stationID int64, comments []Comment) error
}
