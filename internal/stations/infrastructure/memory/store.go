package memory

import (
	"context"
	"sort"
	"sync"

	stations "livecharge-api/internal/stations/domain"
)

// Store is an in-memory geo store. It honours the same contracts as the
// Postgres repositories: unique source identities, id-ordered area queries
// and newest-first sub-entity lists.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	stations map[int64]stations.Station
	sources  []stations.SourceIdentity
	chargers []stations.Charger
	events   []stations.Event
	comments []stations.Comment
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{stations: make(map[int64]stations.Station)}
}

// Counts reports stored row counts.
type Counts struct {
	Stations int
	Sources  int
	Chargers int
	Events   int
	Comments int
}

// Counts returns the current row counts.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Stations: len(s.stations),
		Sources:  len(s.sources),
		Chargers: len(s.chargers),
		Events:   len(s.events),
		Comments: len(s.comments),
	}
}

// Stations returns the station repository view of the store.
func (s *Store) Stations() *StationRepository { return &StationRepository{store: s} }

// Sources returns the source repository view of the store.
func (s *Store) Sources() *SourceRepository { return &SourceRepository{store: s} }

// Chargers returns the charger repository view of the store.
func (s *Store) Chargers() *ChargerRepository { return &ChargerRepository{store: s} }

// Events returns the event repository view of the store.
func (s *Store) Events() *EventRepository { return &EventRepository{store: s} }

// Comments returns the comment repository view of the store.
func (s *Store) Comments() *CommentRepository { return &CommentRepository{store: s} }

// StationRepository is an in-memory station repository.
type StationRepository struct {
	store *Store
}

// FindNearest returns the closest station within radius meters.
func (r *StationRepository) FindNearest(ctx context.Context, point stations.Point, radiusMeters float64) (int64, bool, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		bestID   int64
		bestDist float64
		found    bool
	)
	for _, id := range s.sortedIDs() {
		dist := s.stations[id].Point.DistanceMeters(point)
		if dist > radiusMeters {
			continue
		}
		if !found || dist < bestDist {
			bestID, bestDist, found = id, dist, true
		}
	}
	return bestID, found, nil
}

// Create inserts a station and its first source identity.
func (r *StationRepository) Create(ctx context.Context, station stations.Station, source stations.SourceRef) (int64, error) {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSourceLocked(source.Source, source.InnerID) {
		return 0, stations.ErrConflict
	}
	s.nextID++
	station.ID = s.nextID
	station.ExternalIDs = stations.NormalizeIDs(station.ExternalIDs)
	s.stations[station.ID] = station
	s.sources = append(s.sources, stations.SourceIdentity{StationID: station.ID, Source: source.Source, InnerID: source.InnerID})
	return station.ID, nil
}

// GetBySource loads the station bound to a source identity.
func (r *StationRepository) GetBySource(ctx context.Context, source string, innerID int64) (*stations.StationRecord, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.sources {
		if identity.Source == source && identity.InnerID == innerID {
			record := s.recordLocked(identity.StationID)
			return &record, nil
		}
	}
	return nil, nil
}

// ListByArea returns stations inside the box ordered by id. Stations without
// any source identity are skipped, matching the inner join of the SQL store.
func (r *StationRepository) ListByArea(ctx context.Context, box stations.BoundingBox, limit, offset int) ([]stations.StationRecord, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []stations.StationRecord
	for _, id := range s.sortedIDs() {
		if !box.Contains(s.stations[id].Point) {
			continue
		}
		record := s.recordLocked(id)
		if len(record.Sources) == 0 {
			continue
		}
		matched = append(matched, record)
	}
	if offset >= len(matched) {
		return []stations.StationRecord{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// SourceRepository is an in-memory source identity repository.
type SourceRepository struct {
	store *Store
}

// FindStationID resolves a source identity.
func (r *SourceRepository) FindStationID(ctx context.Context, source string, innerID int64) (int64, bool, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, identity := range s.sources {
		if identity.Source == source && identity.InnerID == innerID {
			return identity.StationID, true, nil
		}
	}
	return 0, false, nil
}

// Add binds a source identity; duplicates yield ErrConflict.
func (r *SourceRepository) Add(ctx context.Context, identity stations.SourceIdentity) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSourceLocked(identity.Source, identity.InnerID) {
		return stations.ErrConflict
	}
	s.sources = append(s.sources, identity)
	return nil
}

// ListByStationIDs groups source identities by station id.
func (r *SourceRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.SourceIdentity, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(stationIDs)
	out := make(map[int64][]stations.SourceIdentity)
	for _, identity := range s.sources {
		if _, ok := wanted[identity.StationID]; ok {
			out[identity.StationID] = append(out[identity.StationID], identity)
		}
	}
	return out, nil
}

// ChargerRepository is an in-memory charger repository.
type ChargerRepository struct {
	store *Store
}

// ListByStationIDs groups charger rows by station id in insertion order.
func (r *ChargerRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Charger, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(stationIDs)
	out := make(map[int64][]stations.Charger)
	for _, charger := range s.chargers {
		if _, ok := wanted[charger.StationID]; ok {
			charger.IDs = stations.NormalizeIDs(charger.IDs)
			out[charger.StationID] = append(out[charger.StationID], charger)
		}
	}
	return out, nil
}

// Insert appends charger rows.
func (r *ChargerRepository) Insert(ctx context.Context, stationID int64, chargers []stations.Charger) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, charger := range chargers {
		charger.StationID = stationID
		charger.IDs = stations.NormalizeIDs(charger.IDs)
		s.chargers = append(s.chargers, charger)
	}
	return nil
}

// EventRepository is an in-memory event repository.
type EventRepository struct {
	store *Store
}

// ListByStationIDs groups events by station id, newest first.
func (r *EventRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Event, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(stationIDs)
	out := make(map[int64][]stations.Event)
	for _, event := range s.events {
		if _, ok := wanted[event.StationID]; ok {
			out[event.StationID] = append(out[event.StationID], event)
		}
	}
	for id := range out {
		list := out[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ChargedAt.After(list[j].ChargedAt) })
	}
	return out, nil
}

// Insert appends events.
func (r *EventRepository) Insert(ctx context.Context, stationID int64, events []stations.Event) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		event.StationID = stationID
		s.events = append(s.events, event)
	}
	return nil
}

// CommentRepository is an in-memory comment repository.
type CommentRepository struct {
	store *Store
}

// ListByStationIDs groups comments by station id, newest first.
func (r *CommentRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Comment, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := idSet(stationIDs)
	out := make(map[int64][]stations.Comment)
	for _, comment := range s.comments {
		if _, ok := wanted[comment.StationID]; ok {
			out[comment.StationID] = append(out[comment.StationID], comment)
		}
	}
	for id := range out {
		list := out[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	}
	return out, nil
}

// Insert appends comments.
func (r *CommentRepository) Insert(ctx context.Context, stationID int64, comments []stations.Comment) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, comment := range comments {
		comment.StationID = stationID
		s.comments = append(s.comments, comment)
	}
	return nil
}

func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.stations))
	for id := range s.stations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) hasSourceLocked(source string, innerID int64) bool {
	for _, identity := range s.sources {
		if identity.Source == source && identity.InnerID == innerID {
			return true
		}
	}
	return false
}

func (s *Store) recordLocked(id int64) stations.StationRecord {
	station := s.stations[id]
	record := stations.StationRecord{
		ID:          station.ID,
		Coordinates: station.Point.GeoJSONPosition(),
		Geo:         station.Geo,
		Address:     station.Address,
		ExternalIDs: station.ExternalIDs,
		Rating:      station.Rating,
	}
	for _, identity := range s.sources {
		if identity.StationID == id {
			record.Sources = append(record.Sources, identity)
		}
	}
	return record
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
