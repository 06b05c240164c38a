package application

import (
	"context"
	"fmt"
	"time"

	"livecharge-api/internal/observability/metrics"
	stations "livecharge-api/internal/stations/domain"
)

// QueryService serves the read side: area lookups, source lookups and
// source listings.
type QueryService struct {
	repos Repositories
}

// NewQueryService constructs a QueryService.
func NewQueryService(repos Repositories) (*QueryService, error) {
	if err := repos.validate(); err != nil {
		return nil, err
	}
	return &QueryService{repos: repos}, nil
}

// GetByArea returns the stations inside the box ordered by id ascending.
func (s *QueryService) GetByArea(ctx context.Context, box stations.BoundingBox, limit, offset int) ([]stations.StationView, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, &stations.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if offset < 0 {
		return nil, &stations.ValidationError{Field: "offset", Reason: "must not be negative"}
	}

	start := time.Now()
	views, err := s.getByArea(ctx, box, limit, offset)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveAreaQuery(result, time.Since(start))
	return views, err
}

func (s *QueryService) getByArea(ctx context.Context, box stations.BoundingBox, limit, offset int) ([]stations.StationView, error) {
	rows, err := s.repos.Stations.ListByArea(ctx, box, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stations by area: %w", err)
	}
	return s.assemble(ctx, rows)
}

// GetBySourceIdentity returns the station bound to a source identity. A nil
// view with a nil error means no station is known under that identity.
func (s *QueryService) GetBySourceIdentity(ctx context.Context, source string, innerID int64) (*stations.StationView, error) {
	row, err := s.repos.Stations.GetBySource(ctx, source, innerID)
	if err != nil {
		return nil, fmt.Errorf("get station by source: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	views, err := s.assemble(ctx, []stations.StationRecord{*row})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// GetSources lists source identities for each requested station id, in
// request order with repeated ids removed.
func (s *QueryService) GetSources(ctx context.Context, stationIDs []int64) ([]stations.StationSources, error) {
	ids := uniqueIDs(stationIDs)
	if len(ids) == 0 {
		return []stations.StationSources{}, nil
	}
	byStation, err := s.repos.Sources.ListByStationIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	out := make([]stations.StationSources, 0, len(ids))
	for _, id := range ids {
		sources := byStation[id]
		if sources == nil {
			sources = []stations.SourceIdentity{}
		}
		out = append(out, stations.StationSources{StationID: id, Sources: sources})
	}
	return out, nil
}

func (s *QueryService) assemble(ctx context.Context, rows []stations.StationRecord) ([]stations.StationView, error) {
	if len(rows) == 0 {
		return []stations.StationView{}, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	extra, err := s.repos.fetchSubEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch sub-entities: %w", err)
	}

	views := make([]stations.StationView, 0, len(rows))
	for _, row := range rows {
		view, err := BuildStationView(row, extra.chargers[row.ID], extra.events[row.ID], extra.comments[row.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
