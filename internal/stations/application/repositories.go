package application

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	stations "livecharge-api/internal/stations/domain"
)

// Repositories bundles the store accessors the station services need.
type Repositories struct {
	Stations stations.StationRepository
	Sources  stations.SourceRepository
	Chargers stations.ChargerRepository
	Events   stations.EventRepository
	Comments stations.CommentRepository
}

func (r Repositories) validate() error {
	switch {
	case r.Stations == nil:
		return errors.New("stations: nil station repository")
	case r.Sources == nil:
		return errors.New("stations: nil source repository")
	case r.Chargers == nil:
		return errors.New("stations: nil charger repository")
	case r.Events == nil:
		return errors.New("stations: nil event repository")
	case r.Comments == nil:
		return errors.New("stations: nil comment repository")
	}
	return nil
}

// subEntities holds sub-entity rows grouped by station id.
type subEntities struct {
	chargers map[int64][]stations.Charger
	events   map[int64][]stations.Event
	comments map[int64][]stations.Comment
}

func (s subEntities) delta(stationID int64) stations.Delta {
	return stations.Delta{
		Events:   s.events[stationID],
		Comments: s.comments[stationID],
		Chargers: s.chargers[stationID],
	}
}

// fetchSubEntities loads chargers, events and comments for all ids with one
// batched call per kind. The three calls run concurrently and all must succeed.
func (r Repositories) fetchSubEntities(ctx context.Context, stationIDs []int64) (subEntities, error) {
	var out subEntities
	if len(stationIDs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.Chargers.ListByStationIDs(gctx, stationIDs)
		out.chargers = rows
		return err
	})
	g.Go(func() error {
		rows, err := r.Events.ListByStationIDs(gctx, stationIDs)
		out.events = rows
		return err
	})
	g.Go(func() error {
		rows, err := r.Comments.ListByStationIDs(gctx, stationIDs)
		out.comments = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return subEntities{}, err
	}
	return out, nil
}
