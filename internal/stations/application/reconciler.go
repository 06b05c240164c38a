package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"livecharge-api/internal/observability/metrics"
	stations "livecharge-api/internal/stations/domain"
)

// Resolution tells how an observation was matched to a station.
type Resolution string

const (
	ResolvedBySource    Resolution = "source"
	ResolvedByProximity Resolution = "proximity"
	ResolvedCreated     Resolution = "created"
)

// MergeResult reports what ingesting one observation did.
type MergeResult struct {
	StationID        int64
	Resolution       Resolution
	EventsInserted   int
	CommentsInserted int
	ChargersInserted int
}

// Reconciler resolves station identity on ingest and merges sub-entities
// idempotently.
type Reconciler struct {
	repos  Repositories
	radius float64
	logger *zap.Logger
}

// ReconcilerOption configures the reconciler.
type ReconcilerOption func(*Reconciler)

// WithProximityRadius overrides the proximity match radius in meters.
func WithProximityRadius(meters float64) ReconcilerOption {
	return func(r *Reconciler) {
		if meters > 0 {
			r.radius = meters
		}
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler constructs a Reconciler.
func NewReconciler(repos Repositories, opts ...ReconcilerOption) (*Reconciler, error) {
	if err := repos.validate(); err != nil {
		return nil, err
	}
	r := &Reconciler{repos: repos, radius: stations.ProximityRadiusMeters, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveOrCreateStation returns the station an observation refers to,
// binding a new source identity or creating the station when needed.
func (r *Reconciler) ResolveOrCreateStation(ctx context.Context, obs stations.Observation) (int64, Resolution, error) {
	source := obs.Source
	stationID, ok, err := r.repos.Sources.FindStationID(ctx, source.Source, source.InnerID)
	if err != nil {
		return 0, "", fmt.Errorf("find station by source: %w", err)
	}
	if ok {
		return stationID, ResolvedBySource, nil
	}

	stationID, ok, err = r.repos.Stations.FindNearest(ctx, obs.Point, r.radius)
	if err != nil {
		return 0, "", fmt.Errorf("find station by coordinates: %w", err)
	}
	if ok {
		identity := stations.SourceIdentity{StationID: stationID, Source: source.Source, InnerID: source.InnerID}
		if err := r.repos.Sources.Add(ctx, identity); err != nil {
			return 0, "", fmt.Errorf("add source: %w", err)
		}
		return stationID, ResolvedByProximity, nil
	}

	stationID, err = r.repos.Stations.Create(ctx, obs.NewStation(), source)
	if err != nil {
		return 0, "", fmt.Errorf("create station: %w", err)
	}
	return stationID, ResolvedCreated, nil
}

// FilterNewSubEntities returns the part of the incoming payload that is not
// already stored for the station.
func (r *Reconciler) FilterNewSubEntities(ctx context.Context, stationID int64, incoming stations.Delta) (stations.Delta, error) {
	stored, err := r.repos.fetchSubEntities(ctx, []int64{stationID})
	if err != nil {
		return stations.Delta{}, fmt.Errorf("fetch stored sub-entities: %w", err)
	}
	return stations.ComputeDelta(stored.delta(stationID), incoming), nil
}

// MergeOrCreate ingests observations one after another. The batch is
// validated up front; processing stops at the first failing observation and
// the results of the observations already merged are returned with the error.
func (r *Reconciler) MergeOrCreate(ctx context.Context, observations []stations.Observation) ([]MergeResult, error) {
	for i, obs := range observations {
		if err := obs.Validate(); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
	}

	results := make([]MergeResult, 0, len(observations))
	for i, obs := range observations {
		start := time.Now()
		result, err := r.mergeOne(ctx, obs)
		if err != nil {
			metrics.ObserveMerge(metrics.ResultError, time.Since(start))
			r.logger.Error("station merge failed",
				zap.Int("index", i),
				zap.String("source", obs.Source.Source),
				zap.Int64("inner_id", obs.Source.InnerID),
				zap.Error(err),
			)
			return results, fmt.Errorf("observation %d: %w", i, err)
		}
		metrics.ObserveMerge(metrics.ResultSuccess, time.Since(start))
		r.logger.Debug("station merged",
			zap.Int64("station_id", result.StationID),
			zap.String("resolution", string(result.Resolution)),
			zap.Int("events", result.EventsInserted),
			zap.Int("comments", result.CommentsInserted),
			zap.Int("chargers", result.ChargersInserted),
		)
		results = append(results, result)
	}
	return results, nil
}

func (r *Reconciler) mergeOne(ctx context.Context, obs stations.Observation) (MergeResult, error) {
	stationID, resolution, err := r.ResolveOrCreateStation(ctx, obs)
	if err != nil {
		return MergeResult{}, err
	}
	metrics.IncResolution(string(resolution))

	delta, err := r.FilterNewSubEntities(ctx, stationID, incomingDelta(obs))
	if err != nil {
		return MergeResult{StationID: stationID, Resolution: resolution}, err
	}
	if err := r.persist(ctx, stationID, delta); err != nil {
		return MergeResult{StationID: stationID, Resolution: resolution}, err
	}
	return MergeResult{
		StationID:        stationID,
		Resolution:       resolution,
		EventsInserted:   len(delta.Events),
		CommentsInserted: len(delta.Comments),
		ChargersInserted: len(delta.Chargers),
	}, nil
}

func incomingDelta(obs stations.Observation) stations.Delta {
	chargers := make([]stations.Charger, 0, len(obs.Chargers))
	for _, charger := range obs.Chargers {
		charger.IDs = stations.NormalizeIDs(charger.IDs)
		chargers = append(chargers, charger)
	}
	return stations.Delta{Events: obs.Events, Comments: obs.Comments, Chargers: chargers}
}

// persist writes the three sub-entity kinds concurrently. A failing kind does
// not cancel or roll back the others; every failure is reported.
func (r *Reconciler) persist(ctx context.Context, stationID int64, delta stations.Delta) error {
	if delta.Empty() {
		return nil
	}
	var g errgroup.Group
	var eventsErr, commentsErr, chargersErr error
	if len(delta.Events) > 0 {
		g.Go(func() error {
			if eventsErr = r.repos.Events.Insert(ctx, stationID, delta.Events); eventsErr != nil {
				eventsErr = fmt.Errorf("insert events: %w", eventsErr)
			} else {
				metrics.AddInserted("event", len(delta.Events))
			}
			return eventsErr
		})
	}
	if len(delta.Comments) > 0 {
		g.Go(func() error {
			if commentsErr = r.repos.Comments.Insert(ctx, stationID, delta.Comments); commentsErr != nil {
				commentsErr = fmt.Errorf("insert comments: %w", commentsErr)
			} else {
				metrics.AddInserted("comment", len(delta.Comments))
			}
			return commentsErr
		})
	}
	if len(delta.Chargers) > 0 {
		g.Go(func() error {
			if chargersErr = r.repos.Chargers.Insert(ctx, stationID, delta.Chargers); chargersErr != nil {
				chargersErr = fmt.Errorf("insert chargers: %w", chargersErr)
			} else {
				metrics.AddInserted("charger", len(delta.Chargers))
			}
			return chargersErr
		})
	}
	_ = g.Wait()
	return errors.Join(eventsErr, commentsErr, chargersErr)
}
