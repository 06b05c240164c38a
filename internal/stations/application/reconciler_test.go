package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livecharge-api/internal/stations/application"
	stations "livecharge-api/internal/stations/domain"
	"livecharge-api/internal/stations/infrastructure/memory"
)

var ingestTime = time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }

func repositories(store *memory.Store) application.Repositories {
	return application.Repositories{
		Stations: store.Stations(),
		Sources:  store.Sources(),
		Chargers: store.Chargers(),
		Events:   store.Events(),
		Comments: store.Comments(),
	}
}

func newReconciler(t *testing.T, repos application.Repositories) *application.Reconciler {
	t.Helper()
	reconciler, err := application.NewReconciler(repos)
	require.NoError(t, err)
	return reconciler
}

func helsinkiObservation(source string, innerID int64) stations.Observation {
	return stations.Observation{
		Point:       stations.Point{Lat: 60.1699, Lon: 24.9384},
		Source:      stations.SourceRef{Source: source, InnerID: innerID},
		Address:     strPtr("Helsinki"),
		ExternalIDs: []string{"HEL01", "HEL02"},
		Chargers:    []stations.Charger{{Network: "network", IDs: []string{"FI777", "FI888"}}},
		Events: []stations.Event{
			{Source: source, ChargedAt: ingestTime, Name: strPtr("Tesla"), IsProblem: boolPtr(false)},
		},
		Comments: []stations.Comment{
			{Source: source, Text: "Great station!", CreatedAt: ingestTime, UserName: strPtr("Ilia"), Rating: intPtr(1)},
		},
	}
}

func TestNewReconciler_RequiresRepositories(t *testing.T) {
	_, err := application.NewReconciler(application.Repositories{})
	require.Error(t, err)
}

func TestResolveOrCreate_SameSourceSurvivesDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	obs := helsinkiObservation("plug_share", 1)
	first, resolution, err := reconciler.ResolveOrCreateStation(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, application.ResolvedCreated, resolution)

	drifted := obs
	drifted.Point = stations.Point{Lat: obs.Point.Lat + 0.01, Lon: obs.Point.Lon + 0.01}
	second, resolution, err := reconciler.ResolveOrCreateStation(ctx, drifted)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, application.ResolvedBySource, resolution)

	counts := store.Counts()
	assert.Equal(t, 1, counts.Stations)
	assert.Equal(t, 1, counts.Sources)
}

func TestResolveOrCreate_NewSourceNearbyAttaches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	first, _, err := reconciler.ResolveOrCreateStation(ctx, helsinkiObservation("plug_share", 1))
	require.NoError(t, err)

	nearby := helsinkiObservation("charge_point", 77)
	nearby.Point.Lat += 0.0005 // about 55 m north
	second, resolution, err := reconciler.ResolveOrCreateStation(ctx, nearby)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, application.ResolvedByProximity, resolution)

	counts := store.Counts()
	assert.Equal(t, 1, counts.Stations)
	assert.Equal(t, 2, counts.Sources)
}

func TestResolveOrCreate_NewSourceFarAwayCreates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	first, _, err := reconciler.ResolveOrCreateStation(ctx, helsinkiObservation("plug_share", 1))
	require.NoError(t, err)

	far := helsinkiObservation("charge_point", 77)
	far.Point.Lat += 0.002 // about 220 m north
	second, resolution, err := reconciler.ResolveOrCreateStation(ctx, far)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, application.ResolvedCreated, resolution)
	assert.Equal(t, 2, store.Counts().Stations)
}

func TestResolveOrCreate_ProximityRadiusOption(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler, err := application.NewReconciler(repositories(store), application.WithProximityRadius(500))
	require.NoError(t, err)

	_, _, err = reconciler.ResolveOrCreateStation(ctx, helsinkiObservation("plug_share", 1))
	require.NoError(t, err)
	far := helsinkiObservation("charge_point", 77)
	far.Point.Lat += 0.002
	_, resolution, err := reconciler.ResolveOrCreateStation(ctx, far)
	require.NoError(t, err)
	assert.Equal(t, application.ResolvedByProximity, resolution)
}

func TestMergeOrCreate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))
	obs := helsinkiObservation("plug_share", 2024)

	results, err := reconciler.MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].EventsInserted)
	assert.Equal(t, 1, results[0].CommentsInserted)
	assert.Equal(t, 1, results[0].ChargersInserted)
	afterFirst := store.Counts()

	results, err = reconciler.MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, application.ResolvedBySource, results[0].Resolution)
	assert.Zero(t, results[0].EventsInserted)
	assert.Zero(t, results[0].CommentsInserted)
	assert.Zero(t, results[0].ChargersInserted)
	assert.Equal(t, afterFirst, store.Counts())
}

func TestMergeOrCreate_ChargerIDOrderIsIrrelevant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	obs := helsinkiObservation("plug_share", 1)
	obs.Chargers = []stations.Charger{{Network: "n", IDs: []string{"x", "y"}}, {Network: "n", IDs: []string{}}}
	_, err := reconciler.MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)

	again := obs
	again.Chargers = []stations.Charger{{Network: "n", IDs: []string{"y", "x"}}, {Network: "n"}}
	results, err := reconciler.MergeOrCreate(ctx, []stations.Observation{again})
	require.NoError(t, err)
	assert.Zero(t, results[0].ChargersInserted)
	assert.Equal(t, 2, store.Counts().Chargers)
}

func TestMergeOrCreate_EventToleranceWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	obs := helsinkiObservation("plug_share", 1)
	_, err := reconciler.MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)

	skewed := obs
	skewed.Events = []stations.Event{{Source: "plug_share", ChargedAt: ingestTime.Add(30 * time.Second), Name: strPtr("Tesla"), IsProblem: boolPtr(false)}}
	results, err := reconciler.MergeOrCreate(ctx, []stations.Observation{skewed})
	require.NoError(t, err)
	assert.Zero(t, results[0].EventsInserted)
	assert.Equal(t, 1, store.Counts().Events)

	apart := obs
	apart.Events = []stations.Event{{Source: "plug_share", ChargedAt: ingestTime.Add(90 * time.Second), Name: strPtr("Tesla"), IsProblem: boolPtr(false)}}
	results, err = reconciler.MergeOrCreate(ctx, []stations.Observation{apart})
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].EventsInserted)
	assert.Equal(t, 2, store.Counts().Events)
}

func TestMergeOrCreate_ValidationBeforeStoreAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))

	good := helsinkiObservation("plug_share", 1)
	bad := helsinkiObservation("plug_share", 2)
	bad.Point.Lat = 120

	_, err := reconciler.MergeOrCreate(ctx, []stations.Observation{good, bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, stations.ErrValidation)
	assert.Equal(t, memory.Counts{}, store.Counts())
}

type failingChargers struct {
	stations.ChargerRepository
	err error
}

func (f failingChargers) Insert(context.Context, int64, []stations.Charger) error { return f.err }

type failingComments struct {
	stations.CommentRepository
	err error
}

func (f failingComments) Insert(context.Context, int64, []stations.Comment) error { return f.err }

func TestMergeOrCreate_PersistFailuresAreAllReported(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := repositories(store)
	chargerErr := errors.New("chargers down")
	commentErr := errors.New("comments down")
	repos.Chargers = failingChargers{ChargerRepository: store.Chargers(), err: chargerErr}
	repos.Comments = failingComments{CommentRepository: store.Comments(), err: commentErr}
	reconciler := newReconciler(t, repos)

	_, err := reconciler.MergeOrCreate(ctx, []stations.Observation{helsinkiObservation("plug_share", 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, chargerErr)
	assert.ErrorIs(t, err, commentErr)

	// the sibling kind is not rolled back
	assert.Equal(t, 1, store.Counts().Events)
}

func TestMergeOrCreate_RetryAfterPartialFailureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := repositories(store)
	repos.Chargers = failingChargers{ChargerRepository: store.Chargers(), err: errors.New("chargers down")}
	obs := helsinkiObservation("plug_share", 1)

	_, err := newReconciler(t, repos).MergeOrCreate(ctx, []stations.Observation{obs})
	require.Error(t, err)

	results, err := newReconciler(t, repositories(store)).MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)
	assert.Zero(t, results[0].EventsInserted)
	assert.Equal(t, 1, results[0].ChargersInserted)
	assert.Equal(t, memory.Counts{Stations: 1, Sources: 1, Chargers: 1, Events: 1, Comments: 1}, store.Counts())
}

type conflictingSources struct {
	stations.SourceRepository
}

func (conflictingSources) Add(context.Context, stations.SourceIdentity) error {
	return stations.ErrConflict
}

func TestMergeOrCreate_ConflictIsPropagated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, _, err := newReconciler(t, repositories(store)).ResolveOrCreateStation(ctx, helsinkiObservation("plug_share", 1))
	require.NoError(t, err)

	repos := repositories(store)
	repos.Sources = conflictingSources{SourceRepository: store.Sources()}
	_, err = newReconciler(t, repos).MergeOrCreate(ctx, []stations.Observation{helsinkiObservation("charge_point", 9)})
	require.Error(t, err)
	assert.ErrorIs(t, err, stations.ErrConflict)
}

func TestMergeOrCreate_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := repositories(store)
	repos.Sources = conflictingSources{SourceRepository: store.Sources()}
	reconciler := newReconciler(t, repos)

	first := helsinkiObservation("plug_share", 1)
	second := helsinkiObservation("charge_point", 2)
	third := helsinkiObservation("other", 3)
	third.Point.Lat = 10

	results, err := reconciler.MergeOrCreate(ctx, []stations.Observation{first, second, third})
	require.ErrorIs(t, err, stations.ErrConflict)
	require.Len(t, results, 1)
	assert.Equal(t, application.ResolvedCreated, results[0].Resolution)
	assert.Equal(t, 1, store.Counts().Stations)
}

func TestFilterNewSubEntities(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reconciler := newReconciler(t, repositories(store))
	obs := helsinkiObservation("plug_share", 1)
	results, err := reconciler.MergeOrCreate(ctx, []stations.Observation{obs})
	require.NoError(t, err)
	stationID := results[0].StationID

	incoming := stations.Delta{
		Events: []stations.Event{
			{Source: "plug_share", ChargedAt: ingestTime.Add(-54 * time.Second), Name: strPtr("Tesla"), IsProblem: boolPtr(false)},
			{Source: "plug_share", ChargedAt: ingestTime, Name: strPtr("honda"), IsProblem: boolPtr(false)},
		},
		Comments: []stations.Comment{
			{Source: "plug_share", Text: "Great station!", CreatedAt: ingestTime, UserName: strPtr("Ilia"), Rating: intPtr(-1)},
		},
		Chargers: []stations.Charger{{Network: "network", IDs: []string{"FI888", "FI777"}}},
	}
	delta, err := reconciler.FilterNewSubEntities(ctx, stationID, incoming)
	require.NoError(t, err)
	assert.Equal(t, []stations.Event{incoming.Events[1]}, delta.Events)
	assert.Empty(t, delta.Comments)
	assert.Empty(t, delta.Chargers)
}
