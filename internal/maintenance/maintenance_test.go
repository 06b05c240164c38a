package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	groups    []DuplicateGroup
	deleted   int64
	deletes   int
	deleteErr error
}

func (f *fakeStore) IdentifyDuplicateChargers(context.Context) ([]DuplicateGroup, error) {
	return f.groups, nil
}

func (f *fakeStore) DeleteDuplicateChargers(context.Context) (int64, error) {
	f.deletes++
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.deleted, nil
}

func duplicates() []DuplicateGroup {
	return []DuplicateGroup{
		{StationID: 1, Network: "network", OCPIIDs: []string{"X"}, Count: 2},
		{StationID: 2, Network: "network", OCPIIDs: []string{"Y"}, Count: 3},
	}
}

func TestReportMessage(t *testing.T) {
	assert.Equal(t, "No duplicate records found.", Report{}.Message())
	report := Report{Groups: duplicates()}
	assert.Equal(t, "Found 2 groups of duplicate records.", report.Message())
	assert.Equal(t, 3, report.Redundant())
}

func TestCleanDeletesDuplicates(t *testing.T) {
	store := &fakeStore{groups: duplicates(), deleted: 3}
	service, err := NewService(store, nil)
	require.NoError(t, err)

	result, err := service.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Deleted)
	assert.Equal(t, 1, store.deletes)
}

func TestCleanDryRunAndNothingToDo(t *testing.T) {
	store := &fakeStore{groups: duplicates()}
	service, err := NewService(store, nil)
	require.NoError(t, err)

	result, err := service.Clean(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Zero(t, store.deletes)

	store.groups = nil
	_, err = service.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, store.deletes)
}

func TestCleanPropagatesDeleteError(t *testing.T) {
	store := &fakeStore{groups: duplicates(), deleteErr: errors.New("db down")}
	service, err := NewService(store, nil)
	require.NoError(t, err)

	_, err = service.Clean(context.Background(), false)
	assert.Error(t, err)
}

func TestSchedulerShouldRun(t *testing.T) {
	s := NewScheduler(nil, "03:30", nil)
	assert.True(t, s.shouldRun(time.Date(2024, 3, 3, 3, 30, 0, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2024, 3, 3, 3, 31, 0, 0, time.UTC)))

	broken := NewScheduler(nil, "later", nil)
	assert.False(t, broken.shouldRun(time.Date(2024, 3, 3, 3, 30, 0, 0, time.UTC)))
}

func TestHandler(t *testing.T) {
	store := &fakeStore{groups: duplicates(), deleted: 3}
	service, err := NewService(store, nil)
	require.NoError(t, err)
	handler, err := NewHandler(service, nil)
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/inner/api/maintenance/chargers", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var report resultDTO
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	assert.Len(t, report.Groups, 2)
	assert.True(t, report.DryRun)
	assert.Zero(t, store.deletes)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/inner/api/maintenance/chargers", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var cleaned resultDTO
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cleaned))
	assert.Equal(t, int64(3), cleaned.Deleted)
	assert.Equal(t, 1, store.deletes)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/inner/api/maintenance/chargers", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
