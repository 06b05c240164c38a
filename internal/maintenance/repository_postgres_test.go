package maintenance_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livecharge-api/internal/maintenance"
	"livecharge-api/internal/platform/database"
)

func TestDuplicateChargers_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, dsn, database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.ApplySchema(ctx, db))
	_, err = db.ExecContext(ctx, "TRUNCATE stations, sources, chargers, events, comments RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	var stationID int64
	err = db.QueryRowContext(ctx,
		`INSERT INTO stations (coordinates) VALUES (ST_SetSRID(ST_MakePoint(24.9384, 60.1699), 4326)::geography) RETURNING id`,
	).Scan(&stationID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
INSERT INTO chargers (station_id, network, ocpi_ids) VALUES
	($1, 'network', '["A"]'),
	($1, 'network', '["A"]'),
	($1, 'network', '["A"]'),
	($1, 'other', '["A"]'),
	($1, 'network', NULL),
	($1, 'network', NULL)`, stationID)
	require.NoError(t, err)

	service, err := maintenance.NewService(maintenance.NewRepository(db), nil)
	require.NoError(t, err)

	report, err := service.Identify(ctx)
	require.NoError(t, err)
	require.Len(t, report.Groups, 2)
	assert.Equal(t, 3, report.Redundant())

	result, err := service.Clean(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Deleted)

	var remaining int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chargers").Scan(&remaining))
	assert.Equal(t, 3, remaining)

	report, err = service.Identify(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
}
