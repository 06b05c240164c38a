package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stations "livecharge-api/internal/stations/domain"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "sources_source_inner_id_key"}
	assert.ErrorIs(t, classify(fmt.Errorf("insert: %w", unique)), stations.ErrConflict)

	other := &pgconn.PgError{Code: "42P01"}
	err := classify(other)
	assert.NotErrorIs(t, err, stations.ErrConflict)
	assert.NotErrorIs(t, err, stations.ErrStoreUnavailable)

	assert.ErrorIs(t, classify(driver.ErrBadConn), stations.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(sql.ErrConnDone), stations.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), stations.ErrStoreUnavailable)

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}

func TestEncodeDecodeIDs(t *testing.T) {
	encoded, err := encodeIDs(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)

	encoded, err = encodeIDs([]string{})
	require.NoError(t, err)
	assert.Nil(t, encoded)

	encoded, err = encodeIDs([]string{"FI777", "FI888"})
	require.NoError(t, err)
	assert.Equal(t, `["FI777","FI888"]`, encoded)

	ids, err := decodeIDs([]byte(`["FI777","FI888"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"FI777", "FI888"}, ids)

	ids, err = decodeIDs([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = decodeIDs([]byte(`[]`))
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = decodeIDs([]byte(`{`))
	assert.Error(t, err)
}

type recordingDB struct {
	query string
	args  []any
}

func (d *recordingDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	d.query = query
	d.args = args
	return driver.RowsAffected(0), nil
}

func (d *recordingDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *recordingDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestBulkInsertBuildsSingleStatement(t *testing.T) {
	db := &recordingDB{}
	err := bulkInsert(context.Background(), db, "events", []string{"station_id", "source"}, [][]any{
		{int64(1), "plug_share"},
		{int64(1), "charge_point"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO events (station_id, source) VALUES ($1, $2), ($3, $4)", db.query)
	assert.Equal(t, []any{int64(1), "plug_share", int64(1), "charge_point"}, db.args)
}

func TestBulkInsertSkipsEmptyAndRejectsRaggedRows(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, bulkInsert(context.Background(), db, "events", []string{"a"}, nil))
	assert.Empty(t, db.query)

	err := bulkInsert(context.Background(), db, "events", []string{"a", "b"}, [][]any{{1}})
	assert.Error(t, err)
}

func TestCommentInsertMapsNullableColumns(t *testing.T) {
	db := &recordingDB{}
	repo := NewCommentRepository(db)
	err := repo.Insert(context.Background(), 9, []stations.Comment{{Source: "plug_share", Text: "ok"}})
	require.NoError(t, err)
	require.Len(t, db.args, 6)
	assert.Equal(t, int64(9), db.args[0])
	assert.Equal(t, sql.NullString{}, db.args[4])
	assert.Equal(t, sql.NullInt64{}, db.args[5])
}
