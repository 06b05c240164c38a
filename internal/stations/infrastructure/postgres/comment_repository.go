package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stations "livecharge-api/internal/stations/domain"
)

const defaultCommentsTable = "comments"

// CommentRepository persists user comments.
type CommentRepository struct {
	db    DBTX
	table string
}

// CommentOption configures the repository.
type CommentOption func(*CommentRepository)

// WithCommentTable overrides the default table name.
func WithCommentTable(table string) CommentOption {
	return func(repo *CommentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewCommentRepository constructs a repository.
func NewCommentRepository(db DBTX, opts ...CommentOption) *CommentRepository {
	repo := &CommentRepository{db: db, table: defaultCommentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListByStationIDs groups comments by station id, newest first.
func (r *CommentRepository) ListByStationIDs(ctx context.Context, stationIDs []int64) (map[int64][]stations.Comment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("comment repo: nil db")
	}
	out := make(map[int64][]stations.Comment)
	if len(stationIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
SELECT station_id, source, text, created_at, user_name, rating
FROM %s
WHERE station_id = ANY($1)
ORDER BY station_id, created_at DESC, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationIDs)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			comment  stations.Comment
			userName sql.NullString
			rating   sql.NullInt64
		)
		if err := rows.Scan(&comment.StationID, &comment.Source, &comment.Text, &comment.CreatedAt, &userName, &rating); err != nil {
			return nil, classify(err)
		}
		comment.CreatedAt = comment.CreatedAt.UTC()
		comment.UserName = stringPtr(userName)
		if rating.Valid {
			value := int(rating.Int64)
			comment.Rating = &value
		}
		out[comment.StationID] = append(out[comment.StationID], comment)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Insert writes comments in one statement.
func (r *CommentRepository) Insert(ctx context.Context, stationID int64, comments []stations.Comment) error {
	if r == nil || r.db == nil {
		return errors.New("comment repo: nil db")
	}
	rows := make([][]any, 0, len(comments))
	for _, comment := range comments {
		var rating sql.NullInt64
		if comment.Rating != nil {
			rating = sql.NullInt64{Int64: int64(*comment.Rating), Valid: true}
		}
		rows = append(rows, []any{stationID, comment.Source, comment.Text, comment.CreatedAt.UTC(), nullString(comment.UserName), rating})
	}
	return bulkInsert(ctx, r.db, r.table, []string{"station_id", "source", "text", "created_at", "user_name", "rating"}, rows)
}
