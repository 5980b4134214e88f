package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// HistoryRepository persists the trace of every completed request.  It
// implements insight.HistoryRecorder.
type HistoryRepository struct {
	db     queryExecutor
	logger logging.Logger
}

var _ insight.HistoryRecorder = (*HistoryRepository)(nil)

func NewHistoryRepository(conn *Connection, log logging.Logger) *HistoryRepository {
	return &HistoryRepository{db: conn.DB(), logger: log.Named("history_repo")}
}

const insertHistorySQL = `
INSERT INTO query_history (id, fingerprint, query_text, persona, endpoints, status, cache_hit, elapsed_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Record inserts one history entry.
func (r *HistoryRepository) Record(ctx context.Context, e *insight.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.ID,
		e.Fingerprint,
		e.QueryText,
		e.Persona,
		pq.Array(e.Endpoints),
		e.Status,
		e.CacheHit,
		e.Elapsed.Milliseconds(),
		e.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert history entry")
	}
	return nil
}

const listHistorySQL = `
SELECT id, fingerprint, query_text, persona, endpoints, status, cache_hit, elapsed_ms, created_at
FROM query_history
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

// List returns the most recent entries, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit, offset int) ([]*insight.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listHistorySQL, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query history")
	}
	defer rows.Close()

	var out []*insight.HistoryEntry
	for rows.Next() {
		var (
			e         insight.HistoryEntry
			endpoints pq.StringArray
			elapsedMS int64
		)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.QueryText, &e.Persona,
			&endpoints, &e.Status, &e.CacheHit, &elapsedMS, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan history row")
		}
		e.Endpoints = endpoints
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "history iteration failed")
	}
	return out, nil
}

const purgeHistorySQL = `DELETE FROM query_history WHERE created_at < $1`

// Purge deletes entries older than the cutoff and returns how many went.
func (r *HistoryRepository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeHistorySQL, olderThan)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to purge history")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count purged history")
	}
	r.logger.Debug("purged history entries", logging.Int64("deleted", n))
	return n, nil
}
