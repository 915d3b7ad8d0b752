package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/lwfm/internal/common"
)

// Bucket pillar values for the uniform store table.
const (
	pillarWorkflow    = "run.wf"
	pillarStatus      = "run.status"
	pillarEventPrefix = "run.event." // + event type tag
	pillarMetasheet   = "repo.meta"
	pillarLogPrefix   = "run.log." // + level
)

// Write retry bounds for busy/locked errors. Readers never retry.
const (
	writeRetryAttempts = 5
	writeRetryBase     = 100 * time.Millisecond
)

// record is one row of the uniform store table.
type record struct {
	id     string
	ts     int64
	site   string
	pillar string
	key    string
	data   string
}

// newRecord stamps a record with a fresh id and a nanosecond timestamp so
// per-bucket ordering is total in practice; rowid breaks residual ties.
func newRecord(site, pillar, key, data string) *record {
	return &record{
		id:     common.NewID(),
		ts:     time.Now().UTC().UnixNano(),
		site:   site,
		pillar: pillar,
		key:    key,
		data:   data,
	}
}

// isBusyErr reports whether the error is a transient SQLite busy/locked
// condition worth retrying.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// putRecord inserts a row, retrying busy/locked errors with bounded
// exponential backoff.
func (s *SQLiteDB) putRecord(ctx context.Context, rec *record) error {
	const query = `
		INSERT INTO lwfm_store (id, ts, site, pillar, key, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var err error
	delay := writeRetryBase
	for attempt := 0; attempt < writeRetryAttempts; attempt++ {
		_, err = s.db.ExecContext(ctx, query, rec.id, rec.ts, rec.site, rec.pillar, rec.key, rec.data)
		if err == nil {
			return nil
		}
		if !isBusyErr(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

// queryRecords returns rows of one bucket newest-first, optionally filtered
// by key. limit <= 0 means no limit.
func (s *SQLiteDB) queryRecords(ctx context.Context, pillar, key string, limit int) ([]*record, error) {
	query := `SELECT id, ts, site, pillar, key, data FROM lwfm_store WHERE pillar = ?`
	args := []interface{}{pillar}
	if key != "" {
		query += ` AND key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY ts DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.scanRecords(ctx, query, args...)
}

// queryRecordsLike returns rows of buckets matching a pillar LIKE pattern
// and an optional data LIKE pattern, newest-first.
func (s *SQLiteDB) queryRecordsLike(ctx context.Context, pillarPattern, dataPattern string) ([]*record, error) {
	query := `SELECT id, ts, site, pillar, key, data FROM lwfm_store WHERE pillar LIKE ?`
	args := []interface{}{pillarPattern}
	if dataPattern != "" {
		query += ` AND data LIKE ?`
		args = append(args, dataPattern)
	}
	query += ` ORDER BY ts DESC, rowid DESC`
	return s.scanRecords(ctx, query, args...)
}

func (s *SQLiteDB) scanRecords(ctx context.Context, query string, args ...interface{}) ([]*record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*record
	for rows.Next() {
		rec := &record{}
		if err := rows.Scan(&rec.id, &rec.ts, &rec.site, &rec.pillar, &rec.key, &rec.data); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// deleteByKey removes rows matching a pillar LIKE pattern and key,
// returning the number of rows removed.
func (s *SQLiteDB) deleteByKey(ctx context.Context, pillarPattern, key string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM lwfm_store WHERE pillar LIKE ? AND key = ?`, pillarPattern, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// deleteOlderThan removes rows of matching buckets older than the cutoff.
func (s *SQLiteDB) deleteOlderThan(ctx context.Context, pillarPattern string, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM lwfm_store WHERE pillar LIKE ? AND ts < ?`, pillarPattern, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
