package store

import (
	"time"

	"github.com/waspsec/wasp/internal/trust"
)

// AuditEntry is one immutable decision record. Rows are never updated;
// retention is by age-based purge only.
type AuditEntry struct {
	ID         int64          `json:"id"`
	TraceID    string         `json:"trace_id,omitempty"`
	Identifier string         `json:"identifier"`
	Platform   trust.Platform `json:"platform"`
	Decision   string         `json:"decision"` // allow, deny, limited
	Reason     string         `json:"reason"`
	CreatedAt  time.Time      `json:"created_at"`
}

// MaxAuditLimit caps how many audit rows a single query may return.
const MaxAuditLimit = 1000

// DefaultAuditLimit applies when a caller does not specify a limit.
const DefaultAuditLimit = 50

// AuditQuery filters an audit log read. Limit < 0 means DefaultAuditLimit;
// Limit == 0 returns zero rows.
type AuditQuery struct {
	Limit    int
	Decision string
	Since    time.Time
}

// AppendAudit writes one decision record.
func (s *Store) AppendAudit(e AuditEntry) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = now()
	}
	_, err = db.Exec(`
		INSERT INTO audit_log (trace_id, identifier, platform, decision, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.TraceID, e.Identifier, string(e.Platform), e.Decision, e.Reason, fmtTime(ts))
	return storageErr("append audit", err)
}

// QueryAudit returns matching entries newest-first.
func (s *Store) QueryAudit(q AuditQuery) ([]AuditEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit < 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	if limit == 0 {
		return []AuditEntry{}, nil
	}

	query := `SELECT id, trace_id, identifier, platform, decision, reason, created_at FROM audit_log`
	var args []any
	var where []string
	if q.Decision != "" {
		where = append(where, `decision = ?`)
		args = append(args, q.Decision)
	}
	if !q.Since.IsZero() {
		where = append(where, `created_at >= ?`)
		args = append(args, fmtTime(q.Since))
	}
	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, storageErr("query audit", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var platform, created string
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Identifier, &platform, &e.Decision, &e.Reason, &created); err != nil {
			return nil, storageErr("query audit", err)
		}
		e.Platform = trust.Platform(platform)
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, storageErr("query audit", rows.Err())
}

// PurgeAuditOlderThan removes entries older than the given number of days.
// Returns how many rows were removed.
func (s *Store) PurgeAuditOlderThan(days int) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`DELETE FROM audit_log WHERE created_at < ?`, cutoff(days))
	if err != nil {
		return 0, storageErr("purge audit", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
