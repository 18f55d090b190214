package store

import (
	"time"

	"github.com/waspsec/wasp/internal/trust"
)

// QuarantinedMessage is a blocked inbound message held for review.
// Lifecycle: unreviewed -> reviewed (via release) -> deleted. Release keeps
// the rows for audit; delete is a separate, explicit operation.
type QuarantinedMessage struct {
	ID         int64          `json:"id"`
	Identifier string         `json:"identifier"`
	Platform   trust.Platform `json:"platform"`
	Preview    string         `json:"preview"`
	Body       string         `json:"body"`
	Reviewed   bool           `json:"reviewed"`
	CreatedAt  time.Time      `json:"created_at"`
}

// QuarantinePreviewLen is the maximum preview length in runes.
const QuarantinePreviewLen = 100

// Quarantine stores a blocked message with a truncated preview.
func (s *Store) Quarantine(identifier string, platform trust.Platform, message string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO quarantine (identifier, platform, preview, body, reviewed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		identifier, string(platform), Truncate(message, QuarantinePreviewLen), message, fmtTime(now()))
	return storageErr("quarantine", err)
}

// ListUnreviewed returns unreviewed messages, oldest first, up to limit
// (limit <= 0 means no cap).
func (s *Store) ListUnreviewed(limit int) ([]QuarantinedMessage, error) {
	query := `
		SELECT id, identifier, platform, preview, body, reviewed, created_at
		FROM quarantine WHERE reviewed = 0 ORDER BY id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryQuarantine(query, args...)
}

// ListQuarantineByIdentifier returns all messages held for one contact,
// oldest first.
func (s *Store) ListQuarantineByIdentifier(identifier string, platform trust.Platform) ([]QuarantinedMessage, error) {
	return s.queryQuarantine(`
		SELECT id, identifier, platform, preview, body, reviewed, created_at
		FROM quarantine WHERE identifier = ? AND platform = ? ORDER BY id ASC`,
		identifier, string(platform))
}

// ReleaseQuarantine marks a contact's unreviewed messages reviewed and
// returns them. A second release finds nothing, returns an empty slice, and
// performs no mutation.
func (s *Store) ReleaseQuarantine(identifier string, platform trust.Platform) ([]QuarantinedMessage, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	msgs, err := s.queryQuarantine(`
		SELECT id, identifier, platform, preview, body, reviewed, created_at
		FROM quarantine WHERE identifier = ? AND platform = ? AND reviewed = 0 ORDER BY id ASC`,
		identifier, string(platform))
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []QuarantinedMessage{}, nil
	}
	_, err = db.Exec(`UPDATE quarantine SET reviewed = 1 WHERE identifier = ? AND platform = ? AND reviewed = 0`,
		identifier, string(platform))
	if err != nil {
		return nil, storageErr("release quarantine", err)
	}
	for i := range msgs {
		msgs[i].Reviewed = true
	}
	return msgs, nil
}

// DeleteQuarantine removes all messages held for one contact. Returns how
// many rows were removed; zero rows yields ErrNotFound.
func (s *Store) DeleteQuarantine(identifier string, platform trust.Platform) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`DELETE FROM quarantine WHERE identifier = ? AND platform = ?`,
		identifier, string(platform))
	if err != nil {
		return 0, storageErr("delete quarantine", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// PurgeQuarantineOlderThan removes messages older than the given number of
// days regardless of review state.
func (s *Store) PurgeQuarantineOlderThan(days int) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`DELETE FROM quarantine WHERE created_at < ?`, cutoff(days))
	if err != nil {
		return 0, storageErr("purge quarantine", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) queryQuarantine(query string, args ...any) ([]QuarantinedMessage, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, storageErr("query quarantine", err)
	}
	defer rows.Close()

	msgs := []QuarantinedMessage{}
	for rows.Next() {
		var m QuarantinedMessage
		var platform, created string
		var reviewed int
		if err := rows.Scan(&m.ID, &m.Identifier, &platform, &m.Preview, &m.Body, &reviewed, &created); err != nil {
			return nil, storageErr("query quarantine", err)
		}
		m.Platform = trust.Platform(platform)
		m.Reviewed = reviewed != 0
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, storageErr("query quarantine", rows.Err())
}

// Truncate shortens s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
