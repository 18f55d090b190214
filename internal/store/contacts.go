package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/waspsec/wasp/internal/trust"
)

// Contact is one whitelist row, unique by (identifier, platform).
// Identifiers are compared byte-exact: no case folding, no whitespace or
// Unicode normalization. Callers that accept multiple written forms of the
// same sender must enter all forms.
type Contact struct {
	ID         int64          `json:"id"`
	Identifier string         `json:"identifier"`
	Platform   trust.Platform `json:"platform"`
	Name       string         `json:"name,omitempty"`
	Trust      trust.Level    `json:"trust"`
	Notes      string         `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// UpsertContact inserts or updates a contact. On conflict the trust level is
// overwritten; name and notes are updated only when non-empty so a partial
// update cannot erase them.
func (s *Store) UpsertContact(identifier string, platform trust.Platform, level trust.Level, name, notes string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO contacts (identifier, platform, name, trust, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier, platform) DO UPDATE SET
			trust = excluded.trust,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			notes = CASE WHEN excluded.notes != '' THEN excluded.notes ELSE contacts.notes END`,
		identifier, string(platform), name, string(level), notes, fmtTime(now()))
	return storageErr("upsert contact", err)
}

// RemoveContact deletes a contact. Returns true iff a row was deleted.
func (s *Store) RemoveContact(identifier string, platform trust.Platform) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.Exec(`DELETE FROM contacts WHERE identifier = ? AND platform = ?`,
		identifier, string(platform))
	if err != nil {
		return false, storageErr("remove contact", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetContact returns a contact or ErrNotFound.
func (s *Store) GetContact(identifier string, platform trust.Platform) (*Contact, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(`
		SELECT id, identifier, platform, name, trust, notes, created_at
		FROM contacts WHERE identifier = ? AND platform = ?`,
		identifier, string(platform))
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get contact", err)
	}
	return c, nil
}

// ListContacts returns contacts newest-first, optionally filtered by platform
// and/or trust level (empty filter means all).
func (s *Store) ListContacts(platform trust.Platform, level trust.Level) ([]Contact, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	query := `SELECT id, identifier, platform, name, trust, notes, created_at FROM contacts`
	var args []any
	var where []string
	if platform != "" {
		where = append(where, `platform = ?`)
		args = append(args, string(platform))
	}
	if level != "" {
		where = append(where, `trust = ?`)
		args = append(args, string(level))
	}
	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, storageErr("list contacts", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, storageErr("list contacts", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, storageErr("list contacts", rows.Err())
}

// CheckContact is the whitelist decision consumed by the inbound pipeline.
func (s *Store) CheckContact(identifier string, platform trust.Platform) (trust.CheckResult, error) {
	c, err := s.GetContact(identifier, platform)
	if errors.Is(err, ErrNotFound) {
		return trust.CheckResult{
			Allowed: false,
			Reason:  "Contact not in whitelist",
		}, nil
	}
	if err != nil {
		return trust.CheckResult{}, err
	}
	if c.Trust == trust.Limited {
		return trust.CheckResult{
			Allowed: true,
			Trust:   trust.Limited,
			Reason:  "Limited trust — agent may view but should not act",
		}, nil
	}
	return trust.CheckResult{
		Allowed: true,
		Trust:   c.Trust,
		Reason:  "Contact is trusted",
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(r rowScanner) (*Contact, error) {
	var c Contact
	var platform, level, created string
	if err := r.Scan(&c.ID, &c.Identifier, &platform, &c.Name, &level, &c.Notes, &created); err != nil {
		return nil, err
	}
	c.Platform = trust.Platform(platform)
	c.Trust = trust.Level(level)
	c.CreatedAt = parseTime(created)
	return &c, nil
}
