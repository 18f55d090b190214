package store

// Status summarizes the store for the status command and dashboards.
type Status struct {
	Contacts            int64            `json:"contacts"`
	ContactsByTrust     map[string]int64 `json:"contacts_by_trust"`
	AuditEntries        int64            `json:"audit_entries"`
	UnreviewedMessages  int64            `json:"unreviewed_messages"`
	QuarantinedMessages int64            `json:"quarantined_messages"`
	CanaryEvents        int64            `json:"canary_events"`
}

// GetStatus counts rows across all tables.
func (s *Store) GetStatus() (Status, error) {
	db, err := s.conn()
	if err != nil {
		return Status{}, err
	}
	st := Status{ContactsByTrust: map[string]int64{}}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM contacts`, &st.Contacts},
		{`SELECT COUNT(*) FROM audit_log`, &st.AuditEntries},
		{`SELECT COUNT(*) FROM quarantine WHERE reviewed = 0`, &st.UnreviewedMessages},
		{`SELECT COUNT(*) FROM quarantine`, &st.QuarantinedMessages},
		{`SELECT COUNT(*) FROM canary_events`, &st.CanaryEvents},
	}
	for _, c := range counts {
		if err := db.QueryRow(c.query).Scan(c.dest); err != nil {
			return Status{}, storageErr("status", err)
		}
	}

	rows, err := db.Query(`SELECT trust, COUNT(*) FROM contacts GROUP BY trust`)
	if err != nil {
		return Status{}, storageErr("status", err)
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return Status{}, storageErr("status", err)
		}
		st.ContactsByTrust[level] = n
	}
	return st, storageErr("status", rows.Err())
}
