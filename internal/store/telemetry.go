package store

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/waspsec/wasp/internal/trust"
)

// CanaryEvent is one persisted injection-heuristic hit. Append-only;
// retention by age-based purge.
type CanaryEvent struct {
	ID         int64          `json:"id"`
	Identifier string         `json:"identifier"`
	Platform   trust.Platform `json:"platform"`
	Score      float64        `json:"score"`
	Patterns   []string       `json:"patterns"`
	Verbs      []string       `json:"verbs"`
	Preview    string         `json:"preview"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CanaryPreviewLen is the maximum telemetry preview length in runes.
const CanaryPreviewLen = 200

// AddCanaryEvent persists one telemetry row. Pattern and verb lists keep
// their match order.
func (s *Store) AddCanaryEvent(e CanaryEvent) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	patterns, _ := json.Marshal(orEmpty(e.Patterns))
	verbs, _ := json.Marshal(orEmpty(e.Verbs))
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = now()
	}
	_, err = db.Exec(`
		INSERT INTO canary_events (identifier, platform, score, patterns, verbs, preview, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Identifier, string(e.Platform), e.Score, string(patterns), string(verbs),
		Truncate(e.Preview, CanaryPreviewLen), fmtTime(ts))
	return storageErr("add canary event", err)
}

// ListCanaryEvents returns events newest-first up to limit (limit <= 0 means
// no cap).
func (s *Store) ListCanaryEvents(limit int) ([]CanaryEvent, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, identifier, platform, score, patterns, verbs, preview, created_at
		FROM canary_events ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, storageErr("list canary events", err)
	}
	defer rows.Close()

	events := []CanaryEvent{}
	for rows.Next() {
		var e CanaryEvent
		var platform, patterns, verbs, created string
		if err := rows.Scan(&e.ID, &e.Identifier, &platform, &e.Score, &patterns, &verbs, &e.Preview, &created); err != nil {
			return nil, storageErr("list canary events", err)
		}
		e.Platform = trust.Platform(platform)
		_ = json.Unmarshal([]byte(patterns), &e.Patterns)
		_ = json.Unmarshal([]byte(verbs), &e.Verbs)
		e.CreatedAt = parseTime(created)
		events = append(events, e)
	}
	return events, storageErr("list canary events", rows.Err())
}

// CanaryStats aggregates the telemetry table.
type CanaryStats struct {
	Count       int64              `json:"count"`
	MeanScore   float64            `json:"mean_score"`
	TopPatterns []PatternFrequency `json:"top_patterns"`
}

// PatternFrequency is one pattern's hit count.
type PatternFrequency struct {
	Pattern string `json:"pattern"`
	Count   int64  `json:"count"`
}

// GetCanaryStats computes count, mean score and pattern frequencies.
func (s *Store) GetCanaryStats() (CanaryStats, error) {
	db, err := s.conn()
	if err != nil {
		return CanaryStats{}, err
	}
	var stats CanaryStats
	var mean *float64
	if err := db.QueryRow(`SELECT COUNT(*), AVG(score) FROM canary_events`).Scan(&stats.Count, &mean); err != nil {
		return CanaryStats{}, storageErr("canary stats", err)
	}
	if mean != nil {
		stats.MeanScore = *mean
	}

	rows, err := db.Query(`SELECT patterns FROM canary_events`)
	if err != nil {
		return CanaryStats{}, storageErr("canary stats", err)
	}
	defer rows.Close()

	freq := map[string]int64{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return CanaryStats{}, storageErr("canary stats", err)
		}
		var names []string
		_ = json.Unmarshal([]byte(raw), &names)
		for _, n := range names {
			freq[n]++
		}
	}
	if err := rows.Err(); err != nil {
		return CanaryStats{}, storageErr("canary stats", err)
	}
	for p, c := range freq {
		stats.TopPatterns = append(stats.TopPatterns, PatternFrequency{Pattern: p, Count: c})
	}
	sort.Slice(stats.TopPatterns, func(i, j int) bool {
		if stats.TopPatterns[i].Count != stats.TopPatterns[j].Count {
			return stats.TopPatterns[i].Count > stats.TopPatterns[j].Count
		}
		return stats.TopPatterns[i].Pattern < stats.TopPatterns[j].Pattern
	})
	return stats, nil
}

// ClearCanaryEvents removes all telemetry rows.
func (s *Store) ClearCanaryEvents() (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`DELETE FROM canary_events`)
	if err != nil {
		return 0, storageErr("clear canary events", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PurgeCanaryOlderThan removes telemetry rows older than the given number of
// days.
func (s *Store) PurgeCanaryOlderThan(days int) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`DELETE FROM canary_events WHERE created_at < ?`, cutoff(days))
	if err != nil {
		return 0, storageErr("purge canary events", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
