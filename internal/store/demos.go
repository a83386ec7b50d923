package store

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DemoRecord catalogues one recorded demo from internal/assets' demo
// sink: where it lives, which map it captured, and how long it runs.
type DemoRecord struct {
	ID         string
	Path       string
	Map        string
	Duration   time.Duration
	RecordedAt time.Time
}

// AddDemo inserts a catalogue entry for a freshly closed demo sink.
func (s *Store) AddDemo(path, mapName string, duration time.Duration) (DemoRecord, error) {
	rec := DemoRecord{
		ID:         uuid.NewString(),
		Path:       path,
		Map:        mapName,
		Duration:   duration,
		RecordedAt: time.Now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO demos (id, path, map, duration_ms, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Map, rec.Duration.Milliseconds(), rec.RecordedAt.Unix(),
	)
	if err != nil {
		return DemoRecord{}, fmt.Errorf("store: add demo: %w", err)
	}
	return rec, nil
}

// ListDemos returns the catalogue, most recently recorded first.
func (s *Store) ListDemos() ([]DemoRecord, error) {
	rows, err := s.db.Query(`SELECT id, path, map, duration_ms, recorded_at FROM demos ORDER BY recorded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list demos: %w", err)
	}
	defer rows.Close()

	var out []DemoRecord
	for rows.Next() {
		var rec DemoRecord
		var durationMs, recordedAt int64
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Map, &durationMs, &recordedAt); err != nil {
			return nil, fmt.Errorf("store: scan demo: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.RecordedAt = time.Unix(recordedAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Describe formats a demo record for admin-channel "demolist" output:
// map name, duration, and a relative "recorded N ago" timestamp.
func (rec DemoRecord) Describe() string {
	return fmt.Sprintf("%s (%s, recorded %s)", rec.Map, rec.Duration.Round(time.Second), humanize.Time(rec.RecordedAt))
}
