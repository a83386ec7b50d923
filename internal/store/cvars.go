package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CvarChange is one historical write to a CVAR_ARCHIVE cvar, recorded
// so admin tooling can answer "when did this setting last change"
// without re-parsing the flat *.cfg archive (internal/config.Registry
// owns the live value; this is a queryable mirror of its history).
type CvarChange struct {
	ID        string
	Name      string
	Value     string
	ChangedAt time.Time
}

// RecordCvarChange appends one entry to the cvar-archive mirror.
func (s *Store) RecordCvarChange(name, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO cvar_history (id, name, value, changed_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), name, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: record cvar change: %w", err)
	}
	return nil
}

// CvarHistory returns every recorded change for name, oldest first.
func (s *Store) CvarHistory(name string) ([]CvarChange, error) {
	rows, err := s.db.Query(
		`SELECT id, name, value, changed_at FROM cvar_history WHERE name = ? ORDER BY changed_at ASC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query cvar history: %w", err)
	}
	defer rows.Close()

	var out []CvarChange
	for rows.Next() {
		var c CvarChange
		var changedAt int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Value, &changedAt); err != nil {
			return nil, fmt.Errorf("store: scan cvar change: %w", err)
		}
		c.ChangedAt = time.Unix(changedAt, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}
