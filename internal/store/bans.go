package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BanRecord is one entry in the ban list: an address (IP or IP/CIDR,
// not interpreted here) banned until ExpiresAt.
type BanRecord struct {
	ID        string
	Address   string
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AddBan inserts a new ban, generating its ID.
func (s *Store) AddBan(address, reason string, duration time.Duration) (BanRecord, error) {
	now := time.Now()
	rec := BanRecord{
		ID:        uuid.NewString(),
		Address:   address,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}

	_, err := s.db.Exec(
		`INSERT INTO bans (id, address, reason, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Address, rec.Reason, rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return BanRecord{}, fmt.Errorf("store: add ban: %w", err)
	}
	return rec, nil
}

// IsBanned reports whether address has an unexpired ban on record.
func (s *Store) IsBanned(address string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM bans WHERE address = ? AND expires_at > ?`,
		address, time.Now().Unix(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: check ban: %w", err)
	}
	return count > 0, nil
}

// ListBans returns every ban record currently on file, expired or not,
// for admin tooling ("banlist" command output).
func (s *Store) ListBans() ([]BanRecord, error) {
	rows, err := s.db.Query(`SELECT id, address, reason, created_at, expires_at FROM bans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list bans: %w", err)
	}
	defer rows.Close()

	var out []BanRecord
	for rows.Next() {
		var rec BanRecord
		var createdAt, expiresAt int64
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Reason, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("store: scan ban: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.ExpiresAt = time.Unix(expiresAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RemoveBan deletes a ban by ID ("unban" admin command).
func (s *Store) RemoveBan(id string) error {
	if _, err := s.db.Exec(`DELETE FROM bans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: remove ban: %w", err)
	}
	return nil
}
