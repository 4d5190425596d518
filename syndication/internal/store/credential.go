package store

import (
	"context"
	"fmt"
	"time"
)

// InsertCredential stores a site API credential (hash only).
func (s *Store) InsertCredential(ctx context.Context, c *Credential) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO site_credentials (id, site_id, key_hash, key_prefix, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.SiteID, c.KeyHash, c.KeyPrefix, c.Active, c.CreatedAt)
	return err
}

// ActiveCredentials returns the active credentials for a site, newest first.
// Rotation keeps the list short; verification walks it.
func (s *Store) ActiveCredentials(ctx context.Context, siteID string) ([]*Credential, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, site_id, key_hash, key_prefix, active, created_at
		FROM site_credentials WHERE site_id = ? AND active = 1
		ORDER BY created_at DESC`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		var c Credential
		var active int
		if err := rows.Scan(&c.ID, &c.SiteID, &c.KeyHash, &c.KeyPrefix,
			&active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.Active = active != 0
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

// DeactivateCredentials marks all of a site's credentials inactive.
// Called during rotation before inserting the replacement.
func (s *Store) DeactivateCredentials(ctx context.Context, siteID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE site_credentials SET active = 0 WHERE site_id = ?`, siteID)
	return err
}
