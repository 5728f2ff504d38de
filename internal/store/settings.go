package store

import (
	"fmt"
	"time"
)

// ProviderSetting is the stored enable flag and priority for one provider.
// Lower priority sorts first; rows are created lazily on first write.
type ProviderSetting struct {
	ID          int64     `json:"id"`
	ProviderKey string    `json:"provider_key"`
	IsEnabled   bool      `json:"is_enabled"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListProviderSettings returns all settings rows in insertion order, which
// breaks priority ties deterministically.
func (s *Store) ListProviderSettings() ([]ProviderSetting, error) {
	q := `
SELECT id, provider_key, is_enabled, priority, created_at, updated_at
FROM provider_settings
ORDER BY id`
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("list provider settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	settings := make([]ProviderSetting, 0)
	for rows.Next() {
		var ps ProviderSetting
		if err := rows.Scan(&ps.ID, &ps.ProviderKey, &ps.IsEnabled, &ps.Priority, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan provider setting: %w", err)
		}
		settings = append(settings, ps)
	}
	return settings, rows.Err()
}

// SetProviderEnabled flips the enable flag, creating the row on first use.
func (s *Store) SetProviderEnabled(providerKey string, enabled bool) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		s.bind(`UPDATE provider_settings SET is_enabled = ?, updated_at = ? WHERE provider_key = ?`),
		enabled, now, providerKey,
	)
	if err != nil {
		return fmt.Errorf("update provider enabled: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}

	_, err = s.db.Exec(
		s.bind(`INSERT INTO provider_settings(provider_key, is_enabled, priority, created_at, updated_at) VALUES(?, ?, 0, ?, ?)`),
		providerKey, enabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert provider setting: %w", err)
	}
	return nil
}

// SetProviderPriority sets the sort priority, creating the row on first use.
func (s *Store) SetProviderPriority(providerKey string, priority int) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		s.bind(`UPDATE provider_settings SET priority = ?, updated_at = ? WHERE provider_key = ?`),
		priority, now, providerKey,
	)
	if err != nil {
		return fmt.Errorf("update provider priority: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}

	_, err = s.db.Exec(
		s.bind(`INSERT INTO provider_settings(provider_key, is_enabled, priority, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`),
		providerKey, true, priority, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert provider setting: %w", err)
	}
	return nil
}
