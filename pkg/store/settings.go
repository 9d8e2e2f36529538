package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Theme selects the UI appearance.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Auto-lock bounds in seconds.
const (
	MinAutoLockSeconds     = 30
	MaxAutoLockSeconds     = 600
	DefaultAutoLockSeconds = 120
)

// Settings are the user preferences stored alongside the vault contents.
type Settings struct {
	Theme                  Theme `json:"theme"`
	AutoLockTimeoutSeconds int   `json:"autoLockTimeoutSeconds"`
}

// DefaultSettings returns the preferences a fresh vault starts with.
func DefaultSettings() Settings {
	return Settings{
		Theme:                  ThemeSystem,
		AutoLockTimeoutSeconds: DefaultAutoLockSeconds,
	}
}

// normalize clamps the auto-lock timeout into bounds and maps unknown themes
// to the system default. Out-of-range input is coerced, not rejected; a stale
// client sending 15 seconds should not lose its other preferences.
func (st Settings) normalize() Settings {
	switch st.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		st.Theme = ThemeSystem
	}
	if st.AutoLockTimeoutSeconds < MinAutoLockSeconds {
		st.AutoLockTimeoutSeconds = MinAutoLockSeconds
	}
	if st.AutoLockTimeoutSeconds > MaxAutoLockSeconds {
		st.AutoLockTimeoutSeconds = MaxAutoLockSeconds
	}
	return st
}

// Settings returns the current preferences.
func (s *Store) Settings() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return Settings{}, ErrVaultLocked
	}
	return s.settings, nil
}

// SaveSettings normalizes and persists the preferences. Unlike item writes,
// settings persist synchronously; they change rarely and losing one to a
// crash would be surprising.
func (s *Store) SaveSettings(st Settings) (Settings, error) {
	st = st.normalize()

	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return Settings{}, ErrVaultLocked
	}
	s.settings = st
	s.mu.Unlock()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.persistSettings(st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// loadSettings reads the settings row, defaulting when absent.
func loadSettings(db *sql.DB, dek []byte) (Settings, error) {
	var payload []byte
	err := db.QueryRow("SELECT encrypted_payload FROM settings WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	var st Settings
	if err := openJSON(dek, payload, &st); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return st.normalize(), nil
}

func (s *Store) persistSettings(st Settings) error {
	s.mu.RLock()
	db, dek, state := s.db, s.dek, s.state
	s.mu.RUnlock()
	if state != StateUnlocked {
		return ErrVaultLocked
	}

	payload, err := sealJSON(dek, st)
	if err != nil {
		return err
	}
	if _, err := db.Exec("INSERT OR REPLACE INTO settings (id, encrypted_payload) VALUES (1, ?)", payload); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}
