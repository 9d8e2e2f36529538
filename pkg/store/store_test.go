package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testPassword = "correct-horse-battery"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "vault"))
	if err := s.Init(testPassword); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func newUnlockedStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	t.Cleanup(s.Lock)
	return s
}

func reopen(t *testing.T, s *Store) {
	t.Helper()
	s.Lock()
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("re-unlock failed: %v", err)
	}
}

func TestInitCreatesVaultFiles(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{SaltFileName, DBFileName} {
		if _, err := os.Stat(filepath.Join(s.Path(), name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if !s.Exists() {
		t.Error("Exists should report true after init")
	}
	if !s.IsLocked() {
		t.Error("vault should be locked after init")
	}

	if err := s.Init(testPassword); !errors.Is(err, ErrVaultAlreadyExists) {
		t.Errorf("expected ErrVaultAlreadyExists, got %v", err)
	}
}

func TestUnlockLifecycle(t *testing.T) {
	s := newTestStore(t)

	if err := s.Unlock("wrong-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if s.State() != StateLocked {
		t.Errorf("failed unlock should leave vault locked, state=%s", s.State())
	}

	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if s.State() != StateUnlocked {
		t.Errorf("expected unlocked state, got %s", s.State())
	}
	if err := s.Unlock(testPassword); !errors.Is(err, ErrVaultAlreadyUnlocked) {
		t.Errorf("expected ErrVaultAlreadyUnlocked, got %v", err)
	}

	s.Lock()
	if !s.IsLocked() {
		t.Error("vault should be locked after Lock")
	}
	if _, err := s.Items(); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("expected ErrVaultLocked after lock, got %v", err)
	}
}

func TestUnlockMissingVault(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "no-vault"))
	if err := s.Unlock(testPassword); !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestUnlockCorruptSalt(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Path(), SaltFileName), []byte("short"), FileMode); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(testPassword); !errors.Is(err, ErrVaultCorrupted) {
		t.Errorf("expected ErrVaultCorrupted, got %v", err)
	}
}

func TestLockFlushesPendingWrites(t *testing.T) {
	s := newUnlockedStore(t)

	if _, err := s.AddItem("note", "Wifi Password", map[string]string{
		"title":   "Home Wifi",
		"content": "hunter2",
	}, nil, nil); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	// Lock immediately; the pending background write must land first.
	reopen(t, s)

	items, err := s.Items()
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 || items[0].Label != "Wifi Password" {
		t.Fatalf("expected the added item to survive lock/unlock, got %+v", items)
	}
	if items[0].Fields["content"] != "hunter2" {
		t.Error("field values did not survive the round trip")
	}
}

func TestSettingsDefaultsAndClamping(t *testing.T) {
	s := newUnlockedStore(t)

	st, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if st.Theme != ThemeSystem || st.AutoLockTimeoutSeconds != DefaultAutoLockSeconds {
		t.Errorf("unexpected defaults: %+v", st)
	}

	saved, err := s.SaveSettings(Settings{Theme: "neon", AutoLockTimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if saved.Theme != ThemeSystem {
		t.Errorf("unknown theme should normalize to system, got %s", saved.Theme)
	}
	if saved.AutoLockTimeoutSeconds != MinAutoLockSeconds {
		t.Errorf("timeout below minimum should clamp to %d, got %d", MinAutoLockSeconds, saved.AutoLockTimeoutSeconds)
	}

	saved, err = s.SaveSettings(Settings{Theme: ThemeDark, AutoLockTimeoutSeconds: 10000})
	if err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if saved.AutoLockTimeoutSeconds != MaxAutoLockSeconds {
		t.Errorf("timeout above maximum should clamp to %d, got %d", MaxAutoLockSeconds, saved.AutoLockTimeoutSeconds)
	}

	reopen(t, s)
	st, err = s.Settings()
	if err != nil {
		t.Fatalf("Settings after reopen failed: %v", err)
	}
	if st.Theme != ThemeDark || st.AutoLockTimeoutSeconds != MaxAutoLockSeconds {
		t.Errorf("settings did not survive reopen: %+v", st)
	}
}

func TestCheckIntegrity(t *testing.T) {
	s := newTestStore(t)

	result, err := s.CheckIntegrity()
	if err != nil {
		t.Fatalf("CheckIntegrity failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("fresh vault should pass integrity check: %+v", result.Errors)
	}
	if !result.SaltExists || !result.DBExists || !result.DBIntegrity {
		t.Errorf("unexpected integrity result: %+v", result)
	}
}

func TestCheckIntegrityMissingDB(t *testing.T) {
	s := newTestStore(t)
	if err := os.Remove(filepath.Join(s.Path(), DBFileName)); err != nil {
		t.Fatal(err)
	}

	result, err := s.CheckIntegrity()
	if err != nil {
		t.Fatalf("CheckIntegrity failed: %v", err)
	}
	if result.Valid || result.DBExists {
		t.Errorf("missing database should fail the check: %+v", result)
	}
}
