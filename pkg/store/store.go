// Package store provides the encrypted vault: categories, items and settings
// held in memory while unlocked, persisted to SQLite with AES-256-GCM. Reads
// and writes are served from the in-memory collections; durable writes run
// asynchronously and coalesce.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"lockbox/pkg/asset"
	"lockbox/pkg/crypto"
	"lockbox/pkg/schema"
)

// Constants
const (
	SaltLength   = 16 // 128-bit salt
	DEKLength    = 32 // 256-bit DEK
	SaltFileName = "vault.salt"
	DBFileName   = "vault.db"
	AssetDirName = "assets"
	FileMode     = 0600 // Owner read/write only
	DirMode      = 0700 // Owner read/write/execute only

	// Disk capacity thresholds
	MinDiskSpaceBytes  = 10 * 1024 * 1024 // 10 MB minimum free space
	DiskWarningPercent = 90               // Warn when disk is 90% full

	// Item validation limits
	MaxItemLabelLength  = 128
	MaxCustomFieldCount = 50
)

// Errors
var (
	ErrVaultAlreadyExists   = errors.New("store: vault already exists at this path")
	ErrVaultNotFound        = errors.New("store: vault not found at this path")
	ErrVaultLocked          = errors.New("store: vault is locked")
	ErrVaultAlreadyUnlocked = errors.New("store: vault is already unlocked")
	ErrInvalidPassword      = errors.New("store: invalid master password")
	ErrSaltNotFound         = errors.New("store: salt file not found")
	ErrDEKNotFound          = errors.New("store: encrypted DEK not found in database")
	ErrVaultCorrupted       = errors.New("store: vault is corrupted")
	ErrStorageRead          = errors.New("store: failed to read vault contents")
	ErrStorageWrite         = errors.New("store: failed to persist vault contents")
	ErrItemNotFound         = errors.New("store: item not found")
	ErrItemLabelEmpty       = errors.New("store: item label must not be empty")
	ErrItemLabelTooLong     = errors.New("store: item label too long")
	ErrCategoryNotFound     = errors.New("store: category not found")
	ErrInsufficientDisk     = errors.New("store: insufficient disk space")
)

// LockState is the position of the vault gate. Unlocking covers the window
// where key derivation and the initial load are in flight, so a second unlock
// attempt can be rejected instead of racing the first.
type LockState int

const (
	StateLocked LockState = iota
	StateUnlocking
	StateUnlocked
)

// String returns a human-readable representation of the lock state
func (s LockState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Store manages the entire vault: the gate, the in-memory collections and
// their durable SQLite backing.
type Store struct {
	path string // Path to vault directory (e.g., ~/.lockbox)

	mu         sync.RWMutex // guards everything below
	state      LockState
	dek        []byte  // Decrypted Data Encryption Key (held in memory when unlocked)
	db         *sql.DB // SQLite database connection
	assets     *asset.Store
	items      []Item
	categories []schema.Category
	settings   Settings

	// Write coalescing. flushMu guards the pending flag; persistMu serializes
	// durable writes so a follower flush never lands before the one in flight.
	flushMu      sync.Mutex
	flushPending bool
	flushers     sync.WaitGroup
	persistMu    sync.Mutex
}

// New creates a new Store management object for the specified path
func New(path string) *Store {
	return &Store{path: path}
}

// Init initializes a new vault:
// 1. Generate salt and save to vault.salt
// 2. Derive KEK from master password and salt
// 3. Generate DEK
// 4. Encrypt DEK with KEK
// 5. Create vault.db and define tables
// 6. Save encrypted DEK to database
// 7. Seed preset categories and default settings
//
// The vault is left locked; callers unlock it with the same password.
func (s *Store) Init(masterPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists() {
		return ErrVaultAlreadyExists
	}

	if err := s.checkDiskSpaceForWrite(1024 * 1024); err != nil { // Require at least 1MB for init
		return err
	}

	if err := os.MkdirAll(s.path, DirMode); err != nil {
		return fmt.Errorf("store: failed to create vault directory: %w", err)
	}

	// 1. Generate and save salt (16 bytes)
	salt, err := crypto.NewSalt()
	if err != nil {
		return fmt.Errorf("store: failed to generate salt: %w", err)
	}
	saltPath := filepath.Join(s.path, SaltFileName)
	if err := os.WriteFile(saltPath, salt, FileMode); err != nil {
		return fmt.Errorf("store: failed to write salt file: %w", err)
	}

	// 2. Derive KEK
	kek := crypto.DeriveKey([]byte(masterPassword), salt)
	defer crypto.SecureWipe(kek)

	// 3. Generate DEK (32 bytes)
	dek := make([]byte, DEKLength)
	if _, err := rand.Read(dek); err != nil {
		return fmt.Errorf("store: failed to generate DEK: %w", err)
	}
	defer crypto.SecureWipe(dek)

	// 4. Encrypt DEK
	encryptedDEK, nonce, err := crypto.Encrypt(kek, dek)
	if err != nil {
		return fmt.Errorf("store: failed to encrypt DEK: %w", err)
	}

	// 5. Initialize SQLite database
	dbPath := filepath.Join(s.path, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("store: failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		return fmt.Errorf("store: failed to create tables: %w", err)
	}
	if err := setSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return err
	}

	// 6. Save encrypted DEK and nonce to database
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO vault_keys(id, encrypted_dek, dek_nonce) VALUES(1, ?, ?)", encryptedDEK, nonce); err != nil {
		return fmt.Errorf("store: failed to save encrypted DEK: %w", err)
	}

	// 7. Seed preset categories and default settings
	now := nowUTC()
	for _, c := range schema.DefaultCategories() {
		c.CreatedAt = now
		c.UpdatedAt = now
		payload, err := sealJSON(dek, c)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO categories (id, encrypted_payload, created_at, updated_at) VALUES (?, ?, ?, ?)",
			c.ID, payload, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("store: failed to seed category %s: %w", c.ID, err)
		}
	}
	settingsPayload, err := sealJSON(dek, DefaultSettings())
	if err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO settings (id, encrypted_payload) VALUES (1, ?)", settingsPayload); err != nil {
		return fmt.Errorf("store: failed to seed settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}

	if err := os.Chmod(dbPath, FileMode); err != nil {
		return fmt.Errorf("store: failed to set database permissions: %w", err)
	}

	return nil
}

// Unlock unlocks the vault using the master password:
// 1. Read salt file
// 2. Derive KEK from master password and salt
// 3. Read encrypted DEK and nonce from database
// 4. Decrypt DEK using KEK
// 5. Load categories, items and settings into memory
//
// A failed load leaves the vault locked; the caller gets an explicit error
// rather than an unlocked vault with silently empty collections.
func (s *Store) Unlock(masterPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists() {
		return ErrVaultNotFound
	}
	if s.state != StateLocked {
		return ErrVaultAlreadyUnlocked
	}
	s.state = StateUnlocking

	fail := func(err error) error {
		s.state = StateLocked
		return err
	}

	// 1. Read salt and validate length
	saltPath := filepath.Join(s.path, SaltFileName)
	salt, err := os.ReadFile(saltPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(ErrSaltNotFound)
		}
		return fail(fmt.Errorf("store: failed to read salt file: %w", err))
	}
	if len(salt) != SaltLength {
		return fail(ErrVaultCorrupted)
	}

	// 2. Derive KEK
	kek := crypto.DeriveKey([]byte(masterPassword), salt)
	defer crypto.SecureWipe(kek)

	// 3. Read encrypted DEK and nonce from database
	dbPath := filepath.Join(s.path, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fail(fmt.Errorf("store: failed to open database: %w", err))
	}

	// Single-connection mode avoids "database is locked" errors; concurrent
	// access is bounded by the flusher anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	var encryptedDEK, nonce []byte
	err = db.QueryRow("SELECT encrypted_dek, dek_nonce FROM vault_keys WHERE id = 1").
		Scan(&encryptedDEK, &nonce)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return fail(ErrDEKNotFound)
		}
		return fail(fmt.Errorf("store: failed to read encrypted DEK: %w", err))
	}

	// 4. Decrypt DEK
	dek, err := crypto.Decrypt(kek, encryptedDEK, nonce)
	if err != nil {
		db.Close()
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return fail(ErrInvalidPassword)
		}
		return fail(fmt.Errorf("store: failed to decrypt DEK: %w", err))
	}

	// Schema migrations run with the DEK in hand so payload-level rewrites
	// (like the inline image move) can decrypt.
	if err := migrateSchema(db); err != nil {
		db.Close()
		crypto.SecureWipe(dek)
		return fail(err)
	}

	// 5. Load collections into memory
	assets := asset.NewStore(db, dek, filepath.Join(s.path, AssetDirName))

	categories, err := loadCategories(db, dek)
	if err != nil {
		db.Close()
		crypto.SecureWipe(dek)
		return fail(err)
	}
	items, err := loadItems(db, dek)
	if err != nil {
		db.Close()
		crypto.SecureWipe(dek)
		return fail(err)
	}
	settings, err := loadSettings(db, dek)
	if err != nil {
		db.Close()
		crypto.SecureWipe(dek)
		return fail(err)
	}

	s.dek = dek
	s.db = db
	s.assets = assets
	s.categories = categories
	s.items = items
	s.settings = settings
	s.state = StateUnlocked

	// Move legacy inline images into the asset store. Migration is idempotent;
	// a crash between the asset write and the item flush re-runs cleanly.
	s.migrateLegacyImagesLocked()

	s.checkAndWarnPermissions()

	return nil
}

// Lock locks the vault: pending writes are flushed first, then the DEK is
// destroyed and the in-memory collections cleared. Flush failures are logged;
// clearing key material is never skipped because a disk write failed.
func (s *Store) Lock() {
	s.mu.RLock()
	unlocked := s.state == StateUnlocked
	s.mu.RUnlock()

	if unlocked {
		if err := s.Flush(); err != nil {
			log.Printf("store: flush before lock failed: %v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dek != nil {
		crypto.SecureWipe(s.dek)
		s.dek = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.assets = nil
	s.items = nil
	s.categories = nil
	s.settings = Settings{}
	s.state = StateLocked
}

// IsLocked returns whether the vault is locked
func (s *Store) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != StateUnlocked
}

// State returns the current gate state.
func (s *Store) State() LockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Path returns the vault path
func (s *Store) Path() string {
	return s.path
}

// Assets returns the asset store bound to the unlocked vault, or an error
// when locked.
func (s *Store) Assets() (*asset.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	return s.assets, nil
}

// Exists reports whether a vault has been initialized at this path.
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists()
}

// exists checks if the vault exists
func (s *Store) exists() bool {
	saltPath := filepath.Join(s.path, SaltFileName)
	_, err := os.Stat(saltPath)
	return err == nil
}

// checkAndWarnPermissions checks file permissions and prints warnings if
// insecure. Advisory only; never blocks operations.
func (s *Store) checkAndWarnPermissions() {
	if info, err := os.Stat(s.path); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			fmt.Fprintf(os.Stderr, "warning: vault directory has insecure permissions %04o (expected 0700)\n", perm)
		}
	}
	for _, fname := range []string{SaltFileName, DBFileName} {
		fpath := filepath.Join(s.path, fname)
		if info, err := os.Stat(fpath); err == nil {
			if perm := info.Mode().Perm(); perm&0077 != 0 {
				fmt.Fprintf(os.Stderr, "warning: %s has insecure permissions %04o (expected 0600)\n", fname, perm)
			}
		}
	}
}

// sealJSON marshals v and encrypts it with the nonce prepended to the
// ciphertext, so storage handles a single blob per record.
func sealJSON(key []byte, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal payload: %w", err)
	}
	blob, err := crypto.Seal(key, data)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encrypt payload: %w", err)
	}
	return blob, nil
}

// openJSON decrypts a nonce-prepended blob and unmarshals it into v.
func openJSON(key, blob []byte, v any) error {
	data, err := crypto.Open(key, blob)
	if err != nil {
		return fmt.Errorf("store: failed to decrypt payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: failed to unmarshal payload: %w", err)
	}
	return nil
}

// checkDiskSpaceForWrite verifies sufficient disk space before write operations
func (s *Store) checkDiskSpaceForWrite(dataSize int) error {
	info, err := s.CheckDiskSpace()
	if err != nil {
		// Log warning but don't block operation
		fmt.Fprintf(os.Stderr, "warning: failed to check disk space: %v\n", err)
		return nil
	}

	// Need at least MinDiskSpaceBytes or 2x the data size, whichever is larger
	required := uint64(MinDiskSpaceBytes)
	if uint64(dataSize*2) > required {
		required = uint64(dataSize * 2)
	}

	if info.Available < required {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk,
			info.Available/(1024*1024),
			required/(1024*1024))
	}

	if info.UsedPct >= DiskWarningPercent {
		fmt.Fprintf(os.Stderr, "warning: disk is %d%% full, consider freeing space\n", info.UsedPct)
	}

	return nil
}

// DiskSpaceInfo contains disk usage information
type DiskSpaceInfo struct {
	Total     uint64 `json:"total"`     // Total disk space in bytes
	Free      uint64 `json:"free"`      // Free disk space in bytes
	Available uint64 `json:"available"` // Available to non-root users
	UsedPct   int    `json:"used_pct"`  // Percentage of disk used
}

// HasSufficientDiskSpace checks if there's enough disk space for operations
func (s *Store) HasSufficientDiskSpace() (bool, error) {
	info, err := s.CheckDiskSpace()
	if err != nil {
		return false, err
	}
	return info.Available >= MinDiskSpaceBytes, nil
}
