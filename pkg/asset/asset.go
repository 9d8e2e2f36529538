// Package asset manages binary attachments (images, PDFs, documents)
// independently of the vault items that reference them. Asset bytes are
// sealed with the vault DEK and stored as one file per asset id; metadata
// lives in the shared vault database.
package asset

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lockbox/pkg/crypto"
)

// Kind classifies an attachment.
type Kind string

const (
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
)

// Asset is the metadata record for one stored attachment. An asset is
// referenced by zero or more items; unreferenced assets are reclaimable.
type Asset struct {
	ID               string    `json:"id"`
	Type             Kind      `json:"type"`
	URI              string    `json:"uri"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	MimeType         string    `json:"mimeType"`
	Size             int64     `json:"size"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// LegacyImage is the deprecated inline image descriptor older vaults carried
// directly on an item. Kept only so migration can move it into the store.
// Data is populated only in old backup documents, where the bytes travel
// inline; vault payloads reference a local file by URI instead.
type LegacyImage struct {
	URI      string `json:"uri,omitempty"`
	Filename string `json:"filename,omitempty"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Errors returned by the asset store.
var (
	ErrAssetNotFound    = errors.New("asset: asset not found")
	ErrShareUnavailable = errors.New("asset: no share handler available")
)

const blobFileMode = 0600

// Store persists asset metadata rows and sealed blob files. It shares the
// vault database connection and DEK; the owning store manages both lifecycles.
type Store struct {
	db  *sql.DB
	key []byte
	dir string
}

// NewStore binds an asset store to an unlocked vault database. dir is the
// directory blob files live in; it is created on first write.
func NewStore(db *sql.DB, key []byte, dir string) *Store {
	return &Store{db: db, key: key, dir: dir}
}

// EnsureSchema creates the assets table. Called by the vault store during
// database initialization and migration.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			uri TEXT NOT NULL,
			original_filename TEXT,
			mime_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			width INTEGER,
			height INTEGER,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("asset: failed to create assets table: %w", err)
	}
	return nil
}

// KindForMime maps a MIME type to an asset kind.
func KindForMime(mimeType string) Kind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case mimeType == "application/pdf":
		return KindPDF
	default:
		return KindDocument
	}
}

func (s *Store) blobPath(id string) string {
	return filepath.Join(s.dir, id+".bin")
}

// Put stores an asset's bytes and metadata. A fresh id is assigned when the
// record carries none. The blob is written to a temp file and renamed so a
// crash mid-write never leaves a torn blob under the final name.
func (s *Store) Put(a Asset, data []byte) (*Asset, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Type == "" {
		a.Type = KindForMime(a.MimeType)
	}
	a.Size = int64(len(data))
	a.URI = s.blobPath(a.ID)
	a.CreatedAt = time.Now().UTC()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("asset: failed to create asset directory: %w", err)
	}

	sealed, err := crypto.Seal(s.key, data)
	if err != nil {
		return nil, fmt.Errorf("asset: failed to seal asset bytes: %w", err)
	}

	tmp := a.URI + ".tmp"
	if err := os.WriteFile(tmp, sealed, blobFileMode); err != nil {
		return nil, fmt.Errorf("asset: failed to write asset blob: %w", err)
	}
	if err := os.Rename(tmp, a.URI); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("asset: failed to finalize asset blob: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO assets (id, kind, uri, original_filename, mime_type, size, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.Type), a.URI, a.OriginalFilename, a.MimeType, a.Size, nullInt(a.Width), nullInt(a.Height), a.CreatedAt)
	if err != nil {
		os.Remove(a.URI)
		return nil, fmt.Errorf("asset: failed to save asset record: %w", err)
	}

	return &a, nil
}

// Get resolves an asset id to its metadata record.
func (s *Store) Get(id string) (*Asset, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, uri, original_filename, mime_type, size, width, height, created_at
		FROM assets WHERE id = ?
	`, id)
	return scanAsset(row)
}

// Bytes reads and unseals an asset's blob.
func (s *Store) Bytes(id string) ([]byte, error) {
	a, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(a.URI)
	if err != nil {
		return nil, fmt.Errorf("asset: failed to read asset blob %s: %w", id, err)
	}
	data, err := crypto.Open(s.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("asset: failed to unseal asset blob %s: %w", id, err)
	}
	return data, nil
}

// Delete removes an asset's metadata row and blob file.
func (s *Store) Delete(id string) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM assets WHERE id = ?", id); err != nil {
		return fmt.Errorf("asset: failed to delete asset record: %w", err)
	}
	if err := os.Remove(a.URI); err != nil && !os.IsNotExist(err) {
		// Row is gone; an orphaned blob will be picked up by a later sweep.
		log.Printf("asset: failed to remove blob for %s: %v", id, err)
	}
	return nil
}

// List returns all asset metadata records ordered by creation time.
func (s *Store) List() ([]Asset, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, uri, original_filename, mime_type, size, width, height, created_at
		FROM assets ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("asset: failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("asset: error iterating assets: %w", err)
	}
	return assets, nil
}

// ForItem resolves an item's asset references. Ids that no longer resolve are
// skipped rather than failing the whole list; a vault should still open after
// a blob went missing. When refs is empty, legacy inline images yield an
// empty result — the caller is expected to run migration first.
func (s *Store) ForItem(refs []string) ([]Asset, error) {
	var assets []Asset
	for _, id := range refs {
		a, err := s.Get(id)
		if errors.Is(err, ErrAssetNotFound) {
			log.Printf("asset: item references missing asset %s", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, nil
}

// Sweep deletes every asset not present in the referenced id set and returns
// how many were released. An asset referenced by any remaining item survives.
func (s *Store) Sweep(referenced map[string]bool) (int, error) {
	all, err := s.List()
	if err != nil {
		return 0, err
	}
	released := 0
	for _, a := range all {
		if referenced[a.ID] {
			continue
		}
		if err := s.Delete(a.ID); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	a := &Asset{}
	var kind string
	var filename sql.NullString
	var width, height sql.NullInt64

	err := row.Scan(&a.ID, &kind, &a.URI, &filename, &a.MimeType, &a.Size, &width, &height, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("asset: failed to scan asset row: %w", err)
	}

	a.Type = Kind(kind)
	if filename.Valid {
		a.OriginalFilename = filename.String
	}
	if width.Valid {
		w := int(width.Int64)
		a.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		a.Height = &h
	}
	return a, nil
}
