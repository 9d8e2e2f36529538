package asset

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"lockbox/pkg/crypto"
)

// Imported is an asset record together with its raw bytes, as carried by a
// portable backup document.
type Imported struct {
	Asset
	Data []byte
}

const stagedSuffix = ".new"

// BlobPath returns the final on-disk location for an asset's sealed blob.
func (s *Store) BlobPath(id string) string {
	return s.blobPath(id)
}

// StageBlob seals data and writes it next to the final blob location under a
// staging name. Nothing observable changes until PromoteStagedBlobs renames
// the staged files into place; a failed import discards them.
func (s *Store) StageBlob(id string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("asset: failed to create asset directory: %w", err)
	}
	sealed, err := crypto.Seal(s.key, data)
	if err != nil {
		return fmt.Errorf("asset: failed to seal asset bytes: %w", err)
	}
	if err := os.WriteFile(s.blobPath(id)+stagedSuffix, sealed, blobFileMode); err != nil {
		return fmt.Errorf("asset: failed to write staged blob: %w", err)
	}
	return nil
}

// PromoteStagedBlobs renames staged blobs into their final locations.
func (s *Store) PromoteStagedBlobs(ids []string) error {
	for _, id := range ids {
		final := s.blobPath(id)
		if err := os.Rename(final+stagedSuffix, final); err != nil {
			return fmt.Errorf("asset: failed to promote staged blob %s: %w", id, err)
		}
	}
	return nil
}

// DiscardStagedBlobs removes staged blobs after a failed import.
func (s *Store) DiscardStagedBlobs(ids []string) {
	for _, id := range ids {
		if err := os.Remove(s.blobPath(id) + stagedSuffix); err != nil && !os.IsNotExist(err) {
			log.Printf("asset: failed to discard staged blob %s: %v", id, err)
		}
	}
}

// PruneBlobs removes blob files whose id is not in keep. Used after a
// full-collection replace to drop blobs belonging to the previous contents.
func (s *Store) PruneBlobs(keep map[string]bool) error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("asset: failed to read asset directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".bin") {
			continue
		}
		id := strings.TrimSuffix(name, ".bin")
		if keep[id] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Printf("asset: failed to prune blob %s: %v", id, err)
		}
	}
	return nil
}

// InsertTx writes an asset metadata row inside the caller's transaction.
func InsertTx(tx *sql.Tx, a Asset) error {
	_, err := tx.Exec(`
		INSERT INTO assets (id, kind, uri, original_filename, mime_type, size, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.Type), a.URI, a.OriginalFilename, a.MimeType, a.Size, nullInt(a.Width), nullInt(a.Height), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("asset: failed to insert asset record: %w", err)
	}
	return nil
}
