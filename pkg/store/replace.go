package store

import (
	"fmt"
	"log"

	"lockbox/pkg/asset"
	"lockbox/pkg/schema"
)

// ReplaceAll swaps the entire vault contents for the given collections in one
// step. This is the restore primitive: asset blobs are staged on disk first,
// then all rows are rewritten in a single transaction, and only after commit
// do the staged blobs move into place. A failure before commit leaves the
// previous contents fully intact.
func (s *Store) ReplaceAll(items []Item, categories []schema.Category, settings Settings, assets []asset.Imported) error {
	s.mu.RLock()
	if s.state != StateUnlocked {
		s.mu.RUnlock()
		return ErrVaultLocked
	}
	db, dek, astore := s.db, s.dek, s.assets
	s.mu.RUnlock()

	size := 0
	for i := range assets {
		size += len(assets[i].Data)
	}
	if err := s.checkDiskSpaceForWrite(size); err != nil {
		return err
	}

	// Quiesce background flushes; this write must not interleave with one.
	s.flushers.Wait()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// Stage asset blobs before touching the database.
	staged := make([]string, 0, len(assets))
	for i := range assets {
		if err := astore.StageBlob(assets[i].ID, assets[i].Data); err != nil {
			astore.DiscardStagedBlobs(staged)
			return err
		}
		staged = append(staged, assets[i].ID)
	}

	tx, err := db.Begin()
	if err != nil {
		astore.DiscardStagedBlobs(staged)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer tx.Rollback()

	abort := func(err error) error {
		astore.DiscardStagedBlobs(staged)
		return err
	}

	for _, table := range []string{"items", "categories", "assets"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return abort(fmt.Errorf("%w: %v", ErrStorageWrite, err))
		}
	}

	now := nowUTC()
	for i := range items {
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		if items[i].UpdatedAt.IsZero() {
			items[i].UpdatedAt = items[i].CreatedAt
		}
		payload, err := sealJSON(dek, items[i])
		if err != nil {
			return abort(err)
		}
		if _, err := tx.Exec(
			"INSERT INTO items (id, category, encrypted_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			items[i].ID, items[i].Category, payload, items[i].CreatedAt, items[i].UpdatedAt,
		); err != nil {
			return abort(fmt.Errorf("%w: %v", ErrStorageWrite, err))
		}
	}

	for i := range categories {
		if categories[i].CreatedAt.IsZero() {
			categories[i].CreatedAt = now
		}
		if categories[i].UpdatedAt.IsZero() {
			categories[i].UpdatedAt = categories[i].CreatedAt
		}
		payload, err := sealJSON(dek, categories[i])
		if err != nil {
			return abort(err)
		}
		if _, err := tx.Exec(
			"INSERT INTO categories (id, encrypted_payload, created_at, updated_at) VALUES (?, ?, ?, ?)",
			categories[i].ID, payload, categories[i].CreatedAt, categories[i].UpdatedAt,
		); err != nil {
			return abort(fmt.Errorf("%w: %v", ErrStorageWrite, err))
		}
	}

	keep := make(map[string]bool, len(assets))
	for i := range assets {
		rec := assets[i].Asset
		rec.URI = astore.BlobPath(rec.ID)
		rec.Size = int64(len(assets[i].Data))
		if rec.Type == "" {
			rec.Type = asset.KindForMime(rec.MimeType)
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if err := asset.InsertTx(tx, rec); err != nil {
			return abort(err)
		}
		keep[rec.ID] = true
	}

	settings = settings.normalize()
	settingsPayload, err := sealJSON(dek, settings)
	if err != nil {
		return abort(err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO settings (id, encrypted_payload) VALUES (1, ?)", settingsPayload); err != nil {
		return abort(fmt.Errorf("%w: %v", ErrStorageWrite, err))
	}

	if err := tx.Commit(); err != nil {
		return abort(fmt.Errorf("%w: %v", ErrStorageWrite, err))
	}

	// Database is committed; finish the blob swap. Rename within the same
	// directory cannot fail for space, and a leftover stray blob is only
	// garbage, not corruption.
	if err := astore.PromoteStagedBlobs(staged); err != nil {
		return err
	}
	if err := astore.PruneBlobs(keep); err != nil {
		log.Printf("store: pruning replaced asset blobs failed: %v", err)
	}

	s.mu.Lock()
	s.items = cloneItems(items)
	s.categories = orderCategories(cloneCategories(categories))
	s.settings = settings
	s.mu.Unlock()

	return nil
}
