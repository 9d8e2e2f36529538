package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
)

// LegacyID derives the asset id for a legacy inline image. The id is the
// SHA-256 of the legacy URI, so re-running migration converges on the same id
// set instead of minting duplicates.
func LegacyID(legacyURI string) string {
	h := sha256.Sum256([]byte(legacyURI))
	return hex.EncodeToString(h[:])
}

// MigrateLegacyImages moves an item's legacy inline images into the asset
// store and returns the item's asset reference list with the migrated ids
// appended, plus the descriptors that could not migrate yet. The operation is
// idempotent: images whose derived id already has an asset record are left
// alone, and ids already present in refs are not appended twice. changed
// reports whether the reference list grew.
func (s *Store) MigrateLegacyImages(images []LegacyImage, refs []string) (newRefs []string, remaining []LegacyImage, changed bool, err error) {
	newRefs = append([]string(nil), refs...)
	have := make(map[string]bool, len(newRefs))
	for _, id := range newRefs {
		have[id] = true
	}

	for _, img := range images {
		id := LegacyID(img.URI)

		if _, getErr := s.Get(id); getErr == nil {
			// Already migrated; just make sure the item references it.
			if !have[id] {
				newRefs = append(newRefs, id)
				have[id] = true
				changed = true
			}
			continue
		}

		data, readErr := os.ReadFile(img.URI)
		if readErr != nil {
			// The legacy file is gone. Keep the descriptor so a restored
			// file can still migrate later.
			log.Printf("asset: legacy image %s unreadable, skipping: %v", img.URI, readErr)
			remaining = append(remaining, img)
			continue
		}

		filename := img.Filename
		if filename == "" {
			filename = filepath.Base(img.URI)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(filename))
		if mimeType == "" {
			mimeType = "image/jpeg"
		}

		a := Asset{
			ID:               id,
			Type:             KindImage,
			OriginalFilename: filename,
			MimeType:         mimeType,
			Width:            img.Width,
			Height:           img.Height,
		}
		if _, putErr := s.Put(a, data); putErr != nil {
			return newRefs, remaining, changed, fmt.Errorf("asset: failed to migrate legacy image %s: %w", img.URI, putErr)
		}

		if !have[id] {
			newRefs = append(newRefs, id)
			have[id] = true
		}
		changed = true
	}

	return newRefs, remaining, changed, nil
}
