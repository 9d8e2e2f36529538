// Package backup produces and consumes the portable vault backup document: a
// single JSON file holding items, categories, settings and attachment bytes.
// Export embeds every referenced asset; import is a destructive full replace
// that either applies completely or leaves the vault untouched.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lockbox/pkg/asset"
	"lockbox/pkg/store"
)

// FilePrefix and the date layout make up the backup filename convention,
// e.g. lockbox-backup-2026-08-30.json.
const (
	FilePrefix     = "lockbox-backup-"
	fileDateLayout = "2006-01-02"
	fileMode       = 0600
)

// Summary reports what an export or import covered.
type Summary struct {
	Items  int `json:"items"`
	Assets int `json:"assets"`
}

// Engine runs exports and imports against an unlocked vault store.
type Engine struct {
	store *store.Store
}

// New creates a backup engine for the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Snapshot assembles the current vault state into a backup document. Only
// assets referenced by at least one item are included; an unreadable
// referenced asset aborts the snapshot — a backup silently missing
// attachments is worse than no backup.
func (e *Engine) Snapshot() (*Document, Summary, error) {
	items, err := e.store.Items()
	if err != nil {
		return nil, Summary{}, err
	}
	categories, err := e.store.Categories()
	if err != nil {
		return nil, Summary{}, err
	}
	settings, err := e.store.Settings()
	if err != nil {
		return nil, Summary{}, err
	}
	assets, err := e.store.Assets()
	if err != nil {
		return nil, Summary{}, err
	}

	seen := make(map[string]bool)
	var records []AssetRecord
	for _, item := range items {
		for _, ref := range item.AssetRefs {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			meta, err := assets.Get(ref)
			if err != nil {
				return nil, Summary{}, fmt.Errorf("%w: asset %s: %v", ErrExport, ref, err)
			}
			data, err := assets.Bytes(ref)
			if err != nil {
				return nil, Summary{}, fmt.Errorf("%w: asset %s: %v", ErrExport, ref, err)
			}
			rec := AssetRecord{Asset: *meta, Data: data}
			rec.URI = ""
			records = append(records, rec)
		}
	}

	doc := &Document{
		Version:    CurrentVersion,
		ExportedAt: time.Now().UTC(),
		Items:      items,
		Categories: categories,
		Assets:     records,
		Settings:   settings,
	}
	return doc, Summary{Items: len(items), Assets: len(records)}, nil
}

// Export writes the backup document into dir and returns its path. The file
// lands under the dated filename convention; an existing file for the same
// day is overwritten.
func (e *Engine) Export(dir string) (string, Summary, error) {
	doc, summary, err := e.Snapshot()
	if err != nil {
		return "", Summary{}, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", Summary{}, fmt.Errorf("%w: %v", ErrExport, err)
	}

	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, FilePrefix+doc.ExportedAt.Format(fileDateLayout)+".json")

	// Temp-and-rename so a failed write never leaves a truncated file under
	// the final name.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return "", Summary{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", Summary{}, fmt.Errorf("%w: %v", ErrExport, err)
	}

	return path, summary, nil
}

// Import parses, migrates and applies a backup document, replacing the entire
// vault contents. The replace is all-or-nothing: any failure leaves the vault
// exactly as it was.
func (e *Engine) Import(data []byte) (Summary, error) {
	doc, err := Parse(data)
	if err != nil {
		return Summary{}, err
	}
	if err := Migrate(doc); err != nil {
		return Summary{}, err
	}

	imported := make([]asset.Imported, 0, len(doc.Assets))
	for _, rec := range doc.Assets {
		imported = append(imported, asset.Imported{Asset: rec.Asset, Data: rec.Data})
	}

	if err := e.store.ReplaceAll(doc.Items, doc.Categories, doc.Settings, imported); err != nil {
		return Summary{}, err
	}
	return Summary{Items: len(doc.Items), Assets: len(imported)}, nil
}

// ImportFile reads a backup file and imports it. The size cap is checked
// before the file is read into memory.
func (e *Engine) ImportFile(path string) (Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, fmt.Errorf("backup: failed to stat backup file: %w", err)
	}
	if info.Size() > MaxImportSize {
		return Summary{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, info.Size(), MaxImportSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("backup: failed to read backup file: %w", err)
	}
	return e.Import(data)
}
