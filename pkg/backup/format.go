package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lockbox/pkg/asset"
	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

// Format versions
const (
	// FormatVersion1 carried attachment bytes inline on each item's images;
	// there was no top-level assets collection.
	FormatVersion1 = 1
	// FormatVersion2 moves attachments into a top-level assets collection
	// referenced by id from items.
	FormatVersion2 = 2
	// CurrentVersion is the version new exports are written as.
	CurrentVersion = FormatVersion2
)

// MaxImportSize bounds the backup file read into memory for import.
const MaxImportSize = 256 * 1024 * 1024 // 256 MB

// Backup/Restore errors
var (
	ErrParse              = errors.New("backup: malformed backup document")
	ErrUnsupportedVersion = errors.New("backup: unsupported backup version")
	ErrExport             = errors.New("backup: export failed")
	ErrTooLarge           = errors.New("backup: backup file too large")
)

// Document is the portable backup wire format: one UTF-8 JSON file that fully
// reconstructs a vault on any device, attachment bytes embedded as base64.
type Document struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Items      []store.Item      `json:"items"`
	Categories []schema.Category `json:"categories"`
	Assets     []AssetRecord     `json:"assets"`
	Settings   store.Settings    `json:"settings"`
}

// AssetRecord is an asset's metadata plus its raw bytes. encoding/json
// carries Data as base64. The URI is device-local and therefore dropped on
// export; import assigns a fresh one.
type AssetRecord struct {
	asset.Asset
	Data []byte `json:"data"`
}

// Parse decodes and validates a backup document. The required top-level keys
// must be present; a JSON file that merely happens to parse is not accepted
// as a vault backup.
func Parse(data []byte) (*Document, error) {
	if len(data) > MaxImportSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxImportSize)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for _, required := range []string{"version", "exportedAt", "items", "categories", "settings"} {
		if _, ok := keys[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrParse, required)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Version < FormatVersion1 {
		return nil, fmt.Errorf("%w: version %d", ErrParse, doc.Version)
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: version %d (this build reads up to %d)", ErrUnsupportedVersion, doc.Version, CurrentVersion)
	}
	return &doc, nil
}

// migration upgrades a document from one version to the next. Each step is
// pure and idempotent; steps apply in sequence until the document is current.
type migration func(*Document)

var migrations = map[int]migration{
	FormatVersion1: migrateV1,
}

// Migrate upgrades doc in place to CurrentVersion.
func Migrate(doc *Document) error {
	for doc.Version < CurrentVersion {
		step, ok := migrations[doc.Version]
		if !ok {
			return fmt.Errorf("%w: no migration from version %d", ErrUnsupportedVersion, doc.Version)
		}
		step(doc)
		doc.Version++
	}
	return nil
}

// migrateV1 converts inline item images into asset records. Image bytes
// travel inside the v1 document; descriptors without bytes cannot be
// reconstructed on another device and are dropped.
func migrateV1(doc *Document) {
	for i := range doc.Items {
		item := &doc.Items[i]
		for _, img := range item.Images {
			if len(img.Data) == 0 {
				continue
			}
			id := asset.LegacyID(img.URI)
			if img.URI == "" {
				id = uuid.New().String()
			}
			if hasAssetRef(item.AssetRefs, id) {
				continue
			}
			mimeType := mime.TypeByExtension(filepath.Ext(img.Filename))
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			doc.Assets = append(doc.Assets, AssetRecord{
				Asset: asset.Asset{
					ID:               id,
					Type:             asset.KindImage,
					OriginalFilename: img.Filename,
					MimeType:         mimeType,
					Size:             int64(len(img.Data)),
					Width:            img.Width,
					Height:           img.Height,
				},
				Data: img.Data,
			})
			item.AssetRefs = append(item.AssetRefs, id)
		}
		item.Images = nil
	}
}

func hasAssetRef(refs []string, id string) bool {
	for _, ref := range refs {
		if ref == id {
			return true
		}
	}
	return false
}
