package backup

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lockbox/pkg/asset"
	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

const testPassword = "correct-horse-battery"

func newUnlockedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "vault"))
	if err := s.Init(testPassword); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	t.Cleanup(s.Lock)
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newUnlockedStore(t)

	assets, err := src.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	blob := []byte("scanned passport bytes")
	a, err := assets.Put(asset.Asset{OriginalFilename: "passport.jpg", MimeType: "image/jpeg"}, blob)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	item, err := src.AddItem(schema.CategoryGovID, "Passport", map[string]string{
		"idType":   "Passport",
		"idNumber": "X1234567",
	}, nil, []string{a.ID})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := src.SaveSettings(store.Settings{Theme: store.ThemeDark, AutoLockTimeoutSeconds: 90}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	path, summary, err := New(src).Export(t.TempDir())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if summary.Items != 1 || summary.Assets != 1 {
		t.Errorf("unexpected export summary: %+v", summary)
	}
	if !strings.HasPrefix(filepath.Base(path), FilePrefix) || !strings.HasSuffix(path, ".json") {
		t.Errorf("export filename does not follow convention: %s", path)
	}

	// Restore into a fresh vault on a different path.
	dst := newUnlockedStore(t)
	importSummary, err := New(dst).ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if importSummary != summary {
		t.Errorf("import summary %+v differs from export summary %+v", importSummary, summary)
	}

	items, err := dst.Items()
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after import, got %d", len(items))
	}
	got := items[0]
	if got.ID != item.ID || got.Label != "Passport" || got.Fields["idNumber"] != "X1234567" {
		t.Errorf("imported item differs: %+v", got)
	}
	if !got.CreatedAt.Equal(item.CreatedAt) {
		t.Error("item timestamps must survive the round trip")
	}

	dstAssets, err := dst.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	data, err := dstAssets.Bytes(a.ID)
	if err != nil {
		t.Fatalf("imported asset unreadable: %v", err)
	}
	if !bytes.Equal(data, blob) {
		t.Error("asset bytes differ after round trip")
	}

	st, err := dst.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if st.Theme != store.ThemeDark || st.AutoLockTimeoutSeconds != 90 {
		t.Errorf("settings not restored: %+v", st)
	}
}

func TestExportSkipsUnreferencedAssets(t *testing.T) {
	s := newUnlockedStore(t)

	assets, err := s.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	if _, err := assets.Put(asset.Asset{MimeType: "image/png"}, []byte("orphan")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	doc, summary, err := New(s).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if summary.Assets != 0 || len(doc.Assets) != 0 {
		t.Errorf("unreferenced assets must not be exported, got %d", len(doc.Assets))
	}
}

func TestExportAbortsOnUnreadableAsset(t *testing.T) {
	s := newUnlockedStore(t)

	assets, err := s.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	a, err := assets.Put(asset.Asset{MimeType: "application/pdf"}, []byte("pdf"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.AddItem(schema.CategoryNote, "Statement", map[string]string{"title": "Statement"}, nil, []string{a.ID}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	// Remove the blob behind the record; export must fail, not omit it.
	if err := os.Remove(a.URI); err != nil {
		t.Fatal(err)
	}
	if _, _, err := New(s).Snapshot(); !errors.Is(err, ErrExport) {
		t.Errorf("expected ErrExport for unreadable asset, got %v", err)
	}
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	if _, err := Parse([]byte("{not json")); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for malformed JSON, got %v", err)
	}
	if _, err := Parse([]byte(`{"version": 2, "items": []}`)); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for missing keys, got %v", err)
	}
	noStamp := `{"version": 2, "items": [], "categories": [], "settings": {}}`
	if _, err := Parse([]byte(noStamp)); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for missing exportedAt, got %v", err)
	}

	future := fmt.Sprintf(`{"version": %d, "exportedAt": "2024-03-01T10:00:00Z", "items": [], "categories": [], "settings": {}}`, CurrentVersion+1)
	if _, err := Parse([]byte(future)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion for future version, got %v", err)
	}
}

func TestImportV1MigratesInlineImages(t *testing.T) {
	s := newUnlockedStore(t)

	imageBytes := []byte("front side jpeg")
	v1 := map[string]any{
		"version":    FormatVersion1,
		"exportedAt": "2024-03-01T10:00:00Z",
		"items": []map[string]any{{
			"id":       "id-card",
			"category": schema.CategoryGovID,
			"label":    "ID Card",
			"fields":   map[string]string{"idType": "ID Card", "idNumber": "Z99"},
			"images": []map[string]any{{
				"uri":      "file:///old-device/images/front.jpg",
				"filename": "front.jpg",
				"data":     base64.StdEncoding.EncodeToString(imageBytes),
			}},
			"createdAt": "2024-03-01T09:00:00Z",
			"updatedAt": "2024-03-01T09:00:00Z",
		}},
		"categories": []any{},
		"settings":   map[string]any{"theme": "light", "autoLockTimeoutSeconds": 120},
	}
	data, err := json.Marshal(v1)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := New(s).Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if summary.Items != 1 || summary.Assets != 1 {
		t.Errorf("unexpected summary for migrated import: %+v", summary)
	}

	item, err := s.Item("id-card")
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if len(item.Images) != 0 {
		t.Error("inline images must be gone after migration")
	}
	if len(item.AssetRefs) != 1 {
		t.Fatalf("expected 1 asset ref, got %d", len(item.AssetRefs))
	}

	assets, err := s.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	got, err := assets.Bytes(item.AssetRefs[0])
	if err != nil {
		t.Fatalf("migrated asset unreadable: %v", err)
	}
	if !bytes.Equal(got, imageBytes) {
		t.Error("migrated asset bytes differ")
	}

	// A later export writes the current version.
	doc, _, err := New(s).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if doc.Version != CurrentVersion {
		t.Errorf("re-export should carry version %d, got %d", CurrentVersion, doc.Version)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	doc := &Document{
		Version: FormatVersion1,
		Items: []store.Item{{
			ID:       "x",
			Category: schema.CategoryNote,
			Label:    "X",
			Images: []asset.LegacyImage{{
				URI:  "file:///images/a.jpg",
				Data: []byte("bytes"),
			}},
		}},
	}
	if err := Migrate(doc); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	firstRefs := append([]string(nil), doc.Items[0].AssetRefs...)
	if len(firstRefs) != 1 || len(doc.Assets) != 1 {
		t.Fatalf("expected one migrated asset, got refs=%v assets=%d", firstRefs, len(doc.Assets))
	}

	// Re-running the v1 step on the already-migrated document changes nothing.
	migrateV1(doc)
	if len(doc.Items[0].AssetRefs) != 1 || len(doc.Assets) != 1 {
		t.Errorf("second migration run must be a no-op: refs=%v assets=%d", doc.Items[0].AssetRefs, len(doc.Assets))
	}
	if doc.Items[0].AssetRefs[0] != firstRefs[0] {
		t.Error("migration must be deterministic across runs")
	}
}

func TestImportFailureLeavesVaultUntouched(t *testing.T) {
	s := newUnlockedStore(t)
	if _, err := s.AddItem(schema.CategoryNote, "Keeper", map[string]string{"title": "Keeper"}, nil, nil); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if _, err := New(s).Import([]byte(`{"version": 99`)); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}

	items, err := s.Items()
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 || items[0].Label != "Keeper" {
		t.Errorf("failed import must not disturb the vault: %+v", items)
	}
}
