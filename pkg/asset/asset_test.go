package asset

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "modernc.org/sqlite"

	"lockbox/pkg/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	key := make([]byte, crypto.KeyLength)
	for i := range key {
		key[i] = byte(i)
	}
	return NewStore(db, key, filepath.Join(dir, "assets"))
}

func TestPutGetBytes(t *testing.T) {
	s := newTestStore(t)
	data := []byte("%PDF-1.7 fake document bytes")

	a, err := s.Put(Asset{OriginalFilename: "statement.pdf", MimeType: "application/pdf"}, data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected generated id")
	}
	if a.Type != KindPDF {
		t.Errorf("expected kind pdf, got %s", a.Type)
	}
	if a.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), a.Size)
	}

	// Bytes on disk must be sealed, not plaintext.
	raw, err := os.ReadFile(a.URI)
	if err != nil {
		t.Fatalf("blob file not written: %v", err)
	}
	if bytes.Contains(raw, data) {
		t.Error("blob file contains plaintext asset bytes")
	}

	got, err := s.Bytes(a.ID)
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round-tripped bytes differ")
	}

	meta, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if meta.OriginalFilename != "statement.pdf" {
		t.Errorf("unexpected filename %q", meta.OriginalFilename)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Put(Asset{MimeType: "image/png"}, []byte("png bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound after delete, got %v", err)
	}
	if _, err := os.Stat(a.URI); !os.IsNotExist(err) {
		t.Error("blob file not removed")
	}
}

func TestForItemSkipsMissing(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Put(Asset{MimeType: "image/png"}, []byte("png"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	assets, err := s.ForItem([]string{a.ID, "gone"})
	if err != nil {
		t.Fatalf("ForItem failed: %v", err)
	}
	if len(assets) != 1 || assets[0].ID != a.ID {
		t.Errorf("expected just the existing asset, got %+v", assets)
	}

	assets, err = s.ForItem(nil)
	if err != nil {
		t.Fatalf("ForItem(nil) failed: %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("expected empty result for no refs, got %d", len(assets))
	}
}

func TestSweep(t *testing.T) {
	s := newTestStore(t)
	kept, err := s.Put(Asset{MimeType: "image/png"}, []byte("kept"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	orphan, err := s.Put(Asset{MimeType: "image/png"}, []byte("orphan"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	released, err := s.Sweep(map[string]bool{kept.ID: true})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if released != 1 {
		t.Errorf("expected 1 released asset, got %d", released)
	}
	if _, err := s.Get(kept.ID); err != nil {
		t.Errorf("referenced asset should survive sweep: %v", err)
	}
	if _, err := s.Get(orphan.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("unreferenced asset should be released, got %v", err)
	}
}

func TestMigrateLegacyImagesIdempotent(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	img1 := filepath.Join(dir, "photo1.jpg")
	img2 := filepath.Join(dir, "photo2.jpg")
	if err := os.WriteFile(img1, []byte("jpeg-one"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(img2, []byte("jpeg-two"), 0600); err != nil {
		t.Fatal(err)
	}

	images := []LegacyImage{{URI: img1}, {URI: img2}}

	refs1, remaining, changed, err := s.MigrateLegacyImages(images, nil)
	if err != nil {
		t.Fatalf("first migration failed: %v", err)
	}
	if !changed {
		t.Error("first migration should report a change")
	}
	if len(refs1) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs1))
	}
	if len(remaining) != 0 {
		t.Errorf("readable images should all migrate, %d remain", len(remaining))
	}

	refs2, _, changed, err := s.MigrateLegacyImages(images, refs1)
	if err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if changed {
		t.Error("second migration should be a no-op")
	}

	sort.Strings(refs1)
	r2 := append([]string(nil), refs2...)
	sort.Strings(r2)
	for i := range refs1 {
		if refs1[i] != r2[i] {
			t.Fatalf("id sets differ between runs: %v vs %v", refs1, refs2)
		}
	}

	assets, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(assets) != 2 {
		t.Errorf("expected 2 assets after double migration, got %d", len(assets))
	}

	// Migrated bytes survive the move.
	got, err := s.Bytes(LegacyID(img1))
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got, []byte("jpeg-one")) {
		t.Error("migrated bytes differ from legacy file")
	}
}

func TestMigrateLegacyImagesMissingFile(t *testing.T) {
	s := newTestStore(t)
	images := []LegacyImage{{URI: "/nonexistent/photo.jpg"}}
	refs, remaining, changed, err := s.MigrateLegacyImages(images, nil)
	if err != nil {
		t.Fatalf("migration should skip unreadable files, got %v", err)
	}
	if changed || len(refs) != 0 {
		t.Errorf("unreadable legacy file should not produce refs: %v", refs)
	}
	if len(remaining) != 1 || remaining[0].URI != images[0].URI {
		t.Errorf("unreadable descriptor must be kept for a later run: %+v", remaining)
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, c := range cases {
		if got := FormatFileSize(c.in); got != c.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKindForMime(t *testing.T) {
	cases := map[string]Kind{
		"image/png":          KindImage,
		"image/jpeg":         KindImage,
		"application/pdf":    KindPDF,
		"text/plain":         KindDocument,
		"application/msword": KindDocument,
	}
	for mimeType, want := range cases {
		if got := KindForMime(mimeType); got != want {
			t.Errorf("KindForMime(%q) = %s, want %s", mimeType, got, want)
		}
	}
}
