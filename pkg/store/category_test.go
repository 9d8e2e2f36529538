package store

import (
	"errors"
	"testing"

	"lockbox/pkg/schema"
)

func addCryptoWalletsCategory(t *testing.T, s *Store) *schema.Category {
	t.Helper()
	cat, err := s.AddCategory(schema.Category{
		Label: "Crypto Wallets",
		Icon:  "bitcoinsign.circle",
		Fields: []schema.FieldDefinition{
			{Key: "walletName", Label: "Wallet Name", Required: true},
			{Key: "seedPhrase", Label: "Seed Phrase", Required: true, Sensitive: true},
		},
		PreviewField: "walletName",
	})
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	return cat
}

func TestDefaultCategoriesSeeded(t *testing.T) {
	s := newUnlockedStore(t)

	categories, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}

	wantOrder := []string{
		schema.CategoryBankAccount,
		schema.CategoryCard,
		schema.CategoryGovID,
		schema.CategoryLogin,
		schema.CategoryNote,
		schema.CategoryOther,
	}
	if len(categories) != len(wantOrder) {
		t.Fatalf("expected %d preset categories, got %d", len(wantOrder), len(categories))
	}
	for i, id := range wantOrder {
		if categories[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, categories[i].ID)
		}
	}
}

func TestAddCategory(t *testing.T) {
	s := newUnlockedStore(t)
	cat := addCryptoWalletsCategory(t, s)

	if cat.ID == "" {
		t.Fatal("expected generated id")
	}
	if cat.Color == (schema.CategoryColor{}) {
		t.Error("a new category without a color should get a palette default")
	}

	if _, err := s.AddCategory(schema.Category{Label: "   "}); !errors.Is(err, schema.ErrLabelEmpty) {
		t.Errorf("blank label: expected ErrLabelEmpty, got %v", err)
	}

	// Custom categories come after the presets and survive a reopen.
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	reopen(t, s)

	categories, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	last := categories[len(categories)-1]
	if last.ID != cat.ID || last.Label != "Crypto Wallets" {
		t.Errorf("custom category did not survive reopen in order: %+v", last)
	}
}

func TestUpdateCategory(t *testing.T) {
	s := newUnlockedStore(t)
	cat := addCryptoWalletsCategory(t, s)

	draft := *cat
	draft.Label = "Wallets"
	updated, err := s.UpdateCategory(cat.ID, draft)
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if updated.Label != "Wallets" || updated.ID != cat.ID {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if !updated.CreatedAt.Equal(cat.CreatedAt) {
		t.Error("CreatedAt must not change on update")
	}

	if _, err := s.UpdateCategory("missing", draft); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestDeleteCategoryRefusedWhileReferenced(t *testing.T) {
	s := newUnlockedStore(t)
	cat := addCryptoWalletsCategory(t, s)

	item, err := s.AddItem(cat.ID, "Cold Wallet", map[string]string{
		"walletName": "Ledger",
		"seedPhrase": "abandon ability able about",
	}, nil, nil)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	result, err := s.DeleteCategory(cat.ID)
	if err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	if result.Deleted {
		t.Fatal("deletion must be refused while an item references the category")
	}
	if result.ItemCount != 1 {
		t.Errorf("expected ItemCount 1, got %d", result.ItemCount)
	}
	if _, err := s.Category(cat.ID); err != nil {
		t.Errorf("refused deletion must leave the category in place: %v", err)
	}

	if err := s.DeleteItem(item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	result, err = s.DeleteCategory(cat.ID)
	if err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	if !result.Deleted {
		t.Fatal("deletion should succeed once no items reference the category")
	}
	if _, err := s.Category(cat.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound after delete, got %v", err)
	}
}

func TestDeleteCategoryNotFound(t *testing.T) {
	s := newUnlockedStore(t)
	if _, err := s.DeleteCategory("missing"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestResetCategories(t *testing.T) {
	s := newUnlockedStore(t)
	addCryptoWalletsCategory(t, s)

	if err := s.ResetCategories(); err != nil {
		t.Fatalf("ResetCategories failed: %v", err)
	}

	categories, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(categories) != len(schema.DefaultCategories()) {
		t.Errorf("reset should leave exactly the preset set, got %d categories", len(categories))
	}
	for _, c := range categories {
		if c.Label == "Crypto Wallets" {
			t.Error("custom category should be gone after reset")
		}
	}
}

func TestCategoryOrFallback(t *testing.T) {
	s := newUnlockedStore(t)

	c := s.CategoryOrFallback("vanished")
	if c.ID != "vanished" || c.Label != "Unknown" {
		t.Errorf("unexpected fallback category: %+v", c)
	}

	c = s.CategoryOrFallback(schema.CategoryLogin)
	if c.Label != "Login" {
		t.Errorf("known id should resolve normally, got %+v", c)
	}
}
