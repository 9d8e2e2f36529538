package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

const testPassword = "correct-horse-battery"

func newTestServer(t *testing.T, policy *Policy) *Server {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "vault"))
	if err := s.Init(testPassword); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	t.Cleanup(s.Lock)
	if policy == nil {
		policy = RestrictedPolicy()
	}
	return newServerWithStore(s, policy)
}

func seedItems(t *testing.T, srv *Server) (login, card, gov *store.Item) {
	t.Helper()
	var err error
	login, err = srv.store.AddItem(schema.CategoryLogin, "GitHub", map[string]string{
		"serviceName": "GitHub",
		"username":    "octocat",
		"password":    "hunter2-secret",
	}, nil, nil)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	card, err = srv.store.AddItem(schema.CategoryCard, "Visa", map[string]string{
		"cardNickname":   "Visa",
		"cardNumber":     "4111111111111234",
		"lastFourDigits": "1234",
	}, nil, nil)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	gov, err = srv.store.AddItem(schema.CategoryGovID, "Passport", map[string]string{
		"idType":   "Passport",
		"idNumber": "X1234567",
	}, nil, nil)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	return login, card, gov
}

func TestItemListNeverExposesSensitiveValues(t *testing.T) {
	srv := newTestServer(t, nil)
	seedItems(t, srv)

	_, out, err := srv.handleItemList(context.Background(), nil, ItemListInput{})
	if err != nil {
		t.Fatalf("item_list failed: %v", err)
	}
	if out.Count != 3 {
		t.Fatalf("expected 3 items, got %d", out.Count)
	}
	for _, item := range out.Items {
		if strings.Contains(item.Preview, "hunter2") || strings.Contains(item.Preview, "4111111111111234") {
			t.Errorf("preview leaked a sensitive value: %q", item.Preview)
		}
	}
}

func TestItemListFiltersByCategory(t *testing.T) {
	srv := newTestServer(t, nil)
	seedItems(t, srv)

	_, out, err := srv.handleItemList(context.Background(), nil, ItemListInput{Category: schema.CategoryCard})
	if err != nil {
		t.Fatalf("item_list failed: %v", err)
	}
	if out.Count != 1 || out.Items[0].Label != "Visa" {
		t.Errorf("unexpected filtered result: %+v", out.Items)
	}
}

func TestItemListHonorsDeniedCategories(t *testing.T) {
	srv := newTestServer(t, &Policy{Version: 1, DefaultAction: ActionDeny, DeniedCategories: []string{schema.CategoryGovID}})
	seedItems(t, srv)

	_, out, err := srv.handleItemList(context.Background(), nil, ItemListInput{})
	if err != nil {
		t.Fatalf("item_list failed: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("expected 2 items with govId denied, got %d", out.Count)
	}
	for _, item := range out.Items {
		if item.CategoryID == schema.CategoryGovID {
			t.Error("denied category leaked into listing")
		}
	}
}

func TestItemSearch(t *testing.T) {
	srv := newTestServer(t, nil)
	seedItems(t, srv)

	_, out, err := srv.handleItemSearch(context.Background(), nil, ItemSearchInput{Query: "github"})
	if err != nil {
		t.Fatalf("item_search failed: %v", err)
	}
	if out.Count != 1 || out.Items[0].Label != "GitHub" {
		t.Errorf("unexpected search result: %+v", out.Items)
	}

	// Sensitive values do not match.
	_, out, err = srv.handleItemSearch(context.Background(), nil, ItemSearchInput{Query: "hunter2"})
	if err != nil {
		t.Fatalf("item_search failed: %v", err)
	}
	if out.Count != 0 {
		t.Errorf("search over sensitive values must yield nothing, got %d", out.Count)
	}
}

func TestItemGetMaskedDeniedByDefault(t *testing.T) {
	srv := newTestServer(t, nil)
	login, _, _ := seedItems(t, srv)

	_, _, err := srv.handleItemGetMasked(context.Background(), nil, ItemGetMaskedInput{ID: login.ID})
	if !errors.Is(err, ErrMaskedValuesDenied) {
		t.Errorf("expected ErrMaskedValuesDenied, got %v", err)
	}
}

func TestItemGetMaskedMasksSensitiveFields(t *testing.T) {
	srv := newTestServer(t, &Policy{Version: 1, DefaultAction: ActionAllow})
	login, _, _ := seedItems(t, srv)

	_, out, err := srv.handleItemGetMasked(context.Background(), nil, ItemGetMaskedInput{ID: login.ID})
	if err != nil {
		t.Fatalf("item_get_masked failed: %v", err)
	}
	if out.Label != "GitHub" || out.CategoryID != schema.CategoryLogin {
		t.Errorf("unexpected item: %+v", out)
	}
	for _, f := range out.Fields {
		switch f.Key {
		case "username":
			if f.Value != "octocat" {
				t.Errorf("non-sensitive field should be plain, got %q", f.Value)
			}
		case "password":
			if !f.Sensitive {
				t.Error("password must be flagged sensitive")
			}
			if strings.Contains(f.Value, "hunter2") {
				t.Errorf("password leaked: %q", f.Value)
			}
			if !strings.HasSuffix(f.Value, "cret") {
				t.Errorf("mask should keep the last four runes, got %q", f.Value)
			}
		}
	}
}

func TestItemGetMaskedDeniedCategory(t *testing.T) {
	srv := newTestServer(t, &Policy{Version: 1, DefaultAction: ActionAllow, DeniedCategories: []string{schema.CategoryGovID}})
	_, _, gov := seedItems(t, srv)

	if _, _, err := srv.handleItemGetMasked(context.Background(), nil, ItemGetMaskedInput{ID: gov.ID}); err == nil {
		t.Error("expected error for policy-denied category")
	}
}

func TestItemGetMaskedNotFound(t *testing.T) {
	srv := newTestServer(t, &Policy{Version: 1, DefaultAction: ActionAllow})

	if _, _, err := srv.handleItemGetMasked(context.Background(), nil, ItemGetMaskedInput{ID: "nope"}); !errors.Is(err, store.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestCategoryList(t *testing.T) {
	srv := newTestServer(t, &Policy{Version: 1, DefaultAction: ActionDeny, DeniedCategories: []string{schema.CategoryGovID}})

	_, out, err := srv.handleCategoryList(context.Background(), nil, CategoryListInput{})
	if err != nil {
		t.Fatalf("category_list failed: %v", err)
	}
	if out.Count != 5 {
		t.Fatalf("expected 5 categories with govId denied, got %d", out.Count)
	}
	for _, c := range out.Categories {
		if c.ID == schema.CategoryGovID {
			t.Error("denied category present in listing")
		}
		if !c.Preset {
			t.Errorf("category %s should be preset", c.ID)
		}
	}
}
