package security

import (
	"testing"

	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		value string
		want  Strength
	}{
		{"short", StrengthWeak},
		{"12345678", StrengthFair},
		{"fourteen-chars", StrengthGood},
		{"twenty-characters-xx", StrengthStrong},
		{"", StrengthWeak},
	}
	for _, tc := range tests {
		if got := PasswordStrength(tc.value); got != tc.want {
			t.Errorf("PasswordStrength(%q) = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestIsPasswordField(t *testing.T) {
	if !IsPasswordField("password", "Password") {
		t.Error("password key must be scored")
	}
	if IsPasswordField("cvv", "CVV") {
		t.Error("cvv is short by nature and must not be scored")
	}
	if IsPasswordField("totpSecret", "TOTP Secret") {
		t.Error("totpSecret is machine-generated and must not be scored")
	}
	if !IsPasswordField("", "WiFi Passphrase") {
		t.Error("custom fields labeled like passwords must be scored")
	}
}

func loginItem(id, label, password string) store.Item {
	return store.Item{
		ID:       id,
		Category: schema.CategoryLogin,
		Label:    label,
		Fields: map[string]string{
			"serviceName": label,
			"password":    password,
		},
	}
}

func TestAnalyzeFlagsWeakPasswords(t *testing.T) {
	items := []store.Item{
		loginItem("a", "GitHub", "short"),
		loginItem("b", "GitLab", "a-long-enough-password"),
	}

	report, err := Analyze(items, schema.DefaultCategories())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.ItemsScanned != 2 {
		t.Errorf("scanned %d items, want 2", report.ItemsScanned)
	}
	if len(report.Weak) != 1 || report.Weak[0].ItemLabel != "GitHub" {
		t.Errorf("unexpected weak issues: %+v", report.Weak)
	}
}

func TestAnalyzeFindsDuplicates(t *testing.T) {
	items := []store.Item{
		loginItem("a", "GitHub", "shared-password-one"),
		loginItem("b", "GitLab", "shared-password-one"),
		loginItem("c", "Email", "different-password-2"),
	}

	report, err := Analyze(items, schema.DefaultCategories())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Duplicates) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(report.Duplicates))
	}
	group := report.Duplicates[0]
	if group.Count != 2 || len(group.Items) != 2 {
		t.Errorf("unexpected group: %+v", group)
	}
}

func TestAnalyzeNormalizesBeforeComparing(t *testing.T) {
	items := []store.Item{
		loginItem("a", "One", "café-password-long"),      // composed e-acute
		loginItem("b", "Two", "café-password-long  "), // decomposed e-acute, trailing space
		loginItem("c", "Three", "unrelated-password-long-xyz"),
	}

	report, err := Analyze(items, schema.DefaultCategories())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0].Count != 2 {
		t.Errorf("normalized values must compare equal: %+v", report.Duplicates)
	}
}

func TestAnalyzeCoversCustomFields(t *testing.T) {
	items := []store.Item{{
		ID:       "w",
		Category: schema.CategoryOther,
		Label:    "Router",
		Fields:   map[string]string{"title": "Router"},
		CustomFields: []store.CustomField{
			{ID: "f1", Label: "Admin Password", Value: "weak", Sensitive: true},
		},
	}}

	report, err := Analyze(items, schema.DefaultCategories())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Weak) != 1 || report.Weak[0].Field != "Admin Password" {
		t.Errorf("custom password field not flagged: %+v", report.Weak)
	}
}
