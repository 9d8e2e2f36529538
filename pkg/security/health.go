package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

// Issue flags a single weak password on an item.
type Issue struct {
	ItemID      string `json:"item_id"`
	ItemLabel   string `json:"item_label"`
	Field       string `json:"field"`
	Description string `json:"description"`
}

// DuplicateGroup represents items sharing the same password.
type DuplicateGroup struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

// Report is the result of a password health scan.
type Report struct {
	ItemsScanned int              `json:"items_scanned"`
	Weak         []Issue          `json:"weak,omitempty"`
	Duplicates   []DuplicateGroup `json:"duplicates,omitempty"`
}

// passwordValue is one password occurrence collected for analysis.
type passwordValue struct {
	itemID    string
	itemLabel string
	field     string
	value     string
}

// Analyze scans items for weak and reused passwords. Duplicate comparison
// uses HMAC-SHA256 with a fresh session key so hashes are useless outside
// this call; values are NFC-normalized and trimmed before hashing.
func Analyze(items []store.Item, categories []schema.Category) (*Report, error) {
	byID := make(map[string]schema.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var values []passwordValue
	for _, item := range items {
		category, ok := byID[item.Category]
		if !ok {
			category = schema.FallbackCategory(item.Category)
		}
		for _, def := range category.Fields {
			if !def.Sensitive || !IsPasswordField(def.Key, def.Label) {
				continue
			}
			v := normalizeValue(item.Fields[def.Key])
			if v == "" {
				continue
			}
			values = append(values, passwordValue{
				itemID:    item.ID,
				itemLabel: item.Label,
				field:     def.Label,
				value:     v,
			})
		}
		for _, cf := range item.CustomFields {
			if !cf.Sensitive || !IsPasswordField("", cf.Label) {
				continue
			}
			v := normalizeValue(cf.Value)
			if v == "" {
				continue
			}
			values = append(values, passwordValue{
				itemID:    item.ID,
				itemLabel: item.Label,
				field:     cf.Label,
				value:     v,
			})
		}
	}

	report := &Report{ItemsScanned: len(items)}

	for _, pv := range values {
		if PasswordStrength(pv.value) == StrengthWeak {
			report.Weak = append(report.Weak, Issue{
				ItemID:      pv.itemID,
				ItemLabel:   pv.itemLabel,
				Field:       pv.field,
				Description: fmt.Sprintf("%d characters; use 14 or more", len(pv.value)),
			})
		}
	}

	groups, err := findDuplicates(values)
	if err != nil {
		return nil, err
	}
	report.Duplicates = groups

	return report, nil
}

// findDuplicates groups password occurrences by HMAC of their value.
func findDuplicates(values []passwordValue) ([]DuplicateGroup, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate session key: %w", err)
	}

	byHash := make(map[string][]passwordValue)
	for _, pv := range values {
		h := hmac.New(sha256.New, key)
		h.Write([]byte(pv.value))
		digest := hex.EncodeToString(h.Sum(nil))
		byHash[digest] = append(byHash[digest], pv)
	}

	var groups []DuplicateGroup
	for _, members := range byHash {
		if len(members) <= 1 {
			continue
		}
		group := DuplicateGroup{Count: len(members)}
		for _, pv := range members {
			group.Items = append(group.Items, fmt.Sprintf("%s (%s)", pv.itemLabel, pv.field))
		}
		sort.Strings(group.Items)
		groups = append(groups, group)
	}

	// Most duplicated first, then by first member for stable output.
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Items[0] < groups[j].Items[0]
	})

	return groups, nil
}

func normalizeValue(value string) string {
	return strings.TrimSpace(norm.NFC.String(value))
}
