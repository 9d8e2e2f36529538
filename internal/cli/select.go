// Package cli provides shared utilities for CLI commands.
package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"lockbox/pkg/store"
)

// SelectItems resolves a pattern against vault items. An exact item id wins;
// otherwise the pattern is matched against labels, with glob support when it
// contains glob characters (*?[). Label matching is case-insensitive.
func SelectItems(items []store.Item, pattern string) ([]store.Item, error) {
	// Validate pattern syntax
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	for _, item := range items {
		if item.ID == pattern {
			return []store.Item{item}, nil
		}
	}

	hasGlob := strings.ContainsAny(pattern, "*?[")
	needle := strings.ToLower(pattern)

	var matches []store.Item
	for _, item := range items {
		label := strings.ToLower(item.Label)
		if hasGlob {
			matched, err := filepath.Match(needle, label)
			if err != nil {
				return nil, err
			}
			if matched {
				matches = append(matches, item)
			}
		} else if label == needle {
			matches = append(matches, item)
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("no items match '%s'", pattern)
	}

	return matches, nil
}

// SelectItem resolves a pattern to exactly one item and fails when it is
// ambiguous, listing the candidates so the user can pick an id.
func SelectItem(items []store.Item, pattern string) (store.Item, error) {
	matches, err := SelectItems(items, pattern)
	if err != nil {
		return store.Item{}, err
	}
	if len(matches) > 1 {
		labels := make([]string, len(matches))
		for i, m := range matches {
			labels[i] = fmt.Sprintf("%s (%s)", m.Label, m.ID)
		}
		return store.Item{}, fmt.Errorf("pattern '%s' matches %d items: %s", pattern, len(matches), strings.Join(labels, ", "))
	}
	return matches[0], nil
}

// SortItemsByLabel returns a copy of items sorted by label, then id for
// stable output.
func SortItemsByLabel(items []store.Item) []store.Item {
	sorted := make([]store.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// MapKeys extracts keys from a map and returns them sorted.
func MapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
