package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

// maskedVisibleRunes is how many trailing runes a masked value keeps visible.
const maskedVisibleRunes = 4

// ItemSummary is the listing shape shared by item_list and item_search.
// It never contains raw sensitive values.
type ItemSummary struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Category   string `json:"category"`
	CategoryID string `json:"category_id"`
	Preview    string `json:"preview,omitempty"`
	AssetCount int    `json:"asset_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ItemListInput is the input for the item_list tool.
type ItemListInput struct {
	Category string `json:"category,omitempty" jsonschema:"optional category id to filter by"`
}

// ItemListOutput is the output for the item_list tool.
type ItemListOutput struct {
	Items []ItemSummary `json:"items"`
	Count int           `json:"count"`
}

// ItemSearchInput is the input for the item_search tool.
type ItemSearchInput struct {
	Query string `json:"query" jsonschema:"search query; matches labels and non-sensitive fields"`
}

// ItemSearchOutput is the output for the item_search tool.
type ItemSearchOutput struct {
	Items []ItemSummary `json:"items"`
	Count int           `json:"count"`
}

// ItemGetMaskedInput is the input for the item_get_masked tool.
type ItemGetMaskedInput struct {
	ID string `json:"id" jsonschema:"item id"`
}

// MaskedField is a single field with its value masked when sensitive.
type MaskedField struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive"`
}

// ItemGetMaskedOutput is the output for the item_get_masked tool.
type ItemGetMaskedOutput struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Category   string        `json:"category"`
	CategoryID string        `json:"category_id"`
	Fields     []MaskedField `json:"fields"`
	AssetCount int           `json:"asset_count"`
	CreatedAt  string        `json:"created_at"`
	UpdatedAt  string        `json:"updated_at"`
}

// CategoryInfo describes one category definition.
type CategoryInfo struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Preset bool        `json:"preset"`
	Fields []FieldInfo `json:"fields"`
}

// FieldInfo describes one field definition of a category.
type FieldInfo struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Required  bool   `json:"required"`
	Sensitive bool   `json:"sensitive"`
}

// CategoryListInput is the input for the category_list tool.
type CategoryListInput struct{}

// CategoryListOutput is the output for the category_list tool.
type CategoryListOutput struct {
	Categories []CategoryInfo `json:"categories"`
	Count      int            `json:"count"`
}

// handleItemList handles the item_list tool call.
func (s *Server) handleItemList(_ context.Context, _ *mcp.CallToolRequest, input ItemListInput) (*mcp.CallToolResult, ItemListOutput, error) {
	items, err := s.store.Items()
	if err != nil {
		return nil, ItemListOutput{}, fmt.Errorf("failed to list items: %w", err)
	}

	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		if input.Category != "" && item.Category != input.Category {
			continue
		}
		if !s.policy.IsCategoryAllowed(item.Category) {
			continue
		}
		summaries = append(summaries, s.summarize(item))
	}

	return nil, ItemListOutput{Items: summaries, Count: len(summaries)}, nil
}

// handleItemSearch handles the item_search tool call.
func (s *Server) handleItemSearch(_ context.Context, _ *mcp.CallToolRequest, input ItemSearchInput) (*mcp.CallToolResult, ItemSearchOutput, error) {
	items, err := s.store.SearchItems(input.Query)
	if err != nil {
		return nil, ItemSearchOutput{}, fmt.Errorf("failed to search items: %w", err)
	}

	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		if !s.policy.IsCategoryAllowed(item.Category) {
			continue
		}
		summaries = append(summaries, s.summarize(item))
	}

	return nil, ItemSearchOutput{Items: summaries, Count: len(summaries)}, nil
}

// handleItemGetMasked handles the item_get_masked tool call. Every sensitive
// value goes through the mask; there is no configuration that reveals more.
func (s *Server) handleItemGetMasked(_ context.Context, _ *mcp.CallToolRequest, input ItemGetMaskedInput) (*mcp.CallToolResult, ItemGetMaskedOutput, error) {
	if !s.policy.AllowsMaskedValues() {
		return nil, ItemGetMaskedOutput{}, ErrMaskedValuesDenied
	}

	item, err := s.store.Item(input.ID)
	if err != nil {
		return nil, ItemGetMaskedOutput{}, fmt.Errorf("failed to get item: %w", err)
	}
	if !s.policy.IsCategoryAllowed(item.Category) {
		return nil, ItemGetMaskedOutput{}, fmt.Errorf("mcp: category %q denied by policy", item.Category)
	}

	category := s.store.CategoryOrFallback(item.Category)

	fields := make([]MaskedField, 0, len(category.Fields)+len(item.CustomFields))
	for _, def := range category.Fields {
		value, ok := item.Fields[def.Key]
		if !ok {
			continue
		}
		if def.Sensitive {
			value = schema.MaskValue(value, maskedVisibleRunes)
		}
		fields = append(fields, MaskedField{
			Key:       def.Key,
			Label:     def.Label,
			Value:     value,
			Sensitive: def.Sensitive,
		})
	}
	for _, cf := range item.CustomFields {
		value := cf.Value
		if cf.Sensitive {
			value = schema.MaskValue(value, maskedVisibleRunes)
		}
		fields = append(fields, MaskedField{
			Key:       cf.ID,
			Label:     cf.Label,
			Value:     value,
			Sensitive: cf.Sensitive,
		})
	}

	out := ItemGetMaskedOutput{
		ID:         item.ID,
		Label:      item.Label,
		Category:   category.Label,
		CategoryID: item.Category,
		Fields:     fields,
		AssetCount: len(item.AssetRefs),
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
	}
	return nil, out, nil
}

// handleCategoryList handles the category_list tool call.
func (s *Server) handleCategoryList(_ context.Context, _ *mcp.CallToolRequest, _ CategoryListInput) (*mcp.CallToolResult, CategoryListOutput, error) {
	categories, err := s.store.Categories()
	if err != nil {
		return nil, CategoryListOutput{}, fmt.Errorf("failed to list categories: %w", err)
	}

	infos := make([]CategoryInfo, 0, len(categories))
	for _, c := range categories {
		if !s.policy.IsCategoryAllowed(c.ID) {
			continue
		}
		fields := make([]FieldInfo, 0, len(c.Fields))
		for _, def := range c.Fields {
			fields = append(fields, FieldInfo{
				Key:       def.Key,
				Label:     def.Label,
				Required:  def.Required,
				Sensitive: def.Sensitive,
			})
		}
		_, preset := schema.DefaultCategory(c.ID)
		infos = append(infos, CategoryInfo{
			ID:     c.ID,
			Label:  c.Label,
			Preset: preset,
			Fields: fields,
		})
	}

	return nil, CategoryListOutput{Categories: infos, Count: len(infos)}, nil
}

func (s *Server) summarize(item store.Item) ItemSummary {
	category := s.store.CategoryOrFallback(item.Category)
	return ItemSummary{
		ID:         item.ID,
		Label:      item.Label,
		Category:   category.Label,
		CategoryID: item.Category,
		Preview:    category.Preview(item.Fields),
		AssetCount: len(item.AssetRefs),
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
	}
}
