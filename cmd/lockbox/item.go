package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lockbox/internal/cli"
	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

// Item command flags
var (
	itemAddCategory string
	itemAddFields   []string

	itemGetReveal bool

	itemUpdateLabel  string
	itemUpdateFields []string
)

func init() {
	rootCmd.AddCommand(itemCmd)

	itemCmd.AddCommand(itemAddCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemGetCmd)
	itemCmd.AddCommand(itemSearchCmd)
	itemCmd.AddCommand(itemUpdateCmd)
	itemCmd.AddCommand(itemDeleteCmd)

	itemAddCmd.Flags().StringVarP(&itemAddCategory, "category", "c", "", "Category id (e.g. login, card, bankAccount)")
	itemAddCmd.Flags().StringArrayVar(&itemAddFields, "field", nil, "Field value (key=value, can be repeated)")
	itemAddCmd.MarkFlagRequired("category")

	itemGetCmd.Flags().BoolVar(&itemGetReveal, "reveal", false, "Show sensitive values in plaintext")

	itemUpdateCmd.Flags().StringVar(&itemUpdateLabel, "label", "", "New label")
	itemUpdateCmd.Flags().StringArrayVar(&itemUpdateFields, "field", nil, "Field value (key=value, can be repeated)")
}

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Item operations",
}

var itemAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Adds an item to the vault",
	Long: `Adds an item to the vault.

Examples:
  lockbox item add "GitHub" -c login --field serviceName=GitHub --field username=octocat --field password=hunter2
  lockbox item add "Chase Checking" -c bankAccount --field bankName=Chase --field accountNumber=12345678`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]

		fields, err := cli.ParseFields(itemAddFields)
		if err != nil {
			return err
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		item, err := s.AddItem(itemAddCategory, label, fields, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to add item: %w", err)
		}

		fmt.Printf("Item '%s' added (%s)\n", item.Label, item.ID)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all items",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		items, err := s.Items()
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("No items stored")
			return nil
		}

		printItemRows(items)
		return nil
	},
}

var itemSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Searches items by label and non-sensitive fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		items, err := s.SearchItems(args[0])
		if err != nil {
			return fmt.Errorf("failed to search items: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("No items found")
			return nil
		}

		printItemRows(items)
		return nil
	},
}

var itemGetCmd = &cobra.Command{
	Use:   "get [id or label]",
	Short: "Shows one item; sensitive values are masked unless --reveal is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}

		category := s.CategoryOrFallback(item.Category)

		fmt.Printf("Label:    %s\n", item.Label)
		fmt.Printf("Category: %s\n", category.Label)
		fmt.Printf("ID:       %s\n", item.ID)
		defined := make(map[string]bool, len(category.Fields))
		for _, def := range category.Fields {
			defined[def.Key] = true
			value, ok := item.Fields[def.Key]
			if !ok {
				continue
			}
			if def.Sensitive && !itemGetReveal {
				value = schema.MaskValue(value, 4)
			}
			fmt.Printf("  %s: %s\n", def.Label, value)
		}
		// Fields the category no longer defines (e.g. after its category was
		// deleted) carry no sensitivity metadata, so they are masked unless
		// revealed explicitly.
		extra := make(map[string]string)
		for key, value := range item.Fields {
			if !defined[key] {
				extra[key] = value
			}
		}
		for _, key := range cli.MapKeys(extra) {
			value := extra[key]
			if !itemGetReveal {
				value = schema.MaskValue(value, 4)
			}
			fmt.Printf("  %s: %s\n", key, value)
		}
		for _, cf := range item.CustomFields {
			value := cf.Value
			if cf.Sensitive && !itemGetReveal {
				value = schema.MaskValue(value, 4)
			}
			fmt.Printf("  %s: %s\n", cf.Label, value)
		}
		if len(item.AssetRefs) > 0 {
			fmt.Printf("Attachments: %d\n", len(item.AssetRefs))
		}
		fmt.Printf("Created: %s\n", item.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated: %s\n", item.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var itemUpdateCmd = &cobra.Command{
	Use:   "update [id or label]",
	Short: "Updates an item's label or field values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if itemUpdateLabel == "" && len(itemUpdateFields) == 0 {
			return fmt.Errorf("nothing to update (use --label or --field)")
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}

		upd := store.ItemUpdate{}
		if itemUpdateLabel != "" {
			upd.Label = &itemUpdateLabel
		}
		if len(itemUpdateFields) > 0 {
			changed, err := cli.ParseFields(itemUpdateFields)
			if err != nil {
				return err
			}
			// Merge over the existing fields so untouched keys survive.
			merged := make(map[string]string, len(item.Fields)+len(changed))
			for k, v := range item.Fields {
				merged[k] = v
			}
			for k, v := range changed {
				merged[k] = v
			}
			upd.Fields = merged
		}

		updated, err := s.UpdateItem(item.ID, upd)
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}

		fmt.Printf("Item '%s' updated\n", updated.Label)
		return nil
	},
}

var itemDeleteCmd = &cobra.Command{
	Use:   "delete [id or label]",
	Short: "Deletes an item and releases its unreferenced attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}

		if err := s.DeleteItem(item.ID); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}

		fmt.Printf("Item '%s' deleted\n", item.Label)
		return nil
	},
}

// resolveItem resolves an id or label pattern to a single item.
func resolveItem(pattern string) (store.Item, error) {
	items, err := s.Items()
	if err != nil {
		return store.Item{}, fmt.Errorf("failed to list items: %w", err)
	}
	return cli.SelectItem(items, pattern)
}

func printItemRows(items []store.Item) {
	for _, item := range cli.SortItemsByLabel(items) {
		category := s.CategoryOrFallback(item.Category)
		line := fmt.Sprintf("%-36s  %-14s  %s", item.ID, category.Label, item.Label)
		if preview := category.Preview(item.Fields); preview != "" {
			line += fmt.Sprintf("  (%s)", preview)
		}
		fmt.Println(line)
	}
}
