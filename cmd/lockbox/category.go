package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lockbox/pkg/schema"
)

// Category command flags
var (
	categoryAddFields   []string
	categoryResetForce  bool
	categoryListVerbose bool
)

func init() {
	rootCmd.AddCommand(categoryCmd)

	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryDeleteCmd)
	categoryCmd.AddCommand(categoryResetCmd)

	categoryAddCmd.Flags().StringArrayVar(&categoryAddFields, "field", nil, "Field definition (key=label, can be repeated; prefix key with '!' for required, '*' for sensitive)")
	categoryListCmd.Flags().BoolVarP(&categoryListVerbose, "verbose", "v", false, "Show field definitions")
	categoryResetCmd.Flags().BoolVarP(&categoryResetForce, "force", "f", false, "Skip confirmation prompt")
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Category operations",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists category definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		categories, err := s.Categories()
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}

		for _, c := range categories {
			kind := "custom"
			if _, preset := schema.DefaultCategory(c.ID); preset {
				kind = "preset"
			}
			fmt.Printf("%-24s  %-7s  %s\n", c.ID, kind, c.Label)
			if categoryListVerbose {
				for _, f := range c.Fields {
					marks := ""
					if f.Required {
						marks += " [required]"
					}
					if f.Sensitive {
						marks += " [sensitive]"
					}
					fmt.Printf("    %s: %s%s\n", f.Key, f.Label, marks)
				}
			}
		}
		return nil
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Adds a custom category",
	Long: `Adds a custom category with its field definitions.

Field keys may carry markers: '!' makes the field required, '*' makes it
sensitive (masked in listings, excluded from search).

Example:
  lockbox category add "Crypto Wallets" --field '!walletName=Wallet Name' --field '!*seedPhrase=Seed Phrase'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFieldDefinitions(categoryAddFields)
		if err != nil {
			return err
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		category, err := s.AddCategory(schema.Category{
			Label:  args[0],
			Fields: fields,
		})
		if err != nil {
			return fmt.Errorf("failed to add category: %w", err)
		}

		fmt.Printf("Category '%s' added (%s)\n", category.Label, category.ID)
		return nil
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Deletes a category, refusing while items still reference it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		result, err := s.DeleteCategory(args[0])
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		if !result.Deleted {
			return fmt.Errorf("category is referenced by %d item(s); delete or reassign them first", result.ItemCount)
		}

		fmt.Println("Category deleted")
		return nil
	},
}

var categoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restores the preset categories, discarding custom ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !categoryResetForce {
			fmt.Print("This discards all custom categories. Are you sure? [y/N]: ")
			var response string
			if _, err := fmt.Scanln(&response); err != nil {
				fmt.Println("Aborted")
				return nil
			}
			if response != "y" && response != "Y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		if err := s.ResetCategories(); err != nil {
			return fmt.Errorf("failed to reset categories: %w", err)
		}

		fmt.Println("Categories reset to presets")
		return nil
	},
}

// parseFieldDefinitions parses --field key=label arguments, honoring the
// '!' (required) and '*' (sensitive) key markers.
func parseFieldDefinitions(args []string) ([]schema.FieldDefinition, error) {
	defs := make([]schema.FieldDefinition, 0, len(args))
	for _, arg := range args {
		var required, sensitive bool
		for len(arg) > 0 && (arg[0] == '!' || arg[0] == '*') {
			switch arg[0] {
			case '!':
				required = true
			case '*':
				sensitive = true
			}
			arg = arg[1:]
		}

		key, label, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field definition '%s': expected key=label", arg)
		}
		if label == "" {
			label = key
		}
		defs = append(defs, schema.FieldDefinition{
			Key:       key,
			Label:     label,
			Required:  required,
			Sensitive: sensitive,
		})
	}
	return defs, nil
}
