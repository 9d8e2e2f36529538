package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lockbox/pkg/importer"
)

// Item import flags
var (
	itemImportFrom   string
	itemImportDryRun bool
)

func init() {
	itemCmd.AddCommand(itemImportCmd)

	itemImportCmd.Flags().StringVar(&itemImportFrom, "from", "", "Source format: lastpass, bitwarden")
	itemImportCmd.Flags().BoolVar(&itemImportDryRun, "dry-run", false, "Parse and report without adding items")
	itemImportCmd.MarkFlagRequired("from")
}

var itemImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Imports logins from another password manager's CSV export",
	Long: `Imports logins from a CSV export of another password manager. Unlike
'lockbox import', this ADDS items and never touches existing data.

Non-login rows (secure notes, cards) are skipped and reported.

Examples:
  lockbox item import lastpass_export.csv --from lastpass
  lockbox item import bitwarden_export.csv --from bitwarden --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := importer.ParserFor(itemImportFrom)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		result, err := parser.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse export: %w", err)
		}

		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		for _, skipped := range result.Skipped {
			name := skipped.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("Skipped %s: %s\n", name, skipped.Reason)
		}

		if itemImportDryRun {
			fmt.Printf("Would import %d login(s)\n", len(result.Items))
			return nil
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		added := 0
		for _, draft := range result.Items {
			if _, err := s.AddItem(draft.Category, draft.Label, draft.Fields, nil, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not add '%s': %v\n", draft.Label, err)
				continue
			}
			added++
		}

		fmt.Printf("Imported %d login(s)\n", added)
		return nil
	},
}
