package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"lockbox/pkg/security"
)

// Audit command flags
var (
	auditJSON bool
)

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output the report as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scans the vault for weak and reused passwords",
	Long: `Scans every item for weak and reused passwords. The analysis happens
entirely in memory; no password values or hashes are written anywhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		items, err := s.Items()
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		categories, err := s.Categories()
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}

		report, err := security.Analyze(items, categories)
		if err != nil {
			return fmt.Errorf("failed to analyze vault: %w", err)
		}

		if auditJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Scanned %d item(s)\n", report.ItemsScanned)

		if len(report.Weak) == 0 && len(report.Duplicates) == 0 {
			fmt.Println("No weak or reused passwords found")
			return nil
		}

		if len(report.Weak) > 0 {
			fmt.Printf("\nWeak passwords (%d):\n", len(report.Weak))
			for _, issue := range report.Weak {
				fmt.Printf("  %s / %s: %s\n", issue.ItemLabel, issue.Field, issue.Description)
			}
		}

		if len(report.Duplicates) > 0 {
			fmt.Printf("\nReused passwords (%d group(s)):\n", len(report.Duplicates))
			for _, group := range report.Duplicates {
				fmt.Printf("  %d items share a password:\n", group.Count)
				for _, member := range group.Items {
					fmt.Printf("    - %s\n", member)
				}
			}
		}

		return nil
	},
}
