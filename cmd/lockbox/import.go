package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockbox/pkg/backup"
)

// Import command flags
var (
	importForce bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Skip confirmation prompt")
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Restores the vault from a backup file, replacing ALL current data",
	Long: `Restores the vault from a backup file produced by 'lockbox export'.

This is a destructive replace: every current item, category, attachment and
setting is discarded and the backup's contents take their place. The restore
is all-or-nothing; a failed import leaves the vault untouched.

Backups from older app versions are migrated automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !importForce {
			fmt.Println("This REPLACES everything currently in the vault.")
			fmt.Print("Are you sure? [y/N]: ")
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

		summary, err := backup.New(s).ImportFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to import backup: %w", err)
		}

		fmt.Printf("Restored %d items and %d attachments\n", summary.Items, summary.Assets)
		return nil
	},
}
