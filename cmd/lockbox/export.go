package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lockbox/pkg/asset"
	"lockbox/pkg/backup"
)

// Export command flags
var (
	exportOutput string
	exportShare  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output directory (default: system temp directory)")
	exportCmd.Flags().BoolVar(&exportShare, "share", false, "Hand the backup file to the system share/open dialog")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the vault to a portable backup file",
	Long: `Exports every item, category, attachment and the settings into a single
portable JSON document. Attachment bytes are embedded, so the file alone is
enough to restore the vault on another machine.

The backup file is NOT encrypted. Treat it like the plaintext contents of
your vault and delete it once it has been copied somewhere safe.

Examples:
  lockbox export -o ~/Backups
  lockbox export --share`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		path, summary, err := backup.New(s).Export(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to export vault: %w", err)
		}

		info, statErr := os.Stat(path)
		size := "unknown size"
		if statErr == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}

		fmt.Printf("Exported %d items and %d attachments to %s (%s)\n", summary.Items, summary.Assets, path, size)
		fmt.Fprintln(os.Stderr, "Warning: the backup file contains your vault in plaintext")

		if exportShare {
			if err := asset.ShareAndRemove(path, "application/json"); err != nil {
				return fmt.Errorf("failed to share backup: %w", err)
			}
			fmt.Println("Backup shared; temporary file removed")
		}
		return nil
	},
}
