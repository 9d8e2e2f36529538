package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// Check command flags
var (
	checkJSON bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output the result as JSON")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks vault file integrity and disk space",
	Long: `Checks the vault without unlocking it: file presence, permissions,
database integrity and available disk space.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := s.CheckIntegrity()
		if err != nil {
			return fmt.Errorf("failed to check vault: %w", err)
		}

		if checkJSON {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		status := func(ok bool) string {
			if ok {
				return "ok"
			}
			return "FAILED"
		}

		fmt.Printf("Vault: %s\n", vaultPath)
		fmt.Printf("  Salt file:    %s\n", status(result.SaltExists))
		fmt.Printf("  Database:     %s\n", status(result.DBExists))
		fmt.Printf("  DB integrity: %s\n", status(result.DBIntegrity))
		fmt.Printf("  Permissions:  %s\n", status(result.PermissionsValid))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}

		if info, err := s.CheckDiskSpace(); err == nil {
			fmt.Printf("Disk: %s free of %s (%d%% used)\n",
				humanize.Bytes(info.Available), humanize.Bytes(info.Total), info.UsedPct)
		}

		if !result.Valid {
			return fmt.Errorf("vault integrity check failed")
		}
		fmt.Println("Vault is healthy")
		return nil
	},
}
