package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockbox/pkg/store"
)

// Settings command flags
var (
	settingsTheme    string
	settingsAutoLock int
)

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsSetCmd.Flags().StringVar(&settingsTheme, "theme", "", "Theme: system, light, dark")
	settingsSetCmd.Flags().IntVar(&settingsAutoLock, "auto-lock", 0, "Auto-lock timeout in seconds (30-600)")
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Settings operations",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		st, err := s.Settings()
		if err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}

		fmt.Printf("Theme:     %s\n", st.Theme)
		fmt.Printf("Auto-lock: %ds\n", st.AutoLockTimeoutSeconds)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Updates settings; out-of-range values are clamped",
	RunE: func(cmd *cobra.Command, args []string) error {
		if settingsTheme == "" && settingsAutoLock == 0 {
			return fmt.Errorf("nothing to set (use --theme or --auto-lock)")
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		st, err := s.Settings()
		if err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}
		if settingsTheme != "" {
			st.Theme = store.Theme(settingsTheme)
		}
		if settingsAutoLock != 0 {
			st.AutoLockTimeoutSeconds = settingsAutoLock
		}

		saved, err := s.SaveSettings(st)
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		fmt.Printf("Theme:     %s\n", saved.Theme)
		fmt.Printf("Auto-lock: %ds\n", saved.AutoLockTimeoutSeconds)
		return nil
	},
}
