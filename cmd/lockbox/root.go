// Package main provides the lockbox CLI commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lockbox/pkg/store"
)

var (
	vaultPath string
	s         *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "lockbox",
	Short: "lockbox is a local-only personal vault",
	Long:  `A local-only vault for bank accounts, cards, IDs, logins and documents. Nothing ever leaves your machine.`,
	// PersistentPreRunE runs before the root command and all subcommands.
	// This initializes the Store object.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip for init command since the vault doesn't exist yet
		if cmd.Use == "init" {
			return nil
		}

		path, err := resolveVaultPath()
		if err != nil {
			return err
		}
		vaultPath = path
		s = store.New(vaultPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault directory (default: ~/.lockbox)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
}

// resolveVaultPath returns the vault directory, honoring the --vault flag.
func resolveVaultPath() (string, error) {
	if vaultPath != "" {
		return vaultPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".lockbox"), nil
}

// initCmd initializes a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveVaultPath()
		if err != nil {
			return err
		}
		vaultPath = path

		fmt.Println("Initializing new vault...")

		// 1. Prompt for master password
		fmt.Print("Enter master password: ")
		password1, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		// 2. Confirm password
		fmt.Print("Confirm master password: ")
		password2, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		// 3. Check passwords match
		if string(password1) != string(password2) {
			return fmt.Errorf("passwords do not match")
		}

		// 4. Initialize vault with preset categories
		s = store.New(vaultPath)
		if err := s.Init(string(password1)); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		fmt.Printf("Vault initialized successfully at %s\n", vaultPath)
		return nil
	},
}

// statusCmd reports the lock state of the vault
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the vault lock state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !s.Exists() {
			fmt.Printf("No vault at %s (run 'lockbox init')\n", vaultPath)
			return nil
		}
		fmt.Printf("Vault: %s\n", vaultPath)
		fmt.Printf("State: %s\n", s.State())
		return nil
	},
}

// ensureUnlocked ensures the vault is unlocked.
// The password comes from LOCKBOX_PASSWORD when set, otherwise from a
// no-echo terminal prompt.
func ensureUnlocked() error {
	if !s.IsLocked() {
		return nil
	}

	password := os.Getenv("LOCKBOX_PASSWORD")
	if password == "" {
		fmt.Print("Enter master password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(passwordBytes)
	}

	if err := s.Unlock(password); err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	return nil
}
