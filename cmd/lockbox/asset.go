package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lockbox/pkg/asset"
	"lockbox/pkg/store"
)

func init() {
	rootCmd.AddCommand(assetCmd)

	assetCmd.AddCommand(assetAttachCmd)
	assetCmd.AddCommand(assetListCmd)
	assetCmd.AddCommand(assetSaveCmd)
	assetCmd.AddCommand(assetOpenCmd)
}

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Attachment operations",
}

var assetAttachCmd = &cobra.Command{
	Use:   "attach [item] [file]",
	Short: "Attaches a file to an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}

		assets, err := s.Assets()
		if err != nil {
			return err
		}

		filename := filepath.Base(args[1])
		mimeType := mime.TypeByExtension(filepath.Ext(filename))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		a, err := assets.Put(asset.Asset{
			OriginalFilename: filename,
			MimeType:         mimeType,
		}, data)
		if err != nil {
			return fmt.Errorf("failed to store attachment: %w", err)
		}

		refs := append(append([]string(nil), item.AssetRefs...), a.ID)
		if _, err := s.UpdateItem(item.ID, store.ItemUpdate{AssetRefs: &refs}); err != nil {
			return fmt.Errorf("failed to link attachment: %w", err)
		}

		fmt.Printf("Attached %s (%s) to '%s'\n", filename, humanize.Bytes(uint64(a.Size)), item.Label)
		return nil
	},
}

var assetListCmd = &cobra.Command{
	Use:   "list [item]",
	Short: "Lists an item's attachments",
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
		assets, err := s.Assets()
		if err != nil {
			return err
		}

		attached, err := assets.ForItem(item.AssetRefs)
		if err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		if len(attached) == 0 {
			fmt.Println("No attachments")
			return nil
		}

		for _, a := range attached {
			name := a.OriginalFilename
			if name == "" {
				name = a.ID
			}
			fmt.Printf("%-36s  %-24s  %-10s  %s\n", a.ID, name, a.Type, humanize.Bytes(uint64(a.Size)))
		}
		return nil
	},
}

var assetSaveCmd = &cobra.Command{
	Use:   "save [asset-id] [destination]",
	Short: "Decrypts an attachment to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		assets, err := s.Assets()
		if err != nil {
			return err
		}

		data, err := assets.Bytes(args[0])
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		if err := os.WriteFile(args[1], data, 0600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}

		fmt.Printf("Saved %s to %s\n", humanize.Bytes(uint64(len(data))), args[1])
		return nil
	},
}

var assetOpenCmd = &cobra.Command{
	Use:   "open [asset-id]",
	Short: "Decrypts an attachment to a temp file and opens it with the system viewer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer s.Lock()

		assets, err := s.Assets()
		if err != nil {
			return err
		}

		a, err := assets.Get(args[0])
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		data, err := assets.Bytes(a.ID)
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}

		name := a.OriginalFilename
		if name == "" {
			name = a.ID
		}
		tmpPath := filepath.Join(os.TempDir(), name)
		if err := os.WriteFile(tmpPath, data, 0600); err != nil {
			return fmt.Errorf("failed to write temp file: %w", err)
		}

		fmt.Printf("Opening %s (decrypted copy; delete it when done)\n", tmpPath)
		return asset.Share(tmpPath, a.MimeType)
	},
}
