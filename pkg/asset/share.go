package asset

import (
	"fmt"
	"log"
	"os"
	"os/exec"
)

// shareCommandFunc resolves the platform opener; a variable so tests can
// substitute a harmless command.
var shareCommandFunc = shareCommand

// Share hands a local file to the operating system's share/open facility.
// The MIME type is advisory; the handler resolves the actual application.
// Returns ErrShareUnavailable when no handler exists — callers surface that
// to the user, it is not fatal.
func Share(uri, mimeType string) error {
	name, args, err := shareCommandFunc()
	if err != nil {
		return err
	}
	cmd := exec.Command(name, append(args, uri)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("asset: failed to launch share handler: %w", err)
	}
	// The handler owns the interaction from here; reap it in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}

// ShareAndRemove hands a temporary file to the share facility, waits for the
// handler to finish and then deletes the file best-effort. Meant for
// plaintext documents that must not outlive the share.
func ShareAndRemove(uri, mimeType string) error {
	name, args, err := shareCommandFunc()
	if err != nil {
		return err
	}
	cmd := exec.Command(name, append(args, uri)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("asset: share handler failed: %w", err)
	}
	if err := os.Remove(uri); err != nil && !os.IsNotExist(err) {
		log.Printf("asset: failed to remove shared file %s: %v", uri, err)
	}
	return nil
}
