//go:build windows

package mcp

import (
	"fmt"
	"os"
)

// openPolicyFile opens the policy file. Windows has no O_NOFOLLOW; the
// permission and ownership model differs enough that the unix checks do not
// translate, so only existence is enforced here.
func openPolicyFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("mcp: failed to open policy file: %w", err)
	}
	return f, nil
}

// verifyPolicyFile is a no-op on Windows; POSIX permission bits do not map
// onto its ACL model.
func verifyPolicyFile(os.FileInfo) error {
	return nil
}
