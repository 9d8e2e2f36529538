//go:build windows

package asset

import (
	"fmt"
	"os/exec"
)

// shareCommand resolves the platform opener used as the share facility.
func shareCommand() (string, []string, error) {
	if _, err := exec.LookPath("rundll32"); err != nil {
		return "", nil, fmt.Errorf("%w: rundll32 not found", ErrShareUnavailable)
	}
	return "rundll32", []string{"url.dll,FileProtocolHandler"}, nil
}
