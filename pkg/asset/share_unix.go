//go:build !windows

package asset

import (
	"fmt"
	"os/exec"
	"runtime"
)

// shareCommand resolves the platform opener used as the share facility.
func shareCommand() (string, []string, error) {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if _, err := exec.LookPath(name); err != nil {
		return "", nil, fmt.Errorf("%w: %s not found", ErrShareUnavailable, name)
	}
	return name, nil, nil
}
