package mcp

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy controls what the MCP surface may reveal. The vault is read-only
// over MCP regardless; the policy narrows it further. Sensitive field values
// are never exposed in any configuration — at most their masked form.
type Policy struct {
	Version          int      `yaml:"version"`
	DefaultAction    string   `yaml:"default_action"`
	DeniedCategories []string `yaml:"denied_categories"`
}

// PolicyFileName is the name of the policy file inside the vault directory.
const PolicyFileName = "mcp-policy.yaml"

// Policy action constants
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Policy errors
var (
	ErrPolicyNotFound       = errors.New("mcp: policy file not found")
	ErrPolicyInsecure       = errors.New("mcp: policy file has insecure permissions")
	ErrPolicySymlink        = errors.New("mcp: policy file is a symlink")
	ErrPolicyNotOwnedByUser = errors.New("mcp: policy file not owned by current user")
	ErrMaskedValuesDenied   = errors.New("mcp: masked values denied by policy")
)

// LoadPolicy loads the MCP policy from the vault directory. The file is
// opened without following symlinks and checked against the opened descriptor
// so the verified file is the parsed file.
func LoadPolicy(vaultPath string) (*Policy, error) {
	policyPath := filepath.Join(vaultPath, PolicyFileName)

	f, err := openPolicyFile(policyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to stat policy file: %w", err)
	}
	if err := verifyPolicyFile(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("mcp: failed to parse policy file: %w", err)
	}
	if policy.Version != 1 {
		return nil, fmt.Errorf("mcp: unsupported policy version: %d", policy.Version)
	}
	if policy.DefaultAction == "" {
		policy.DefaultAction = ActionDeny
	}
	if policy.DefaultAction != ActionDeny && policy.DefaultAction != ActionAllow {
		return nil, fmt.Errorf("mcp: invalid default_action: %s", policy.DefaultAction)
	}

	return &policy, nil
}

// RestrictedPolicy is the fallback when no policy file exists: listing works,
// masked values are denied.
func RestrictedPolicy() *Policy {
	return &Policy{Version: 1, DefaultAction: ActionDeny}
}

// AllowsMaskedValues reports whether item_get_masked may return masked field
// values.
func (p *Policy) AllowsMaskedValues() bool {
	return p.DefaultAction == ActionAllow
}

// IsCategoryAllowed reports whether items of the given category may be
// exposed. Denied patterns support a trailing wildcard, e.g. "gov*".
func (p *Policy) IsCategoryAllowed(categoryID string) bool {
	for _, pattern := range p.DeniedCategories {
		if matchCategory(categoryID, pattern) {
			return false
		}
	}
	return true
}

func matchCategory(id, pattern string) bool {
	if pattern != "" && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(id) >= len(prefix) && id[:len(prefix)] == prefix
	}
	return id == pattern
}
