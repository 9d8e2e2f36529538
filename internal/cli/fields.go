package cli

import (
	"fmt"
	"strings"
)

// ParseFields parses repeated key=value arguments into a field map.
// The value may contain '='; only the first one splits.
func ParseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field '%s': expected key=value", arg)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid field '%s': empty key", arg)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field key '%s'", key)
		}
		fields[key] = value
	}
	return fields, nil
}
