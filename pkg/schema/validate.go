package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validation limits for category and field definitions.
const (
	MaxCategoryLabelLength = 64
	MaxFieldKeyLength      = 64
	MaxFieldLabelLength    = 64
	MaxFieldsPerCategory   = 50
	MaxFieldValueLength    = 64 * 1024 // 64 KB per field value
)

// Validation errors.
var (
	ErrLabelEmpty        = errors.New("schema: label must not be empty")
	ErrLabelTooLong      = errors.New("schema: label too long")
	ErrFieldKeyInvalid   = errors.New("schema: field key must be camelCase (letters and digits, starting lowercase)")
	ErrFieldKeyDuplicate = errors.New("schema: duplicate field key")
	ErrTooManyFields     = errors.New("schema: too many fields")
	ErrValueRequired     = errors.New("schema: required field is empty")
	ErrValueTooShort     = errors.New("schema: value shorter than minimum length")
	ErrValueTooLong      = errors.New("schema: value longer than maximum length")
	ErrValueNotNumeric   = errors.New("schema: value must be numeric")
	ErrValueOutOfRange   = errors.New("schema: numeric value out of range")
	ErrValueNotEmail     = errors.New("schema: value must be an email address")
	ErrPreviewFieldUnknown = errors.New("schema: previewField does not name a defined field")
)

var fieldKeyRegex = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// valueRule checks the shape of a field value after the generic length and
// required checks passed. Rules are keyed by KeyboardType; unknown types fall
// back to no shape check, which keeps custom categories forward compatible.
type valueRule func(def FieldDefinition, value string) error

var valueRules = map[KeyboardType]valueRule{
	KeyboardNumeric: validateNumeric,
	KeyboardEmail:   validateEmail,
	// phone and url accept free-form input; prefix handling is display-only
}

func validateNumeric(def FieldDefinition, value string) error {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '/' {
			return -1
		}
		return r
	}, value)
	n, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return fmt.Errorf("%w: field %q", ErrValueNotNumeric, def.Key)
	}
	if def.MinValue != nil && n < *def.MinValue {
		return fmt.Errorf("%w: field %q below %v", ErrValueOutOfRange, def.Key, *def.MinValue)
	}
	if def.MaxValue != nil && n > *def.MaxValue {
		return fmt.Errorf("%w: field %q above %v", ErrValueOutOfRange, def.Key, *def.MaxValue)
	}
	return nil
}

func validateEmail(def FieldDefinition, value string) error {
	at := strings.Index(value, "@")
	if at < 1 || at == len(value)-1 || strings.Count(value, "@") != 1 {
		return fmt.Errorf("%w: field %q", ErrValueNotEmail, def.Key)
	}
	return nil
}

// ValidateValue validates a single value against its field definition.
func ValidateValue(def FieldDefinition, value string) error {
	if value == "" {
		if def.Required {
			return fmt.Errorf("%w: %q", ErrValueRequired, def.Key)
		}
		return nil
	}
	if len(value) > MaxFieldValueLength {
		return fmt.Errorf("%w: field %q exceeds %d bytes", ErrValueTooLong, def.Key, MaxFieldValueLength)
	}
	if def.MinLength != nil && len(value) < *def.MinLength {
		return fmt.Errorf("%w: field %q needs at least %d characters", ErrValueTooShort, def.Key, *def.MinLength)
	}
	if def.MaxLength != nil && len(value) > *def.MaxLength {
		return fmt.Errorf("%w: field %q allows at most %d characters", ErrValueTooLong, def.Key, *def.MaxLength)
	}
	if rule, ok := valueRules[def.KeyboardType]; ok {
		return rule(def, value)
	}
	return nil
}

// ValidateValues validates an item's field values against a category's field
// definitions. Values for keys the category does not define are tolerated;
// legacy items may carry fields from an older schema shape.
func ValidateValues(fields []FieldDefinition, values map[string]string) error {
	for _, def := range fields {
		if err := ValidateValue(def, values[def.Key]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCategory validates a category definition before it is stored.
func ValidateCategory(c *Category) error {
	label := strings.TrimSpace(c.Label)
	if label == "" {
		return ErrLabelEmpty
	}
	if len(label) > MaxCategoryLabelLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrLabelTooLong, len(label), MaxCategoryLabelLength)
	}
	if len(c.Fields) > MaxFieldsPerCategory {
		return fmt.Errorf("%w: %d fields (max %d)", ErrTooManyFields, len(c.Fields), MaxFieldsPerCategory)
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if len(f.Key) == 0 || len(f.Key) > MaxFieldKeyLength || !fieldKeyRegex.MatchString(f.Key) {
			return fmt.Errorf("%w: %q", ErrFieldKeyInvalid, f.Key)
		}
		if len(f.Label) > MaxFieldLabelLength {
			return fmt.Errorf("%w: field %q label", ErrLabelTooLong, f.Key)
		}
		if seen[f.Key] {
			return fmt.Errorf("%w: %q", ErrFieldKeyDuplicate, f.Key)
		}
		seen[f.Key] = true
	}

	if c.PreviewField != "" && !seen[c.PreviewField] {
		return fmt.Errorf("%w: %q", ErrPreviewFieldUnknown, c.PreviewField)
	}
	return nil
}
