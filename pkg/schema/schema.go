// Package schema defines the category and field templates that vault items
// conform to: preset categories, custom category records, field definitions
// and the runtime validation rules they drive. Categories are plain data, not
// types; validation is keyed on field definitions at runtime.
package schema

import (
	"crypto/rand"
	"math/big"
	"time"
)

// KeyboardType selects the input mode a field prefers. It also keys the
// value-shape validation rule for the field.
type KeyboardType string

const (
	KeyboardDefault KeyboardType = "default"
	KeyboardNumeric KeyboardType = "numeric"
	KeyboardEmail   KeyboardType = "email"
	KeyboardPhone   KeyboardType = "phone"
	KeyboardURL     KeyboardType = "url"
)

// CategoryColor holds the color tokens a category renders with.
type CategoryColor struct {
	GradientStart string `json:"gradientStart"`
	GradientEnd   string `json:"gradientEnd"`
	Bg            string `json:"bg"`
	Icon          string `json:"icon"`
	Text          string `json:"text"`
}

// FieldDefinition describes one field of a category. It drives both
// validation and masked display.
type FieldDefinition struct {
	Key          string       `json:"key"`
	Label        string       `json:"label"`
	Required     bool         `json:"required,omitempty"`
	Sensitive    bool         `json:"sensitive,omitempty"`
	KeyboardType KeyboardType `json:"keyboardType,omitempty"`
	MinLength    *int         `json:"minLength,omitempty"`
	MaxLength    *int         `json:"maxLength,omitempty"`
	MinValue     *float64     `json:"minValue,omitempty"`
	MaxValue     *float64     `json:"maxValue,omitempty"`
	Prefix       string       `json:"prefix,omitempty"`
}

// Category is the schema plus presentation template for a vault item type.
// Preset categories use fixed well-known ids; custom ones use generated ids.
type Category struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Icon         string            `json:"icon"`
	Color        CategoryColor     `json:"color"`
	Fields       []FieldDefinition `json:"fields"`
	PreviewField string            `json:"previewField,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Well-known preset category ids.
const (
	CategoryBankAccount = "bankAccount"
	CategoryCard        = "card"
	CategoryGovID       = "govId"
	CategoryLogin       = "login"
	CategoryNote        = "note"
	CategoryOther       = "other"
)

// Palette is the fixed set of colors offered to new custom categories.
var Palette = []CategoryColor{
	{GradientStart: "#4F46E5", GradientEnd: "#7C3AED", Bg: "#EEF2FF", Icon: "#4F46E5", Text: "#312E81"},
	{GradientStart: "#0891B2", GradientEnd: "#06B6D4", Bg: "#ECFEFF", Icon: "#0891B2", Text: "#164E63"},
	{GradientStart: "#059669", GradientEnd: "#10B981", Bg: "#ECFDF5", Icon: "#059669", Text: "#064E3B"},
	{GradientStart: "#D97706", GradientEnd: "#F59E0B", Bg: "#FFFBEB", Icon: "#D97706", Text: "#78350F"},
	{GradientStart: "#DC2626", GradientEnd: "#EF4444", Bg: "#FEF2F2", Icon: "#DC2626", Text: "#7F1D1D"},
	{GradientStart: "#DB2777", GradientEnd: "#EC4899", Bg: "#FDF2F8", Icon: "#DB2777", Text: "#831843"},
	{GradientStart: "#7C3AED", GradientEnd: "#A78BFA", Bg: "#F5F3FF", Icon: "#7C3AED", Text: "#4C1D95"},
	{GradientStart: "#475569", GradientEnd: "#64748B", Bg: "#F8FAFC", Icon: "#475569", Text: "#1E293B"},
}

func intPtr(v int) *int { return &v }

// presetCategories is the deterministic, fixed-order default set used to seed
// a fresh vault and as the reset-to-defaults target.
var presetCategories = []Category{
	{
		ID:    CategoryBankAccount,
		Label: "Bank Account",
		Icon:  "building.columns",
		Color: Palette[0],
		Fields: []FieldDefinition{
			{Key: "bankName", Label: "Bank Name", Required: true},
			{Key: "accountHolder", Label: "Account Holder"},
			{Key: "accountNumber", Label: "Account Number", Required: true, Sensitive: true, KeyboardType: KeyboardNumeric, MinLength: intPtr(4), MaxLength: intPtr(34)},
			{Key: "routingNumber", Label: "Routing Number", Sensitive: true, KeyboardType: KeyboardNumeric, MaxLength: intPtr(12)},
			{Key: "iban", Label: "IBAN", Sensitive: true, MaxLength: intPtr(34)},
			{Key: "notes", Label: "Notes"},
		},
		PreviewField: "bankName",
	},
	{
		ID:    CategoryCard,
		Label: "Card",
		Icon:  "creditcard",
		Color: Palette[4],
		Fields: []FieldDefinition{
			{Key: "cardNickname", Label: "Card Nickname", Required: true},
			{Key: "cardholderName", Label: "Cardholder Name"},
			{Key: "cardNumber", Label: "Card Number", Required: true, Sensitive: true, KeyboardType: KeyboardNumeric, MinLength: intPtr(12), MaxLength: intPtr(19)},
			{Key: "lastFourDigits", Label: "Last 4 Digits", KeyboardType: KeyboardNumeric, MinLength: intPtr(4), MaxLength: intPtr(4)},
			{Key: "expiryDate", Label: "Expiry Date", KeyboardType: KeyboardNumeric, MaxLength: intPtr(7)},
			{Key: "cvv", Label: "CVV", Sensitive: true, KeyboardType: KeyboardNumeric, MinLength: intPtr(3), MaxLength: intPtr(4)},
			{Key: "pin", Label: "PIN", Sensitive: true, KeyboardType: KeyboardNumeric, MaxLength: intPtr(8)},
		},
		PreviewField: "cardNickname",
	},
	{
		ID:    CategoryGovID,
		Label: "Government ID",
		Icon:  "person.text.rectangle",
		Color: Palette[2],
		Fields: []FieldDefinition{
			{Key: "idType", Label: "ID Type", Required: true},
			{Key: "fullName", Label: "Full Name"},
			{Key: "idNumber", Label: "ID Number", Required: true, Sensitive: true},
			{Key: "issueDate", Label: "Issue Date"},
			{Key: "expiryDate", Label: "Expiry Date"},
			{Key: "issuingAuthority", Label: "Issuing Authority"},
		},
		PreviewField: "idType",
	},
	{
		ID:    CategoryLogin,
		Label: "Login",
		Icon:  "key",
		Color: Palette[6],
		Fields: []FieldDefinition{
			{Key: "serviceName", Label: "Service Name", Required: true},
			{Key: "username", Label: "Username"},
			{Key: "email", Label: "Email", KeyboardType: KeyboardEmail},
			{Key: "password", Label: "Password", Required: true, Sensitive: true},
			{Key: "website", Label: "Website", KeyboardType: KeyboardURL, Prefix: "https://"},
			{Key: "totpSecret", Label: "TOTP Secret", Sensitive: true},
		},
		PreviewField: "serviceName",
	},
	{
		ID:    CategoryNote,
		Label: "Secure Note",
		Icon:  "note.text",
		Color: Palette[3],
		Fields: []FieldDefinition{
			{Key: "title", Label: "Title", Required: true},
			{Key: "content", Label: "Content", Sensitive: true},
		},
		PreviewField: "title",
	},
	{
		ID:    CategoryOther,
		Label: "Other",
		Icon:  "archivebox",
		Color: Palette[7],
		Fields: []FieldDefinition{
			{Key: "title", Label: "Title", Required: true},
			{Key: "value", Label: "Value", Sensitive: true},
			{Key: "notes", Label: "Notes"},
		},
		PreviewField: "title",
	},
}

// DefaultCategories returns the preset categories in fixed order. The result
// is a deep-enough copy; callers may mutate it freely.
func DefaultCategories() []Category {
	out := make([]Category, len(presetCategories))
	copy(out, presetCategories)
	for i := range out {
		fields := make([]FieldDefinition, len(out[i].Fields))
		copy(fields, out[i].Fields)
		out[i].Fields = fields
	}
	return out
}

// DefaultCategory resolves a preset category by id. Not-found is a valid
// outcome for legacy or orphaned item types; callers degrade to FallbackCategory.
func DefaultCategory(id string) (Category, bool) {
	for _, c := range DefaultCategories() {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FallbackCategory returns the presentation used for items whose type no
// longer resolves to a category.
func FallbackCategory(id string) Category {
	return Category{
		ID:    id,
		Label: "Unknown",
		Icon:  "questionmark.circle",
		Color: Palette[7],
	}
}

// PickDefaultColor returns a random palette entry. Used only as a UI
// convenience default for new custom categories.
func PickDefaultColor() CategoryColor {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(Palette))))
	if err != nil {
		return Palette[0]
	}
	return Palette[n.Int64()]
}

// FieldByKey finds a field definition within a category.
func (c *Category) FieldByKey(key string) (FieldDefinition, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Preview returns the value an item list row should show for the given field
// values, honoring the category's preview field and masking sensitive values.
func (c *Category) Preview(values map[string]string) string {
	key := c.PreviewField
	if key == "" && len(c.Fields) > 0 {
		key = c.Fields[0].Key
	}
	def, ok := c.FieldByKey(key)
	if !ok {
		return ""
	}
	v := values[key]
	if def.Sensitive {
		return MaskValue(v, 4)
	}
	return v
}
