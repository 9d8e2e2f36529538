package store

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"lockbox/pkg/asset"
	"lockbox/pkg/schema"
)

// CustomField is a user-defined field attached to a single item, outside its
// category schema.
type CustomField struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// Item is one vault entry. Fields is keyed by the category's field keys;
// values for keys the category no longer defines are kept as-is. Images is
// the deprecated inline attachment list, retained only until migration moves
// it into the asset store.
type Item struct {
	ID           string              `json:"id"`
	Category     string              `json:"category"`
	Label        string              `json:"label"`
	Fields       map[string]string   `json:"fields"`
	CustomFields []CustomField       `json:"customFields,omitempty"`
	AssetRefs    []string            `json:"assetRefs,omitempty"`
	Images       []asset.LegacyImage `json:"images,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ItemUpdate carries the changes for UpdateItem. Nil pointers leave the
// corresponding item part untouched; Fields nil leaves all values unchanged.
type ItemUpdate struct {
	Label        *string
	Fields       map[string]string
	CustomFields *[]CustomField
	AssetRefs    *[]string
}

// searchableFields is the allow-list of field keys whose values participate in
// substring search. Sensitive values (account numbers, passwords, PINs) are
// deliberately absent; they are only reachable through the exact-digit rule.
var searchableFields = map[string]bool{
	"bankName":     true,
	"serviceName":  true,
	"cardNickname": true,
	"idType":       true,
	"title":        true,
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Items returns a snapshot of all items ordered by creation time.
func (s *Store) Items() ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	return cloneItems(s.items), nil
}

// Item returns a snapshot of one item by id.
func (s *Store) Item(id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	for i := range s.items {
		if s.items[i].ID == id {
			it := cloneItem(s.items[i])
			return &it, nil
		}
	}
	return nil, ErrItemNotFound
}

// AddItem creates an item, assigns its id and timestamps, and schedules a
// durable write. The call returns as soon as the in-memory collection is
// updated; persistence happens in the background.
func (s *Store) AddItem(category, label string, fields map[string]string, custom []CustomField, assetRefs []string) (*Item, error) {
	if err := validateItemLabel(label); err != nil {
		return nil, err
	}

	size := len(label)
	for k, v := range fields {
		size += len(k) + len(v)
	}
	if err := s.checkDiskSpaceForWrite(size); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}

	cat := s.categoryLocked(category)
	if cat == nil {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	if err := schema.ValidateValues(cat.Fields, fields); err != nil {
		return nil, err
	}
	custom, err := normalizeCustomFields(custom)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	item := Item{
		ID:           uuid.New().String(),
		Category:     category,
		Label:        label,
		Fields:       cloneFields(fields),
		CustomFields: custom,
		AssetRefs:    append([]string(nil), assetRefs...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.items = append(s.items, item)
	s.scheduleFlush()

	out := cloneItem(item)
	return &out, nil
}

// UpdateItem applies the given changes to an item. CreatedAt and id never
// change; UpdatedAt moves to now.
func (s *Store) UpdateItem(id string, upd ItemUpdate) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}

	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	next := cloneItem(s.items[idx])
	if upd.Label != nil {
		if err := validateItemLabel(*upd.Label); err != nil {
			return nil, err
		}
		next.Label = *upd.Label
	}
	if upd.Fields != nil {
		next.Fields = cloneFields(upd.Fields)
	}
	if upd.CustomFields != nil {
		custom, err := normalizeCustomFields(*upd.CustomFields)
		if err != nil {
			return nil, err
		}
		next.CustomFields = custom
	}
	if upd.AssetRefs != nil {
		next.AssetRefs = append([]string(nil), (*upd.AssetRefs)...)
	}

	// Validate against the category schema when it still resolves; items in
	// orphaned categories stay editable.
	if cat := s.categoryLocked(next.Category); cat != nil {
		if err := schema.ValidateValues(cat.Fields, next.Fields); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = nowUTC()
	s.items[idx] = next
	s.scheduleFlush()

	out := cloneItem(next)
	return &out, nil
}

// DeleteItem removes an item and releases any assets no remaining item
// references. Asset cleanup is best-effort; a failed sweep leaves orphans for
// the next one, never a broken item collection.
func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return ErrVaultLocked
	}

	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrItemNotFound
	}

	s.items = append(s.items[:idx], s.items[idx+1:]...)
	referenced := make(map[string]bool)
	for i := range s.items {
		for _, ref := range s.items[i].AssetRefs {
			referenced[ref] = true
		}
	}
	assets := s.assets
	s.scheduleFlush()
	s.mu.Unlock()

	if _, err := assets.Sweep(referenced); err != nil {
		log.Printf("store: asset sweep after delete failed: %v", err)
	}
	return nil
}

// SearchItems returns the items matching the query, in collection order. A
// blank query matches everything. Matching is case-insensitive over the item
// label and the allow-listed field values; a query of exactly four digits
// additionally matches a card's last four digits or the tail of an account
// number. Other sensitive values never match.
func (s *Store) SearchItems(query string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}

	q := normalizeQuery(query)
	if q == "" {
		return cloneItems(s.items), nil
	}
	digits := isFourDigits(q)

	var out []Item
	for i := range s.items {
		if itemMatches(&s.items[i], q, digits) {
			out = append(out, cloneItem(s.items[i]))
		}
	}
	return out, nil
}

func itemMatches(it *Item, q string, fourDigits bool) bool {
	if strings.Contains(normalizeQuery(it.Label), q) {
		return true
	}
	for key, value := range it.Fields {
		if searchableFields[key] && strings.Contains(normalizeQuery(value), q) {
			return true
		}
	}
	if fourDigits {
		if it.Fields["lastFourDigits"] == q {
			return true
		}
		if acct := it.Fields["accountNumber"]; acct != "" && strings.HasSuffix(acct, q) {
			return true
		}
	}
	return false
}

// normalizeQuery folds case and Unicode representation so composed and
// decomposed inputs compare equal.
func normalizeQuery(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateItemLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrItemLabelEmpty
	}
	if len(label) > MaxItemLabelLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrItemLabelTooLong, len(label), MaxItemLabelLength)
	}
	return nil
}

func normalizeCustomFields(fields []CustomField) ([]CustomField, error) {
	if len(fields) > MaxCustomFieldCount {
		return nil, fmt.Errorf("%w: %d custom fields (max %d)", schema.ErrTooManyFields, len(fields), MaxCustomFieldCount)
	}
	out := make([]CustomField, 0, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		out = append(out, f)
	}
	return out, nil
}

// migrateLegacyImagesLocked moves inline images on items into the asset store.
// Called with mu held, right after load.
func (s *Store) migrateLegacyImagesLocked() {
	changedAny := false
	for i := range s.items {
		if len(s.items[i].Images) == 0 {
			continue
		}
		refs, remaining, changed, err := s.assets.MigrateLegacyImages(s.items[i].Images, s.items[i].AssetRefs)
		if err != nil {
			log.Printf("store: legacy image migration for item %s failed: %v", s.items[i].ID, err)
			continue
		}
		// Descriptors that could not migrate (unreadable legacy file) stay on
		// the item so a later unlock can pick them up.
		if !changed && len(remaining) == len(s.items[i].Images) {
			continue
		}
		s.items[i].AssetRefs = refs
		s.items[i].Images = remaining
		s.items[i].UpdatedAt = nowUTC()
		changedAny = true
	}
	if changedAny {
		s.scheduleFlush()
	}
}

// loadItems reads and decrypts the full item collection. Any unreadable row
// fails the load; a vault that half-opens would look like silent data loss.
func loadItems(db *sql.DB, dek []byte) ([]Item, error) {
	rows, err := db.Query("SELECT encrypted_payload FROM items ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
		var it Item
		if err := openJSON(dek, payload, &it); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return items, nil
}

// persistItems rewrites the items table from the given snapshot in one
// transaction, so readers of the database never observe a torn collection.
func (s *Store) persistItems(items []Item) error {
	s.mu.RLock()
	db, dek, state := s.db, s.dek, s.state
	s.mu.RUnlock()
	if state != StateUnlocked {
		return ErrVaultLocked
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM items"); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	stmt, err := tx.Prepare("INSERT INTO items (id, category, encrypted_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer stmt.Close()

	for i := range items {
		payload, err := sealJSON(dek, items[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(items[i].ID, items[i].Category, payload, items[i].CreatedAt, items[i].UpdatedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func cloneItem(it Item) Item {
	out := it
	out.Fields = cloneFields(it.Fields)
	out.CustomFields = append([]CustomField(nil), it.CustomFields...)
	out.AssetRefs = append([]string(nil), it.AssetRefs...)
	out.Images = append([]asset.LegacyImage(nil), it.Images...)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i := range items {
		out[i] = cloneItem(items[i])
	}
	return out
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
