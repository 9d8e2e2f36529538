package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"lockbox/pkg/schema"
)

// CategoryDeletion is the outcome of DeleteCategory. A refused deletion is a
// normal result, not an error: ItemCount tells the caller how many items
// still reference the category.
type CategoryDeletion struct {
	Deleted   bool
	ItemCount int
}

// Categories returns a snapshot of all categories: presets first in their
// fixed order, then custom categories in creation order.
func (s *Store) Categories() ([]schema.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	return cloneCategories(s.categories), nil
}

// Category resolves a category by id.
func (s *Store) Category(id string) (*schema.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}
	if c := s.categoryLocked(id); c != nil {
		out := cloneCategory(*c)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
}

// CategoryOrFallback resolves a category by id, degrading to the fallback
// presentation when the id no longer resolves. Items never lose their rows
// because their category went away.
func (s *Store) CategoryOrFallback(id string) schema.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.categoryLocked(id); c != nil {
		return cloneCategory(*c)
	}
	return schema.FallbackCategory(id)
}

// AddCategory stores a new custom category. The draft's id, timestamps and
// (when absent) color are assigned here.
func (s *Store) AddCategory(draft schema.Category) (*schema.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}

	if err := schema.ValidateCategory(&draft); err != nil {
		return nil, err
	}
	draft.ID = uuid.New().String()
	if draft.Color == (schema.CategoryColor{}) {
		draft.Color = schema.PickDefaultColor()
	}
	now := nowUTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	s.categories = append(s.categories, cloneCategory(draft))
	s.scheduleFlush()

	out := cloneCategory(draft)
	return &out, nil
}

// UpdateCategory replaces a category's definition. The id and CreatedAt are
// preserved; UpdatedAt moves to now. Preset categories can be edited too —
// items validate against whatever the stored definition currently says.
func (s *Store) UpdateCategory(id string, draft schema.Category) (*schema.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrVaultLocked
	}

	idx := -1
	for i := range s.categories {
		if s.categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}

	if err := schema.ValidateCategory(&draft); err != nil {
		return nil, err
	}
	draft.ID = id
	draft.CreatedAt = s.categories[idx].CreatedAt
	draft.UpdatedAt = nowUTC()
	if draft.Color == (schema.CategoryColor{}) {
		draft.Color = s.categories[idx].Color
	}

	s.categories[idx] = cloneCategory(draft)
	s.scheduleFlush()

	out := cloneCategory(draft)
	return &out, nil
}

// DeleteCategory removes a category unless items still reference it. The
// refusal carries the item count so the caller can tell the user what blocks
// the deletion.
func (s *Store) DeleteCategory(id string) (CategoryDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return CategoryDeletion{}, ErrVaultLocked
	}

	idx := -1
	for i := range s.categories {
		if s.categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CategoryDeletion{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}

	count := 0
	for i := range s.items {
		if s.items[i].Category == id {
			count++
		}
	}
	if count > 0 {
		return CategoryDeletion{Deleted: false, ItemCount: count}, nil
	}

	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	s.scheduleFlush()
	return CategoryDeletion{Deleted: true}, nil
}

// ResetCategories restores the preset category set, discarding custom
// categories. Items keep their rows; ones in a removed category degrade to
// the fallback presentation at read time.
func (s *Store) ResetCategories() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return ErrVaultLocked
	}

	now := nowUTC()
	defaults := schema.DefaultCategories()
	for i := range defaults {
		defaults[i].CreatedAt = now
		defaults[i].UpdatedAt = now
	}
	s.categories = defaults
	s.scheduleFlush()
	return nil
}

func (s *Store) categoryLocked(id string) *schema.Category {
	for i := range s.categories {
		if s.categories[i].ID == id {
			return &s.categories[i]
		}
	}
	return nil
}

// loadCategories reads and decrypts the category collection. An empty table
// (a vault initialized before category persistence) falls back to the preset
// set rather than an empty vault with no item types.
func loadCategories(db *sql.DB, dek []byte) ([]schema.Category, error) {
	rows, err := db.Query("SELECT encrypted_payload FROM categories ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	defer rows.Close()

	var categories []schema.Category
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
		var c schema.Category
		if err := openJSON(dek, payload, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	if len(categories) == 0 {
		categories = schema.DefaultCategories()
	} else {
		categories = orderCategories(categories)
	}
	return categories, nil
}

// orderCategories puts presets first in their canonical order, followed by
// custom categories in creation order.
func orderCategories(categories []schema.Category) []schema.Category {
	byID := make(map[string]schema.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	out := make([]schema.Category, 0, len(categories))
	seen := make(map[string]bool)
	for _, preset := range schema.DefaultCategories() {
		if c, ok := byID[preset.ID]; ok {
			out = append(out, c)
			seen[c.ID] = true
		}
	}
	for _, c := range categories {
		if !seen[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// persistCategories rewrites the categories table from the given snapshot in
// one transaction.
func (s *Store) persistCategories(categories []schema.Category) error {
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

	if _, err := tx.Exec("DELETE FROM categories"); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	stmt, err := tx.Prepare("INSERT INTO categories (id, encrypted_payload, created_at, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer stmt.Close()

	for i := range categories {
		payload, err := sealJSON(dek, categories[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(categories[i].ID, payload, categories[i].CreatedAt, categories[i].UpdatedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func cloneCategory(c schema.Category) schema.Category {
	out := c
	out.Fields = append([]schema.FieldDefinition(nil), c.Fields...)
	return out
}

func cloneCategories(categories []schema.Category) []schema.Category {
	out := make([]schema.Category, len(categories))
	for i := range categories {
		out[i] = cloneCategory(categories[i])
	}
	return out
}
