package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// IntegrityCheckResult contains the results of vault integrity verification
type IntegrityCheckResult struct {
	Valid            bool     `json:"valid"`
	SaltExists       bool     `json:"salt_exists"`
	DBExists         bool     `json:"db_exists"`
	DBIntegrity      bool     `json:"db_integrity"`
	PermissionsValid bool     `json:"permissions_valid"`
	Errors           []string `json:"errors,omitempty"`
}

// CheckIntegrity performs an integrity check on the vault without unlocking
// it:
// 1. Salt file exists and has correct size
// 2. Database file exists and passes SQLite integrity check
// 3. Database schema contains expected tables
// 4. File permissions are secure (0600 for files, 0700 for directories)
func (s *Store) CheckIntegrity() (*IntegrityCheckResult, error) {
	result := &IntegrityCheckResult{
		Valid:            true,
		PermissionsValid: true,
	}

	if dirInfo, err := os.Stat(s.path); err == nil {
		if perm := dirInfo.Mode().Perm(); perm&0077 != 0 {
			result.Valid = false
			result.PermissionsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("vault directory has insecure permissions: %04o (expected 0700)", perm))
		}
	}

	saltPath := filepath.Join(s.path, SaltFileName)
	saltInfo, err := os.Stat(saltPath)
	if err != nil {
		result.Valid = false
		result.SaltExists = false
		result.Errors = append(result.Errors, "salt file not found: "+saltPath)
	} else {
		result.SaltExists = true
		if saltInfo.Size() != SaltLength {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("salt file has incorrect size: expected %d, got %d", SaltLength, saltInfo.Size()))
		}
		if perm := saltInfo.Mode().Perm(); perm&0077 != 0 {
			result.Valid = false
			result.PermissionsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("salt file has insecure permissions: %04o (expected 0600)", perm))
		}
	}

	dbPath := filepath.Join(s.path, DBFileName)
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		result.Valid = false
		result.DBExists = false
		result.Errors = append(result.Errors, "database file not found: "+dbPath)
		return result, nil
	}
	result.DBExists = true

	if perm := dbInfo.Mode().Perm(); perm&0077 != 0 {
		result.Valid = false
		result.PermissionsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("database file has insecure permissions: %04o (expected 0600)", perm))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		result.Valid = false
		result.DBIntegrity = false
		result.Errors = append(result.Errors, "failed to open database: "+err.Error())
		return result, nil
	}
	defer db.Close()

	var integrityResult string
	err = db.QueryRow("PRAGMA integrity_check").Scan(&integrityResult)
	if err != nil {
		result.Valid = false
		result.DBIntegrity = false
		result.Errors = append(result.Errors, "database integrity check failed: "+err.Error())
		return result, nil
	}
	if integrityResult != "ok" {
		result.Valid = false
		result.DBIntegrity = false
		result.Errors = append(result.Errors, "database integrity check returned: "+integrityResult)
		return result, nil
	}

	// A v1 database legitimately lacks the assets table until first unlock.
	tables := []string{"vault_keys", "items", "categories", "settings"}
	for _, table := range tables {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			result.Valid = false
			result.DBIntegrity = false
			result.Errors = append(result.Errors, "required table not found: "+table)
		}
	}

	if len(result.Errors) == 0 && result.SaltExists && result.DBExists {
		result.DBIntegrity = true
	}

	return result, nil
}
