package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteBusyTimeoutMS = "5000"

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		if path == "" || strings.EqualFold(path, ":memory:") {
			dsn = MemoryDSN("workpass")
		} else {
			if dir := filepath.Dir(path); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create sqlite directory: %w", err)
				}
			}
			dsn = sqliteDSN(filepath.ToSlash(path), url.Values{"_journal_mode": {"WAL"}})
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		return nil, fmt.Errorf("read foreign_keys pragma: %w", err)
	}
	if enabled != 1 {
		return nil, fmt.Errorf("sqlite foreign keys are disabled for %q", dsn)
	}
	return db, nil
}

// MemoryDSN returns an isolated shared-cache in-memory database named name.
func MemoryDSN(name string) string {
	return sqliteDSN(name, url.Values{"mode": {"memory"}, "cache": {"shared"}})
}

func sqliteDSN(target string, extra url.Values) string {
	params := url.Values{
		"_foreign_keys": {"1"},
		"_busy_timeout": {sqliteBusyTimeoutMS},
	}
	for key, values := range extra {
		params[key] = values
	}
	return "file:" + target + "?" + params.Encode()
}
