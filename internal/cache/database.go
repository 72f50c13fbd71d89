package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/workpass/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore implements Store using the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// DatabaseStoreOption configures a DatabaseStore.
type DatabaseStoreOption func(*DatabaseStore)

// WithDatabaseStoreClock overrides the clock used for window arithmetic.
func WithDatabaseStoreClock(clock func() time.Time) DatabaseStoreOption {
	return func(s *DatabaseStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, opts ...DatabaseStoreOption) *DatabaseStore {
	if db == nil {
		return nil
	}
	store := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// IncrementWithTTL atomically increments the counter for key.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errStoreNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var entry models.CacheEntry

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.CacheEntry{Key: key, Counter: 1, ExpiresAt: now.Add(window)}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		if !now.Before(entry.ExpiresAt) {
			entry.Counter = 1
			entry.ExpiresAt = now.Add(window)
		} else {
			entry.Counter++
		}
		return tx.Model(&models.CacheEntry{}).
			Where("key = ?", key).
			Updates(map[string]any{"counter": entry.Counter, "expires_at": entry.ExpiresAt}).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return entry.Counter, entry.ExpiresAt.Sub(now), nil
}

// PurgeExpired deletes counters whose window closed before now.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}
