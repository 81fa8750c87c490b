// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SyncLock
// model: a lease row serializing sync job executions across processes.
//
// The lease protocol is fail-fast. TryAcquire never waits: either the row
// is free (or expired, in which case the stale lease is taken over) and the
// caller becomes the holder, or another live holder exists and acquisition
// reports false. Release only removes the caller's own lease, so a slow
// process that outlived its TTL cannot delete a successor's lock.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// TryAcquireLock attempts to take the named lease for holder with the given
// TTL. It reports true when the caller now holds the lease. Expired leases
// are reaped inside the same transaction before the insert, so takeover and
// contention resolve atomically.
func TryAcquireLock(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	acquired := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("name = ? AND expires_at <= ?", name, now).
			Delete(&domain.SyncLock{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.SyncLock{
			Name:       name,
			Holder:     holder,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		})
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// ReleaseLock deletes the named lease if holder still owns it. Releasing a
// lease that expired and was taken over is a harmless no-op.
func ReleaseLock(ctx context.Context, db *gorm.DB, name, holder string) error {
	return db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&domain.SyncLock{}).Error
}
