package services

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vtria/erp/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchedulerLockService hands a named job run to exactly one instance.
type SchedulerLockService struct {
	db         *gorm.DB
	instanceID string
}

func NewSchedulerLockService(db *gorm.DB) *SchedulerLockService {
	host, _ := os.Hostname()
	return &SchedulerLockService{
		db:         db,
		instanceID: fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8]),
	}
}

// TryAcquire claims name/key for ttl. An expired claim held by another
// instance is taken over.
func (s *SchedulerLockService) TryAcquire(name, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = s.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Updates(map[string]interface{}{
			"locked_by":  s.instanceID,
			"locked_at":  now,
			"expires_at": now.Add(ttl),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release drops a claim held by this instance.
func (s *SchedulerLockService) Release(name, key string) error {
	return s.db.Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, s.instanceID).
		Delete(&models.SchedulerLock{}).Error
}

// PurgeExpired deletes claims that lapsed before cutoff.
func (s *SchedulerLockService) PurgeExpired(cutoff time.Time) (int64, error) {
	res := s.db.Where("expires_at < ?", cutoff).Delete(&models.SchedulerLock{})
	return res.RowsAffected, res.Error
}
