package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
)

func TestSchedulerLock_SingleHolder(t *testing.T) {
	db := newTestDB(t)
	first := NewSchedulerLockService(db)
	second := NewSchedulerLockService(db)

	ok, err := first.TryAcquire("sla_monitor", "2025-06-01T10:00", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire("sla_monitor", "2025-06-01T10:00", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a different key is independent
	ok, err = second.TryAcquire("sla_monitor", "2025-06-01T10:05", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSchedulerLock_ExpiredTakeover(t *testing.T) {
	db := newTestDB(t)
	first := NewSchedulerLockService(db)
	second := NewSchedulerLockService(db)

	ok, err := first.TryAcquire("leave_rollover", "2026", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryAcquire("leave_rollover", "2026", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSchedulerLock_Release(t *testing.T) {
	db := newTestDB(t)
	first := NewSchedulerLockService(db)
	second := NewSchedulerLockService(db)

	ok, _ := first.TryAcquire("job", "k", time.Hour)
	require.True(t, ok)

	// only the holder can release
	require.NoError(t, second.Release("job", "k"))
	ok, _ = second.TryAcquire("job", "k", time.Hour)
	assert.False(t, ok)

	require.NoError(t, first.Release("job", "k"))
	ok, _ = second.TryAcquire("job", "k", time.Hour)
	assert.True(t, ok)
}

func TestSchedulerLock_PurgeExpired(t *testing.T) {
	db := newTestDB(t)
	locks := NewSchedulerLockService(db)

	ok, _ := locks.TryAcquire("leave_rollover", "2024", -time.Minute)
	require.True(t, ok)
	ok, _ = locks.TryAcquire("leave_rollover", "2025", time.Hour)
	require.True(t, ok)

	purged, err := locks.PurgeExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var left []models.SchedulerLock
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "2025", left[0].LockKey)
}
