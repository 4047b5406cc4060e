package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with every table migrated
// and the default configs, permissions and leave types seeded.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	require.NoError(t, models.Seed(db))
	InitSystemLogger(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{
		Username: username,
		Password: hash,
		Email:    username + "@vtria.test",
		FullName: username,
		Role:     role,
		AuthType: "local",
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func actorFor(u *models.User) *Actor {
	return &Actor{UserID: u.ID, Username: u.Username, Role: u.Role, IP: "127.0.0.1"}
}

func newTestPermissions(t *testing.T, db *gorm.DB) *PermissionCache {
	t.Helper()
	perms := NewPermissionCache(db)
	require.NoError(t, perms.Refresh())
	return perms
}

// recordingQueue captures enqueued tasks instead of delivering them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*NotificationTask
}

func (q *recordingQueue) Enqueue(task *NotificationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) Tasks() []*NotificationTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*NotificationTask(nil), q.tasks...)
}

var _ TaskQueue = (*recordingQueue)(nil)
