package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/pkg/logger"
)

const (
	TaskTypeNotifyEscalation = "notify:escalation"
	TaskTypeNotifyApproval   = "notify:approval"
)

// NotificationTask is one fan-out of a case escalation or an approval
// request to users (email) and chat bots.
type NotificationTask struct {
	Type         string `json:"type"`
	CaseID       uint   `json:"case_id,omitempty"`
	CaseNumber   string `json:"case_number,omitempty"`
	Title        string `json:"title,omitempty"`
	State        string `json:"state,omitempty"`
	Level        int    `json:"level,omitempty"`
	OverdueBy    string `json:"overdue_by,omitempty"`
	ApprovalID   uint   `json:"approval_id,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	EntityID     uint   `json:"entity_id,omitempty"`
	RequestedBy  string `json:"requested_by,omitempty"`
	Summary      string `json:"summary,omitempty"`
	RecipientIDs []uint `json:"recipient_ids"`
}

// TaskProcessor handles a dequeued notification task.
type TaskProcessor func(context.Context, *NotificationTask) error

// TaskQueue defines the interface for notification task processing
type TaskQueue interface {
	Enqueue(task *NotificationTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *NotificationTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(task.Type, payload),
		asynq.Queue("notifications"),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", task.Type).Msg("notification task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process (no Redis).
type SyncQueue struct {
	mu        sync.RWMutex
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.mu.Lock()
	q.processor = processor
	q.mu.Unlock()
}

// Enqueue runs the task on a goroutine so callers (the SLA monitor, request
// handlers) never wait on SMTP or webhooks.
func (q *SyncQueue) Enqueue(task *NotificationTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warnf("[SyncQueue] no processor set, dropping %s task", task.Type)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Errorf("[SyncQueue] %s task failed: %v", task.Type, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
