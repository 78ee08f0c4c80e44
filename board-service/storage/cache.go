package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-board/domain"
	"kanban-board/gateway"
)

// Backend is the full set of board operations, scoped by owner.
type Backend interface {
	ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error)
	FetchBoard(ctx context.Context, ownerID, boardID string) (*domain.Board, error)
	CreateBoard(ctx context.Context, ownerID, name string) (*domain.Board, error)
	DeleteBoard(ctx context.Context, ownerID, boardID string) error
	CreateColumn(ctx context.Context, ownerID, boardID, name string) (domain.Column, error)
	DeleteColumn(ctx context.Context, ownerID, boardID, columnID string) error
	CreateTask(ctx context.Context, ownerID, boardID, columnID string, in gateway.TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, boardID, taskID string, patch gateway.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, boardID, taskID string) error
	ReorderTask(ctx context.Context, ownerID, boardID, columnID, taskID string, position int) (domain.Task, error)
	MoveTask(ctx context.Context, ownerID, boardID, sourceColumnID, targetColumnID, taskID string) (domain.Task, error)
	CreateSubtask(ctx context.Context, ownerID, boardID, taskID string, in gateway.TaskInput) (domain.Subtask, error)
	UpdateSubtask(ctx context.Context, ownerID, boardID, taskID, subtaskID string, patch gateway.SubtaskPatch) (domain.Subtask, error)
	DeleteSubtask(ctx context.Context, ownerID, boardID, taskID, subtaskID string) error
}

// Cache wraps a Backend with Redis-backed caching for board reads. Every
// successful mutation evicts the owner's list and the touched board.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client or zero TTL disables caching.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error) {
	var cached []domain.BoardSummary
	if c.load(ctx, listCacheKey(ownerID), &cached) {
		return cached, nil
	}
	boards, err := c.base.ListBoards(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, listCacheKey(ownerID), boards)
	return boards, nil
}

func (c *Cache) FetchBoard(ctx context.Context, ownerID, boardID string) (*domain.Board, error) {
	var cached domain.Board
	if c.load(ctx, boardCacheKey(ownerID, boardID), &cached) {
		return &cached, nil
	}
	b, err := c.base.FetchBoard(ctx, ownerID, boardID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, boardCacheKey(ownerID, boardID), b)
	return b, nil
}

func (c *Cache) CreateBoard(ctx context.Context, ownerID, name string) (*domain.Board, error) {
	b, err := c.base.CreateBoard(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, ownerID, "")
	return b, nil
}

func (c *Cache) DeleteBoard(ctx context.Context, ownerID, boardID string) error {
	return c.after(ctx, ownerID, boardID, c.base.DeleteBoard(ctx, ownerID, boardID))
}

func (c *Cache) CreateColumn(ctx context.Context, ownerID, boardID, name string) (domain.Column, error) {
	col, err := c.base.CreateColumn(ctx, ownerID, boardID, name)
	return col, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) DeleteColumn(ctx context.Context, ownerID, boardID, columnID string) error {
	return c.after(ctx, ownerID, boardID, c.base.DeleteColumn(ctx, ownerID, boardID, columnID))
}

func (c *Cache) CreateTask(ctx context.Context, ownerID, boardID, columnID string, in gateway.TaskInput) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, ownerID, boardID, columnID, in)
	return t, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) UpdateTask(ctx context.Context, ownerID, boardID, taskID string, patch gateway.TaskPatch) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, ownerID, boardID, taskID, patch)
	return t, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) DeleteTask(ctx context.Context, ownerID, boardID, taskID string) error {
	return c.after(ctx, ownerID, boardID, c.base.DeleteTask(ctx, ownerID, boardID, taskID))
}

func (c *Cache) ReorderTask(ctx context.Context, ownerID, boardID, columnID, taskID string, position int) (domain.Task, error) {
	t, err := c.base.ReorderTask(ctx, ownerID, boardID, columnID, taskID, position)
	return t, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) MoveTask(ctx context.Context, ownerID, boardID, sourceColumnID, targetColumnID, taskID string) (domain.Task, error) {
	t, err := c.base.MoveTask(ctx, ownerID, boardID, sourceColumnID, targetColumnID, taskID)
	return t, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) CreateSubtask(ctx context.Context, ownerID, boardID, taskID string, in gateway.TaskInput) (domain.Subtask, error) {
	st, err := c.base.CreateSubtask(ctx, ownerID, boardID, taskID, in)
	return st, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) UpdateSubtask(ctx context.Context, ownerID, boardID, taskID, subtaskID string, patch gateway.SubtaskPatch) (domain.Subtask, error) {
	st, err := c.base.UpdateSubtask(ctx, ownerID, boardID, taskID, subtaskID, patch)
	return st, c.after(ctx, ownerID, boardID, err)
}

func (c *Cache) DeleteSubtask(ctx context.Context, ownerID, boardID, taskID, subtaskID string) error {
	return c.after(ctx, ownerID, boardID, c.base.DeleteSubtask(ctx, ownerID, boardID, taskID, subtaskID))
}

// after evicts cached state once a mutation has succeeded and passes err
// through unchanged.
func (c *Cache) after(ctx context.Context, ownerID, boardID string, err error) error {
	if err != nil {
		return err
	}
	c.evict(ctx, ownerID, boardID)
	return nil
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, ownerID, boardID string) {
	if c.redis == nil {
		return
	}
	keys := []string{listCacheKey(ownerID)}
	if boardID != "" {
		keys = append(keys, boardCacheKey(ownerID, boardID))
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func listCacheKey(ownerID string) string {
	return "boards:" + ownerID
}

func boardCacheKey(ownerID, boardID string) string {
	return "board:" + ownerID + ":" + boardID
}
