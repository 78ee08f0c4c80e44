package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kanban-board/domain"
	"kanban-board/gateway"
)

// stubBackend answers the calls these tests make; anything else panics on
// the nil embedded interface.
type stubBackend struct {
	Backend
	listBoardsFn func(ctx context.Context, ownerID string) ([]domain.BoardSummary, error)
	fetchBoardFn func(ctx context.Context, ownerID, boardID string) (*domain.Board, error)
	createTaskFn func(ctx context.Context, ownerID, boardID, columnID string, in gateway.TaskInput) (domain.Task, error)
}

func (s *stubBackend) ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error) {
	if s.listBoardsFn == nil {
		return nil, errors.New("unexpected ListBoards call")
	}
	return s.listBoardsFn(ctx, ownerID)
}

func (s *stubBackend) FetchBoard(ctx context.Context, ownerID, boardID string) (*domain.Board, error) {
	if s.fetchBoardFn == nil {
		return nil, errors.New("unexpected FetchBoard call")
	}
	return s.fetchBoardFn(ctx, ownerID, boardID)
}

func (s *stubBackend) CreateTask(ctx context.Context, ownerID, boardID, columnID string, in gateway.TaskInput) (domain.Task, error) {
	if s.createTaskFn == nil {
		return domain.Task{}, errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, ownerID, boardID, columnID, in)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testBoard() *domain.Board {
	return &domain.Board{
		ID:      "b1",
		Name:    "Work",
		OwnerID: "u1",
		Version: 3,
		Columns: []domain.Column{{
			ID:    "todo",
			Name:  "To Do",
			Tasks: []domain.Task{{ID: "t1", Title: "Write code", ColumnID: "todo"}},
		}},
	}
}

func TestCacheFetchBoardMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	expected := testBoard()

	var calls int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(ctx context.Context, ownerID, boardID string) (*domain.Board, error) {
			calls++
			if ownerID != "u1" || boardID != "b1" {
				t.Fatalf("unexpected ids: %s %s", ownerID, boardID)
			}
			return testBoard(), nil
		},
	}, client, time.Minute)

	b, err := cache.FetchBoard(ctx, "u1", "b1")
	if err != nil {
		t.Fatalf("fetch board: %v", err)
	}
	if !reflect.DeepEqual(b, expected) {
		t.Fatalf("unexpected board: %#v", b)
	}
	if ttl := mr.TTL(boardCacheKey("u1", "b1")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.FetchBoard(ctx, "u1", "b1")
	if err != nil {
		t.Fatalf("fetch cached board: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached board: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheMutationEvicts(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	var fetches, lists int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(context.Context, string, string) (*domain.Board, error) {
			fetches++
			return testBoard(), nil
		},
		listBoardsFn: func(context.Context, string) ([]domain.BoardSummary, error) {
			lists++
			return []domain.BoardSummary{testBoard().Summary()}, nil
		},
		createTaskFn: func(_ context.Context, _, _, columnID string, in gateway.TaskInput) (domain.Task, error) {
			return domain.Task{ID: "t2", Title: in.Title, ColumnID: columnID, Position: 1}, nil
		},
	}, client, time.Minute)

	if _, err := cache.FetchBoard(ctx, "u1", "b1"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := cache.ListBoards(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !mr.Exists(boardCacheKey("u1", "b1")) || !mr.Exists(listCacheKey("u1")) {
		t.Fatalf("expected both keys cached")
	}

	if _, err := cache.CreateTask(ctx, "u1", "b1", "todo", gateway.TaskInput{Title: "Review"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if mr.Exists(boardCacheKey("u1", "b1")) || mr.Exists(listCacheKey("u1")) {
		t.Fatalf("expected mutation to evict cached keys")
	}

	_, _ = cache.FetchBoard(ctx, "u1", "b1")
	_, _ = cache.ListBoards(ctx, "u1")
	if fetches != 2 || lists != 2 {
		t.Fatalf("expected reads to reach backend again, fetches=%d lists=%d", fetches, lists)
	}
}

func TestCacheFailedMutationKeepsEntries(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(context.Context, string, string) (*domain.Board, error) { return testBoard(), nil },
		createTaskFn: func(context.Context, string, string, string, gateway.TaskInput) (domain.Task, error) {
			return domain.Task{}, ErrConflict
		},
	}, client, time.Minute)

	_, _ = cache.FetchBoard(ctx, "u1", "b1")
	if _, err := cache.CreateTask(ctx, "u1", "b1", "todo", gateway.TaskInput{Title: "x"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !mr.Exists(boardCacheKey("u1", "b1")) {
		t.Fatalf("failed mutation should not evict")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	if err := mr.Set(boardCacheKey("u1", "b1"), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var calls int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(context.Context, string, string) (*domain.Board, error) {
			calls++
			return testBoard(), nil
		},
	}, client, time.Minute)

	b, err := cache.FetchBoard(ctx, "u1", "b1")
	if err != nil || b.ID != "b1" {
		t.Fatalf("expected backend board, got %#v %v", b, err)
	}
	if calls != 1 {
		t.Fatalf("expected backend call, got %d", calls)
	}
}

func TestCacheWithoutRedis(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(context.Context, string, string) (*domain.Board, error) {
			calls++
			return testBoard(), nil
		},
	}, nil, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.FetchBoard(context.Background(), "u1", "b1"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every read to reach backend, got %d", calls)
	}
}
