package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kanban-board/domain"
)

func TestReorderMovesTaskToTop(t *testing.T) {
	var sent int
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			sent = newPosition
			return domain.Task{ID: taskID, Title: "B", ColumnID: columnID, Position: newPosition}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()

	if err := e.ReorderWithinColumn(ctx, "b1", "todo", "B", 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if sent != 0 {
		t.Fatalf("unexpected position sent: %d", sent)
	}
	b, _ := boards.Board.Peek("b1")
	if got := taskIDs(b, "todo"); !equalIDs(got, []string{"B", "A", "C"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if err := domain.CheckDense(b); err != nil {
		t.Fatalf("density: %v", err)
	}
	if boards.Board.IsStale("b1") {
		t.Fatalf("matching confirmation should keep the optimistic board")
	}
	if gw.count("FetchBoard") != 1 {
		t.Fatalf("expected a single fetch")
	}
}

func TestReorderSamePositionIsNoop(t *testing.T) {
	gw := &stubGateway{}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	before, _ := e.Board(ctx, "b1")

	if err := e.ReorderWithinColumn(ctx, "b1", "todo", "A", 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if gw.count("ReorderTask") != 0 {
		t.Fatalf("no-op must not call the gateway")
	}
	after, _ := boards.Board.Peek("b1")
	if after != before {
		t.Fatalf("no-op must not replace the cached board")
	}
}

func TestReorderClampsPosition(t *testing.T) {
	var sent int
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			sent = newPosition
			return domain.Task{ID: taskID, ColumnID: columnID, Position: newPosition}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	if err := e.ReorderWithinColumn(context.Background(), "b1", "todo", "A", 99); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected clamped position 2, got %d", sent)
	}
	b, _ := boards.Board.Peek("b1")
	if got := taskIDs(b, "todo"); !equalIDs(got, []string{"B", "C", "A"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestReorderUnknownTaskIsValidation(t *testing.T) {
	gw := &stubGateway{}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	before, _ := e.Board(ctx, "b1")

	err := e.ReorderWithinColumn(ctx, "b1", "todo", "missing", 1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gw.count("ReorderTask") != 0 {
		t.Fatalf("gateway must not be called")
	}
	after, _ := boards.Board.Peek("b1")
	if after != before {
		t.Fatalf("cache must not change on validation error")
	}
}

func TestReorderConflictRevertsAndSchedulesRefetch(t *testing.T) {
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			return domain.Task{}, &domain.ConflictError{Op: "reorder task", Reason: "stale"}
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	before, _ := e.Board(ctx, "b1")
	snapshot := *before

	err := e.ReorderWithinColumn(ctx, "b1", "todo", "C", 0)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	after, _ := boards.Board.Peek("b1")
	if !reflect.DeepEqual(*after, snapshot) {
		t.Fatalf("board not restored:\n got %#v\nwant %#v", *after, snapshot)
	}
	if !boards.Board.IsStale("b1") {
		t.Fatalf("conflict must schedule a refetch")
	}
	if _, err := e.Board(ctx, "b1"); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if n := gw.count("FetchBoard"); n != 2 {
		t.Fatalf("expected refetch after conflict, got %d fetches", n)
	}
}

func TestReorderTransientFailureRollsBack(t *testing.T) {
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			return domain.Task{}, &domain.TransientNetworkError{Op: "reorder task", Err: errors.New("timeout")}
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	before, _ := e.Board(ctx, "b1")

	err := e.ReorderWithinColumn(ctx, "b1", "todo", "B", 2)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	after, _ := boards.Board.Peek("b1")
	if !reflect.DeepEqual(after, before) {
		t.Fatalf("board not restored")
	}
	if boards.Board.IsStale("b1") {
		t.Fatalf("transient failure should not force a refetch")
	}
	if gw.count("ReorderTask") != 1 {
		t.Fatalf("no automatic retry expected")
	}
}

func TestReorderMismatchInvalidates(t *testing.T) {
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			return domain.Task{ID: taskID, ColumnID: columnID, Position: newPosition + 1}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	if err := e.ReorderWithinColumn(context.Background(), "b1", "todo", "C", 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !boards.Board.IsStale("b1") {
		t.Fatalf("expected refetch when backend placement differs")
	}
}

func TestAlwaysRefetchInvalidatesOnSuccess(t *testing.T) {
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			return domain.Task{ID: taskID, ColumnID: columnID, Position: newPosition}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{AlwaysRefetch: true})
	if err := e.ReorderWithinColumn(context.Background(), "b1", "todo", "C", 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !boards.Board.IsStale("b1") {
		t.Fatalf("expected invalidation with AlwaysRefetch")
	}
}

func TestMoveAcrossColumnsInsertsAtTop(t *testing.T) {
	gw := &stubGateway{
		fetchBoardFn: func(ctx context.Context, boardID string) (*domain.Board, error) {
			return &domain.Board{ID: "b1", Columns: []domain.Column{
				{ID: "todo", Tasks: []domain.Task{{ID: "A", ColumnID: "todo", Position: 0}}},
				{ID: "doing", Tasks: []domain.Task{}},
			}}, nil
		},
		moveTaskFn: func(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error) {
			return domain.Task{ID: taskID, ColumnID: targetColumnID, Position: 0}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	if err := e.MoveAcrossColumns(context.Background(), "b1", "todo", "doing", "A"); err != nil {
		t.Fatalf("move: %v", err)
	}
	b, _ := boards.Board.Peek("b1")
	todo, _ := b.Column("todo")
	doing, _ := b.Column("doing")
	if len(todo.Tasks) != 0 {
		t.Fatalf("source should be empty: %#v", todo.Tasks)
	}
	want := []domain.Task{{ID: "A", ColumnID: "doing", Position: 0}}
	if !reflect.DeepEqual(doing.Tasks, want) {
		t.Fatalf("unexpected target %#v", doing.Tasks)
	}
	if boards.Board.IsStale("b1") {
		t.Fatalf("matching confirmation should keep the optimistic board")
	}
}

func TestMoveFailureRestoresOwnership(t *testing.T) {
	gw := &stubGateway{
		moveTaskFn: func(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error) {
			return domain.Task{}, &domain.ValidationError{Op: "move task", Reason: "rejected"}
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	before, _ := e.Board(ctx, "b1")

	err := e.MoveAcrossColumns(ctx, "b1", "todo", "doing", "B")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := boards.Board.Peek("b1")
	if !reflect.DeepEqual(after, before) {
		t.Fatalf("board not restored")
	}
	if _, _, ok := after.FindTask("B"); !ok {
		t.Fatalf("task lost after rollback")
	}
}

func TestMoveSameColumnIsValidation(t *testing.T) {
	gw := &stubGateway{}
	e, _ := newTestEngine(t, gw, Options{})
	err := e.MoveAcrossColumns(context.Background(), "b1", "todo", "todo", "A")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gw.count("MoveTask") != 0 {
		t.Fatalf("gateway must not be called")
	}
}

func TestMoveWithinQuota(t *testing.T) {
	gw := &stubGateway{
		moveTaskFn: func(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error) {
			return domain.Task{ID: taskID, ColumnID: targetColumnID, Position: 0}, nil
		},
	}
	e, _ := newTestEngine(t, gw, Options{Quotas: Quotas{domain.RoleRegistered: {TasksPerColumn: 3}}})
	if err := e.MoveAcrossColumns(context.Background(), "b1", "todo", "doing", "A"); err != nil {
		t.Fatalf("empty target should accept: %v", err)
	}
}

func TestMoveIntoFullColumnRejected(t *testing.T) {
	gw := &stubGateway{
		fetchBoardFn: func(ctx context.Context, boardID string) (*domain.Board, error) {
			b := fixtureBoard()
			b.Columns[1].Tasks = []domain.Task{{ID: "D", ColumnID: "doing", Position: 0}}
			return b, nil
		},
	}
	e, _ := newTestEngine(t, gw, Options{Quotas: Quotas{domain.RoleRegistered: {TasksPerColumn: 1}}})
	err := e.MoveAcrossColumns(context.Background(), "b1", "todo", "doing", "A")
	if !errors.Is(err, domain.ErrQuotaExceeded) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected quota validation error, got %v", err)
	}
	if gw.count("MoveTask") != 0 {
		t.Fatalf("gateway must not be called")
	}
}

func TestOverlappingMutationsRollbackKeepsLaterWrite(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		reorderTaskFn: func(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
			if taskID == "C" {
				close(started)
				<-release
				return domain.Task{}, &domain.TransientNetworkError{Op: "reorder task", Err: errors.New("timeout")}
			}
			return domain.Task{ID: taskID, ColumnID: columnID, Position: newPosition}, nil
		},
		moveTaskFn: func(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error) {
			return domain.Task{ID: taskID, ColumnID: targetColumnID, Position: 0}, nil
		},
	}
	e, boards := newTestEngine(t, gw, Options{})
	ctx := context.Background()
	if _, err := e.Board(ctx, "b1"); err != nil {
		t.Fatalf("board: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.ReorderWithinColumn(ctx, "b1", "todo", "C", 0) }()
	<-started

	if err := e.MoveAcrossColumns(ctx, "b1", "todo", "doing", "A"); err != nil {
		t.Fatalf("move: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	b, _ := boards.Board.Peek("b1")
	if _, _, ok := b.FindTask("A"); !ok {
		t.Fatalf("task A missing")
	}
	doing, _ := b.Column("doing")
	if len(doing.Tasks) != 1 || doing.Tasks[0].ID != "A" {
		t.Fatalf("later move was clobbered by rollback: %#v", doing.Tasks)
	}
	if !boards.Board.IsStale("b1") {
		t.Fatalf("superseded rollback should schedule a refetch")
	}
	if err := domain.CheckDense(b); err != nil {
		t.Fatalf("density: %v", err)
	}
}
