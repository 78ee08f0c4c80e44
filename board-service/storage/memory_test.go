package storage

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"kanban-board/domain"
	"kanban-board/gateway"
)

func newTestMemory() *Memory {
	m := NewMemory()
	n := 0
	m.newID = func() string {
		n++
		return "id" + strconv.Itoa(n)
	}
	return m
}

// seed creates a board with a todo column holding tasks titled A, B, C and
// an empty doing column. It returns the board id and both column ids.
func seed(t *testing.T, m *Memory) (string, string, string) {
	t.Helper()
	ctx := context.Background()
	b, err := m.CreateBoard(ctx, "u1", "Work")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	todo, err := m.CreateColumn(ctx, "u1", b.ID, "To Do")
	if err != nil {
		t.Fatalf("create column: %v", err)
	}
	doing, err := m.CreateColumn(ctx, "u1", b.ID, "Doing")
	if err != nil {
		t.Fatalf("create column: %v", err)
	}
	for _, title := range []string{"A", "B", "C"} {
		if _, err := m.CreateTask(ctx, "u1", b.ID, todo.ID, gateway.TaskInput{Title: title}); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	return b.ID, todo.ID, doing.ID
}

func titles(t *testing.T, m *Memory, boardID, columnID string) []string {
	t.Helper()
	b, err := m.FetchBoard(context.Background(), "u1", boardID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := domain.CheckDense(b); err != nil {
		t.Fatalf("positions not dense: %v", err)
	}
	col, _ := b.Column(columnID)
	out := []string{}
	for _, task := range domain.SortedTasks(col) {
		out = append(out, task.Title)
	}
	return out
}

func taskByTitle(t *testing.T, m *Memory, boardID, title string) domain.Task {
	t.Helper()
	b, _ := m.FetchBoard(context.Background(), "u1", boardID)
	for _, col := range b.Columns {
		for _, task := range col.Tasks {
			if task.Title == title {
				return task
			}
		}
	}
	t.Fatalf("task %s not found", title)
	return domain.Task{}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMemoryOwnerScoping(t *testing.T) {
	m := newTestMemory()
	boardID, _, _ := seed(t, m)
	ctx := context.Background()

	if _, err := m.FetchBoard(ctx, "u2", boardID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if err := m.DeleteBoard(ctx, "u2", boardID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	list, _ := m.ListBoards(ctx, "u2")
	if len(list) != 0 {
		t.Fatalf("expected empty list for other owner, got %#v", list)
	}
	list, _ = m.ListBoards(ctx, "u1")
	if len(list) != 1 || list[0].ColumnCount != 2 || list[0].TaskCount != 3 {
		t.Fatalf("unexpected summaries %#v", list)
	}
}

func TestMemoryReorderAndVersion(t *testing.T) {
	m := newTestMemory()
	boardID, todo, _ := seed(t, m)
	ctx := context.Background()
	before, _ := m.FetchBoard(ctx, "u1", boardID)

	a := taskByTitle(t, m, boardID, "A")
	got, err := m.ReorderTask(ctx, "u1", boardID, todo, a.ID, 2)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got.Position != 2 || got.ColumnID != todo {
		t.Fatalf("unexpected task %#v", got)
	}
	if order := titles(t, m, boardID, todo); !equalStrings(order, []string{"B", "C", "A"}) {
		t.Fatalf("unexpected order %v", order)
	}
	after, _ := m.FetchBoard(ctx, "u1", boardID)
	if after.Version <= before.Version {
		t.Fatalf("version did not advance: %d -> %d", before.Version, after.Version)
	}
	col, _ := before.Column(todo)
	if domain.SortedTasks(col)[0].Title != "A" {
		t.Fatalf("earlier board value was modified")
	}
}

func TestMemoryMoveAndConflict(t *testing.T) {
	m := newTestMemory()
	boardID, todo, doing := seed(t, m)
	ctx := context.Background()

	b := taskByTitle(t, m, boardID, "B")
	got, err := m.MoveTask(ctx, "u1", boardID, todo, doing, b.ID)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.ColumnID != doing || got.Position != 0 {
		t.Fatalf("unexpected task %#v", got)
	}
	if order := titles(t, m, boardID, todo); !equalStrings(order, []string{"A", "C"}) {
		t.Fatalf("unexpected source order %v", order)
	}

	if _, err := m.ReorderTask(ctx, "u1", boardID, todo, b.ID, 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for stale column, got %v", err)
	}
	if _, err := m.MoveTask(ctx, "u1", boardID, todo, doing, b.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for stale source column, got %v", err)
	}
	if _, err := m.MoveTask(ctx, "u1", boardID, doing, "nope", b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing target, got %v", err)
	}
}

func TestMemoryDeleteTaskRenumbers(t *testing.T) {
	m := newTestMemory()
	boardID, todo, _ := seed(t, m)
	ctx := context.Background()

	if err := m.DeleteTask(ctx, "u1", boardID, taskByTitle(t, m, boardID, "A").ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if order := titles(t, m, boardID, todo); !equalStrings(order, []string{"B", "C"}) {
		t.Fatalf("unexpected order %v", order)
	}
	if err := m.DeleteTask(ctx, "u1", boardID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryValidation(t *testing.T) {
	m := newTestMemory()
	boardID, todo, _ := seed(t, m)
	ctx := context.Background()
	blank := "  "

	if _, err := m.CreateBoard(ctx, "u1", " "); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := m.CreateTask(ctx, "u1", boardID, todo, gateway.TaskInput{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := m.UpdateTask(ctx, "u1", boardID, taskByTitle(t, m, boardID, "A").ID, gateway.TaskPatch{Title: &blank}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := m.CreateTask(ctx, "u1", boardID, "nope", gateway.TaskInput{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemorySubtasks(t *testing.T) {
	m := newTestMemory()
	boardID, _, _ := seed(t, m)
	ctx := context.Background()
	a := taskByTitle(t, m, boardID, "A")

	st, err := m.CreateSubtask(ctx, "u1", boardID, a.ID, gateway.TaskInput{Title: "write"})
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	done := true
	got, err := m.UpdateSubtask(ctx, "u1", boardID, a.ID, st.ID, gateway.SubtaskPatch{Completed: &done})
	if err != nil {
		t.Fatalf("update subtask: %v", err)
	}
	if !got.Completed || got.Title != "write" {
		t.Fatalf("unexpected subtask %#v", got)
	}
	if taskByTitle(t, m, boardID, "A").Subtasks[0].Completed != true {
		t.Fatalf("update not stored")
	}
	if err := m.DeleteSubtask(ctx, "u1", boardID, a.ID, st.ID); err != nil {
		t.Fatalf("delete subtask: %v", err)
	}
	if err := m.DeleteSubtask(ctx, "u1", boardID, a.ID, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryDeleteColumn(t *testing.T) {
	m := newTestMemory()
	boardID, todo, doing := seed(t, m)
	ctx := context.Background()
	if err := m.DeleteColumn(ctx, "u1", boardID, todo); err != nil {
		t.Fatalf("delete column: %v", err)
	}
	b, _ := m.FetchBoard(ctx, "u1", boardID)
	if len(b.Columns) != 1 || b.Columns[0].ID != doing {
		t.Fatalf("unexpected columns %#v", b.Columns)
	}
}
