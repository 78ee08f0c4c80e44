package dnd

import (
	"context"
	"errors"
	"testing"

	"kanban-board/domain"
)

type call struct {
	kind     string
	boardID  string
	source   string
	target   string
	taskID   string
	position int
}

type stubMover struct {
	calls []call
	err   error
}

func (s *stubMover) ReorderWithinColumn(ctx context.Context, boardID, columnID, taskID string, newPosition int) error {
	s.calls = append(s.calls, call{kind: "reorder", boardID: boardID, source: columnID, target: columnID, taskID: taskID, position: newPosition})
	return s.err
}

func (s *stubMover) MoveAcrossColumns(ctx context.Context, boardID, sourceColumnID, targetColumnID, taskID string) error {
	s.calls = append(s.calls, call{kind: "move", boardID: boardID, source: sourceColumnID, target: targetColumnID, taskID: taskID})
	return s.err
}

type stubBoards map[string]*domain.Board

func (s stubBoards) Peek(boardID string) (*domain.Board, bool) {
	b, ok := s[boardID]
	return b, ok
}

func testBoards() stubBoards {
	return stubBoards{"b1": {ID: "b1", Columns: []domain.Column{
		{ID: "todo", Tasks: []domain.Task{{ID: "A"}, {ID: "B", Position: 1}, {ID: "C", Position: 2}}},
		{ID: "doing"},
	}}}
}

func ptr(s string) *string { return &s }

func TestDropOutsideColumnsIsIgnored(t *testing.T) {
	m := &stubMover{}
	a := NewAdapter("b1", m, testBoards())
	if err := a.OnDrop(context.Background(), DropEvent{DraggedID: "A", SourceContainerID: "todo"}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(m.calls) != 0 {
		t.Fatalf("expected no calls, got %#v", m.calls)
	}
}

func TestDropInSameColumnReorders(t *testing.T) {
	m := &stubMover{}
	a := NewAdapter("b1", m, testBoards())
	ev := DropEvent{DraggedID: "B", SourceContainerID: "todo", SourceIndex: 1, DestinationContainerID: ptr("todo"), DestinationIndex: 0}
	if err := a.OnDrop(context.Background(), ev); err != nil {
		t.Fatalf("drop: %v", err)
	}
	want := call{kind: "reorder", boardID: "b1", source: "todo", target: "todo", taskID: "B", position: 0}
	if len(m.calls) != 1 || m.calls[0] != want {
		t.Fatalf("unexpected calls %#v", m.calls)
	}
}

func TestDropIndexClampedToCount(t *testing.T) {
	m := &stubMover{}
	a := NewAdapter("b1", m, testBoards())
	ev := DropEvent{DraggedID: "A", SourceContainerID: "todo", DestinationContainerID: ptr("todo"), DestinationIndex: 42}
	if err := a.OnDrop(context.Background(), ev); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if m.calls[0].position != 3 {
		t.Fatalf("expected index clamped to 3, got %d", m.calls[0].position)
	}

	ev.DestinationIndex = -4
	if err := a.OnDrop(context.Background(), ev); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if m.calls[1].position != 0 {
		t.Fatalf("expected index clamped to 0, got %d", m.calls[1].position)
	}
}

func TestDropInOtherColumnMoves(t *testing.T) {
	m := &stubMover{}
	a := NewAdapter("b1", m, testBoards())
	ev := DropEvent{DraggedID: "A", SourceContainerID: "todo", DestinationContainerID: ptr("doing"), DestinationIndex: 5}
	if err := a.OnDrop(context.Background(), ev); err != nil {
		t.Fatalf("drop: %v", err)
	}
	want := call{kind: "move", boardID: "b1", source: "todo", target: "doing", taskID: "A"}
	if len(m.calls) != 1 || m.calls[0] != want {
		t.Fatalf("unexpected calls %#v", m.calls)
	}
}

func TestDropPropagatesEngineError(t *testing.T) {
	boom := errors.New("boom")
	m := &stubMover{err: boom}
	a := NewAdapter("b1", m, nil)
	ev := DropEvent{DraggedID: "A", SourceContainerID: "todo", DestinationContainerID: ptr("doing")}
	if err := a.OnDrop(context.Background(), ev); !errors.Is(err, boom) {
		t.Fatalf("expected engine error, got %v", err)
	}
}
