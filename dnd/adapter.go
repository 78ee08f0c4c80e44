// Package dnd translates drag-and-drop gestures into engine calls.
package dnd

import (
	"context"

	"kanban-board/domain"
)

// DropEvent describes a finished drag. Containers are columns and the
// dragged item is a task. DestinationContainerID is nil when the item was
// dropped outside every column.
type DropEvent struct {
	DraggedID              string
	SourceContainerID      string
	SourceIndex            int
	DestinationContainerID *string
	DestinationIndex       int
}

// Mover is the part of the engine the adapter drives.
type Mover interface {
	ReorderWithinColumn(ctx context.Context, boardID, columnID, taskID string, newPosition int) error
	MoveAcrossColumns(ctx context.Context, boardID, sourceColumnID, targetColumnID, taskID string) error
}

// BoardPeeker reads the cached board without fetching.
type BoardPeeker interface {
	Peek(boardID string) (*domain.Board, bool)
}

// Adapter routes drops on one board to the engine.
type Adapter struct {
	boardID string
	mover   Mover
	boards  BoardPeeker
}

func NewAdapter(boardID string, mover Mover, boards BoardPeeker) *Adapter {
	return &Adapter{boardID: boardID, mover: mover, boards: boards}
}

// OnDrop handles a finished drag. Drops outside any column are ignored.
func (a *Adapter) OnDrop(ctx context.Context, ev DropEvent) error {
	if ev.DestinationContainerID == nil {
		return nil
	}
	dest := *ev.DestinationContainerID
	if dest == ev.SourceContainerID {
		return a.mover.ReorderWithinColumn(ctx, a.boardID, dest, ev.DraggedID, a.clampIndex(dest, ev.DestinationIndex))
	}
	return a.mover.MoveAcrossColumns(ctx, a.boardID, ev.SourceContainerID, dest, ev.DraggedID)
}

func (a *Adapter) clampIndex(columnID string, idx int) int {
	if idx < 0 {
		return 0
	}
	if a.boards == nil {
		return idx
	}
	b, ok := a.boards.Peek(a.boardID)
	if !ok {
		return idx
	}
	col, ok := b.Column(columnID)
	if !ok {
		return idx
	}
	if n := len(col.Tasks); idx > n {
		return n
	}
	return idx
}
