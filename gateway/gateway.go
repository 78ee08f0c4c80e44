// Package gateway is the boundary to the remote board backend.
package gateway

import (
	"context"

	"kanban-board/domain"
)

// Gateway fetches and mutates boards on the backend. Mutations return the
// authoritative entity so callers can reconcile local state.
type Gateway interface {
	ListBoards(ctx context.Context) ([]domain.BoardSummary, error)
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	CreateBoard(ctx context.Context, name string) (*domain.Board, error)
	DeleteBoard(ctx context.Context, boardID string) error

	CreateColumn(ctx context.Context, boardID, name string) (domain.Column, error)
	DeleteColumn(ctx context.Context, boardID, columnID string) error

	CreateTask(ctx context.Context, boardID, columnID string, in TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, boardID, taskID string, patch TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, boardID, taskID string) error
	ReorderTask(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error)
	MoveTask(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error)

	CreateSubtask(ctx context.Context, boardID, taskID string, in TaskInput) (domain.Subtask, error)
	UpdateSubtask(ctx context.Context, boardID, taskID, subtaskID string, patch SubtaskPatch) (domain.Subtask, error)
	DeleteSubtask(ctx context.Context, boardID, taskID, subtaskID string) error
}

// TaskInput carries the fields of a new task or subtask.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskPatch lists task fields to change; nil fields are left alone.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool { return p.Title == nil && p.Description == nil }

// SubtaskPatch lists subtask fields to change; nil fields are left alone.
type SubtaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SubtaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }
