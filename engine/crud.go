package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kanban-board/domain"
	"kanban-board/gateway"
)

// CreateBoard creates a board owned by the actor and caches it.
func (e *Engine) CreateBoard(ctx context.Context, name string) (*domain.Board, error) {
	const op = "create board"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf(op, "name is required")
	}
	if limit := e.limits().Boards; limit > 0 {
		boards, err := e.Boards(ctx)
		if err != nil {
			return nil, err
		}
		if len(boards) >= limit {
			return nil, quotaError(op, "%s accounts may own %d boards", e.actor.Role, limit)
		}
	}
	b, err := e.gw.CreateBoard(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	e.cache.Board.Set(b.ID, b)
	e.cache.Lists.InvalidateAll()
	return b, nil
}

// DeleteBoard deletes a board and drops it from the cache.
func (e *Engine) DeleteBoard(ctx context.Context, boardID string) error {
	if err := e.gw.DeleteBoard(ctx, boardID); err != nil {
		return fmt.Errorf("delete board %s: %w", boardID, err)
	}
	e.cache.EvictBoard(boardID)
	return nil
}

// CreateColumn appends a column to a board.
func (e *Engine) CreateColumn(ctx context.Context, boardID, name string) (domain.Column, error) {
	const op = "create column"
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Column{}, domain.Validationf(op, "name is required")
	}
	if limit := e.limits().ColumnsPerBoard; limit > 0 {
		b, err := e.Board(ctx, boardID)
		if err != nil {
			return domain.Column{}, err
		}
		if len(b.Columns) >= limit {
			return domain.Column{}, quotaError(op, "board %s already has %d columns", boardID, limit)
		}
	}
	col, err := e.gw.CreateColumn(ctx, boardID, name)
	if err != nil {
		return domain.Column{}, e.failed(op, boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return col, nil
}

// DeleteColumn removes a column and its tasks.
func (e *Engine) DeleteColumn(ctx context.Context, boardID, columnID string) error {
	if err := e.gw.DeleteColumn(ctx, boardID, columnID); err != nil {
		return e.failed("delete column", boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return nil
}

// CreateTask appends a task to the end of a column.
func (e *Engine) CreateTask(ctx context.Context, boardID, columnID, title, description string) (domain.Task, error) {
	const op = "create task"
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, domain.Validationf(op, "title is required")
	}
	b, err := e.Board(ctx, boardID)
	if err != nil {
		return domain.Task{}, err
	}
	col, ok := b.Column(columnID)
	if !ok {
		return domain.Task{}, domain.Validationf(op, "column %s not found", columnID)
	}
	if limit := e.limits().TasksPerColumn; limit > 0 && len(col.Tasks) >= limit {
		return domain.Task{}, quotaError(op, "column %s already holds %d tasks", columnID, limit)
	}
	task, err := e.gw.CreateTask(ctx, boardID, columnID, gateway.TaskInput{Title: title, Description: description})
	if err != nil {
		return domain.Task{}, e.failed(op, boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return task, nil
}

// UpdateTask changes a task's title and/or description.
func (e *Engine) UpdateTask(ctx context.Context, boardID, taskID string, patch gateway.TaskPatch) (domain.Task, error) {
	const op = "update task"
	if patch.Empty() {
		return domain.Task{}, domain.Validationf(op, "nothing to update")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, domain.Validationf(op, "title cannot be empty")
	}
	task, err := e.gw.UpdateTask(ctx, boardID, taskID, patch)
	if err != nil {
		return domain.Task{}, e.failed(op, boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return task, nil
}

// DeleteTask removes a task; the backend renumbers the rest of its column.
func (e *Engine) DeleteTask(ctx context.Context, boardID, taskID string) error {
	if err := e.gw.DeleteTask(ctx, boardID, taskID); err != nil {
		return e.failed("delete task", boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return nil
}

// CreateSubtask adds a checklist item to a task.
func (e *Engine) CreateSubtask(ctx context.Context, boardID, taskID, title, description string) (domain.Subtask, error) {
	const op = "create subtask"
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Subtask{}, domain.Validationf(op, "title is required")
	}
	if limit := e.limits().SubtasksPerTask; limit > 0 {
		b, err := e.Board(ctx, boardID)
		if err != nil {
			return domain.Subtask{}, err
		}
		task, ok := taskOn(b, taskID)
		if !ok {
			return domain.Subtask{}, domain.Validationf(op, "task %s not found", taskID)
		}
		if len(task.Subtasks) >= limit {
			return domain.Subtask{}, quotaError(op, "task %s already has %d subtasks", taskID, limit)
		}
	}
	st, err := e.gw.CreateSubtask(ctx, boardID, taskID, gateway.TaskInput{Title: title, Description: description})
	if err != nil {
		return domain.Subtask{}, e.failed(op, boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return st, nil
}

// UpdateSubtask changes a subtask.
func (e *Engine) UpdateSubtask(ctx context.Context, boardID, taskID, subtaskID string, patch gateway.SubtaskPatch) (domain.Subtask, error) {
	const op = "update subtask"
	if patch.Empty() {
		return domain.Subtask{}, domain.Validationf(op, "nothing to update")
	}
	st, err := e.gw.UpdateSubtask(ctx, boardID, taskID, subtaskID, patch)
	if err != nil {
		return domain.Subtask{}, e.failed(op, boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return st, nil
}

// ToggleSubtask flips a subtask's completed flag. The cache shows the new
// state immediately and is rolled back if the backend refuses it.
func (e *Engine) ToggleSubtask(ctx context.Context, boardID, taskID, subtaskID string) (domain.Subtask, error) {
	const op = "toggle subtask"
	if _, err := e.Board(ctx, boardID); err != nil {
		return domain.Subtask{}, err
	}
	var completed bool
	snap, err := e.cache.Board.Write(boardID, func(b *domain.Board) (*domain.Board, error) {
		ci, ti, ok := b.FindTask(taskID)
		if !ok {
			return nil, domain.Validationf(op, "task %s not found", taskID)
		}
		task := b.Columns[ci].Tasks[ti]
		subtasks := make([]domain.Subtask, len(task.Subtasks))
		copy(subtasks, task.Subtasks)
		found := false
		for i := range subtasks {
			if subtasks[i].ID == subtaskID {
				subtasks[i].Completed = !subtasks[i].Completed
				completed = subtasks[i].Completed
				found = true
			}
		}
		if !found {
			return nil, domain.Validationf(op, "subtask %s not found", subtaskID)
		}
		task.Subtasks = subtasks

		out := b.Clone()
		tasks := make([]domain.Task, len(out.Columns[ci].Tasks))
		copy(tasks, out.Columns[ci].Tasks)
		tasks[ti] = task
		out.Columns[ci].Tasks = tasks
		return out, nil
	})
	if err != nil {
		return domain.Subtask{}, missError(op, boardID, err)
	}

	st, err := e.gw.UpdateSubtask(ctx, boardID, taskID, subtaskID, gateway.SubtaskPatch{Completed: &completed})
	if err != nil {
		restored := e.cache.Board.Rollback(snap)
		if !restored || errors.Is(err, domain.ErrConflict) {
			e.cache.InvalidateBoard(boardID)
		}
		return domain.Subtask{}, fmt.Errorf("%s %s: %w", op, subtaskID, err)
	}
	if e.opts.AlwaysRefetch || st.Completed != completed {
		e.cache.InvalidateBoard(boardID)
	}
	return st, nil
}

// DeleteSubtask removes a subtask.
func (e *Engine) DeleteSubtask(ctx context.Context, boardID, taskID, subtaskID string) error {
	if err := e.gw.DeleteSubtask(ctx, boardID, taskID, subtaskID); err != nil {
		return e.failed("delete subtask", boardID, err)
	}
	e.cache.InvalidateBoard(boardID)
	return nil
}

// failed wraps a gateway error. Conflicts mark the board stale since the
// local copy is known to be behind.
func (e *Engine) failed(op, boardID string, err error) error {
	if errors.Is(err, domain.ErrConflict) {
		e.cache.InvalidateBoard(boardID)
	}
	return fmt.Errorf("%s on board %s: %w", op, boardID, err)
}
