// Package storage holds the authoritative board state of the reference
// service.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kanban-board/domain"
	"kanban-board/gateway"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the request assumed state the board no longer has,
	// such as a task that has already left the named column.
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid request")
)

// Memory keeps boards in process memory. Boards are only visible to their
// owner. Every mutation builds a new board value and bumps its version.
type Memory struct {
	mu     sync.RWMutex
	boards map[string]*domain.Board
	newID  func() string
}

func NewMemory() *Memory {
	return &Memory{
		boards: make(map[string]*domain.Board),
		newID:  uuid.NewString,
	}
}

func (m *Memory) ListBoards(_ context.Context, ownerID string) ([]domain.BoardSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.BoardSummary{}
	for _, b := range m.boards {
		if b.OwnerID == ownerID {
			out = append(out, b.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) FetchBoard(_ context.Context, ownerID, boardID string) (*domain.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board(ownerID, boardID)
}

func (m *Memory) CreateBoard(_ context.Context, ownerID, name string) (*domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: board name is required", ErrInvalid)
	}
	b := &domain.Board{
		ID:      m.newID(),
		Name:    name,
		OwnerID: ownerID,
		Version: 1,
		Columns: []domain.Column{},
	}
	m.mu.Lock()
	m.boards[b.ID] = b
	m.mu.Unlock()
	return b, nil
}

func (m *Memory) DeleteBoard(_ context.Context, ownerID, boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.board(ownerID, boardID); err != nil {
		return err
	}
	delete(m.boards, boardID)
	return nil
}

func (m *Memory) CreateColumn(_ context.Context, ownerID, boardID, name string) (domain.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Column{}, fmt.Errorf("%w: column name is required", ErrInvalid)
	}
	col := domain.Column{ID: m.newID(), Name: name, Tasks: []domain.Task{}}
	err := m.update(ownerID, boardID, func(b *domain.Board) error {
		b.Columns = append(b.Columns, col)
		return nil
	})
	return col, err
}

func (m *Memory) DeleteColumn(_ context.Context, ownerID, boardID, columnID string) error {
	return m.update(ownerID, boardID, func(b *domain.Board) error {
		ci := b.ColumnIndex(columnID)
		if ci < 0 {
			return fmt.Errorf("column %s: %w", columnID, ErrNotFound)
		}
		b.Columns = append(b.Columns[:ci:ci], b.Columns[ci+1:]...)
		return nil
	})
}

// CreateTask appends a task at the end of the column.
func (m *Memory) CreateTask(_ context.Context, ownerID, boardID, columnID string, in gateway.TaskInput) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, fmt.Errorf("%w: task title is required", ErrInvalid)
	}
	var task domain.Task
	err := m.update(ownerID, boardID, func(b *domain.Board) error {
		ci := b.ColumnIndex(columnID)
		if ci < 0 {
			return fmt.Errorf("column %s: %w", columnID, ErrNotFound)
		}
		tasks := domain.SortedTasks(b.Columns[ci])
		task = domain.Task{
			ID:          m.newID(),
			Title:       title,
			Description: in.Description,
			ColumnID:    columnID,
			Position:    len(tasks),
		}
		b.Columns[ci].Tasks = domain.Renumber(append(tasks, task))
		return nil
	})
	return task, err
}

func (m *Memory) UpdateTask(_ context.Context, ownerID, boardID, taskID string, patch gateway.TaskPatch) (domain.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, fmt.Errorf("%w: task title cannot be empty", ErrInvalid)
	}
	var task domain.Task
	err := m.updateTask(ownerID, boardID, taskID, func(t *domain.Task) error {
		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		task = *t
		return nil
	})
	return task, err
}

// DeleteTask removes a task and closes the gap it leaves.
func (m *Memory) DeleteTask(_ context.Context, ownerID, boardID, taskID string) error {
	return m.update(ownerID, boardID, func(b *domain.Board) error {
		ci, _, ok := b.FindTask(taskID)
		if !ok {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		tasks := domain.SortedTasks(b.Columns[ci])
		kept := tasks[:0:0]
		for _, t := range tasks {
			if t.ID != taskID {
				kept = append(kept, t)
			}
		}
		b.Columns[ci].Tasks = domain.Renumber(kept)
		return nil
	})
}

// ReorderTask places a task at position within columnID. A task that is not
// in columnID any more is a conflict.
func (m *Memory) ReorderTask(_ context.Context, ownerID, boardID, columnID, taskID string, position int) (domain.Task, error) {
	var task domain.Task
	err := m.update(ownerID, boardID, func(b *domain.Board) error {
		if err := requireTaskIn(b, columnID, taskID); err != nil {
			return err
		}
		next, _, err := domain.ReorderTask(b, columnID, taskID, position)
		if err != nil {
			return err
		}
		*b = *next
		ci, ti, _ := b.FindTask(taskID)
		task = b.Columns[ci].Tasks[ti]
		return nil
	})
	return task, err
}

// MoveTask moves a task to the top of targetColumnID.
func (m *Memory) MoveTask(_ context.Context, ownerID, boardID, sourceColumnID, targetColumnID, taskID string) (domain.Task, error) {
	var task domain.Task
	err := m.update(ownerID, boardID, func(b *domain.Board) error {
		if b.ColumnIndex(targetColumnID) < 0 {
			return fmt.Errorf("column %s: %w", targetColumnID, ErrNotFound)
		}
		if err := requireTaskIn(b, sourceColumnID, taskID); err != nil {
			return err
		}
		next, err := domain.MoveTask(b, sourceColumnID, targetColumnID, taskID)
		if err != nil {
			return err
		}
		*b = *next
		ci, ti, _ := b.FindTask(taskID)
		task = b.Columns[ci].Tasks[ti]
		return nil
	})
	return task, err
}

func (m *Memory) CreateSubtask(_ context.Context, ownerID, boardID, taskID string, in gateway.TaskInput) (domain.Subtask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Subtask{}, fmt.Errorf("%w: subtask title is required", ErrInvalid)
	}
	st := domain.Subtask{ID: m.newID(), Title: title, Description: in.Description}
	err := m.updateTask(ownerID, boardID, taskID, func(t *domain.Task) error {
		t.Subtasks = append(append([]domain.Subtask(nil), t.Subtasks...), st)
		return nil
	})
	return st, err
}

func (m *Memory) UpdateSubtask(_ context.Context, ownerID, boardID, taskID, subtaskID string, patch gateway.SubtaskPatch) (domain.Subtask, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Subtask{}, fmt.Errorf("%w: subtask title cannot be empty", ErrInvalid)
	}
	var st domain.Subtask
	err := m.updateTask(ownerID, boardID, taskID, func(t *domain.Task) error {
		subtasks := append([]domain.Subtask(nil), t.Subtasks...)
		for i := range subtasks {
			if subtasks[i].ID != subtaskID {
				continue
			}
			if patch.Title != nil {
				subtasks[i].Title = strings.TrimSpace(*patch.Title)
			}
			if patch.Description != nil {
				subtasks[i].Description = *patch.Description
			}
			if patch.Completed != nil {
				subtasks[i].Completed = *patch.Completed
			}
			st = subtasks[i]
			t.Subtasks = subtasks
			return nil
		}
		return fmt.Errorf("subtask %s: %w", subtaskID, ErrNotFound)
	})
	return st, err
}

func (m *Memory) DeleteSubtask(_ context.Context, ownerID, boardID, taskID, subtaskID string) error {
	return m.updateTask(ownerID, boardID, taskID, func(t *domain.Task) error {
		kept := make([]domain.Subtask, 0, len(t.Subtasks))
		for _, st := range t.Subtasks {
			if st.ID != subtaskID {
				kept = append(kept, st)
			}
		}
		if len(kept) == len(t.Subtasks) {
			return fmt.Errorf("subtask %s: %w", subtaskID, ErrNotFound)
		}
		t.Subtasks = kept
		return nil
	})
}

// board must be called with m.mu held.
func (m *Memory) board(ownerID, boardID string) (*domain.Board, error) {
	b, ok := m.boards[boardID]
	if !ok || b.OwnerID != ownerID {
		return nil, fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}
	return b, nil
}

// update applies fn to a copy of the board and stores it when fn succeeds.
func (m *Memory) update(ownerID, boardID string, fn func(b *domain.Board) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.board(ownerID, boardID)
	if err != nil {
		return err
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Version = cur.Version + 1
	m.boards[boardID] = next
	return nil
}

func (m *Memory) updateTask(ownerID, boardID, taskID string, fn func(t *domain.Task) error) error {
	return m.update(ownerID, boardID, func(b *domain.Board) error {
		ci, ti, ok := b.FindTask(taskID)
		if !ok {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		tasks := append([]domain.Task(nil), b.Columns[ci].Tasks...)
		if err := fn(&tasks[ti]); err != nil {
			return err
		}
		b.Columns[ci].Tasks = tasks
		return nil
	})
}

func requireTaskIn(b *domain.Board, columnID, taskID string) error {
	if b.ColumnIndex(columnID) < 0 {
		return fmt.Errorf("column %s: %w", columnID, ErrNotFound)
	}
	ci, _, ok := b.FindTask(taskID)
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if b.Columns[ci].ID != columnID {
		return fmt.Errorf("task %s is in column %s, not %s: %w", taskID, b.Columns[ci].ID, columnID, ErrConflict)
	}
	return nil
}
