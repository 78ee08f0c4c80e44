// Package engine applies board mutations optimistically to the session cache
// and reconciles them with the backend.
package engine

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"kanban-board/cache"
	"kanban-board/domain"
	"kanban-board/gateway"
)

// Limits caps how much an actor may create. Zero means unlimited.
type Limits struct {
	Boards          int `yaml:"boards"`
	ColumnsPerBoard int `yaml:"columnsPerBoard"`
	TasksPerColumn  int `yaml:"tasksPerColumn"`
	SubtasksPerTask int `yaml:"subtasksPerTask"`
}

// Quotas maps each role to its limits. Roles without an entry are unlimited.
type Quotas map[domain.Role]Limits

// DefaultQuotas returns the limits applied when no quota file is configured.
func DefaultQuotas() Quotas {
	return Quotas{
		domain.RoleGuest:      {Boards: 1, ColumnsPerBoard: 5, TasksPerColumn: 10, SubtasksPerTask: 10},
		domain.RoleTemporary:  {Boards: 3, ColumnsPerBoard: 8, TasksPerColumn: 25, SubtasksPerTask: 15},
		domain.RoleRegistered: {},
	}
}

// Options tune reconciliation.
type Options struct {
	// AlwaysRefetch invalidates the board after every confirmed mutation
	// instead of trusting the optimistic shape.
	AlwaysRefetch bool
	Quotas        Quotas
	Logger        *log.Logger
}

// Engine runs mutations for one actor against one session cache.
type Engine struct {
	gw     gateway.Gateway
	cache  *cache.Boards
	actor  domain.Actor
	opts   Options
	logger *log.Logger
}

// New creates an engine. A nil Quotas in opts disables limits.
func New(gw gateway.Gateway, boards *cache.Boards, actor domain.Actor, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{
		gw:     gw,
		cache:  boards,
		actor:  actor,
		opts:   opts,
		logger: logger,
	}
}

// Actor returns the identity the engine acts as.
func (e *Engine) Actor() domain.Actor { return e.actor }

// Boards returns the actor's board list, fetching it when absent or stale.
func (e *Engine) Boards(ctx context.Context) ([]domain.BoardSummary, error) {
	boards, err := e.cache.Lists.Read(ctx, e.actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

// Board returns a board, fetching it when absent or stale.
func (e *Engine) Board(ctx context.Context, boardID string) (*domain.Board, error) {
	b, err := e.cache.Board.Read(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}
	return b, nil
}

// Refresh refetches a board regardless of its cached state.
func (e *Engine) Refresh(ctx context.Context, boardID string) (*domain.Board, error) {
	b, err := e.cache.Board.Refresh(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("refresh board %s: %w", boardID, err)
	}
	return b, nil
}

func (e *Engine) limits() Limits {
	if e.opts.Quotas == nil {
		return Limits{}
	}
	return e.opts.Quotas[e.actor.Role]
}

func quotaError(op, format string, args ...any) error {
	return &domain.ValidationError{Op: op, Reason: fmt.Sprintf(format, args...), Err: domain.ErrQuotaExceeded}
}

// missError turns a write against an evicted board into a validation error.
func missError(op, boardID string, err error) error {
	if errors.Is(err, cache.ErrMiss) {
		return &domain.ValidationError{Op: op, Reason: fmt.Sprintf("board %s is not loaded", boardID), Err: err}
	}
	return err
}

func taskOn(b *domain.Board, taskID string) (domain.Task, bool) {
	ci, ti, ok := b.FindTask(taskID)
	if !ok {
		return domain.Task{}, false
	}
	return b.Columns[ci].Tasks[ti], true
}

func subtaskOn(b *domain.Board, taskID, subtaskID string) (domain.Subtask, bool) {
	t, ok := taskOn(b, taskID)
	if !ok {
		return domain.Subtask{}, false
	}
	for _, st := range t.Subtasks {
		if st.ID == subtaskID {
			return st, true
		}
	}
	return domain.Subtask{}, false
}
