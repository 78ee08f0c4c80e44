package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-board/cache"
	"kanban-board/domain"
)

var errUnchanged = errors.New("unchanged")

// ReorderWithinColumn moves a task to newPosition inside its column. The
// cache reflects the new order before the backend answers. On failure the
// cache is rolled back to the state this call replaced.
func (e *Engine) ReorderWithinColumn(ctx context.Context, boardID, columnID, taskID string, newPosition int) (err error) {
	const op = "reorder task"
	m := newMutationMetrics(e.logger, "reorder", boardID)
	defer func() { m.Log(err) }()

	if err := e.ensureBoard(ctx, m, boardID); err != nil {
		return err
	}

	snap, err := e.cache.Board.Write(boardID, func(b *domain.Board) (*domain.Board, error) {
		next, changed, err := domain.ReorderTask(b, columnID, taskID, newPosition)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, errUnchanged
		}
		return next, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		m.SetErrorStage("apply")
		return missError(op, boardID, err)
	}
	m.SetChanged(true)

	// The optimistic board carries the clamped index.
	moved, _ := taskOn(snap.Next, taskID)

	start := time.Now()
	confirmed, err := e.gw.ReorderTask(ctx, boardID, columnID, taskID, moved.Position)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		m.SetErrorStage("gateway")
		e.revert(m, snap, err)
		return fmt.Errorf("reorder task %s: %w", taskID, err)
	}
	e.reconcile(m, snap, confirmed)
	return nil
}

// MoveAcrossColumns moves a task to the top of another column.
func (e *Engine) MoveAcrossColumns(ctx context.Context, boardID, sourceColumnID, targetColumnID, taskID string) (err error) {
	const op = "move task"
	m := newMutationMetrics(e.logger, "move", boardID)
	defer func() { m.Log(err) }()

	if err := e.ensureBoard(ctx, m, boardID); err != nil {
		return err
	}

	limit := e.limits().TasksPerColumn
	snap, err := e.cache.Board.Write(boardID, func(b *domain.Board) (*domain.Board, error) {
		if target, ok := b.Column(targetColumnID); ok && limit > 0 && len(target.Tasks) >= limit {
			return nil, quotaError(op, "column %s already holds %d tasks", targetColumnID, limit)
		}
		return domain.MoveTask(b, sourceColumnID, targetColumnID, taskID)
	})
	if err != nil {
		m.SetErrorStage("apply")
		return missError(op, boardID, err)
	}
	m.SetChanged(true)

	start := time.Now()
	confirmed, err := e.gw.MoveTask(ctx, boardID, sourceColumnID, taskID, targetColumnID)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		m.SetErrorStage("gateway")
		e.revert(m, snap, err)
		return fmt.Errorf("move task %s: %w", taskID, err)
	}
	e.reconcile(m, snap, confirmed)
	return nil
}

func (e *Engine) ensureBoard(ctx context.Context, m *mutationMetrics, boardID string) error {
	start := time.Now()
	_, err := e.cache.Board.Read(ctx, boardID)
	m.ObserveFetch(time.Since(start))
	if err != nil {
		m.SetErrorStage("fetch")
		return fmt.Errorf("load board %s: %w", boardID, err)
	}
	return nil
}

// revert undoes the optimistic write of one call. Conflicts also force a
// refetch because the server state is known to differ.
func (e *Engine) revert(m *mutationMetrics, snap cache.Snapshot[*domain.Board], cause error) {
	restored := e.cache.Board.Rollback(snap)
	m.SetRolledBack(restored)
	if errors.Is(cause, domain.ErrConflict) || !restored {
		e.cache.InvalidateBoard(snap.Key)
		m.SetInvalidated(true)
	}
	e.logger.WithFields(log.Fields{
		"board_id": snap.Key,
		"restored": restored,
	}).WithError(cause).Warn("optimistic update reverted")
}

// reconcile keeps the optimistic board when the backend placed the task where
// the client did, and schedules a refetch otherwise.
func (e *Engine) reconcile(m *mutationMetrics, snap cache.Snapshot[*domain.Board], confirmed domain.Task) {
	if e.opts.AlwaysRefetch {
		e.cache.InvalidateBoard(snap.Key)
		m.SetInvalidated(true)
		return
	}
	expected, ok := taskOn(snap.Next, confirmed.ID)
	if !ok || expected.ColumnID != confirmed.ColumnID || expected.Position != confirmed.Position {
		e.logger.WithFields(log.Fields{
			"board_id": snap.Key,
			"task_id":  confirmed.ID,
		}).Debug("backend placement differs from optimistic state")
		e.cache.InvalidateBoard(snap.Key)
		m.SetInvalidated(true)
	}
}
