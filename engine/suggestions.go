package engine

import (
	"context"
	"fmt"

	"kanban-board/domain"
	"kanban-board/gateway"
)

// AcceptSuggestion applies a pending suggestion to the board it targets and
// returns it marked accepted. When a step fails midway the board is
// invalidated so the partial result is refetched, and the suggestion stays
// pending.
func (e *Engine) AcceptSuggestion(ctx context.Context, s domain.Suggestion) (domain.Suggestion, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}
	var err error
	switch s.Kind {
	case domain.SuggestionBoardStructure:
		err = e.applyBoardStructure(ctx, &s)
	case domain.SuggestionTaskBreakdown:
		err = e.applyTaskBreakdown(ctx, s)
	case domain.SuggestionTaskImprovement:
		err = e.applyTaskImprovement(ctx, s)
	}
	if err != nil {
		return s, fmt.Errorf("accept suggestion %s: %w", s.ID, err)
	}
	s.Status = domain.SuggestionAccepted
	e.logger.WithField("suggestion_id", s.ID).WithField("kind", s.Kind).Info("suggestion accepted")
	return s, nil
}

// RejectSuggestion marks a pending suggestion rejected. The board is left alone.
func (e *Engine) RejectSuggestion(s domain.Suggestion) (domain.Suggestion, error) {
	if s.Status != "" && s.Status != domain.SuggestionPending {
		return s, domain.Validationf("reject suggestion", "suggestion %s is already %s", s.ID, s.Status)
	}
	s.Status = domain.SuggestionRejected
	return s, nil
}

func (e *Engine) applyBoardStructure(ctx context.Context, s *domain.Suggestion) error {
	const op = "apply board structure"
	limits := e.limits()

	var existing int
	if s.BoardID != "" {
		b, err := e.Board(ctx, s.BoardID)
		if err != nil {
			return err
		}
		existing = len(b.Columns)
	}
	if limits.ColumnsPerBoard > 0 && existing+len(s.Columns) > limits.ColumnsPerBoard {
		return quotaError(op, "board would exceed %d columns", limits.ColumnsPerBoard)
	}
	for _, c := range s.Columns {
		if limits.TasksPerColumn > 0 && len(c.Tasks) > limits.TasksPerColumn {
			return quotaError(op, "column %q would exceed %d tasks", c.Name, limits.TasksPerColumn)
		}
	}
	if s.BoardID == "" {
		b, err := e.CreateBoard(ctx, s.BoardName)
		if err != nil {
			return err
		}
		s.BoardID = b.ID
	}

	defer e.cache.InvalidateBoard(s.BoardID)
	for _, c := range s.Columns {
		col, err := e.gw.CreateColumn(ctx, s.BoardID, c.Name)
		if err != nil {
			return fmt.Errorf("create column %q: %w", c.Name, err)
		}
		for _, t := range c.Tasks {
			if _, err := e.gw.CreateTask(ctx, s.BoardID, col.ID, gateway.TaskInput{Title: t.Title, Description: t.Description}); err != nil {
				return fmt.Errorf("create task %q: %w", t.Title, err)
			}
		}
	}
	return nil
}

func (e *Engine) applyTaskBreakdown(ctx context.Context, s domain.Suggestion) error {
	const op = "apply task breakdown"
	b, err := e.Board(ctx, s.BoardID)
	if err != nil {
		return err
	}
	task, ok := taskOn(b, s.TaskID)
	if !ok {
		return domain.Validationf(op, "task %s not found", s.TaskID)
	}
	if limit := e.limits().SubtasksPerTask; limit > 0 && len(task.Subtasks)+len(s.Subtasks) > limit {
		return quotaError(op, "task %s would exceed %d subtasks", s.TaskID, limit)
	}

	defer e.cache.InvalidateBoard(s.BoardID)
	for _, st := range s.Subtasks {
		if _, err := e.gw.CreateSubtask(ctx, s.BoardID, s.TaskID, gateway.TaskInput{Title: st.Title, Description: st.Description}); err != nil {
			return fmt.Errorf("create subtask %q: %w", st.Title, err)
		}
	}
	return nil
}

func (e *Engine) applyTaskImprovement(ctx context.Context, s domain.Suggestion) error {
	var patch gateway.TaskPatch
	if s.Title != "" {
		title := s.Title
		patch.Title = &title
	}
	if s.Description != "" {
		description := s.Description
		patch.Description = &description
	}
	_, err := e.UpdateTask(ctx, s.BoardID, s.TaskID, patch)
	return err
}
