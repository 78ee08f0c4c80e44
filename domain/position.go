package domain

import (
	"fmt"
	"sort"
)

// SortedTasks returns a copy of the column's tasks ordered by position.
// Ties keep their slice order.
func SortedTasks(col Column) []Task {
	out := make([]Task, len(col.Tasks))
	copy(out, col.Tasks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Renumber assigns positions 0..n-1 following slice order. It returns a new
// slice and leaves tasks untouched.
func Renumber(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Position = i
		out[i] = t
	}
	return out
}

// ReorderTask moves taskID to newPosition inside columnID and renumbers the
// whole column. newPosition is clamped to the column bounds. The returned bool
// is false when the task already sits at newPosition, in which case b itself
// is returned.
func ReorderTask(b *Board, columnID, taskID string, newPosition int) (*Board, bool, error) {
	const op = "reorder task"
	ci := b.ColumnIndex(columnID)
	if ci < 0 {
		return nil, false, Validationf(op, "column %s not found", columnID)
	}
	tasks := SortedTasks(b.Columns[ci])
	oldPosition := indexOfTask(tasks, taskID)
	if oldPosition < 0 {
		return nil, false, Validationf(op, "task %s not in column %s", taskID, columnID)
	}
	newPosition = clamp(newPosition, len(tasks)-1)
	if oldPosition == newPosition {
		return b, false, nil
	}

	moved := tasks[oldPosition]
	rest := append(tasks[:oldPosition:oldPosition], tasks[oldPosition+1:]...)
	reordered := insertAt(rest, newPosition, moved)

	out := b.Clone()
	out.Columns[ci].Tasks = assignColumn(Renumber(reordered), columnID)
	return out, true, nil
}

// MoveTask removes taskID from sourceColumnID and inserts it at the top of
// targetColumnID. Both columns are renumbered and the task's ColumnID is
// reassigned.
func MoveTask(b *Board, sourceColumnID, targetColumnID, taskID string) (*Board, error) {
	const op = "move task"
	if sourceColumnID == targetColumnID {
		return nil, Validationf(op, "source and target column are both %s", sourceColumnID)
	}
	si := b.ColumnIndex(sourceColumnID)
	if si < 0 {
		return nil, Validationf(op, "column %s not found", sourceColumnID)
	}
	ti := b.ColumnIndex(targetColumnID)
	if ti < 0 {
		return nil, Validationf(op, "column %s not found", targetColumnID)
	}
	source := SortedTasks(b.Columns[si])
	idx := indexOfTask(source, taskID)
	if idx < 0 {
		return nil, Validationf(op, "task %s not in column %s", taskID, sourceColumnID)
	}

	moved := source[idx]
	moved.ColumnID = targetColumnID
	remaining := append(source[:idx:idx], source[idx+1:]...)
	target := insertAt(SortedTasks(b.Columns[ti]), 0, moved)

	out := b.Clone()
	out.Columns[si].Tasks = assignColumn(Renumber(remaining), sourceColumnID)
	out.Columns[ti].Tasks = assignColumn(Renumber(target), targetColumnID)
	return out, nil
}

// CheckDense verifies that every column holds positions 0..n-1 exactly once
// and that every task points back at the column containing it.
func CheckDense(b *Board) error {
	for _, col := range b.Columns {
		seen := make([]bool, len(col.Tasks))
		for _, t := range col.Tasks {
			if t.ColumnID != col.ID {
				return fmt.Errorf("task %s in column %s has columnId %s", t.ID, col.ID, t.ColumnID)
			}
			if t.Position < 0 || t.Position >= len(col.Tasks) {
				return fmt.Errorf("task %s in column %s has position %d outside 0..%d", t.ID, col.ID, t.Position, len(col.Tasks)-1)
			}
			if seen[t.Position] {
				return fmt.Errorf("column %s has duplicate position %d", col.ID, t.Position)
			}
			seen[t.Position] = true
		}
	}
	return nil
}

func indexOfTask(tasks []Task, taskID string) int {
	for i := range tasks {
		if tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

func insertAt(tasks []Task, at int, t Task) []Task {
	if at < 0 {
		at = 0
	}
	if at > len(tasks) {
		at = len(tasks)
	}
	out := make([]Task, 0, len(tasks)+1)
	out = append(out, tasks[:at]...)
	out = append(out, t)
	return append(out, tasks[at:]...)
}

func assignColumn(tasks []Task, columnID string) []Task {
	for i := range tasks {
		tasks[i].ColumnID = columnID
	}
	return tasks
}

func clamp(v, hi int) int {
	if v > hi {
		v = hi
	}
	if v < 0 {
		v = 0
	}
	return v
}
