package domain

// Board is the top-level container of columns for one workspace.
type Board struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	OwnerID string   `json:"ownerId"`
	Version int64    `json:"version"`
	Columns []Column `json:"columns"`
}

// Column is a named, ordered bucket of tasks.
type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Task is a unit of work positioned inside its column.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ColumnID    string    `json:"columnId"`
	Position    int       `json:"position"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

// Subtask is a checklist item belonging to a task.
type Subtask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
}

// BoardSummary is the board-list projection of a board.
type BoardSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"ownerId"`
	ColumnCount int    `json:"columnCount"`
	TaskCount   int    `json:"taskCount"`
}

// ColumnIndex returns the index of the column with the given id, or -1.
func (b *Board) ColumnIndex(columnID string) int {
	if b == nil {
		return -1
	}
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return i
		}
	}
	return -1
}

// Column returns the column with the given id.
func (b *Board) Column(columnID string) (Column, bool) {
	i := b.ColumnIndex(columnID)
	if i < 0 {
		return Column{}, false
	}
	return b.Columns[i], true
}

// FindTask locates a task anywhere on the board and returns its column and slice indexes.
func (b *Board) FindTask(taskID string) (int, int, bool) {
	if b == nil {
		return -1, -1, false
	}
	for ci := range b.Columns {
		for ti := range b.Columns[ci].Tasks {
			if b.Columns[ci].Tasks[ti].ID == taskID {
				return ci, ti, true
			}
		}
	}
	return -1, -1, false
}

// TaskCount returns the number of tasks across all columns.
func (b *Board) TaskCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Summary builds the board-list entry for b.
func (b *Board) Summary() BoardSummary {
	return BoardSummary{
		ID:          b.ID,
		Name:        b.Name,
		OwnerID:     b.OwnerID,
		ColumnCount: len(b.Columns),
		TaskCount:   b.TaskCount(),
	}
}

// Clone returns a copy of b whose column slice can be replaced without
// affecting b. Task and subtask slices are shared; callers replace them
// wholesale rather than editing them.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Columns = make([]Column, len(b.Columns))
	copy(out.Columns, b.Columns)
	return &out
}
