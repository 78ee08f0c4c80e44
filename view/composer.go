// Package view projects cached boards into the shape rendered by the UI.
package view

import (
	"sync"

	"kanban-board/domain"
)

// TextTransform turns a stored description into display markup.
type TextTransform func(string) string

// BoardView is a render-ready board.
type BoardView struct {
	ID      string
	Name    string
	Columns []ColumnView
}

// ColumnView lists a column's tasks in position order.
type ColumnView struct {
	ID    string
	Name  string
	Tasks []TaskView
}

// TaskView is one card.
type TaskView struct {
	ID              string
	Title           string
	Description     string
	DescriptionHTML string
	Position        int
	Subtasks        []domain.Subtask
	SubtasksDone    int
}

// Progress returns completed and total subtask counts.
func (t TaskView) Progress() (done, total int) {
	return t.SubtasksDone, len(t.Subtasks)
}

// Composer builds BoardViews. The last result is reused while the same board
// value is passed in; cached boards are never mutated in place, so a new
// pointer is the only signal that anything changed.
type Composer struct {
	transform TextTransform

	mu   sync.Mutex
	last *domain.Board
	view BoardView
}

// NewComposer creates a composer. A nil transform renders Markdown.
func NewComposer(transform TextTransform) *Composer {
	if transform == nil {
		transform = Markdown
	}
	return &Composer{transform: transform}
}

// Compose returns the view of b.
func (c *Composer) Compose(b *domain.Board) BoardView {
	if b == nil {
		return BoardView{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b == c.last {
		return c.view
	}
	c.view = c.build(b)
	c.last = b
	return c.view
}

func (c *Composer) build(b *domain.Board) BoardView {
	v := BoardView{ID: b.ID, Name: b.Name, Columns: make([]ColumnView, 0, len(b.Columns))}
	for _, col := range b.Columns {
		cv := ColumnView{ID: col.ID, Name: col.Name, Tasks: make([]TaskView, 0, len(col.Tasks))}
		for _, t := range domain.SortedTasks(col) {
			cv.Tasks = append(cv.Tasks, c.task(t))
		}
		v.Columns = append(v.Columns, cv)
	}
	return v
}

func (c *Composer) task(t domain.Task) TaskView {
	tv := TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Position:    t.Position,
		Subtasks:    t.Subtasks,
	}
	if t.Description != "" {
		tv.DescriptionHTML = c.transform(t.Description)
	}
	for _, st := range t.Subtasks {
		if st.Completed {
			tv.SubtasksDone++
		}
	}
	return tv
}
