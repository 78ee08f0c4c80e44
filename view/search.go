package view

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Filter keeps the tasks whose title fuzzily matches query. Column order and
// task order are preserved; columns are kept even when they end up empty.
func Filter(v BoardView, query string) BoardView {
	query = strings.TrimSpace(query)
	if query == "" {
		return v
	}
	out := BoardView{ID: v.ID, Name: v.Name, Columns: make([]ColumnView, len(v.Columns))}
	for ci, col := range v.Columns {
		titles := make([]string, len(col.Tasks))
		for i, t := range col.Tasks {
			titles[i] = t.Title
		}
		matches := fuzzy.Find(query, titles)
		indices := make([]int, len(matches))
		for i, match := range matches {
			indices[i] = match.Index
		}
		sort.Ints(indices)

		tasks := make([]TaskView, len(indices))
		for i, idx := range indices {
			tasks[i] = col.Tasks[idx]
		}
		out.Columns[ci] = ColumnView{ID: col.ID, Name: col.Name, Tasks: tasks}
	}
	return out
}
