package domain

// SuggestionKind names what an assistant suggestion proposes.
type SuggestionKind string

const (
	SuggestionBoardStructure  SuggestionKind = "board_structure"
	SuggestionTaskBreakdown   SuggestionKind = "task_breakdown"
	SuggestionTaskImprovement SuggestionKind = "task_improvement"
)

// SuggestionStatus tracks whether a suggestion has been acted upon.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// SuggestedItem is a proposed task or subtask.
type SuggestedItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SuggestedColumn is a proposed column with its initial tasks.
type SuggestedColumn struct {
	Name  string          `json:"name"`
	Tasks []SuggestedItem `json:"tasks,omitempty"`
}

// Suggestion is a board change proposed by the chat assistant. Kind decides
// which fields are meaningful:
//   - board_structure: BoardName (new board) or BoardID (existing board) and Columns
//   - task_breakdown: BoardID, TaskID and Subtasks
//   - task_improvement: BoardID, TaskID, Title and Description
type Suggestion struct {
	ID          string            `json:"id"`
	Kind        SuggestionKind    `json:"kind"`
	Status      SuggestionStatus  `json:"status"`
	BoardID     string            `json:"boardId,omitempty"`
	BoardName   string            `json:"boardName,omitempty"`
	TaskID      string            `json:"taskId,omitempty"`
	Columns     []SuggestedColumn `json:"columns,omitempty"`
	Subtasks    []SuggestedItem   `json:"subtasks,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Validate checks that the fields required by Kind are present.
func (s Suggestion) Validate() error {
	const op = "suggestion"
	if s.Status != "" && s.Status != SuggestionPending {
		return Validationf(op, "suggestion %s is already %s", s.ID, s.Status)
	}
	switch s.Kind {
	case SuggestionBoardStructure:
		if s.BoardID == "" && s.BoardName == "" {
			return Validationf(op, "board structure needs a board id or name")
		}
		if len(s.Columns) == 0 {
			return Validationf(op, "board structure has no columns")
		}
		for _, c := range s.Columns {
			if c.Name == "" {
				return Validationf(op, "board structure has an unnamed column")
			}
		}
	case SuggestionTaskBreakdown:
		if s.BoardID == "" || s.TaskID == "" {
			return Validationf(op, "task breakdown needs board and task ids")
		}
		if len(s.Subtasks) == 0 {
			return Validationf(op, "task breakdown has no subtasks")
		}
	case SuggestionTaskImprovement:
		if s.BoardID == "" || s.TaskID == "" {
			return Validationf(op, "task improvement needs board and task ids")
		}
		if s.Title == "" && s.Description == "" {
			return Validationf(op, "task improvement changes nothing")
		}
	default:
		return Validationf(op, "unknown kind %q", s.Kind)
	}
	return nil
}
