package domain

const (
	BoardUpdated = "board-updated"
	BoardDeleted = "board-deleted"
)

// BoardChange is published whenever a board is mutated on the backend.
// ClientID names the session that caused the change so it can skip its own
// echo.
type BoardChange struct {
	Type     string `json:"type"`
	BoardID  string `json:"boardId"`
	ActorID  string `json:"actorId,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}
