package api

import (
	"context"

	"kanban-board/board-service/storage"
	"kanban-board/domain"
)

const maxBodySize = 64 * 1024 // 64 KiB

// Storage abstracts persistence for handlers.
type Storage interface {
	storage.Backend
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// ReplayGuard rejects mutations whose Idempotency-Key was already used.
type ReplayGuard interface {
	Claim(ctx context.Context, userID, key string) (bool, error)
	Release(ctx context.Context, userID, key string) error
}

// ChangeNotifier announces board changes to subscribed clients.
type ChangeNotifier interface {
	Notify(change domain.BoardChange)
}

type boardsResponse struct {
	Boards []domain.BoardSummary `json:"boards"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

type moveRequest struct {
	SourceColumnID string `json:"sourceColumnId"`
	TargetColumnID string `json:"targetColumnId"`
}
