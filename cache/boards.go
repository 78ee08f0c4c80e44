package cache

import (
	"context"

	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// Source loads the authoritative board state.
type Source interface {
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	ListBoards(ctx context.Context) ([]domain.BoardSummary, error)
}

// Boards holds the per-board entries (keyed by board id) and the board-list
// entries (keyed by actor id) for one session.
type Boards struct {
	Board *Store[*domain.Board]
	Lists *Store[[]domain.BoardSummary]
}

// NewBoards creates empty board caches backed by src.
func NewBoards(src Source, logger *log.Logger) *Boards {
	return &Boards{
		Board: NewStore[*domain.Board]("boards", func(ctx context.Context, boardID string) (*domain.Board, error) {
			return src.FetchBoard(ctx, boardID)
		}, logger),
		Lists: NewStore[[]domain.BoardSummary]("board-lists", func(ctx context.Context, _ string) ([]domain.BoardSummary, error) {
			return src.ListBoards(ctx)
		}, logger),
	}
}

// EvictBoard drops a deleted board and marks every board list stale.
func (b *Boards) EvictBoard(boardID string) {
	b.Board.Evict(boardID)
	b.Lists.InvalidateAll()
}

// InvalidateBoard marks a board and every board list stale.
func (b *Boards) InvalidateBoard(boardID string) {
	b.Board.Invalidate(boardID)
	b.Lists.InvalidateAll()
}

// Clear drops everything; called at logout.
func (b *Boards) Clear() {
	b.Board.Clear()
	b.Lists.Clear()
}
