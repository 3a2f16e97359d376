package storage

import (
	"context"
	"sort"

	"github.com/minesweeper-replay/internal/models"
)

// RecordStore keeps game snapshots and their move logs.
// It is implemented by the in-memory, SQLite, Redis and Cassandra stores.
type RecordStore interface {
	// CreateGame stores a new game, assigns its ID and timestamps, and returns the ID.
	CreateGame(ctx context.Context, game *models.Game) (string, error)

	// GetGame returns the game or ErrGameNotFound.
	GetGame(ctx context.Context, gameID string) (*models.Game, error)

	// UpdateGame replaces the stored snapshot and refreshes UpdatedAt.
	// Player name and CreatedAt are kept. Returns ErrGameNotFound.
	UpdateGame(ctx context.Context, game *models.Game) error

	// DeleteGame removes the game and its moves. Missing games are not an error.
	DeleteGame(ctx context.Context, gameID string) error

	// ListGames returns every game, newest first.
	ListGames(ctx context.Context) ([]*models.Game, error)

	// ListActiveGames returns unfinished games, most recently updated first.
	ListActiveGames(ctx context.Context) ([]*models.Game, error)

	// AppendMove adds a move to a game's log. Returns ErrMoveExists on a
	// duplicate move number.
	AppendMove(ctx context.Context, move *models.Move) error

	// ListMoves returns a game's moves by ascending move number.
	ListMoves(ctx context.Context, gameID string) ([]*models.Move, error)

	// NextMoveNumber returns the highest move number plus one, or 1.
	NextMoveNumber(ctx context.Context, gameID string) (int, error)

	// Close releases the underlying handle.
	Close() error
}

// Errors
var (
	ErrGameNotFound = &StorageError{Message: "game not found"}
	ErrGameExists   = &StorageError{Message: "game already exists"}
	ErrMoveExists   = &StorageError{Message: "move already exists"}
)

// StorageError represents a storage error
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

// SortNewestFirst orders games by creation time, newest first
func SortNewestFirst(games []*models.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
}

// SortRecentlyUpdated orders games by update time, most recent first
func SortRecentlyUpdated(games []*models.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].UpdatedAt.After(games[j].UpdatedAt)
	})
}

// FilterActive keeps the games that are neither lost nor won
func FilterActive(games []*models.Game) []*models.Game {
	active := make([]*models.Game, 0, len(games))
	for _, game := range games {
		if !game.Finished() {
			active = append(active, game)
		}
	}
	return active
}

// SortMoves orders moves by ascending move number
func SortMoves(moves []*models.Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].Number < moves[j].Number
	})
}
