package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minesweeper-replay/internal/models"
)

// MemoryStorage provides in-memory storage for games and moves
type MemoryStorage struct {
	mu    sync.RWMutex
	games map[string]*models.Game
	order []string // game IDs in creation order
	moves map[string][]*models.Move
	now   func() time.Time
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		games: make(map[string]*models.Game),
		moves: make(map[string][]*models.Move),
		now:   time.Now,
	}
}

// CreateGame stores a copy of the game under a fresh ID
func (s *MemoryStorage) CreateGame(ctx context.Context, game *models.Game) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	if _, exists := s.games[id]; exists {
		return "", ErrGameExists
	}

	now := s.now().UTC()
	stored := *game
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.games[id] = &stored
	s.order = append(s.order, id)

	game.ID = id
	game.CreatedAt = now
	game.UpdatedAt = now
	return id, nil
}

// GetGame retrieves a game by ID
func (s *MemoryStorage) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, exists := s.games[gameID]
	if !exists {
		return nil, ErrGameNotFound
	}

	out := *game
	return &out, nil
}

// UpdateGame replaces a game's snapshot
func (s *MemoryStorage) UpdateGame(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.games[game.ID]
	if !exists {
		return ErrGameNotFound
	}

	stored.Snapshot = game.Snapshot
	stored.UpdatedAt = s.now().UTC()

	game.PlayerName = stored.PlayerName
	game.CreatedAt = stored.CreatedAt
	game.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteGame removes a game and its moves
func (s *MemoryStorage) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.games, gameID)
	delete(s.moves, gameID)
	for i, id := range s.order {
		if id == gameID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListGames retrieves all games, newest first
func (s *MemoryStorage) ListGames(ctx context.Context) ([]*models.Game, error) {
	games := s.snapshotGames()
	SortNewestFirst(games)
	return games, nil
}

// ListActiveGames retrieves unfinished games, most recently updated first
func (s *MemoryStorage) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	games := FilterActive(s.snapshotGames())
	SortRecentlyUpdated(games)
	return games, nil
}

// snapshotGames copies the games, latest insertion first, so that stable
// sorts break timestamp ties towards newer games.
func (s *MemoryStorage) snapshotGames() []*models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]*models.Game, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		game := *s.games[s.order[i]]
		games = append(games, &game)
	}
	return games
}

// AppendMove appends a move to a game's log
func (s *MemoryStorage) AppendMove(ctx context.Context, move *models.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[move.GameID]; !exists {
		return ErrGameNotFound
	}
	for _, existing := range s.moves[move.GameID] {
		if existing.Number == move.Number {
			return ErrMoveExists
		}
	}

	stored := *move
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	move.CreatedAt = stored.CreatedAt
	s.moves[move.GameID] = append(s.moves[move.GameID], &stored)
	return nil
}

// ListMoves retrieves a game's moves by ascending number
func (s *MemoryStorage) ListMoves(ctx context.Context, gameID string) ([]*models.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moves := make([]*models.Move, 0, len(s.moves[gameID]))
	for _, move := range s.moves[gameID] {
		m := *move
		moves = append(moves, &m)
	}
	SortMoves(moves)
	return moves, nil
}

// NextMoveNumber returns the next free move number for a game
func (s *MemoryStorage) NextMoveNumber(ctx context.Context, gameID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for _, move := range s.moves[gameID] {
		if move.Number > highest {
			highest = move.Number
		}
	}
	return highest + 1, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStorage) Close() error {
	return nil
}
