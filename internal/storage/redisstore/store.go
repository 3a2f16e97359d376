// Package redisstore implements the record store on Redis.
//
// Layout:
//
//	game:{id}        JSON encoded models.Game
//	game:{id}:moves  hash of move_number -> JSON encoded models.Move
//	games:created    sorted set of game IDs scored by creation time (ms)
//
// Games and their move hashes share the configured TTL (0 = no expiration).
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const createdIndexKey = "games:created"

// Store implements storage.RecordStore using Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", logger.F("addr", cfg.Addr), logger.Int("db", cfg.DB))
	return NewStoreWithClient(client, cfg.TTL, log), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// CreateGame stores a new game under a fresh ID.
func (s *Store) CreateGame(ctx context.Context, game *models.Game) (string, error) {
	stored := *game
	stored.ID = uuid.New().String()
	stored.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	stored.UpdatedAt = stored.CreatedAt

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal game: %w", err)
	}

	ok, err := s.client.SetNX(ctx, gameKey(stored.ID), data, s.ttl).Result()
	if err != nil {
		s.logger.Error("Failed to create game in Redis", logger.F("game_id", stored.ID), logger.Err(err))
		return "", fmt.Errorf("failed to store game: %w", err)
	}
	if !ok {
		return "", storage.ErrGameExists
	}

	err = s.client.ZAdd(ctx, createdIndexKey, redis.Z{
		Score:  float64(stored.CreatedAt.UnixMilli()),
		Member: stored.ID,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to index game: %w", err)
	}

	game.ID = stored.ID
	game.CreatedAt = stored.CreatedAt
	game.UpdatedAt = stored.UpdatedAt
	return stored.ID, nil
}

// GetGame retrieves a game from Redis.
func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	data, err := s.client.Get(ctx, gameKey(gameID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return decodeGame(data)
}

// UpdateGame replaces the snapshot of an existing game.
func (s *Store) UpdateGame(ctx context.Context, game *models.Game) error {
	stored, err := s.GetGame(ctx, game.ID)
	if err != nil {
		return err
	}

	stored.Snapshot = game.Snapshot
	stored.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}

	// SetXX refreshes the TTL and fails if the game expired in between.
	ok, err := s.client.SetXX(ctx, gameKey(game.ID), data, s.ttl).Result()
	if err != nil {
		s.logger.Error("Failed to update game in Redis", logger.F("game_id", game.ID), logger.Err(err))
		return fmt.Errorf("failed to update game: %w", err)
	}
	if !ok {
		return storage.ErrGameNotFound
	}

	game.PlayerName = stored.PlayerName
	game.CreatedAt = stored.CreatedAt
	game.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteGame deletes a game, its moves and its index entry.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, gameKey(gameID), movesKey(gameID))
		pipe.ZRem(ctx, createdIndexKey, gameID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

// ListGames returns all games, newest first.
func (s *Store) ListGames(ctx context.Context) ([]*models.Game, error) {
	ids, err := s.client.ZRevRange(ctx, createdIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read game index: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Game{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	games := make([]*models.Game, 0, len(values))
	var expired []any
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		game, err := decodeGame(data)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, createdIndexKey, expired...).Err(); err != nil {
			s.logger.Warn("Failed to prune expired games from index", logger.Err(err))
		}
	}

	storage.SortNewestFirst(games)
	return games, nil
}

// ListActiveGames returns unfinished games, most recently updated first.
func (s *Store) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	games, err := s.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	active := storage.FilterActive(games)
	storage.SortRecentlyUpdated(active)
	return active, nil
}

// AppendMove stores a move if its number is still free.
func (s *Store) AppendMove(ctx context.Context, move *models.Move) error {
	exists, err := s.client.Exists(ctx, gameKey(move.GameID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check game existence: %w", err)
	}
	if exists == 0 {
		return storage.ErrGameNotFound
	}

	stored := *move
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal move: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, movesKey(move.GameID), strconv.Itoa(move.Number), data).Result()
	if err != nil {
		s.logger.Error("Failed to append move in Redis",
			logger.F("game_id", move.GameID),
			logger.Int("move_number", move.Number),
			logger.Err(err))
		return fmt.Errorf("failed to append move: %w", err)
	}
	if !ok {
		return storage.ErrMoveExists
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, movesKey(move.GameID), s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set move log ttl: %w", err)
		}
	}

	move.CreatedAt = stored.CreatedAt
	return nil
}

// ListMoves returns a game's moves in ascending order.
func (s *Store) ListMoves(ctx context.Context, gameID string) ([]*models.Move, error) {
	values, err := s.client.HVals(ctx, movesKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}

	moves := make([]*models.Move, 0, len(values))
	for _, data := range values {
		var move models.Move
		if err := json.Unmarshal([]byte(data), &move); err != nil {
			return nil, fmt.Errorf("failed to unmarshal move: %w", err)
		}
		moves = append(moves, &move)
	}
	storage.SortMoves(moves)
	return moves, nil
}

// NextMoveNumber returns the highest move number plus one.
func (s *Store) NextMoveNumber(ctx context.Context, gameID string) (int, error) {
	fields, err := s.client.HKeys(ctx, movesKey(gameID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read move numbers: %w", err)
	}
	return nextFromFields(fields)
}

func nextFromFields(fields []string) (int, error) {
	highest := 0
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return 0, fmt.Errorf("invalid move number %q: %w", field, err)
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func decodeGame(data string) (*models.Game, error) {
	var game models.Game
	if err := json.Unmarshal([]byte(data), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &game, nil
}

// gameKey generates a Redis key for a game.
func gameKey(id string) string {
	return fmt.Sprintf("game:%s", id)
}

// movesKey generates a Redis key for a game's move log.
func movesKey(id string) string {
	return fmt.Sprintf("game:%s:moves", id)
}

var _ storage.RecordStore = (*Store)(nil)
