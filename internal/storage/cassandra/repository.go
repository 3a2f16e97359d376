package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/pkg/logger"
)

// Repository implements storage.RecordStore using Cassandra
type Repository struct {
	client  *Client
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRepository creates a new Cassandra-based record store
func NewRepository(client *Client, log *logger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		client:  client,
		logger:  log,
		timeout: timeout,
		now:     time.Now,
	}
}

// queryContext applies the configured timeout unless ctx already has a deadline
func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	queryCtx, cancel := ctx, context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		queryCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}

	select {
	case <-queryCtx.Done():
		cancel()
		return nil, nil, fmt.Errorf("context cancelled: %w", queryCtx.Err())
	default:
	}
	return queryCtx, cancel, nil
}

func (r *Repository) table(name string) string {
	return r.client.Keyspace() + "." + name
}

// CreateGame inserts a game under a fresh ID
func (r *Repository) CreateGame(ctx context.Context, game *models.Game) (string, error) {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	id := uuid.New().String()
	now := r.now().UTC().Truncate(time.Millisecond)

	query := fmt.Sprintf(`
		INSERT INTO %s (game_id, player_name, board_rows, board_cols, mines, board_state, visible_state,
			game_over, game_won, opened_cells, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		IF NOT EXISTS`, r.table("games"))

	applied, err := r.client.Session().Query(query,
		id,
		game.PlayerName,
		game.Rows,
		game.Cols,
		game.Mines,
		game.BoardState,
		game.VisibleState,
		game.GameOver,
		game.GameWon,
		game.OpenedCells,
		now,
		now,
	).WithContext(queryCtx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		r.logger.Error("Failed to create game in Cassandra", logger.F("game_id", id), logger.Err(err))
		return "", fmt.Errorf("failed to create game: %w", err)
	}
	if !applied {
		return "", storage.ErrGameExists
	}

	game.ID = id
	game.CreatedAt = now
	game.UpdatedAt = now

	r.logger.Debug("Game created", logger.F("game_id", id))
	return id, nil
}

// GetGame retrieves a game by ID
func (r *Repository) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`
		SELECT game_id, player_name, board_rows, board_cols, mines, board_state, visible_state,
			game_over, game_won, opened_cells, created_at, updated_at
		FROM %s
		WHERE game_id = ?`, r.table("games"))

	var game models.Game
	err = r.client.Session().Query(query, gameID).WithContext(queryCtx).Scan(gameDest(&game)...)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrGameNotFound
		}
		r.logger.Error("Failed to get game from Cassandra", logger.F("game_id", gameID), logger.Err(err))
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &game, nil
}

// UpdateGame replaces the snapshot of an existing game
func (r *Repository) UpdateGame(ctx context.Context, game *models.Game) error {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	now := r.now().UTC().Truncate(time.Millisecond)
	query := fmt.Sprintf(`
		UPDATE %s
		SET board_state = ?, visible_state = ?, game_over = ?, game_won = ?, opened_cells = ?, updated_at = ?
		WHERE game_id = ?
		IF EXISTS`, r.table("games"))

	applied, err := r.client.Session().Query(query,
		game.BoardState,
		game.VisibleState,
		game.GameOver,
		game.GameWon,
		game.OpenedCells,
		now,
		game.ID,
	).WithContext(queryCtx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		r.logger.Error("Failed to update game in Cassandra", logger.F("game_id", game.ID), logger.Err(err))
		return fmt.Errorf("failed to update game: %w", err)
	}
	if !applied {
		return storage.ErrGameNotFound
	}

	game.UpdatedAt = now
	r.logger.Debug("Game updated", logger.F("game_id", game.ID))
	return nil
}

// DeleteGame removes a game and its move partition
func (r *Repository) DeleteGame(ctx context.Context, gameID string) error {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	batch := r.client.Session().NewBatch(gocql.LoggedBatch).WithContext(queryCtx)
	batch.Query(fmt.Sprintf(`DELETE FROM %s WHERE game_id = ?`, r.table("moves")), gameID)
	batch.Query(fmt.Sprintf(`DELETE FROM %s WHERE game_id = ?`, r.table("games")), gameID)

	if err := r.client.Session().ExecuteBatch(batch); err != nil {
		r.logger.Error("Failed to delete game in Cassandra", logger.F("game_id", gameID), logger.Err(err))
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

// ListGames scans the games table and returns the newest first
func (r *Repository) ListGames(ctx context.Context) ([]*models.Game, error) {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`
		SELECT game_id, player_name, board_rows, board_cols, mines, board_state, visible_state,
			game_over, game_won, opened_cells, created_at, updated_at
		FROM %s`, r.table("games"))

	iter := r.client.Session().Query(query).WithContext(queryCtx).Iter()

	games := make([]*models.Game, 0)
	var game models.Game
	for iter.Scan(gameDest(&game)...) {
		g := game
		games = append(games, &g)
	}

	if err := iter.Close(); err != nil {
		r.logger.Error("Failed to list games from Cassandra", logger.Err(err))
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	storage.SortNewestFirst(games)
	return games, nil
}

// ListActiveGames returns unfinished games, most recently updated first
func (r *Repository) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	games, err := r.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	active := storage.FilterActive(games)
	storage.SortRecentlyUpdated(active)
	return active, nil
}

// AppendMove inserts a move unless its number is taken
func (r *Repository) AppendMove(ctx context.Context, move *models.Move) error {
	if _, err := r.GetGame(ctx, move.GameID); err != nil {
		return err
	}

	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	createdAt := move.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC().Truncate(time.Millisecond)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (game_id, move_number, cell_row, cell_col, action, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		IF NOT EXISTS`, r.table("moves"))

	applied, err := r.client.Session().Query(query,
		move.GameID,
		move.Number,
		move.Row,
		move.Col,
		string(move.Action),
		move.Result,
		createdAt,
	).WithContext(queryCtx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		r.logger.Error("Failed to append move in Cassandra",
			logger.F("game_id", move.GameID),
			logger.Int("move_number", move.Number),
			logger.Err(err))
		return fmt.Errorf("failed to append move: %w", err)
	}
	if !applied {
		return storage.ErrMoveExists
	}

	move.CreatedAt = createdAt
	return nil
}

// ListMoves reads a game's partition in clustering order
func (r *Repository) ListMoves(ctx context.Context, gameID string) ([]*models.Move, error) {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`
		SELECT game_id, move_number, cell_row, cell_col, action, result, created_at
		FROM %s
		WHERE game_id = ?`, r.table("moves"))

	iter := r.client.Session().Query(query, gameID).WithContext(queryCtx).Iter()

	moves := make([]*models.Move, 0)
	var (
		move   models.Move
		action string
	)
	for iter.Scan(&move.GameID, &move.Number, &move.Row, &move.Col, &action, &move.Result, &move.CreatedAt) {
		m := move
		m.Action = models.Action(action)
		moves = append(moves, &m)
	}

	if err := iter.Close(); err != nil {
		r.logger.Error("Failed to list moves from Cassandra", logger.F("game_id", gameID), logger.Err(err))
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	return moves, nil
}

// NextMoveNumber reads the highest clustering key of the game's partition
func (r *Repository) NextMoveNumber(ctx context.Context, gameID string) (int, error) {
	queryCtx, cancel, err := r.queryContext(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	query := fmt.Sprintf(`
		SELECT move_number FROM %s
		WHERE game_id = ?
		ORDER BY move_number DESC
		LIMIT 1`, r.table("moves"))

	var highest int
	err = r.client.Session().Query(query, gameID).WithContext(queryCtx).Scan(&highest)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read move numbers: %w", err)
	}
	return highest + 1, nil
}

// Close closes the underlying client
func (r *Repository) Close() error {
	r.client.Close()
	return nil
}

func gameDest(game *models.Game) []any {
	return []any{
		&game.ID,
		&game.PlayerName,
		&game.Rows,
		&game.Cols,
		&game.Mines,
		&game.BoardState,
		&game.VisibleState,
		&game.GameOver,
		&game.GameWon,
		&game.OpenedCells,
		&game.CreatedAt,
		&game.UpdatedAt,
	}
}

var _ storage.RecordStore = (*Repository)(nil)
