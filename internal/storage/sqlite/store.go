// Package sqlite provides a SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/internal/storage/sqlite/migrations"
	"github.com/minesweeper-replay/pkg/logger"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const gameColumns = `id, player_name, board_rows, board_cols, mines, board_state, visible_state,
	game_over, game_won, opened_cells, created_at, updated_at`

// Store persists games and moves in SQLite.
type Store struct {
	sqlDB  *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite record store and applies embedded migrations.
func Open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Opened SQLite record store", logger.F("path", path))
	return &Store{sqlDB: sqlDB, logger: log, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateGame inserts a game under a fresh ID.
func (s *Store) CreateGame(ctx context.Context, game *models.Game) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := s.now().UTC()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", storage.ErrGameExists
		}
		s.logger.Error("Failed to create game in SQLite", logger.Err(err))
		return "", fmt.Errorf("create game: %w", err)
	}

	game.ID = id
	game.CreatedAt = fromMillis(toMillis(now))
	game.UpdatedAt = game.CreatedAt

	s.logger.Debug("Game created", logger.F("game_id", id))
	return id, nil
}

// GetGame returns one game by ID.
func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, gameID)
	game, err := scanGame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrGameNotFound
		}
		s.logger.Error("Failed to get game from SQLite", logger.F("game_id", gameID), logger.Err(err))
		return nil, fmt.Errorf("get game: %w", err)
	}
	return game, nil
}

// UpdateGame replaces the snapshot of an existing game.
func (s *Store) UpdateGame(ctx context.Context, game *models.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE games
		 SET board_state = ?, visible_state = ?, game_over = ?, game_won = ?, opened_cells = ?, updated_at = ?
		 WHERE id = ?`,
		game.BoardState,
		game.VisibleState,
		game.GameOver,
		game.GameWon,
		game.OpenedCells,
		toMillis(now),
		game.ID,
	)
	if err != nil {
		s.logger.Error("Failed to update game in SQLite", logger.F("game_id", game.ID), logger.Err(err))
		return fmt.Errorf("update game: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrGameNotFound
	}

	game.UpdatedAt = fromMillis(toMillis(now))
	s.logger.Debug("Game updated", logger.F("game_id", game.ID))
	return nil
}

// DeleteGame removes a game and its moves in one transaction.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM moves WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete moves: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, gameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to delete game in SQLite", logger.F("game_id", gameID), logger.Err(err))
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// ListGames returns all games, newest first.
func (s *Store) ListGames(ctx context.Context) ([]*models.Game, error) {
	return s.queryGames(ctx, `SELECT `+gameColumns+` FROM games ORDER BY created_at DESC, rowid DESC`)
}

// ListActiveGames returns unfinished games, most recently updated first.
func (s *Store) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	return s.queryGames(ctx, `SELECT `+gameColumns+` FROM games
		WHERE game_over = 0 AND game_won = 0
		ORDER BY updated_at DESC, rowid DESC`)
}

func (s *Store) queryGames(ctx context.Context, query string, args ...any) ([]*models.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list games from SQLite", logger.Err(err))
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// AppendMove adds a move for an existing game.
func (s *Store) AppendMove(ctx context.Context, move *models.Move) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	createdAt := move.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO moves (game_id, move_number, cell_row, cell_col, action, result, created_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM games WHERE id = ?)`,
		move.GameID,
		move.Number,
		move.Row,
		move.Col,
		string(move.Action),
		move.Result,
		toMillis(createdAt),
		move.GameID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrMoveExists
		}
		s.logger.Error("Failed to append move in SQLite",
			logger.F("game_id", move.GameID),
			logger.Int("move_number", move.Number),
			logger.Err(err))
		return fmt.Errorf("append move: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append move rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrGameNotFound
	}

	move.CreatedAt = fromMillis(toMillis(createdAt))
	return nil
}

// ListMoves returns a game's moves in ascending order.
func (s *Store) ListMoves(ctx context.Context, gameID string) ([]*models.Move, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT game_id, move_number, cell_row, cell_col, action, result, created_at
		 FROM moves WHERE game_id = ? ORDER BY move_number ASC`, gameID)
	if err != nil {
		s.logger.Error("Failed to list moves from SQLite", logger.F("game_id", gameID), logger.Err(err))
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	moves := make([]*models.Move, 0)
	for rows.Next() {
		var (
			move      models.Move
			action    string
			createdAt int64
		)
		if err := rows.Scan(&move.GameID, &move.Number, &move.Row, &move.Col, &action, &move.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		move.Action = models.Action(action)
		move.CreatedAt = fromMillis(createdAt)
		moves = append(moves, &move)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}

// NextMoveNumber returns the highest move number plus one.
func (s *Store) NextMoveNumber(ctx context.Context, gameID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var highest int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(move_number), 0) FROM moves WHERE game_id = ?`, gameID,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max move number: %w", err)
	}
	return highest + 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var (
		game                 models.Game
		createdAt, updatedAt int64
	)
	err := row.Scan(
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	game.CreatedAt = fromMillis(createdAt)
	game.UpdatedAt = fromMillis(updatedAt)
	return &game, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.RecordStore = (*Store)(nil)
