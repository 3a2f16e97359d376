package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/minesweeper-replay/internal/board"
	"github.com/minesweeper-replay/internal/codec"
	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/pkg/logger"
)

// DefaultPlayerName is used when a game is started without a name
const DefaultPlayerName = "Player"

// Move outcomes recorded in the log
const (
	ResultExploded  = "exploded"
	ResultWon       = "won"
	ResultSafe      = "safe"
	ResultFlagged   = "flagged"
	ResultUnflagged = "unflagged"
)

var playerNamePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)

// Errors
var (
	ErrInvalidPlayerName = errors.New("player name may only contain letters and spaces")
	ErrInvalidParameters = errors.New("invalid board parameters")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidStep       = errors.New("replay step out of range")
	ErrGameFinished      = errors.New("game is already finished")
)

// PersistError reports a storage failure after a move was applied to the
// in-memory board. The move is not rolled back.
type PersistError struct {
	Step string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Step, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Session is a stored game together with its decoded board
type Session struct {
	Game  *models.Game
	Board *board.Board
}

// MoveResult is the outcome of Play
type MoveResult struct {
	Applied  bool
	Recorded bool
	Move     *models.Move
	Session  *Session
}

// Replay is a game with its move log and reconstructed boards
type Replay struct {
	Game      *models.Game
	Moves     []*models.Move
	Final     *board.Board
	Step      int
	StepBoard *board.Board
}

// GameService handles game-related business logic
type GameService struct {
	store  storage.RecordStore
	limits config.GameConfig
	logger *logger.Logger
	locks  *keyedMutex
}

// NewGameService creates a new game service
func NewGameService(store storage.RecordStore, limits config.GameConfig, log *logger.Logger) *GameService {
	return &GameService{
		store:  store,
		limits: limits,
		logger: log,
		locks:  newKeyedMutex(),
	}
}

// StartGame validates the request, generates a board and stores it
func (s *GameService) StartGame(ctx context.Context, req models.StartGameRequest, opts ...board.Option) (*Session, error) {
	name, err := normalizePlayerName(req.PlayerName)
	if err != nil {
		return nil, err
	}

	rows, cols, mines := req.Rows, req.Cols, req.Mines
	if rows == 0 {
		rows = s.limits.DefaultRows
	}
	if cols == 0 {
		cols = s.limits.DefaultCols
	}
	if mines == 0 {
		mines = s.limits.DefaultMines
	}
	if err := s.validateParameters(rows, cols, mines); err != nil {
		return nil, err
	}

	b, err := board.New(rows, cols, mines, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	snapshot, err := codec.Encode(b)
	if err != nil {
		return nil, err
	}

	game := &models.Game{PlayerName: name, Snapshot: snapshot}
	if _, err := s.store.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	s.logger.Info("Game started",
		logger.F("game_id", game.ID),
		logger.F("player", name),
		logger.Int("rows", rows),
		logger.Int("cols", cols),
		logger.Int("mines", mines))

	return &Session{Game: game, Board: b}, nil
}

func normalizePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlayerName, nil
	}
	if !playerNamePattern.MatchString(name) {
		return "", ErrInvalidPlayerName
	}
	return name, nil
}

func (s *GameService) validateParameters(rows, cols, mines int) error {
	switch {
	case rows < 1 || cols < 1:
		return fmt.Errorf("%w: board must be at least 1x1", ErrInvalidParameters)
	case rows > s.limits.MaxRows || cols > s.limits.MaxCols:
		return fmt.Errorf("%w: board may be at most %dx%d", ErrInvalidParameters, s.limits.MaxRows, s.limits.MaxCols)
	case mines < 1 || mines >= rows*cols:
		return fmt.Errorf("%w: mines must be between 1 and %d", ErrInvalidParameters, rows*cols-1)
	}
	return nil
}

// GetGame loads a game and decodes its board
func (s *GameService) GetGame(ctx context.Context, gameID string) (*Session, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	b, err := codec.Decode(game.Snapshot)
	if err != nil {
		s.logger.Error("Stored game is corrupt", logger.F("game_id", gameID), logger.Err(err))
		return nil, err
	}
	return &Session{Game: game, Board: b}, nil
}

// ResumeGame loads an unfinished game for play
func (s *GameService) ResumeGame(ctx context.Context, gameID string) (*Session, error) {
	session, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if session.Board.IsTerminal() {
		return nil, ErrGameFinished
	}
	return session, nil
}

// Play applies an action to a game. A move is recorded when it changed
// the board or the game is now finished; every recorded move is followed by
// a snapshot update. On a PersistError the returned result still carries
// the mutated session.
func (s *GameService) Play(ctx context.Context, gameID string, req models.MoveRequest) (*MoveResult, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	unlock := s.locks.Lock(gameID)
	defer unlock()

	session, err := s.ResumeGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	b := session.Board
	var applied bool
	switch req.Action {
	case models.ActionOpen:
		applied = b.Open(req.Row, req.Col)
	case models.ActionFlag:
		applied = b.Flag(req.Row, req.Col)
	}

	result := &MoveResult{Applied: applied, Session: session}
	if !applied && !b.IsTerminal() {
		return result, nil
	}

	snapshot, err := codec.Encode(b)
	if err != nil {
		return result, &PersistError{Step: "encode board", Err: err}
	}
	session.Game.Snapshot = snapshot

	number, err := s.store.NextMoveNumber(ctx, gameID)
	if err != nil {
		return result, s.persistFailed(gameID, "allocate move number", err)
	}

	move := &models.Move{
		GameID: gameID,
		Number: number,
		Row:    req.Row,
		Col:    req.Col,
		Action: req.Action,
		Result: outcome(req.Action, b, req.Row, req.Col),
	}
	if err := s.store.AppendMove(ctx, move); err != nil {
		return result, s.persistFailed(gameID, "append move", err)
	}
	result.Recorded = true
	result.Move = move

	if err := s.store.UpdateGame(ctx, session.Game); err != nil {
		return result, s.persistFailed(gameID, "update game", err)
	}

	s.logger.Debug("Move recorded",
		logger.F("game_id", gameID),
		logger.Int("move_number", number),
		logger.F("action", string(req.Action)),
		logger.F("result", move.Result))

	return result, nil
}

func (s *GameService) persistFailed(gameID, step string, err error) error {
	s.logger.Error("Failed to persist move", logger.F("game_id", gameID), logger.F("step", step), logger.Err(err))
	return &PersistError{Step: step, Err: err}
}

// outcome describes what an applied action did to the board
func outcome(action models.Action, b *board.Board, row, col int) string {
	switch action {
	case models.ActionFlag:
		if v, _ := b.Visibility(row, col); v == board.Flagged {
			return ResultFlagged
		}
		return ResultUnflagged
	default:
		switch {
		case b.IsOver():
			return ResultExploded
		case b.IsWon():
			return ResultWon
		default:
			return ResultSafe
		}
	}
}

// Save re-persists the current snapshot of a game
func (s *GameService) Save(ctx context.Context, gameID string) (*Session, error) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	session, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	snapshot, err := codec.Encode(session.Board)
	if err != nil {
		return nil, err
	}
	session.Game.Snapshot = snapshot

	if err := s.store.UpdateGame(ctx, session.Game); err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}

	s.logger.Info("Game saved", logger.F("game_id", gameID))
	return session, nil
}

// ListGames returns all games newest first, or only unfinished ones
func (s *GameService) ListGames(ctx context.Context, activeOnly bool) ([]*models.Game, error) {
	if activeOnly {
		return s.store.ListActiveGames(ctx)
	}
	return s.store.ListGames(ctx)
}

// ListMoves returns the move log of an existing game
func (s *GameService) ListMoves(ctx context.Context, gameID string) ([]*models.Move, error) {
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.store.ListMoves(ctx, gameID)
}

// Replay returns a game, its move log and the board after the first step
// moves. A negative step replays the whole log.
func (s *GameService) Replay(ctx context.Context, gameID string, step int) (*Replay, error) {
	session, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	moves, err := s.store.ListMoves(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}

	if step < 0 {
		step = len(moves)
	}
	if step > len(moves) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidStep, step, len(moves))
	}

	return &Replay{
		Game:      session.Game,
		Moves:     moves,
		Final:     session.Board,
		Step:      step,
		StepBoard: applyMoves(session.Board.Fresh(), moves[:step]),
	}, nil
}

// applyMoves replays logged moves onto b in order
func applyMoves(b *board.Board, moves []*models.Move) *board.Board {
	for _, move := range moves {
		switch move.Action {
		case models.ActionOpen:
			b.Open(move.Row, move.Col)
		case models.ActionFlag:
			b.Flag(move.Row, move.Col)
		}
	}
	return b
}

// DeleteGame removes a game and its move log
func (s *GameService) DeleteGame(ctx context.Context, gameID string) error {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	if err := s.store.DeleteGame(ctx, gameID); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}

	s.logger.Info("Game deleted", logger.F("game_id", gameID))
	return nil
}
