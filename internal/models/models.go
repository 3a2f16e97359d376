package models

import (
	"time"

	"github.com/minesweeper-replay/internal/codec"
)

// Game statuses as shown in listings
const (
	StatusActive = "active"
	StatusLost   = "lost"
	StatusWon    = "won"
)

// Action is what a player did to a cell
type Action string

const (
	ActionOpen Action = "open"
	ActionFlag Action = "flag"
)

// Valid reports whether the action is known
func (a Action) Valid() bool {
	return a == ActionOpen || a == ActionFlag
}

// Game is a stored game session: player metadata plus the encoded board.
// CreatedAt and UpdatedAt are owned by the store.
type Game struct {
	ID         string `json:"id"`
	PlayerName string `json:"player_name"`
	codec.Snapshot
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status returns the listing status of the game
func (g *Game) Status() string {
	switch {
	case g.GameOver:
		return StatusLost
	case g.GameWon:
		return StatusWon
	default:
		return StatusActive
	}
}

// Summary projects the game for listings
func (g *Game) Summary() GameSummary {
	return GameSummary{
		ID:          g.ID,
		PlayerName:  g.PlayerName,
		Rows:        g.Rows,
		Cols:        g.Cols,
		Mines:       g.Mines,
		OpenedCells: g.OpenedCells,
		Status:      g.Status(),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// Move is one entry of a game's append-only move log
type Move struct {
	GameID    string    `json:"game_id"`
	Number    int       `json:"move_number"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Action    Action    `json:"action"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// GameSummary represents a game in a listing
type GameSummary struct {
	ID          string    `json:"id"`
	PlayerName  string    `json:"player_name"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Mines       int       `json:"mines"`
	OpenedCells int       `json:"opened_cells"`
	Status      string    `json:"status"` // "active", "lost", "won"
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StartGameRequest represents the request to start a game.
// Zero dimensions fall back to the configured defaults.
type StartGameRequest struct {
	PlayerName string `json:"player_name"`
	Rows       int    `json:"rows,omitempty"`
	Cols       int    `json:"cols,omitempty"`
	Mines      int    `json:"mines,omitempty"`
}

// MoveRequest represents a player action on a cell
type MoveRequest struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Action Action `json:"action"`
}

// GameResponse is the playable view of a game
type GameResponse struct {
	GameSummary
	GameOver bool       `json:"game_over"`
	GameWon  bool       `json:"game_won"`
	Board    [][]string `json:"board"`
}

// MoveResponse represents the outcome of a move
type MoveResponse struct {
	Applied  bool         `json:"applied"`
	Recorded bool         `json:"recorded"`
	Move     *Move        `json:"move,omitempty"`
	Game     GameResponse `json:"game"`
}

// ReplayResponse represents a finished or running game with its move log
type ReplayResponse struct {
	Game       GameSummary `json:"game"`
	Moves      []*Move     `json:"moves"`
	FinalBoard [][]string  `json:"final_board"`
	Step       int         `json:"step"`
	StepBoard  [][]string  `json:"step_board"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
