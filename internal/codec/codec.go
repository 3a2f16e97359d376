// Package codec converts boards to and from their persisted form.
//
// The two grids are stored as JSON nested arrays inside text fields, next to
// the scalar flags, so any store that can hold strings and integers can hold
// a game. Decoding never re-runs mine placement.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/minesweeper-replay/internal/board"
)

// mineValue marks a mine in the encoded true-value grid.
const mineValue = -1

// ErrCorrupt is returned when a snapshot cannot be turned back into a board.
var ErrCorrupt = errors.New("codec: corrupt snapshot")

// Snapshot is the persisted form of a board.
type Snapshot struct {
	Rows         int    `json:"rows"`
	Cols         int    `json:"cols"`
	Mines        int    `json:"mines"`
	BoardState   string `json:"board_state"`   // [][]int, -1 for mines
	VisibleState string `json:"visible_state"` // [][]string of unopened|flagged|revealed
	GameOver     bool   `json:"game_over"`
	GameWon      bool   `json:"game_won"`
	OpenedCells  int    `json:"opened_cells"`
}

// Finished reports whether the snapshot is of a lost or won game.
func (s Snapshot) Finished() bool {
	return s.GameOver || s.GameWon
}

// Encode captures the board in a Snapshot that shares nothing with it.
func Encode(b *board.Board) (Snapshot, error) {
	state := b.State()

	values := make([][]int, state.Rows)
	for r, row := range state.Contents {
		values[r] = make([]int, len(row))
		for c, content := range row {
			if content.IsMine() {
				values[r][c] = mineValue
			} else {
				values[r][c] = content.Adjacent()
			}
		}
	}

	boardJSON, err := json.Marshal(values)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to marshal board state: %w", err)
	}
	visibleJSON, err := json.Marshal(state.Visible)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to marshal visible state: %w", err)
	}

	return Snapshot{
		Rows:         state.Rows,
		Cols:         state.Cols,
		Mines:        state.Mines,
		BoardState:   string(boardJSON),
		VisibleState: string(visibleJSON),
		GameOver:     state.Over,
		GameWon:      state.Won,
		OpenedCells:  state.Opened,
	}, nil
}

// Decode rebuilds the exact board a Snapshot was taken from.
func Decode(s Snapshot) (*board.Board, error) {
	var values [][]int
	if err := json.Unmarshal([]byte(s.BoardState), &values); err != nil {
		return nil, fmt.Errorf("%w: board state: %v", ErrCorrupt, err)
	}
	var visible [][]board.Visibility
	if err := json.Unmarshal([]byte(s.VisibleState), &visible); err != nil {
		return nil, fmt.Errorf("%w: visible state: %v", ErrCorrupt, err)
	}

	contents := make([][]board.Content, len(values))
	for r, row := range values {
		contents[r] = make([]board.Content, len(row))
		for c, v := range row {
			switch {
			case v == mineValue:
				contents[r][c] = board.Mine()
			case v >= 0 && v <= 8:
				contents[r][c] = board.Count(v)
			default:
				return nil, fmt.Errorf("%w: cell (%d,%d) has value %d", ErrCorrupt, r, c, v)
			}
		}
	}

	b, err := board.FromState(board.State{
		Rows:     s.Rows,
		Cols:     s.Cols,
		Mines:    s.Mines,
		Contents: contents,
		Visible:  visible,
		Over:     s.GameOver,
		Won:      s.GameWon,
		Opened:   s.OpenedCells,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return b, nil
}
