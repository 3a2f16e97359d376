package board

import "fmt"

// State is a detached copy of everything a Board knows. Mutating a State
// never affects the Board it came from, and vice versa.
type State struct {
	Rows     int
	Cols     int
	Mines    int
	Contents [][]Content
	Visible  [][]Visibility
	Over     bool
	Won      bool
	Opened   int
}

// State returns a deep copy of the board's grids and flags.
func (b *Board) State() State {
	return State{
		Rows:     b.rows,
		Cols:     b.cols,
		Mines:    b.mines,
		Contents: copyGrid(b.contents),
		Visible:  copyGrid(b.visible),
		Over:     b.over,
		Won:      b.won,
		Opened:   b.opened,
	}
}

// FromState rebuilds a board from a State without placing mines again.
// The state is validated against the board invariants and copied.
func FromState(s State) (*Board, error) {
	if s.Rows < 1 || s.Cols < 1 || s.Mines < 0 || s.Mines >= s.Rows*s.Cols {
		return nil, fmt.Errorf("%w: %dx%d with %d mines", ErrInvalidState, s.Rows, s.Cols, s.Mines)
	}
	if err := checkShape(len(s.Contents), s.Rows, s.Cols, func(i int) int { return len(s.Contents[i]) }); err != nil {
		return nil, fmt.Errorf("%w: contents %v", ErrInvalidState, err)
	}
	if err := checkShape(len(s.Visible), s.Rows, s.Cols, func(i int) int { return len(s.Visible[i]) }); err != nil {
		return nil, fmt.Errorf("%w: visible %v", ErrInvalidState, err)
	}

	b := &Board{
		rows:     s.Rows,
		cols:     s.Cols,
		mines:    s.Mines,
		contents: copyGrid(s.Contents),
		visible:  copyGrid(s.Visible),
		over:     s.Over,
		won:      s.Won,
		opened:   s.Opened,
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func checkShape(rows, wantRows, wantCols int, colsAt func(int) int) error {
	if rows != wantRows {
		return fmt.Errorf("has %d rows, want %d", rows, wantRows)
	}
	for i := 0; i < rows; i++ {
		if colsAt(i) != wantCols {
			return fmt.Errorf("row %d has %d cols, want %d", i, colsAt(i), wantCols)
		}
	}
	return nil
}

func (b *Board) validate() error {
	mines, opened := 0, 0
	for row := 0; row < b.rows; row++ {
		for col := 0; col < b.cols; col++ {
			content := b.contents[row][col]
			vis := b.visible[row][col]
			if vis > Revealed {
				return fmt.Errorf("%w: cell (%d,%d) has %v", ErrInvalidState, row, col, vis)
			}
			if content.IsMine() {
				mines++
				if vis == Revealed && !b.over {
					return fmt.Errorf("%w: mine at (%d,%d) revealed in a game that is not lost", ErrInvalidState, row, col)
				}
				continue
			}
			if got := b.countAdjacentMines(row, col); content.Adjacent() != got {
				return fmt.Errorf("%w: cell (%d,%d) says %d adjacent mines, layout has %d",
					ErrInvalidState, row, col, content.Adjacent(), got)
			}
			if vis == Revealed {
				opened++
			}
		}
	}

	switch {
	case mines != b.mines:
		return fmt.Errorf("%w: %d mines on the grid, want %d", ErrInvalidState, mines, b.mines)
	case opened != b.opened:
		return fmt.Errorf("%w: %d opened cells on the grid, counter says %d", ErrInvalidState, opened, b.opened)
	case b.over && b.won:
		return fmt.Errorf("%w: game is both lost and won", ErrInvalidState)
	case b.won != (b.opened == b.safeCells()):
		return fmt.Errorf("%w: won=%t with %d of %d safe cells opened", ErrInvalidState, b.won, b.opened, b.safeCells())
	}
	return nil
}
