// Package board implements the minesweeper game-state machine: mine layout,
// adjacency numbers, reveal and flag state, and win/loss detection.
//
// A Board is owned by a single caller and is not safe for concurrent use.
// Invalid actions (out of bounds, terminal game, wrong cell state) are
// reported with a false return and never change state.
package board

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

var (
	// ErrInvalidDimensions is returned when rows, cols or mines are out of range.
	ErrInvalidDimensions = errors.New("board: invalid dimensions")
	// ErrInvalidState is returned when restoring a state that breaks a board invariant.
	ErrInvalidState = errors.New("board: invalid state")
)

var neighbourOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Board is a rectangular minesweeper field.
type Board struct {
	rows, cols, mines int

	contents [][]Content
	visible  [][]Visibility

	over   bool // a mine was opened
	won    bool
	opened int // revealed non-mine cells
}

type options struct {
	rng    *rand.Rand
	layout []Point
}

// Option configures New.
type Option func(*options)

// WithRand sets the random source used for mine placement.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithLayout places mines at exactly the given points instead of at random.
// The number of distinct points must equal the mine count.
func WithLayout(points ...Point) Option {
	return func(o *options) { o.layout = points }
}

// New generates a board with mines placed uniformly at random.
func New(rows, cols, mines int, opts ...Option) (*Board, error) {
	if rows < 1 || cols < 1 || mines < 0 || mines >= rows*cols {
		return nil, fmt.Errorf("%w: %dx%d with %d mines", ErrInvalidDimensions, rows, cols, mines)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Board{
		rows:     rows,
		cols:     cols,
		mines:    mines,
		contents: makeGrid[Content](rows, cols),
		visible:  makeGrid[Visibility](rows, cols),
	}

	if o.layout != nil {
		if err := b.placeLayout(o.layout); err != nil {
			return nil, err
		}
	} else {
		rng := o.rng
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		b.placeRandom(rng)
	}

	b.calculateNumbers()
	return b, nil
}

// placeRandom picks mines distinct cells via a partial Fisher-Yates shuffle.
func (b *Board) placeRandom(rng *rand.Rand) {
	total := b.rows * b.cols
	cells := make([]int, total)
	for i := range cells {
		cells[i] = i
	}
	for i := 0; i < b.mines; i++ {
		j := i + rng.IntN(total-i)
		cells[i], cells[j] = cells[j], cells[i]
		b.contents[cells[i]/b.cols][cells[i]%b.cols] = Mine()
	}
}

func (b *Board) placeLayout(points []Point) error {
	placed := 0
	for _, p := range points {
		if !b.InBounds(p.Row, p.Col) {
			return fmt.Errorf("%w: mine at (%d,%d) is outside the board", ErrInvalidDimensions, p.Row, p.Col)
		}
		if b.contents[p.Row][p.Col].IsMine() {
			continue
		}
		b.contents[p.Row][p.Col] = Mine()
		placed++
	}
	if placed != b.mines {
		return fmt.Errorf("%w: layout has %d mines, want %d", ErrInvalidDimensions, placed, b.mines)
	}
	return nil
}

func (b *Board) calculateNumbers() {
	for row := 0; row < b.rows; row++ {
		for col := 0; col < b.cols; col++ {
			if !b.contents[row][col].IsMine() {
				b.contents[row][col] = Count(b.countAdjacentMines(row, col))
			}
		}
	}
}

func (b *Board) countAdjacentMines(row, col int) int {
	count := 0
	for _, off := range neighbourOffsets {
		r, c := row+off[0], col+off[1]
		if b.InBounds(r, c) && b.contents[r][c].IsMine() {
			count++
		}
	}
	return count
}

// InBounds reports whether (row, col) addresses a cell of the board.
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.rows && col >= 0 && col < b.cols
}

// Open reveals a cell. It returns false without changing anything when the
// cell is out of bounds, not unopened (flagged cells included), or the game
// has ended. Opening a mine ends the game and also returns false; callers
// tell the two apart with IsOver.
func (b *Board) Open(row, col int) bool {
	if !b.InBounds(row, col) || b.IsTerminal() {
		return false
	}
	if b.visible[row][col] != Unopened {
		return false
	}

	b.visible[row][col] = Revealed

	if b.contents[row][col].IsMine() {
		b.over = true
		b.revealAllMines()
		return false
	}

	b.opened++
	if b.contents[row][col].Adjacent() == 0 {
		b.cascade(row, col)
	}

	b.checkWinCondition()
	return true
}

// cascade reveals the zero-count region around (row, col) and its numbered
// border using an explicit work queue, so depth is bounded by the heap.
func (b *Board) cascade(row, col int) {
	queue := []Point{{Row: row, Col: col}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for _, off := range neighbourOffsets {
			r, c := p.Row+off[0], p.Col+off[1]
			if !b.InBounds(r, c) || b.visible[r][c] != Unopened {
				continue
			}
			// Unreachable while adjacency numbers are correct.
			if b.contents[r][c].IsMine() {
				continue
			}

			b.visible[r][c] = Revealed
			b.opened++

			if b.contents[r][c].Adjacent() == 0 {
				queue = append(queue, Point{Row: r, Col: c})
			}
		}
	}
}

// revealAllMines shows every mine except those the player flagged.
func (b *Board) revealAllMines() {
	for row := 0; row < b.rows; row++ {
		for col := 0; col < b.cols; col++ {
			if b.contents[row][col].IsMine() && b.visible[row][col] != Flagged {
				b.visible[row][col] = Revealed
			}
		}
	}
}

func (b *Board) checkWinCondition() {
	if b.opened == b.safeCells() {
		b.won = true
	}
}

func (b *Board) safeCells() int {
	return b.rows*b.cols - b.mines
}

// Flag toggles a flag on an unopened cell. It returns false for revealed
// cells, out-of-bounds coordinates and finished games.
func (b *Board) Flag(row, col int) bool {
	if !b.InBounds(row, col) || b.IsTerminal() {
		return false
	}

	switch b.visible[row][col] {
	case Unopened:
		b.visible[row][col] = Flagged
		return true
	case Flagged:
		b.visible[row][col] = Unopened
		return true
	default:
		return false
	}
}

// IsOver reports whether a mine has been opened.
func (b *Board) IsOver() bool { return b.over }

// IsWon reports whether every safe cell has been revealed.
func (b *Board) IsWon() bool { return b.won }

// IsTerminal reports whether the game is lost or won.
func (b *Board) IsTerminal() bool { return b.over || b.won }

// OpenedCellsCount returns the number of revealed safe cells.
func (b *Board) OpenedCellsCount() int { return b.opened }

// MinesCount returns the number of mines on the board.
func (b *Board) MinesCount() int { return b.mines }

// Dimensions returns the number of rows and columns.
func (b *Board) Dimensions() (rows, cols int) { return b.rows, b.cols }

// Content returns the true value of a cell.
func (b *Board) Content(row, col int) (Content, bool) {
	if !b.InBounds(row, col) {
		return Content{}, false
	}
	return b.contents[row][col], true
}

// Visibility returns the visible state of a cell.
func (b *Board) Visibility(row, col int) (Visibility, bool) {
	if !b.InBounds(row, col) {
		return Unopened, false
	}
	return b.visible[row][col], true
}

// IsMine reports whether the cell holds a mine. Out of bounds is false.
func (b *Board) IsMine(row, col int) bool {
	c, ok := b.Content(row, col)
	return ok && c.IsMine()
}

// Contents returns a copy of the true-value grid.
func (b *Board) Contents() [][]Content {
	return copyGrid(b.contents)
}

// VisibleStates returns a copy of the visible-state grid.
func (b *Board) VisibleStates() [][]Visibility {
	return copyGrid(b.visible)
}

// CellDisplay renders a single cell for a player.
func (b *Board) CellDisplay(row, col int) string {
	if !b.InBounds(row, col) {
		return MarkInvalid
	}

	switch b.visible[row][col] {
	case Unopened:
		return MarkUnopened
	case Flagged:
		return MarkFlag
	}

	content := b.contents[row][col]
	switch {
	case content.IsMine():
		return MarkMine
	case content.Adjacent() == 0:
		return MarkBlank
	default:
		return strconv.Itoa(content.Adjacent())
	}
}

// Display renders the whole board with CellDisplay.
func (b *Board) Display() [][]string {
	display := make([][]string, b.rows)
	for row := range display {
		display[row] = make([]string, b.cols)
		for col := range display[row] {
			display[row][col] = b.CellDisplay(row, col)
		}
	}
	return display
}

// Fresh returns a new board with the same mine layout and every cell unopened.
func (b *Board) Fresh() *Board {
	return &Board{
		rows:     b.rows,
		cols:     b.cols,
		mines:    b.mines,
		contents: copyGrid(b.contents),
		visible:  makeGrid[Visibility](b.rows, b.cols),
	}
}

func makeGrid[T any](rows, cols int) [][]T {
	grid := make([][]T, rows)
	for i := range grid {
		grid[i] = make([]T, cols)
	}
	return grid
}

func copyGrid[T any](src [][]T) [][]T {
	dst := make([][]T, len(src))
	for i := range src {
		dst[i] = append([]T(nil), src[i]...)
	}
	return dst
}
