package board

import "fmt"

// Content is the fixed truth of a cell: either a mine or the number of
// mines among its neighbours. It never changes after generation.
type Content struct {
	mine     bool
	adjacent uint8
}

// Mine returns the content of a mined cell.
func Mine() Content {
	return Content{mine: true}
}

// Count returns the content of a safe cell with n neighbouring mines.
func Count(n int) Content {
	if n < 0 || n > 8 {
		panic(fmt.Sprintf("board: adjacency count %d out of range", n))
	}
	return Content{adjacent: uint8(n)}
}

// IsMine reports whether the cell holds a mine.
func (c Content) IsMine() bool { return c.mine }

// Adjacent returns the neighbouring mine count. It is 0 for mines.
func (c Content) Adjacent() int { return int(c.adjacent) }

func (c Content) String() string {
	if c.mine {
		return "mine"
	}
	return fmt.Sprintf("%d", c.adjacent)
}

// Visibility is what the player currently sees of a cell.
type Visibility uint8

const (
	Unopened Visibility = iota
	Flagged
	Revealed
)

func (v Visibility) String() string {
	switch v {
	case Unopened:
		return "unopened"
	case Flagged:
		return "flagged"
	case Revealed:
		return "revealed"
	default:
		return fmt.Sprintf("visibility(%d)", uint8(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	switch v {
	case Unopened, Flagged, Revealed:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("board: invalid visibility %d", uint8(v))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Visibility) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unopened":
		*v = Unopened
	case "flagged":
		*v = Flagged
	case "revealed":
		*v = Revealed
	default:
		return fmt.Errorf("board: unknown visibility %q", text)
	}
	return nil
}

// Point addresses a cell.
type Point struct {
	Row int
	Col int
}

// Display marks produced by CellDisplay.
const (
	MarkUnopened = "."
	MarkFlag     = "M"
	MarkMine     = "*"
	MarkBlank    = " "
	MarkInvalid  = "?"
)
