package models

import "fmt"

// BoardType is the closed set of supported bingo rule families.
type BoardType string

const (
	Board75       BoardType = "75-ball"
	Board90       BoardType = "90-ball"
	Board30       BoardType = "30-ball"
	Board50       BoardType = "50-ball"
	BoardPattern  BoardType = "pattern"
	BoardCoverall BoardType = "coverall"
)

// FreeCellIndex is the center cell of a 5x5 grid.
const FreeCellIndex = 12

// Letters indexes the classic B-I-N-G-O column letters for 5x5 boards.
var Letters = [5]string{"B", "I", "N", "G", "O"}

// ParseBoardType validates a client-supplied board type string.
func ParseBoardType(s string) (BoardType, bool) {
	switch bt := BoardType(s); bt {
	case Board75, Board90, Board30, Board50, BoardPattern, BoardCoverall:
		return bt, true
	}
	return "", false
}

// MaxNumber is the top of the callable range for the board family.
func (b BoardType) MaxNumber() int {
	switch b {
	case Board90:
		return 90
	case Board30:
		return 30
	case Board50:
		return 50
	default:
		return 75
	}
}

// CellCount is the number of cells on a generated grid.
func (b BoardType) CellCount() int {
	switch b {
	case Board90:
		return 15
	case Board30:
		return 9
	default:
		return 25
	}
}

// Grid5x5 reports whether the board lays its numbers out as five
// columns of five with a free center cell.
func (b BoardType) Grid5x5() bool {
	switch b {
	case Board90, Board30:
		return false
	default:
		return true
	}
}

// Display renders a called number the way clients show it: 5x5 board
// families get the column letter prefix, the rest a bare number.
func (b BoardType) Display(n int) string {
	if !b.Grid5x5() {
		return fmt.Sprintf("%d", n)
	}
	span := b.MaxNumber() / 5
	col := (n - 1) / span
	if col < 0 {
		col = 0
	}
	if col > 4 {
		col = 4
	}
	return fmt.Sprintf("%s-%d", Letters[col], n)
}
