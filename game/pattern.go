package game

import "github.com/amenassefagashaye/bingo-server/models"

// xPattern is the fixed X-shaped cell set for the "pattern" board
// family: both diagonals' endpoints plus the free center.
var xPattern = []int{0, 6, 12, 18, 24}

// IsWinner reports whether the marked subset of a grid satisfies the
// board family's winning condition.
func IsWinner(boardType models.BoardType, grid []int, marked map[int]bool) bool {
	_, ok := WinningPattern(boardType, grid, marked)
	return ok
}

// WinningPattern returns the name of the first satisfied winning
// condition, or false when none is. It performs no mutation.
//
// 90-ball uses the count-threshold approximation: "lines" are marked
// counts of 5/10/15, not positions in a 3x9 layout.
func WinningPattern(boardType models.BoardType, grid []int, marked map[int]bool) (string, bool) {
	switch boardType {
	case models.Board90:
		switch n := markedCount(grid, marked); {
		case n >= 15:
			return "full-house", true
		case n >= 10:
			return "two-lines", true
		case n >= 5:
			return "one-line", true
		}
		return "", false

	case models.Board30:
		if markedCount(grid, marked) >= len(grid) {
			return "full-house", true
		}
		return "", false

	case models.BoardPattern:
		if cellsMarked(grid, marked, xPattern) {
			return "x-pattern", true
		}
		return "", false

	case models.BoardCoverall:
		if cellsMarked(grid, marked, allCells25) {
			return "coverall", true
		}
		return "", false

	default: // 75-ball, 50-ball and the documented fallback
		return fiveByFivePattern(grid, marked)
	}
}

var allCells25 = func() []int {
	cells := make([]int, 25)
	for i := range cells {
		cells[i] = i
	}
	return cells
}()

func fiveByFivePattern(grid []int, marked map[int]bool) (string, bool) {
	// Rows and columns.
	for row := 0; row < 5; row++ {
		cells := []int{row * 5, row*5 + 1, row*5 + 2, row*5 + 3, row*5 + 4}
		if cellsMarked(grid, marked, cells) {
			return "row", true
		}
	}
	for col := 0; col < 5; col++ {
		cells := []int{col, col + 5, col + 10, col + 15, col + 20}
		if cellsMarked(grid, marked, cells) {
			return "column", true
		}
	}

	// Diagonals, corners, full card.
	if cellsMarked(grid, marked, []int{0, 6, 12, 18, 24}) ||
		cellsMarked(grid, marked, []int{4, 8, 12, 16, 20}) {
		return "diagonal", true
	}
	if cellsMarked(grid, marked, []int{0, 4, 20, 24}) {
		return "corners", true
	}
	if cellsMarked(grid, marked, allCells25) {
		return "full-card", true
	}
	return "", false
}

// cellsMarked checks a cell-index subset against the marked set. The
// free center cell of a 5x5 grid always counts as marked.
func cellsMarked(grid []int, marked map[int]bool, cells []int) bool {
	for _, i := range cells {
		if i == models.FreeCellIndex && len(grid) == 25 {
			continue
		}
		if i >= len(grid) || !marked[grid[i]] {
			return false
		}
	}
	return true
}

func markedCount(grid []int, marked map[int]bool) int {
	n := 0
	for _, v := range grid {
		if marked[v] {
			n++
		}
	}
	return n
}
