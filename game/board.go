package game

import (
	"hash/fnv"
	rand "math/rand/v2"
	"sort"

	"github.com/amenassefagashaye/bingo-server/models"
)

// Generate produces the fixed number grid for one board identity.
// The generator is seeded from (boardType, boardIndex), so repeated
// calls for the same identity always return the same grid. Callers
// still cache the result on the player at registration; generation is
// never repeated per check.
//
// Unknown board types fall back to the 75-ball rule.
func Generate(boardType models.BoardType, boardIndex int) []int {
	rng := NewRand(boardSeed(boardType, boardIndex))

	switch boardType {
	case models.Board90:
		return pickSorted(rng, 90, 15)
	case models.Board30:
		return pickSorted(rng, 30, 9)
	case models.Board50:
		return columnGrid(rng, 50)
	default:
		return columnGrid(rng, 75)
	}
}

// columnGrid builds a 5x5 grid in row-major order: column c holds five
// unique numbers from its fifth of [1, max], B-I-N-G-O style.
func columnGrid(rng *rand.Rand, max int) []int {
	span := max / 5
	cols := make([][]int, 5)
	for c := 0; c < 5; c++ {
		perm := rng.Perm(span)
		nums := make([]int, 5)
		for i := 0; i < 5; i++ {
			nums[i] = c*span + perm[i] + 1
		}
		cols[c] = nums
	}

	grid := make([]int, 25)
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			grid[row*5+col] = cols[col][row]
		}
	}
	return grid
}

// pickSorted draws count unique numbers from [1, max], ascending.
func pickSorted(rng *rand.Rand, max, count int) []int {
	perm := rng.Perm(max)
	nums := make([]int, count)
	for i := 0; i < count; i++ {
		nums[i] = perm[i] + 1
	}
	sort.Ints(nums)
	return nums
}

func boardSeed(boardType models.BoardType, boardIndex int) int64 {
	h := fnv.New64a()
	h.Write([]byte(boardType))
	return int64(h.Sum64() ^ uint64(boardIndex)*goldenRatio64)
}
