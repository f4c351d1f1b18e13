package game

import rand "math/rand/v2"

// maxDrawAttempts bounds the rejection sampler. Exhaustion is only
// reachable when the excluded set nearly covers the range.
const maxDrawAttempts = 100

// DrawEngine selects unique numbers for a round.
type DrawEngine struct {
	rng *rand.Rand
}

func NewDrawEngine(rng *rand.Rand) *DrawEngine {
	return &DrawEngine{rng: rng}
}

// DrawNext returns a uniform number in [1, maxNumber] not present in
// exclude, or ErrDrawExhausted after maxDrawAttempts rejections.
func (d *DrawEngine) DrawNext(exclude map[int]bool, maxNumber int) (int, error) {
	if maxNumber < 1 {
		return 0, ErrDrawExhausted
	}
	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		n := d.rng.IntN(maxNumber) + 1
		if !exclude[n] {
			return n, nil
		}
	}
	return 0, ErrDrawExhausted
}
