package models

import "time"

// GameSession is the single authoritative round state. It is owned
// exclusively by the game engine; nothing else mutates it.
type GameSession struct {
	Active        bool
	CalledNumbers []int
	CurrentNumber int // 0 until the first call of a round
	StartedAt     *time.Time
	WinnerID      string

	// PrizePool always equals the sum of currently registered stakes.
	// Payout does not decrement it; player removal does.
	PrizePool int

	// Lifetime totals survive round resets and only grow.
	TotalCollected int
	TotalPaidOut   int
}
