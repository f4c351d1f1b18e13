package models

import "time"

// Player is one registered participant. The record carries no
// transport handle; the id-to-socket mapping lives in the session hub.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	BoardType  BoardType `json:"boardType"`
	BoardIndex int       `json:"boardNumber"`
	Stake      int       `json:"stake"`

	// Grid is generated once at registration and never regenerated,
	// so a number a player marked is guaranteed to still be there on
	// every later check.
	Grid   []int        `json:"grid"`
	Marked map[int]bool `json:"-"`

	Online     bool      `json:"online"`
	LastActive time.Time `json:"-"`
	Balance    int       `json:"balance"`
	Winnings   int       `json:"winnings"`
	IsWinner   bool      `json:"isWinner"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// MarkedNumbers returns the marked set as a slice for wire payloads.
func (p *Player) MarkedNumbers() []int {
	out := make([]int, 0, len(p.Marked))
	for n := range p.Marked {
		out = append(out, n)
	}
	return out
}

// PublicView strips the fields other players should not see.
func (p *Player) PublicView() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"boardType":   p.BoardType,
		"boardNumber": p.BoardIndex,
		"online":      p.Online,
		"isWinner":    p.IsWinner,
	}
}

// AdminView includes the PII and money fields mirrored to observers.
func (p *Player) AdminView() map[string]any {
	v := p.PublicView()
	v["phone"] = p.Phone
	v["stake"] = p.Stake
	v["balance"] = p.Balance
	v["winnings"] = p.Winnings
	v["joinedAt"] = p.JoinedAt
	return v
}
