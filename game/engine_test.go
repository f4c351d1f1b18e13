package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroadcaster records every emitted event for assertions.
type fakeBroadcaster struct {
	mu           sync.Mutex
	playerEvents []Event
	directEvents map[string][]Event
	adminEvents  []Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{directEvents: make(map[string][]Event)}
}

func (b *fakeBroadcaster) ToPlayers(ev Event, exclude string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playerEvents = append(b.playerEvents, ev)
}

func (b *fakeBroadcaster) ToPlayer(playerID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directEvents[playerID] = append(b.directEvents[playerID], ev)
}

func (b *fakeBroadcaster) ToAdmins(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adminEvents = append(b.adminEvents, ev)
}

func (b *fakeBroadcaster) broadcastsOfType(typ string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.playerEvents {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (b *fakeBroadcaster) directOfType(playerID, typ string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.directEvents[playerID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		DrawInterval:      time.Hour, // tests call CallNumber directly
		ServiceFee:        0.03,
		MinStake:          10,
		MaxStake:          1000,
		MinWithdrawal:     25,
		MaxPlayers:        90,
		InactivityTimeout: 30 * time.Minute,
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeBroadcaster) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	bc := newFakeBroadcaster()
	e := NewEngine(cfg, bc, nil, quartz.NewReal(), 42)
	t.Cleanup(e.Close)
	return e, bc
}

func registerPlayer(t *testing.T, e *Engine, name string, boardIndex int) string {
	t.Helper()
	p, err := e.Register(RegisterInfo{
		Name:       name,
		Phone:      fmt.Sprintf("09%08d", boardIndex),
		BoardType:  "75-ball",
		BoardIndex: boardIndex,
		Stake:      100,
	})
	require.NoError(t, err)
	return p.ID
}

// -------------------- Registration --------------------

func TestRegisterValidation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)

	tests := []struct {
		name string
		info RegisterInfo
	}{
		{"short name", RegisterInfo{Name: "A", Phone: "0911111111", BoardType: "75-ball", BoardIndex: 2, Stake: 50}},
		{"bad phone", RegisterInfo{Name: "Hanna", Phone: "12345", BoardType: "75-ball", BoardIndex: 2, Stake: 50}},
		{"unknown board type", RegisterInfo{Name: "Hanna", Phone: "0911111111", BoardType: "99-ball", BoardIndex: 2, Stake: 50}},
		{"duplicate phone", RegisterInfo{Name: "Hanna", Phone: "0900000001", BoardType: "75-ball", BoardIndex: 2, Stake: 50}},
		{"duplicate board", RegisterInfo{Name: "Hanna", Phone: "0911111111", BoardType: "75-ball", BoardIndex: 1, Stake: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Register(tt.info)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestRegisterCapacity(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Config) { c.MaxPlayers = 1 })
	registerPlayer(t, e, "Abel", 1)

	_, err := e.Register(RegisterInfo{Name: "Hanna", Phone: "0911111111", BoardType: "75-ball", BoardIndex: 2, Stake: 50})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRegisterClampsStakeAndGrowsPool(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	low, err := e.Register(RegisterInfo{Name: "Abel", Phone: "0911111111", BoardType: "75-ball", BoardIndex: 1, Stake: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, low.Stake)

	high, err := e.Register(RegisterInfo{Name: "Hanna", Phone: "0922222222", BoardType: "75-ball", BoardIndex: 2, Stake: 99999})
	require.NoError(t, err)
	assert.Equal(t, 1000, high.Stake)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Equal(t, 1010, e.session.PrizePool)
	assert.Equal(t, 1010, e.session.TotalCollected)
}

func TestRegisterCachesGrid(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id := registerPlayer(t, e, "Abel", 5)

	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.players[id]
	require.Len(t, p.Grid, 25)
	assert.Equal(t, Generate(p.BoardType, p.BoardIndex), p.Grid)
}

// -------------------- Lifecycle --------------------

func TestStartRoundRequiresTwoPlayers(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)

	err := e.StartRound()
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StateIdle, e.State())
}

func TestStartRoundTransitionsToActive(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	id2 := registerPlayer(t, e, "Hanna", 2)

	require.NoError(t, e.StartRound())
	assert.Equal(t, StateActive, e.State())

	e.mu.Lock()
	assert.Empty(t, e.players[id1].Marked)
	assert.Empty(t, e.players[id2].Marked)
	e.mu.Unlock()

	assert.Len(t, bc.broadcastsOfType("game_started"), 1)

	// Starting again while active is rejected.
	err := e.StartRound()
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
}

func TestStopRoundKeepsHistory(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	for i := 0; i < 5; i++ {
		_, _, err := e.CallNumber()
		require.NoError(t, err)
	}
	require.NoError(t, e.StopRound())
	assert.Equal(t, StateIdle, e.State())

	e.mu.Lock()
	assert.Len(t, e.session.CalledNumbers, 5)
	e.mu.Unlock()

	// Stop twice is invalid.
	err := e.StopRound()
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
}

func TestResetRoundPreservesRegistrationsAndTotals(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())
	_, _, err := e.CallNumber()
	require.NoError(t, err)

	e.ResetRound()

	assert.Equal(t, StateIdle, e.State())
	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Empty(t, e.session.CalledNumbers)
	assert.Zero(t, e.session.CurrentNumber)
	assert.Nil(t, e.session.StartedAt)
	assert.Empty(t, e.session.WinnerID)
	assert.Len(t, e.players, 2)
	assert.Equal(t, 200, e.session.PrizePool)
	assert.Equal(t, 200, e.session.TotalCollected)
	assert.Empty(t, e.players[id1].Marked)
}

// -------------------- Drawing --------------------

func TestCallNumberRejectedWhenIdle(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, _, err := e.CallNumber()
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
}

func TestCalledNumbersAreUnique(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	seen := make(map[int]bool)
	for i := 0; i < 30; i++ {
		n, display, err := e.CallNumber()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 75)
		assert.NotEmpty(t, display)
		assert.False(t, seen[n], "number %d called twice", n)
		seen[n] = true
	}
}

func TestConcurrentCallNumberNeverDuplicates(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	var wg sync.WaitGroup
	results := make(chan int, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n, _, err := e.CallNumber(); err == nil {
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for n := range results {
		assert.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
	}
}

func TestDrawExhaustedKeepsRoundActive(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	e.mu.Lock()
	for n := 1; n <= 75; n++ {
		e.session.CalledNumbers = append(e.session.CalledNumbers, n)
	}
	e.mu.Unlock()

	_, _, err := e.CallNumber()
	assert.ErrorIs(t, err, ErrDrawExhausted)
	assert.Equal(t, StateActive, e.State())
}

// -------------------- Winning --------------------

// markTopRow drives MarkNumber over a player's first grid row.
func markTopRow(e *Engine, playerID string) {
	e.mu.Lock()
	row := append([]int(nil), e.players[playerID].Grid[:5]...)
	e.mu.Unlock()
	for _, n := range row {
		e.MarkNumber(playerID, n)
	}
}

func TestMarkTopRowWins(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	markTopRow(e, id1)

	assert.Equal(t, StateWon, e.State())

	winners := bc.broadcastsOfType("winner")
	require.Len(t, winners, 1)
	assert.Equal(t, id1, winners[0].Data["playerId"])
	assert.Equal(t, "row", winners[0].Data["pattern"])

	// floor(100 * 2 * 0.8 * 0.97) = 155
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.players[id1]
	assert.True(t, p.IsWinner)
	assert.Equal(t, 155, p.Balance)
	assert.Equal(t, 155, p.Winnings)
	assert.Equal(t, 155, e.session.TotalPaidOut)
	// Payout does not touch the pool.
	assert.Equal(t, 200, e.session.PrizePool)
}

func TestMarkIgnoresNumbersOffGrid(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	e.MarkNumber(id1, 76)
	e.MarkNumber("no-such-player", 5)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Empty(t, e.players[id1].Marked)
}

func TestAtMostOneWinner(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	id2 := registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	markTopRow(e, id1)
	require.Equal(t, StateWon, e.State())

	// Marks after the win are no-ops; no second settlement happens.
	markTopRow(e, id2)

	assert.Len(t, bc.broadcastsOfType("winner"), 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	assert.False(t, e.players[id2].IsWinner)
	assert.Equal(t, id1, e.session.WinnerID)
}

func TestFirstRegisteredWinsTies(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	id2 := registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	// Both players hold a finished row before the next call; the
	// evaluation order is registration order, so Abel settles.
	e.mu.Lock()
	for _, id := range []string{id1, id2} {
		p := e.players[id]
		for _, n := range p.Grid[:5] {
			p.Marked[n] = true
		}
	}
	e.mu.Unlock()

	_, _, err := e.CallNumber()
	require.NoError(t, err)

	winners := bc.broadcastsOfType("winner")
	require.Len(t, winners, 1)
	assert.Equal(t, id1, winners[0].Data["playerId"])
}

func TestClaimWinRejectedWithoutPattern(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	assert.False(t, e.ClaimWin(id1))
	assert.Equal(t, StateActive, e.State())

	errs := bc.directOfType(id1, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "no winning pattern yet", errs[0].Data["message"])
}

func TestClaimWinSettles(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	e.mu.Lock()
	p := e.players[id1]
	for _, n := range p.Grid[:5] {
		p.Marked[n] = true
	}
	e.mu.Unlock()

	assert.True(t, e.ClaimWin(id1))
	assert.Equal(t, StateWon, e.State())
}

func TestPayoutFormula(t *testing.T) {
	tests := []struct {
		stake, players int
		fee            float64
		want           int
	}{
		{100, 4, 0.03, 310}, // floor(310.4)
		{100, 2, 0.03, 155}, // floor(155.2)
		{10, 2, 0.03, 15},   // floor(15.52)
		{50, 3, 0, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Payout(tt.stake, tt.players, tt.fee))
	}
}

// -------------------- Money --------------------

func TestWithdrawValidation(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)

	e.mu.Lock()
	e.players[id1].Balance = 100
	e.mu.Unlock()

	var verr *ValidationError
	require.ErrorAs(t, e.Withdraw(id1, 10, "1000123"), &verr, "below minimum")
	require.ErrorAs(t, e.Withdraw(id1, 25, ""), &verr, "missing account")
	require.ErrorAs(t, e.Withdraw(id1, 500, "1000123"), &verr, "exceeds balance")

	var nerr *NotFoundError
	require.ErrorAs(t, e.Withdraw("ghost", 25, "1000123"), &nerr)

	// Nothing was debited and no confirmation reached the player.
	e.mu.Lock()
	assert.Equal(t, 100, e.players[id1].Balance)
	e.mu.Unlock()
	assert.Empty(t, bc.directOfType(id1, "withdrawal_processed"))
}

func TestWithdrawDebitsBalance(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)

	e.mu.Lock()
	e.players[id1].Balance = 100
	e.mu.Unlock()

	require.NoError(t, e.Withdraw(id1, 40, "1000123"))

	e.mu.Lock()
	assert.Equal(t, 60, e.players[id1].Balance)
	e.mu.Unlock()

	confirms := bc.directOfType(id1, "withdrawal_processed")
	require.Len(t, confirms, 1)
	assert.Equal(t, 40, confirms[0].Data["amount"])
	assert.Equal(t, 60, confirms[0].Data["balance"])
}

// -------------------- Removal & pool accounting --------------------

func TestKickDecrementsPool(t *testing.T) {
	e, bc := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)

	require.NoError(t, e.Kick(id1))

	e.mu.Lock()
	assert.Equal(t, 100, e.session.PrizePool)
	assert.Equal(t, 200, e.session.TotalCollected, "lifetime collected is unaffected")
	assert.Len(t, e.players, 1)
	e.mu.Unlock()

	var nerr *NotFoundError
	require.ErrorAs(t, e.Kick(id1), &nerr)
	assert.Len(t, bc.broadcastsOfType("player_left"), 1)
}

func TestPrizePoolEqualsSumOfStakes(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	registerPlayer(t, e, "Meron", 3)

	check := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		sum := 0
		for _, p := range e.players {
			sum += p.Stake
		}
		assert.Equal(t, sum, e.session.PrizePool)
	}

	check()
	require.NoError(t, e.Kick(id1))
	check()
	e.Leave("nobody")
	check()
}

func TestInactivitySweepRemovesIdlePlayers(t *testing.T) {
	mock := quartz.NewMock(t)
	bc := newFakeBroadcaster()
	e := NewEngine(testConfig(), bc, nil, mock, 42)
	t.Cleanup(e.Close)

	p1, err := e.Register(RegisterInfo{Name: "Abel", Phone: "0911111111", BoardType: "75-ball", BoardIndex: 1, Stake: 100})
	require.NoError(t, err)

	mock.Advance(10 * time.Minute)
	e.Touch(p1.ID)

	p2, err := e.Register(RegisterInfo{Name: "Hanna", Phone: "0922222222", BoardType: "75-ball", BoardIndex: 2, Stake: 100})
	require.NoError(t, err)
	_ = p2

	mock.Advance(25 * time.Minute)
	// Abel is 25m idle, Hanna 25m as well; neither is over 30m yet.
	e.sweepInactive()
	e.mu.Lock()
	assert.Len(t, e.players, 2)
	e.mu.Unlock()

	mock.Advance(6 * time.Minute)
	// Both are now past the 30m threshold.
	e.sweepInactive()
	e.mu.Lock()
	assert.Empty(t, e.players)
	assert.Zero(t, e.session.PrizePool)
	e.mu.Unlock()

	assert.Len(t, bc.broadcastsOfType("player_left"), 2)
}

// -------------------- Auto draw --------------------

func TestAutoDrawTicksAndStops(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Config) { c.DrawInterval = 5 * time.Millisecond })
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	require.Eventually(t, func() bool {
		return e.Stats()["calledCount"].(int) > 0
	}, 2*time.Second, 5*time.Millisecond, "auto draw should call numbers")

	require.NoError(t, e.StopRound())
	called := e.Stats()["calledCount"].(int)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, called, e.Stats()["calledCount"].(int), "drawing must halt after stop")
}

func TestAutoDrawStopsOnWin(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Config) { c.DrawInterval = 5 * time.Millisecond })
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())

	markTopRow(e, id1)
	require.Equal(t, StateWon, e.State())

	called := e.Stats()["calledCount"].(int)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, called, e.Stats()["calledCount"].(int), "no draws once a winner exists")
}

// -------------------- Views --------------------

func TestStatsSurface(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)
	require.NoError(t, e.StartRound())
	markTopRow(e, id1)

	stats := e.Stats()
	assert.Equal(t, 2, stats["activePlayers"])
	assert.Equal(t, false, stats["roundActive"])
	assert.Equal(t, 200, stats["prizePool"])
	assert.Equal(t, 200, stats["totalCollected"])
	assert.Equal(t, 155, stats["totalPaidOut"])
	assert.Equal(t, "Abel", stats["winnerName"])
}

func TestSnapshotListsPlayersInRegistrationOrder(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerPlayer(t, e, "Abel", 1)
	registerPlayer(t, e, "Hanna", 2)

	snap := e.Snapshot()
	players := snap["players"].([]map[string]any)
	require.Len(t, players, 2)
	assert.Equal(t, "Abel", players[0]["name"])
	assert.Equal(t, "Hanna", players[1]["name"])
}

func TestReconnectRestoresPlayer(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	id1 := registerPlayer(t, e, "Abel", 1)

	e.MarkOffline(id1)
	e.mu.Lock()
	assert.False(t, e.players[id1].Online)
	e.mu.Unlock()

	p, err := e.Reconnect(id1)
	require.NoError(t, err)
	assert.True(t, p.Online)

	var nerr *NotFoundError
	_, err = e.Reconnect("ghost")
	require.ErrorAs(t, err, &nerr)
}

func TestUnknownErrorsAreTyped(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	err := e.Kick("ghost")
	assert.True(t, errors.As(err, new(*NotFoundError)))
}
