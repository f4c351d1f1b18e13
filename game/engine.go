package game

import (
	"math"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/amenassefagashaye/bingo-server/models"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// State is the round lifecycle: Idle -> Active -> Won -> Idle via
// reset, or Active -> Idle via explicit stop.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateWon    State = "won"
)

const sweepInterval = time.Minute

// phoneRe matches Ethiopian mobile numbers: +2519xxxxxxxx or 09xxxxxxxx.
var phoneRe = regexp.MustCompile(`^(\+251|0)9\d{8}$`)

// Config holds the engine tunables.
type Config struct {
	DrawInterval      time.Duration
	ServiceFee        float64
	MinStake          int
	MaxStake          int
	MinWithdrawal     int
	MaxPlayers        int
	InactivityTimeout time.Duration
}

// RegisterInfo is the decoded register command payload.
type RegisterInfo struct {
	Name       string
	Phone      string
	BoardType  string
	BoardIndex int
	Stake      int
}

// Engine owns the authoritative game session. Every mutating
// operation takes the one mutex, so commands, the auto-draw tick and
// the inactivity sweep are processed one at a time to completion.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	clock quartz.Clock
	draw  *DrawEngine
	bc    Broadcaster
	audit AuditSink

	state   State
	players map[string]*models.Player
	order   []string // registration order, the first-winner tie break
	session models.GameSession

	drawCancel chan struct{} // non-nil only while auto-draw runs
	sweepStop  chan struct{}
	closeOnce  sync.Once
}

// NewEngine wires the state machine. audit may be nil; clock defaults
// to the real clock when nil.
func NewEngine(cfg Config, bc Broadcaster, audit AuditSink, clock quartz.Clock, seed int64) *Engine {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Engine{
		cfg:     cfg,
		clock:   clock,
		draw:    NewDrawEngine(NewRand(seed)),
		bc:      bc,
		audit:   audit,
		state:   StateIdle,
		players: make(map[string]*models.Player),
	}
}

// Start launches the inactivity sweep.
func (e *Engine) Start() {
	e.sweepStop = make(chan struct{})
	go e.sweepLoop(e.sweepStop)
}

// Close tears down background tasks. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.stopAutoDrawLocked()
		e.mu.Unlock()
		if e.sweepStop != nil {
			close(e.sweepStop)
		}
	})
}

// -------------------- Registration & presence --------------------

// Register validates and adds a player, caches their generated grid,
// and grows the prize pool by their clamped stake.
func (e *Engine) Register(info RegisterInfo) (*models.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nameLen := utf8.RuneCountInString(info.Name)
	if nameLen < 2 || nameLen > 50 {
		return nil, validationf("name must be 2-50 characters")
	}
	if !phoneRe.MatchString(info.Phone) {
		return nil, validationf("invalid phone number")
	}
	boardType, ok := models.ParseBoardType(info.BoardType)
	if !ok {
		return nil, validationf("unknown board type %q", info.BoardType)
	}
	if len(e.players) >= e.cfg.MaxPlayers {
		return nil, validationf("session is full")
	}
	for _, p := range e.players {
		if p.Phone == info.Phone {
			return nil, validationf("phone already registered")
		}
		if p.BoardType == boardType && p.BoardIndex == info.BoardIndex {
			return nil, validationf("board %d already taken", info.BoardIndex)
		}
	}

	stake := info.Stake
	if stake < e.cfg.MinStake {
		stake = e.cfg.MinStake
	}
	if stake > e.cfg.MaxStake {
		stake = e.cfg.MaxStake
	}

	now := e.clock.Now()
	p := &models.Player{
		ID:         uuid.NewString(),
		Name:       info.Name,
		Phone:      info.Phone,
		BoardType:  boardType,
		BoardIndex: info.BoardIndex,
		Stake:      stake,
		Grid:       Generate(boardType, info.BoardIndex),
		Marked:     make(map[int]bool),
		Online:     true,
		LastActive: now,
		JoinedAt:   now,
	}
	e.players[p.ID] = p
	e.order = append(e.order, p.ID)
	e.session.PrizePool += stake
	e.session.TotalCollected += stake

	logger.Infof("player %s registered board=%s/%d stake=%d total=%d",
		p.Name, p.BoardType, p.BoardIndex, stake, len(e.players))

	e.bc.ToPlayers(NewEvent("player_joined", map[string]any{
		"playerId":    p.ID,
		"name":        p.Name,
		"boardType":   p.BoardType,
		"boardNumber": p.BoardIndex,
		"players":     len(e.players),
		"prizePool":   e.session.PrizePool,
	}), p.ID)
	e.bc.ToAdmins(NewEvent("player_joined_admin", map[string]any{
		"player":         p.AdminView(),
		"players":        len(e.players),
		"prizePool":      e.session.PrizePool,
		"totalCollected": e.session.TotalCollected,
	}))

	return p, nil
}

// Reconnect restores a returning player's session.
func (e *Engine) Reconnect(playerID string) (*models.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return nil, &NotFoundError{PlayerID: playerID}
	}
	p.Online = true
	p.LastActive = e.clock.Now()
	return p, nil
}

// MarkOffline flags a disconnected player. Registration survives
// until kick, leave or the inactivity sweep.
func (e *Engine) MarkOffline(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[playerID]; ok {
		p.Online = false
	}
}

// Touch refreshes a player's activity timestamp (ping, chat).
func (e *Engine) Touch(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[playerID]; ok {
		p.LastActive = e.clock.Now()
	}
}

// PlayerName resolves a player id for chat attribution, refreshing
// their activity on the way.
func (e *Engine) PlayerName(playerID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return "", false
	}
	p.LastActive = e.clock.Now()
	return p.Name, true
}

// Leave removes a voluntarily departing player.
func (e *Engine) Leave(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[playerID]; ok {
		e.removeLocked(p, "left")
	}
}

// Kick removes a player by admin command.
func (e *Engine) Kick(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return &NotFoundError{PlayerID: playerID}
	}
	e.removeLocked(p, "kicked")
	return nil
}

// removeLocked deletes the player and shrinks the live prize pool by
// their stake. Lifetime collected is unaffected.
func (e *Engine) removeLocked(p *models.Player, reason string) {
	delete(e.players, p.ID)
	for i, id := range e.order {
		if id == p.ID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.session.PrizePool -= p.Stake

	logger.Infof("player %s removed (%s), %d remain", p.Name, reason, len(e.players))

	e.bc.ToPlayers(NewEvent("player_left", map[string]any{
		"playerId":  p.ID,
		"name":      p.Name,
		"reason":    reason,
		"players":   len(e.players),
		"prizePool": e.session.PrizePool,
	}), p.ID)
	e.bc.ToAdmins(NewEvent("player_left_admin", map[string]any{
		"player":    p.AdminView(),
		"reason":    reason,
		"players":   len(e.players),
		"prizePool": e.session.PrizePool,
	}))
}

// -------------------- Round lifecycle --------------------

// StartRound begins a round and the automatic draw.
func (e *Engine) StartRound() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		return &InvalidStateError{Op: "start", State: e.state}
	}
	if len(e.players) < 2 {
		return &InvalidStateError{Op: "start", State: e.state}
	}

	now := e.clock.Now()
	e.session.CalledNumbers = nil
	e.session.CurrentNumber = 0
	e.session.WinnerID = ""
	e.session.StartedAt = &now
	e.session.Active = true
	for _, p := range e.players {
		p.Marked = make(map[int]bool)
		p.IsWinner = false
	}
	e.state = StateActive
	e.startAutoDrawLocked()

	logger.Infof("round started with %d players, pool=%d", len(e.players), e.session.PrizePool)

	ev := map[string]any{
		"players":   len(e.players),
		"prizePool": e.session.PrizePool,
	}
	e.bc.ToPlayers(NewEvent("game_started", ev), "")
	e.bc.ToAdmins(NewEvent("game_started_admin", ev))
	return nil
}

// StopRound abandons the round without a winner. Called numbers and
// winner history are kept for inspection until the next start/reset.
func (e *Engine) StopRound() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return &InvalidStateError{Op: "stop", State: e.state}
	}
	e.stopAutoDrawLocked()
	e.state = StateIdle
	e.session.Active = false

	e.recordRoundLocked(nil, "", 0)

	ev := map[string]any{"totalCalled": len(e.session.CalledNumbers)}
	e.bc.ToPlayers(NewEvent("game_stopped", ev), "")
	e.bc.ToAdmins(NewEvent("game_stopped_admin", ev))
	return nil
}

// ResetRound always succeeds: stops drawing if needed and clears all
// round state. Registrations and lifetime totals are preserved.
func (e *Engine) ResetRound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopAutoDrawLocked()
	e.state = StateIdle
	e.session.Active = false
	e.session.CalledNumbers = nil
	e.session.CurrentNumber = 0
	e.session.StartedAt = nil
	e.session.WinnerID = ""
	for _, p := range e.players {
		p.Marked = make(map[int]bool)
		p.IsWinner = false
	}

	e.bc.ToPlayers(NewEvent("game_reset", nil), "")
	e.bc.ToAdmins(NewEvent("game_reset_admin", nil))
}

// -------------------- Drawing & winning --------------------

// CallNumber draws the next unique number and re-evaluates every
// player in registration order, settling the first winner found.
func (e *Engine) CallNumber() (int, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callNumberLocked()
}

func (e *Engine) callNumberLocked() (int, string, error) {
	if e.state != StateActive || e.session.WinnerID != "" {
		return 0, "", &InvalidStateError{Op: "call", State: e.state}
	}

	boardType := e.sessionBoardTypeLocked()
	exclude := make(map[int]bool, len(e.session.CalledNumbers))
	for _, n := range e.session.CalledNumbers {
		exclude[n] = true
	}

	n, err := e.draw.DrawNext(exclude, boardType.MaxNumber())
	if err != nil {
		return 0, "", err
	}
	e.session.CalledNumbers = append(e.session.CalledNumbers, n)
	e.session.CurrentNumber = n
	display := boardType.Display(n)

	e.bc.ToPlayers(NewEvent("number_called", map[string]any{
		"number":      n,
		"display":     display,
		"totalCalled": len(e.session.CalledNumbers),
	}), "")
	e.bc.ToAdmins(NewEvent("number_called_admin", map[string]any{
		"number":        n,
		"display":       display,
		"totalCalled":   len(e.session.CalledNumbers),
		"calledNumbers": append([]int(nil), e.session.CalledNumbers...),
	}))

	for _, id := range e.order {
		p := e.players[id]
		if pattern, won := WinningPattern(p.BoardType, p.Grid, p.Marked); won {
			e.settleWinLocked(p, pattern)
			break
		}
	}
	return n, display, nil
}

// MarkNumber records a mark if the number is on the player's cached
// grid, then re-checks that player for a win. Unknown players, idle
// rounds and already-won rounds are silent no-ops.
func (e *Engine) MarkNumber(playerID string, number int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok || e.state != StateActive || e.session.WinnerID != "" {
		return
	}
	p.LastActive = e.clock.Now()

	onGrid := false
	for _, n := range p.Grid {
		if n == number {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return
	}
	p.Marked[number] = true

	if pattern, won := WinningPattern(p.BoardType, p.Grid, p.Marked); won {
		e.settleWinLocked(p, pattern)
	}
}

// ClaimWin settles a win when the evaluator agrees, otherwise answers
// the claimant alone with an error event.
func (e *Engine) ClaimWin(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		e.bc.ToPlayer(playerID, ErrorEvent("player not found"))
		return false
	}
	p.LastActive = e.clock.Now()
	if e.state != StateActive || e.session.WinnerID != "" {
		e.bc.ToPlayer(playerID, ErrorEvent("round is not active"))
		return false
	}

	pattern, won := WinningPattern(p.BoardType, p.Grid, p.Marked)
	if !won {
		e.bc.ToPlayer(playerID, ErrorEvent("no winning pattern yet"))
		return false
	}
	e.settleWinLocked(p, pattern)
	return true
}

// Payout computes the winner's prize. The pool itself is a derived
// figure and is not decremented by the payout.
func Payout(stake, totalPlayers int, serviceFee float64) int {
	return int(math.Floor(float64(stake*totalPlayers) * 0.8 * (1 - serviceFee)))
}

func (e *Engine) settleWinLocked(p *models.Player, pattern string) {
	prize := Payout(p.Stake, len(e.players), e.cfg.ServiceFee)

	p.IsWinner = true
	p.Balance += prize
	p.Winnings += prize
	e.session.WinnerID = p.ID
	e.session.TotalPaidOut += prize
	e.state = StateWon
	e.session.Active = false
	e.stopAutoDrawLocked()

	logger.Infof("winner %s pattern=%s prize=%d", p.Name, pattern, prize)

	e.bc.ToPlayers(NewEvent("winner", map[string]any{
		"playerId":   p.ID,
		"playerName": p.Name,
		"prize":      prize,
		"pattern":    pattern,
	}), "")
	e.bc.ToAdmins(NewEvent("winner_admin", map[string]any{
		"player":       p.AdminView(),
		"prize":        prize,
		"pattern":      pattern,
		"totalPaidOut": e.session.TotalPaidOut,
	}))

	e.recordRoundLocked(p, pattern, prize)
}

func (e *Engine) recordRoundLocked(winner *models.Player, pattern string, prize int) {
	if e.audit == nil || e.session.StartedAt == nil {
		return
	}
	rec := RoundAudit{
		StartedAt:     *e.session.StartedAt,
		EndedAt:       e.clock.Now(),
		Players:       len(e.players),
		BoardType:     string(e.sessionBoardTypeLocked()),
		CalledNumbers: append([]int(nil), e.session.CalledNumbers...),
		Pattern:       pattern,
		Prize:         prize,
	}
	if winner != nil {
		rec.WinnerName = winner.Name
		rec.WinnerPhone = winner.Phone
	}
	e.audit.RecordRound(rec)
}

// -------------------- Money --------------------

// Withdraw debits a player's balance. Withdrawal is a balance debit
// only; no payment gateway is involved.
func (e *Engine) Withdraw(playerID string, amount int, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return &NotFoundError{PlayerID: playerID}
	}
	if amount < e.cfg.MinWithdrawal {
		return validationf("minimum withdrawal is %d", e.cfg.MinWithdrawal)
	}
	if account == "" {
		return validationf("account is required")
	}
	if amount > p.Balance {
		return validationf("insufficient balance")
	}

	p.Balance -= amount
	p.LastActive = e.clock.Now()

	e.bc.ToPlayer(p.ID, NewEvent("withdrawal_processed", map[string]any{
		"amount":  amount,
		"balance": p.Balance,
	}))
	e.bc.ToAdmins(NewEvent("withdrawal_admin", map[string]any{
		"player":  p.AdminView(),
		"amount":  amount,
		"account": account,
	}))

	if e.audit != nil {
		e.audit.RecordWithdrawal(WithdrawalAudit{
			PlayerName:   p.Name,
			Phone:        p.Phone,
			Account:      account,
			Amount:       amount,
			BalanceAfter: p.Balance,
		})
	}
	return nil
}

// -------------------- Views --------------------

// Snapshot is the player-facing full state used by get_state and
// reconnect resends.
func (e *Engine) Snapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() map[string]any {
	players := make([]map[string]any, 0, len(e.order))
	for _, id := range e.order {
		players = append(players, e.players[id].PublicView())
	}
	boardType := e.sessionBoardTypeLocked()

	var display string
	if e.session.CurrentNumber != 0 {
		display = boardType.Display(e.session.CurrentNumber)
	}
	return map[string]any{
		"state":         string(e.state),
		"roundActive":   e.state == StateActive,
		"calledNumbers": append([]int(nil), e.session.CalledNumbers...),
		"currentNumber": e.session.CurrentNumber,
		"display":       display,
		"prizePool":     e.session.PrizePool,
		"players":       players,
		"winnerName":    e.winnerNameLocked(),
		"startedAt":     e.session.StartedAt,
	}
}

// AdminSnapshot mirrors the snapshot with full player details and the
// lifetime totals.
func (e *Engine) AdminSnapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshotLocked()
	players := make([]map[string]any, 0, len(e.order))
	for _, id := range e.order {
		players = append(players, e.players[id].AdminView())
	}
	snap["players"] = players
	snap["totalCollected"] = e.session.TotalCollected
	snap["totalPaidOut"] = e.session.TotalPaidOut
	return snap
}

// Stats is the health/stats query surface.
func (e *Engine) Stats() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	return map[string]any{
		"activePlayers":  len(e.players),
		"roundActive":    e.state == StateActive,
		"calledCount":    len(e.session.CalledNumbers),
		"prizePool":      e.session.PrizePool,
		"totalCollected": e.session.TotalCollected,
		"totalPaidOut":   e.session.TotalPaidOut,
		"winnerName":     e.winnerNameLocked(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) winnerNameLocked() string {
	if e.session.WinnerID == "" {
		return ""
	}
	if p, ok := e.players[e.session.WinnerID]; ok {
		return p.Name
	}
	return ""
}

// sessionBoardTypeLocked picks the draw range: the board type of the
// earliest-registered player, falling back to 75-ball with nobody
// registered. Sessions are expected to hold a single board type;
// draws are deliberately single-range, never mixed.
func (e *Engine) sessionBoardTypeLocked() models.BoardType {
	if len(e.order) > 0 {
		return e.players[e.order[0]].BoardType
	}
	return models.Board75
}

// -------------------- Background tasks --------------------

// startAutoDrawLocked spins up the periodic draw, tearing down any
// previous ticker first so re-entering start never doubles timers.
func (e *Engine) startAutoDrawLocked() {
	e.stopAutoDrawLocked()
	cancel := make(chan struct{})
	e.drawCancel = cancel
	go e.autoDraw(cancel)
}

func (e *Engine) stopAutoDrawLocked() {
	if e.drawCancel != nil {
		close(e.drawCancel)
		e.drawCancel = nil
	}
}

func (e *Engine) autoDraw(cancel chan struct{}) {
	ticker := e.clock.NewTicker(e.cfg.DrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if _, _, err := e.CallNumber(); err != nil {
				if err == ErrDrawExhausted {
					logger.Warnf("auto draw exhausted, retrying next tick")
					continue
				}
				// Round ended between ticks.
				return
			}
		}
	}
}

func (e *Engine) sweepLoop(stop chan struct{}) {
	ticker := e.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.sweepInactive()
		}
	}
}

// sweepInactive removes players idle past the configured threshold.
func (e *Engine) sweepInactive() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	ids := append([]string(nil), e.order...)
	for _, id := range ids {
		p := e.players[id]
		if now.Sub(p.LastActive) > e.cfg.InactivityTimeout {
			e.removeLocked(p, "inactive")
		}
	}
}
