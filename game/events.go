package game

import (
	"encoding/json"
	"time"
)

// Event is one outbound message. The type tag is flattened into the
// payload on the wire, matching what clients switch on.
type Event struct {
	Type string
	Data map[string]any
}

func NewEvent(typ string, data map[string]any) Event {
	return Event{Type: typ, Data: data}
}

func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = e.Type
	return json.Marshal(m)
}

// ErrorEvent is the generic error surface toward a single client.
func ErrorEvent(message string) Event {
	return NewEvent("error", map[string]any{"message": message})
}

// Broadcaster is the engine's outbound port. Delivery is best effort
// and fire-and-forget; a dead recipient never fails the caller.
type Broadcaster interface {
	ToPlayers(ev Event, excludePlayerID string)
	ToPlayer(playerID string, ev Event)
	ToAdmins(ev Event)
}

// AuditSink receives write-only audit rows. Implementations must not
// block the caller.
type AuditSink interface {
	RecordRound(rec RoundAudit)
	RecordWithdrawal(rec WithdrawalAudit)
}

// RoundAudit summarises a finished round for the audit trail.
type RoundAudit struct {
	StartedAt     time.Time
	EndedAt       time.Time
	Players       int
	BoardType     string
	CalledNumbers []int
	WinnerName    string
	WinnerPhone   string
	Pattern       string
	Prize         int
}

// WithdrawalAudit records a processed balance debit.
type WithdrawalAudit struct {
	PlayerName   string
	Phone        string
	Account      string
	Amount       int
	BalanceAfter int
}
