package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/models"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
)

// Hub is the session directory: it maps player ids to their sockets,
// tracks admin observers with a last-seen timestamp, and keeps the
// bounded chat log. It implements game.Broadcaster; all delivery is
// best effort and fire-and-forget.
type Hub struct {
	mu         sync.RWMutex
	players    map[string]*Client
	admins     map[*Client]time.Time
	chat       []models.ChatEntry
	chatLimit  int
	staleAfter time.Duration
}

func NewHub(chatLimit int, staleAfter time.Duration) *Hub {
	return &Hub{
		players:    make(map[string]*Client),
		admins:     make(map[*Client]time.Time),
		chatLimit:  chatLimit,
		staleAfter: staleAfter,
	}
}

// -------------------- Registry --------------------

// BindPlayer attaches a socket to a player id, closing any previous
// socket for the same player.
func (h *Hub) BindPlayer(playerID string, c *Client) {
	h.mu.Lock()
	old, ok := h.players[playerID]
	h.players[playerID] = c
	h.mu.Unlock()

	if ok && old != c {
		old.Close()
	}
}

// DetachPlayer removes the mapping only if it still points at c, so a
// reconnected socket is not torn down by the old one's cleanup.
func (h *Hub) DetachPlayer(playerID string, c *Client) {
	h.mu.Lock()
	if h.players[playerID] == c {
		delete(h.players, playerID)
	}
	h.mu.Unlock()
}

// DropPlayer closes and removes a player's socket (kick path).
func (h *Hub) DropPlayer(playerID string) {
	h.mu.Lock()
	c, ok := h.players[playerID]
	delete(h.players, playerID)
	h.mu.Unlock()

	if ok {
		c.Close()
	}
}

func (h *Hub) AddAdmin(c *Client) {
	h.mu.Lock()
	h.admins[c] = time.Now()
	h.mu.Unlock()
}

// TouchAdmin refreshes an observer's last-seen timestamp.
func (h *Hub) TouchAdmin(c *Client) {
	h.mu.Lock()
	if _, ok := h.admins[c]; ok {
		h.admins[c] = time.Now()
	}
	h.mu.Unlock()
}

func (h *Hub) RemoveAdmin(c *Client) {
	h.mu.Lock()
	delete(h.admins, c)
	h.mu.Unlock()
}

// -------------------- Broadcast (game.Broadcaster) --------------------

// ToPlayers delivers to every connected player channel except the
// excluded one. Per-recipient failures are swallowed.
func (h *Hub) ToPlayers(ev game.Event, excludePlayerID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.players))
	for id, c := range h.players {
		if id == excludePlayerID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	h.fanout(clients, ev)
}

func (h *Hub) ToPlayer(playerID string, ev game.Event) {
	h.mu.RLock()
	c, ok := h.players[playerID]
	h.mu.RUnlock()

	if ok {
		c.SendEvent(ev)
	}
}

// ToAdmins prunes observers stale beyond the threshold, then delivers
// to the rest.
func (h *Hub) ToAdmins(ev game.Event) {
	now := time.Now()
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.admins))
	for c, seen := range h.admins {
		if now.Sub(seen) > h.staleAfter {
			delete(h.admins, c)
			c.Close()
			continue
		}
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.fanout(clients, ev)
}

func (h *Hub) fanout(clients []*Client, ev game.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("marshal event %s: %v", ev.Type, err)
		return
	}
	for _, c := range clients {
		c.Send(b)
	}
}

// -------------------- Chat --------------------

// AddChat appends to the bounded log, evicting the oldest entries
// past the retention cap, and broadcasts the entry to everyone.
func (h *Hub) AddChat(entry models.ChatEntry) {
	h.mu.Lock()
	h.chat = append(h.chat, entry)
	if over := len(h.chat) - h.chatLimit; over > 0 {
		h.chat = append([]models.ChatEntry(nil), h.chat[over:]...)
	}
	h.mu.Unlock()

	ev := game.NewEvent("chat_message", map[string]any{
		"authorId":   entry.AuthorID,
		"authorName": entry.AuthorName,
		"message":    entry.Message,
		"kind":       entry.Kind,
		"at":         entry.At,
	})
	h.ToPlayers(ev, "")
	h.ToAdmins(ev)
}

func (h *Hub) ChatHistory() []models.ChatEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.ChatEntry(nil), h.chat...)
}

// PlayerCount reports currently connected player sockets.
func (h *Hub) PlayerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.players)
}
