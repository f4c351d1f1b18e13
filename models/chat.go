package models

import "time"

type ChatKind string

const (
	ChatUser   ChatKind = "user"
	ChatSystem ChatKind = "system"
)

// ChatEntry is one line of the bounded lobby chat/event log.
type ChatEntry struct {
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Message    string    `json:"message"`
	Kind       ChatKind  `json:"kind"`
	At         time.Time `json:"at"`
}
