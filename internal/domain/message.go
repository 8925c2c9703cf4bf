package domain

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies who produced a message
type Origin string

const (
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// Message is one entry of the session transcript. Messages are immutable
// once appended.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Seq       int       `json:"seq"`
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	IsError   bool      `json:"is_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsUser reports whether the message was typed by the user.
func (m Message) IsUser() bool {
	return m.Origin == OriginUser
}
