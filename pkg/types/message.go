package types

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderAI   Sender = "ai"
	SenderUser Sender = "user"
)

// Message is a single chat message. Once committed to a session it is never
// modified.
type Message struct {
	Text               string `json:"text" yaml:"text"`
	Sender             Sender `json:"sender" yaml:"sender"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"`
	RawAccumulatedText string `json:"rawAccumulatedText,omitempty" yaml:"rawAccumulatedText,omitempty"`
}

// NewMessage creates a message stamped with the given time.
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{
		Text:      text,
		Sender:    sender,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}
