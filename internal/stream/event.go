package stream

import (
	"encoding/json"

	"github.com/opencode-ai/agentchat/internal/logging"
)

// Frame payload discriminators.
const (
	TypeItem = "item"
	TypeEnd  = "end"
)

// Event is the interpreted meaning of one frame. It is one of ContentDelta,
// StreamEnd or Unrecognized.
type Event interface {
	event()
}

// ContentDelta carries an incremental fragment of assistant text.
type ContentDelta struct {
	Content string
}

// StreamEnd marks the end of a response, optionally naming the conversation.
type StreamEnd struct {
	Title *string
}

// Unrecognized is any frame that is not a delta or an end marker.
type Unrecognized struct {
	Reason string
}

func (ContentDelta) event() {}
func (StreamEnd) event()    {}
func (Unrecognized) event() {}

type envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Title   json.RawMessage `json:"title"`
}

// Interpret classifies a frame. It never fails: frames that are not valid
// JSON or have an unknown shape come back as Unrecognized.
func Interpret(frame string) Event {
	var env envelope
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		logging.Debug().
			Err(err).
			Int("frameLen", len(frame)).
			Msg("skipping malformed frame")
		return Unrecognized{Reason: "malformed json"}
	}

	switch env.Type {
	case TypeItem:
		var content string
		if len(env.Content) == 0 || json.Unmarshal(env.Content, &content) != nil {
			return Unrecognized{Reason: "item without string content"}
		}
		return ContentDelta{Content: content}
	case TypeEnd:
		var title *string
		if len(env.Title) > 0 {
			var t string
			if json.Unmarshal(env.Title, &t) == nil {
				title = &t
			}
		}
		return StreamEnd{Title: title}
	default:
		return Unrecognized{Reason: "unknown type " + env.Type}
	}
}
