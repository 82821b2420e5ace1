package event

import "github.com/opencode-ai/agentchat/pkg/types"

// SessionData is the data for session.created, session.updated and
// session.switched events.
type SessionData struct {
	AgentID string         `json:"agentId"`
	Info    *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
}

// FolderData is the data for folder events.
type FolderData struct {
	AgentID string        `json:"agentId"`
	Info    *types.Folder `json:"info"`
}

// MessageCommittedData is the data for message.committed events.
type MessageCommittedData struct {
	AgentID   string        `json:"agentId"`
	SessionID string        `json:"sessionId"`
	Message   types.Message `json:"message"`
}

// MessageDeltaData is the data for message.delta events. Text is the whole
// reply accumulated so far, not just the latest fragment.
type MessageDeltaData struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// StateData is the data for chat.state events.
type StateData struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}
