// Package types provides the core data types shared by the chat engine,
// the HTTP API and the CLI.
package types

// Session is one persisted conversation thread.
type Session struct {
	ID          string    `json:"id" yaml:"id"`
	Messages    []Message `json:"messages" yaml:"messages"`
	Title       string    `json:"title" yaml:"title"`
	LastUpdated int64     `json:"lastUpdated" yaml:"lastUpdated"`
	FolderID    *string   `json:"folderId" yaml:"folderId"`
	Archived    bool      `json:"archived" yaml:"archived"`
	AgentID     string    `json:"agentId" yaml:"agentId"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	if s.FolderID != nil {
		id := *s.FolderID
		c.FolderID = &id
	}
	return &c
}

// InFolder reports whether the session belongs to the given folder.
func (s *Session) InFolder(folderID string) bool {
	return s.FolderID != nil && *s.FolderID == folderID
}

// FirstUserMessage returns the text of the first user message, if any.
func (s *Session) FirstUserMessage() (string, bool) {
	for _, m := range s.Messages {
		if m.Sender == SenderUser {
			return m.Text, true
		}
	}
	return "", false
}

// Folder is a named grouping of sessions.
type Folder struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	CreatedAt int64  `json:"createdAt" yaml:"createdAt"`
}
