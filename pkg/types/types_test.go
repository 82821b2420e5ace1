package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSession_JSONRoundTrip(t *testing.T) {
	folder := "folder-1"
	session := Session{
		ID: "session-123",
		Messages: []Message{
			{Text: "hello", Sender: SenderUser, Timestamp: "2026-01-02T03:04:05Z"},
			{Text: "hi", Sender: SenderAI, Timestamp: "2026-01-02T03:04:06Z", RawAccumulatedText: "hi"},
		},
		Title:       "Greeting",
		LastUpdated: 1700000001000,
		FolderID:    &folder,
		Archived:    true,
		AgentID:     "assistant",
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.FolderID == nil || *decoded.FolderID != folder {
		t.Errorf("FolderID mismatch: got %v", decoded.FolderID)
	}
	if !decoded.Archived {
		t.Error("Archived should survive a round trip")
	}
	if len(decoded.Messages) != 2 || decoded.Messages[1].RawAccumulatedText != "hi" {
		t.Errorf("Messages mismatch: %+v", decoded.Messages)
	}
}

func TestSession_NullFolderID(t *testing.T) {
	data, err := json.Marshal(Session{ID: "s1"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	v, ok := raw["folderId"]
	if !ok {
		t.Fatal("folderId should always be present")
	}
	if v != nil {
		t.Errorf("folderId should be null, got %v", v)
	}
}

func TestSession_Clone(t *testing.T) {
	folder := "f"
	s := &Session{ID: "s1", Messages: []Message{{Text: "a"}}, FolderID: &folder}
	c := s.Clone()

	c.Messages[0].Text = "changed"
	*c.FolderID = "other"

	if s.Messages[0].Text != "a" {
		t.Error("clone shares message storage")
	}
	if *s.FolderID != "f" {
		t.Error("clone shares folder id")
	}
}

func TestSession_FirstUserMessage(t *testing.T) {
	s := &Session{Messages: []Message{
		{Text: "welcome", Sender: SenderAI},
		{Text: "question", Sender: SenderUser},
		{Text: "later", Sender: SenderUser},
	}}
	text, ok := s.FirstUserMessage()
	if !ok || text != "question" {
		t.Errorf("got %q, %v", text, ok)
	}

	if _, ok := (&Session{}).FirstUserMessage(); ok {
		t.Error("empty session has no user message")
	}
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	m := NewMessage(SenderUser, "hi", at)
	if m.Timestamp != "2026-03-04T05:06:07Z" {
		t.Errorf("unexpected timestamp %s", m.Timestamp)
	}
	if !m.IsUser() {
		t.Error("expected user message")
	}
}
