package session

import (
	"context"
	"errors"

	"github.com/opencode-ai/agentchat/internal/storage"
)

// Prefs holds the per-agent toggles persisted next to the sessions.
type Prefs struct {
	UseMemory      bool `json:"useMemory"`
	SidebarVisible bool `json:"sidebarVisible"`
}

// Prefs reads the agent's preferences. Unset values default to true.
func (s *Store) Prefs(ctx context.Context) (Prefs, error) {
	useMemory, err := s.getBool(ctx, "use-memory", true)
	if err != nil {
		return Prefs{}, err
	}
	sidebar, err := s.getBool(ctx, "sidebar-visible", true)
	if err != nil {
		return Prefs{}, err
	}
	return Prefs{UseMemory: useMemory, SidebarVisible: sidebar}, nil
}

// SetUseMemory persists whether the backend should use conversation memory.
func (s *Store) SetUseMemory(ctx context.Context, v bool) error {
	return s.kv.Put(ctx, s.key("use-memory"), v)
}

// SetSidebarVisible persists the sidebar toggle.
func (s *Store) SetSidebarVisible(ctx context.Context, v bool) error {
	return s.kv.Put(ctx, s.key("sidebar-visible"), v)
}

func (s *Store) getBool(ctx context.Context, suffix string, def bool) (bool, error) {
	var v bool
	err := s.kv.Get(ctx, s.key(suffix), &v)
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}
