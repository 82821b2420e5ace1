package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/storage"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// ErrFolderNotFound is returned when a folder id is not registered.
var ErrFolderNotFound = errors.New("folder not found")

// FolderRegistry manages the named folders of one agent.
type FolderRegistry struct {
	kv       storage.Store
	sessions *Store

	mu      sync.RWMutex
	folders []types.Folder
}

// NewFolderRegistry loads the folders stored for the sessions' namespace and
// attaches itself to sessions so MoveToFolder rejects unknown folders.
func NewFolderRegistry(ctx context.Context, kv storage.Store, sessions *Store) (*FolderRegistry, error) {
	r := &FolderRegistry{kv: kv, sessions: sessions}
	if err := kv.Get(ctx, r.key(), &r.folders); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	sessions.attachFolders(r)
	return r, nil
}

func (r *FolderRegistry) key() string {
	return r.sessions.key("folders")
}

func (r *FolderRegistry) persistLocked(ctx context.Context, folders []types.Folder) error {
	if folders == nil {
		folders = []types.Folder{}
	}
	if err := r.kv.Put(ctx, r.key(), folders); err != nil {
		return fmt.Errorf("persist folders: %w", err)
	}
	r.folders = folders
	return nil
}

func (r *FolderRegistry) indexLocked(id string) int {
	for i, f := range r.folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (r *FolderRegistry) publish(t event.EventType, f types.Folder) {
	if r.sessions.bus == nil {
		return
	}
	r.sessions.bus.PublishSync(event.Event{
		Type: t,
		Data: event.FolderData{AgentID: r.sessions.agent.ID, Info: &f},
	})
}

// Create registers a new folder. Names need not be unique.
func (r *FolderRegistry) Create(ctx context.Context, name string) (types.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Folder{}, errors.New("folder name must not be empty")
	}

	r.mu.Lock()
	f := types.Folder{
		ID:        r.sessions.newID(),
		Name:      name,
		CreatedAt: r.sessions.now().UnixMilli(),
	}
	next := append(append([]types.Folder{}, r.folders...), f)
	err := r.persistLocked(ctx, next)
	r.mu.Unlock()
	if err != nil {
		return types.Folder{}, err
	}

	r.publish(event.FolderCreated, f)
	return f, nil
}

// List returns the folders ordered by creation time.
func (r *FolderRegistry) List() []types.Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]types.Folder{}, r.folders...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns the folder with the given id.
func (r *FolderRegistry) Get(id string) (types.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.folders[i], nil
	}
	return types.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
}

// hold read-locks the registry while id is registered. Delete waits for the
// release.
func (r *FolderRegistry) hold(id string) (func(), bool) {
	r.mu.RLock()
	if r.indexLocked(id) < 0 {
		r.mu.RUnlock()
		return nil, false
	}
	return r.mu.RUnlock, true
}

// Rename changes a folder's name.
func (r *FolderRegistry) Rename(ctx context.Context, id, name string) (types.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Folder{}, errors.New("folder name must not be empty")
	}

	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return types.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	next := append([]types.Folder{}, r.folders...)
	next[i].Name = name
	f := next[i]
	err := r.persistLocked(ctx, next)
	r.mu.Unlock()
	if err != nil {
		return types.Folder{}, err
	}

	r.publish(event.FolderUpdated, f)
	return f, nil
}

// Delete removes a folder. Its sessions are moved out of it first and are
// never deleted.
func (r *FolderRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	f := r.folders[i]

	moved, err := r.sessions.ClearFolder(ctx, id)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	next := append(append([]types.Folder{}, r.folders[:i]...), r.folders[i+1:]...)
	err = r.persistLocked(ctx, next)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.publish(event.FolderDeleted, f)
	logging.Info().Str("folder", id).Int("sessions", moved).Msg("folder deleted")
	return nil
}
