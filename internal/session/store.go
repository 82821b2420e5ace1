package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/storage"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// ErrNotFound is returned when a session id is not in the store.
var ErrNotFound = errors.New("session not found")

// AgentProfile parameterizes a Store for one agent.
type AgentProfile struct {
	ID           string
	Namespace    string
	Welcome      string
	DefaultTitle string
}

// Option configures a Store.
type Option func(*Store)

// WithBus publishes store events on bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces ULID session ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// folderLookup is satisfied by FolderRegistry. hold keeps id registered
// until release is called.
type folderLookup interface {
	hold(id string) (release func(), ok bool)
}

// Store holds every session of one agent.
type Store struct {
	kv    storage.Store
	agent AgentProfile
	bus   *event.Bus
	now   func() time.Time
	newID func() string

	mu        sync.RWMutex
	sessions  map[string]*types.Session
	currentID string
	folders   folderLookup
}

// NewStore loads the agent's sessions from kv. A store that loads empty gets a
// fresh session, and a dangling current pointer is repaired to the most
// recently updated session.
func NewStore(ctx context.Context, kv storage.Store, agent AgentProfile, opts ...Option) (*Store, error) {
	if agent.DefaultTitle == "" {
		agent.DefaultTitle = DefaultTitle
	}
	if agent.Namespace == "" {
		agent.Namespace = agent.ID
	}
	s := &Store{
		kv:       kv,
		agent:    agent,
		now:      time.Now,
		newID:    generateID,
		sessions: make(map[string]*types.Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := kv.Get(ctx, s.key("chats"), &s.sessions); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*types.Session)
	}
	for id, sess := range s.sessions {
		if sess == nil {
			delete(s.sessions, id)
			continue
		}
		sess.ID = id
		if sess.AgentID == "" {
			sess.AgentID = agent.ID
		}
		if sess.Messages == nil {
			sess.Messages = []types.Message{}
		}
	}

	var current string
	if err := kv.Get(ctx, s.key("session-id"), &current); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load current session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) == 0 {
		sess := s.newSessionLocked()
		s.sessions[sess.ID] = sess
		if err := s.persistLocked(ctx); err != nil {
			return nil, err
		}
		current = sess.ID
	}
	if _, ok := s.sessions[current]; !ok {
		current = s.mostRecentLocked()
	}
	if err := s.setCurrentLocked(ctx, current); err != nil {
		return nil, err
	}

	logging.Debug().
		Str("agent", agent.ID).
		Int("sessions", len(s.sessions)).
		Str("current", current).
		Msg("session store loaded")
	return s, nil
}

// Agent returns the profile the store was built for.
func (s *Store) Agent() AgentProfile {
	return s.agent
}

// KV returns the underlying key/value store.
func (s *Store) KV() storage.Store {
	return s.kv
}

func (s *Store) key(suffix string) string {
	return s.agent.Namespace + "-" + suffix
}

// generateID returns a time-ordered unique id.
func generateID() string {
	return ulid.Make().String()
}

func (s *Store) newSessionLocked() *types.Session {
	now := s.now()
	return &types.Session{
		ID:          s.newID(),
		Messages:    []types.Message{types.NewMessage(types.SenderAI, s.agent.Welcome, now)},
		Title:       s.agent.DefaultTitle,
		LastUpdated: now.UnixMilli(),
		FolderID:    nil,
		Archived:    false,
		AgentID:     s.agent.ID,
	}
}

// nextTimestamp keeps lastUpdated strictly increasing per session even when
// the clock stalls or steps back.
func (s *Store) nextTimestamp(prev int64) int64 {
	now := s.now().UnixMilli()
	if now <= prev {
		return prev + 1
	}
	return now
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.kv.Put(ctx, s.key("chats"), s.sessions); err != nil {
		return fmt.Errorf("persist sessions: %w", err)
	}
	return nil
}

func (s *Store) setCurrentLocked(ctx context.Context, id string) error {
	if err := s.kv.Put(ctx, s.key("session-id"), id); err != nil {
		return fmt.Errorf("persist current session: %w", err)
	}
	s.currentID = id
	return nil
}

func (s *Store) mostRecentLocked() string {
	var best *types.Session
	for _, sess := range s.sessions {
		if best == nil || less(sess, best) {
			best = sess
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// less orders sessions by lastUpdated descending, then id ascending.
func less(a, b *types.Session) bool {
	if a.LastUpdated != b.LastUpdated {
		return a.LastUpdated > b.LastUpdated
	}
	return a.ID < b.ID
}

func (s *Store) publish(events ...event.Event) {
	if s.bus == nil {
		return
	}
	for _, e := range events {
		s.bus.PublishSync(e)
	}
}

func (s *Store) sessionEvent(t event.EventType, sess *types.Session) event.Event {
	return event.Event{Type: t, Data: event.SessionData{AgentID: s.agent.ID, Info: sess.Clone()}}
}

// Create adds a fresh session seeded with the welcome message and makes it
// current.
func (s *Store) Create(ctx context.Context) (*types.Session, error) {
	s.mu.Lock()
	sess := s.newSessionLocked()
	s.sessions[sess.ID] = sess
	if err := s.persistLocked(ctx); err != nil {
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
		return nil, err
	}
	err := s.setCurrentLocked(ctx, sess.ID)
	out := sess.Clone()
	s.mu.Unlock()

	s.publish(s.sessionEvent(event.SessionCreated, out))
	if err != nil {
		return out, err
	}
	s.publish(s.sessionEvent(event.SessionSwitched, out))
	logging.Info().Str("agent", s.agent.ID).Str("session", out.ID).Msg("session created")
	return out, nil
}

// Load returns a copy of the session with the given id.
func (s *Store) Load(id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess.Clone(), nil
}

// Current returns a copy of the current session.
func (s *Store) Current() *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[s.currentID].Clone()
}

// CurrentID returns the id of the current session.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// SetCurrent makes id the current session.
func (s *Store) SetCurrent(ctx context.Context, id string) (*types.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.currentID == id {
		out := sess.Clone()
		s.mu.Unlock()
		return out, nil
	}
	if err := s.setCurrentLocked(ctx, id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := sess.Clone()
	s.mu.Unlock()

	s.publish(s.sessionEvent(event.SessionSwitched, out))
	return out, nil
}

// update applies fn to a copy of the session, bumps lastUpdated and persists.
// The stored session is swapped back if the write fails.
func (s *Store) update(ctx context.Context, id string, fn func(*types.Session) error) (*types.Session, error) {
	out, err := s.apply(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.publish(s.sessionEvent(event.SessionUpdated, out))
	return out, nil
}

// apply is update without the event.
func (s *Store) apply(ctx context.Context, id string, fn func(*types.Session) error) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := old.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.LastUpdated = s.nextTimestamp(old.LastUpdated)
	s.sessions[id] = next
	if err := s.persistLocked(ctx); err != nil {
		s.sessions[id] = old
		return nil, err
	}
	return next.Clone(), nil
}

// AppendMessage appends msg to the session.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) (*types.Session, error) {
	return s.update(ctx, id, func(sess *types.Session) error {
		sess.Messages = append(sess.Messages, msg)
		return nil
	})
}

// Rename sets the session title.
func (s *Store) Rename(ctx context.Context, id, title string) (*types.Session, error) {
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	return s.update(ctx, id, func(sess *types.Session) error {
		sess.Title = title
		return nil
	})
}

// SetArchived archives or restores the session.
func (s *Store) SetArchived(ctx context.Context, id string, archived bool) (*types.Session, error) {
	return s.update(ctx, id, func(sess *types.Session) error {
		sess.Archived = archived
		return nil
	})
}

// MoveToFolder assigns the session to a folder, or removes it from any folder
// when folderID is nil.
func (s *Store) MoveToFolder(ctx context.Context, id string, folderID *string) (*types.Session, error) {
	var fid *string
	release := func() {}
	if folderID != nil {
		s.mu.RLock()
		folders := s.folders
		s.mu.RUnlock()
		if folders != nil {
			// The folder cannot be deleted until the move is persisted.
			var ok bool
			if release, ok = folders.hold(*folderID); !ok {
				return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, *folderID)
			}
		}
		v := *folderID
		fid = &v
	}

	out, err := s.apply(ctx, id, func(sess *types.Session) error {
		sess.FolderID = fid
		return nil
	})
	release()
	if err != nil {
		return nil, err
	}
	s.publish(s.sessionEvent(event.SessionUpdated, out))
	return out, nil
}

// Commit appends a finished assistant message and applies the title rule in
// one write.
func (s *Store) Commit(ctx context.Context, id string, msg types.Message, title *string) (*types.Session, error) {
	sess, err := s.update(ctx, id, func(sess *types.Session) error {
		sess.Messages = append(sess.Messages, msg)
		sess.Title = InferTitle(title, sess.Title, sess.Messages, s.agent.DefaultTitle)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(event.Event{
		Type: event.MessageCommitted,
		Data: event.MessageCommittedData{AgentID: s.agent.ID, SessionID: id, Message: msg},
	})
	return sess, nil
}

// Delete removes a session. When it was current the most recently updated
// remaining session becomes current, and when none remain a fresh one is
// created so the store is never empty.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	old, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)

	var created *types.Session
	if len(s.sessions) == 0 {
		created = s.newSessionLocked()
		s.sessions[created.ID] = created
	}
	if err := s.persistLocked(ctx); err != nil {
		if created != nil {
			delete(s.sessions, created.ID)
		}
		s.sessions[id] = old
		s.mu.Unlock()
		return err
	}

	var switched *types.Session
	var err error
	if s.currentID == id {
		next := s.mostRecentLocked()
		if err = s.setCurrentLocked(ctx, next); err == nil {
			switched = s.sessions[next].Clone()
		}
	}
	s.mu.Unlock()

	events := []event.Event{{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{AgentID: s.agent.ID, SessionID: id},
	}}
	if created != nil {
		events = append(events, s.sessionEvent(event.SessionCreated, created))
	}
	if switched != nil {
		events = append(events, s.sessionEvent(event.SessionSwitched, switched))
	}
	s.publish(events...)

	logging.Info().Str("agent", s.agent.ID).Str("session", id).Msg("session deleted")
	return err
}

// ListByRecency returns copies of all sessions ordered by lastUpdated
// descending with ties broken by id.
func (s *Store) ListByRecency(includeArchived bool) []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Archived && !includeArchived {
			continue
		}
		list = append(list, sess.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })
	return list
}

// Len returns the number of sessions, archived included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ClearFolder removes every session from folderID in a single write and
// returns how many were affected. Recency is left untouched.
func (s *Store) ClearFolder(ctx context.Context, folderID string) (int, error) {
	s.mu.Lock()
	previous := make(map[string]*types.Session)
	for id, sess := range s.sessions {
		if !sess.InFolder(folderID) {
			continue
		}
		previous[id] = sess
		next := sess.Clone()
		next.FolderID = nil
		s.sessions[id] = next
	}
	if len(previous) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		for id, sess := range previous {
			s.sessions[id] = sess
		}
		s.mu.Unlock()
		return 0, err
	}
	events := make([]event.Event, 0, len(previous))
	for id := range previous {
		events = append(events, s.sessionEvent(event.SessionUpdated, s.sessions[id]))
	}
	s.mu.Unlock()

	s.publish(events...)
	return len(previous), nil
}

func (s *Store) attachFolders(f folderLookup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = f
}
