// Package app wires configuration, storage, the event bus and one chat
// engine per configured agent into a single application context. It is
// created once at startup and passed to the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/config"
	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/session"
	"github.com/opencode-ai/agentchat/internal/storage"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// NamespaceKey holds the per-install identifier sent with every request.
const NamespaceKey = "namespace"

// ErrUnknownAgent is returned for an agent id missing from the config.
var ErrUnknownAgent = errors.New("unknown agent")

// Engine is the chat engine of one agent.
type Engine struct {
	AgentID   string
	Endpoint  string
	Namespace string

	Sessions *session.Store
	Folders  *session.FolderRegistry
	Chat     *chat.Orchestrator
}

// App is the application context.
type App struct {
	Config  *types.Config
	Storage storage.Store
	Bus     *event.Bus

	namespace string
	engines   map[string]*Engine
	closeOnce sync.Once
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	store   storage.Store
	backend func(types.AgentConfig) chat.Backend
}

// WithStore uses kv instead of opening the configured storage driver. The
// App takes ownership of kv.
func WithStore(kv storage.Store) Option {
	return func(o *options) { o.store = kv }
}

// WithBackend replaces the HTTP client built for each agent.
func WithBackend(fn func(types.AgentConfig) chat.Backend) Option {
	return func(o *options) { o.backend = fn }
}

// New builds the application context from cfg.
func New(ctx context.Context, cfg *types.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.store
	if kv == nil {
		var err error
		kv, err = storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	a := &App{
		Config:  cfg,
		Storage: kv,
		Bus:     event.NewBus(),
		engines: make(map[string]*Engine),
	}

	ns, err := loadNamespace(ctx, kv)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.namespace = ns

	for _, id := range config.AgentIDs(cfg) {
		agent := cfg.Agent[id]
		var backend chat.Backend
		if o.backend != nil {
			backend = o.backend(agent)
		} else {
			backend = chat.NewClient(chat.ClientConfig{
				Endpoint:         agent.Endpoint,
				Headers:          agent.Headers,
				ConnectTimeout:   cfg.ConnectTimeout(),
				FirstByteTimeout: cfg.FirstByteTimeout(),
			})
		}
		engine, err := a.newEngine(ctx, id, agent, backend)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("agent %s: %w", id, err)
		}
		a.engines[id] = engine
	}

	logging.Info().
		Str("namespace", ns).
		Int("agents", len(a.engines)).
		Str("storage", cfg.Storage.Driver).
		Msg("application ready")
	return a, nil
}

func (a *App) newEngine(ctx context.Context, id string, agent types.AgentConfig, backend chat.Backend) (*Engine, error) {
	store, err := session.NewStore(ctx, a.Storage, session.AgentProfile{
		ID:           id,
		Namespace:    agent.Namespace,
		Welcome:      agent.Welcome,
		DefaultTitle: agent.Title,
	}, session.WithBus(a.Bus))
	if err != nil {
		return nil, err
	}
	folders, err := session.NewFolderRegistry(ctx, a.Storage, store)
	if err != nil {
		return nil, err
	}
	orch := chat.NewOrchestrator(store, backend, chat.Options{
		Namespace: a.namespace,
		Source:    agent.Source,
		Bus:       a.Bus,
	})
	return &Engine{
		AgentID:   id,
		Endpoint:  agent.Endpoint,
		Namespace: agent.Namespace,
		Sessions:  store,
		Folders:   folders,
		Chat:      orch,
	}, nil
}

// loadNamespace returns the stored install identifier, generating and
// persisting one on first run.
func loadNamespace(ctx context.Context, kv storage.Store) (string, error) {
	var ns string
	err := kv.Get(ctx, NamespaceKey, &ns)
	if err == nil && ns != "" {
		return ns, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("load namespace: %w", err)
	}
	ns = ulid.Make().String()
	if err := kv.Put(ctx, NamespaceKey, ns); err != nil {
		return "", fmt.Errorf("persist namespace: %w", err)
	}
	logging.Info().Str("namespace", ns).Msg("generated install namespace")
	return ns, nil
}

// Namespace returns the per-install identifier.
func (a *App) Namespace() string {
	return a.namespace
}

// Engine returns the engine for an agent. An empty id selects the default
// agent.
func (a *App) Engine(agentID string) (*Engine, error) {
	if agentID == "" {
		agentID = a.Config.DefaultAgent
	}
	e, ok := a.engines[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return e, nil
}

// DefaultEngine returns the engine of the default agent.
func (a *App) DefaultEngine() *Engine {
	return a.engines[a.Config.DefaultAgent]
}

// Agents returns the configured agent ids, sorted.
func (a *App) Agents() []string {
	return config.AgentIDs(a.Config)
}

// Close aborts in-flight requests and releases storage and the bus.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		for _, e := range a.engines {
			e.Chat.Close()
		}
		if cerr := a.Bus.Close(); cerr != nil {
			err = cerr
		}
		if cerr := a.Storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
