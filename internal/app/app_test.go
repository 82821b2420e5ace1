package app

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/storage"
	"github.com/opencode-ai/agentchat/pkg/types"
)

type recordingBackend struct {
	requests []chat.Request
}

func (b *recordingBackend) Open(ctx context.Context, req chat.Request) (io.ReadCloser, error) {
	b.requests = append(b.requests, req)
	return io.NopCloser(strings.NewReader("{\"type\":\"item\",\"content\":\"pong\"}\n")), nil
}

func testConfig(dir string) *types.Config {
	return &types.Config{
		DefaultAgent: "assistant",
		Agent: map[string]types.AgentConfig{
			"assistant": {Endpoint: "http://a", Namespace: "assistant", Source: "web", Welcome: "Hi", Title: "New Chat"},
			"support":   {Endpoint: "http://s", Namespace: "support", Source: "web", Welcome: "Support", Title: "Ticket"},
		},
		Storage: &types.StorageConfig{Driver: storage.DriverFile, Path: dir},
	}
}

func TestApp_NamespaceIsStable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := &recordingBackend{}
	withBackend := WithBackend(func(types.AgentConfig) chat.Backend { return backend })

	a, err := New(ctx, testConfig(dir), withBackend)
	require.NoError(t, err)
	ns := a.Namespace()
	assert.Len(t, ns, 26)
	require.NoError(t, a.Close())

	b, err := New(ctx, testConfig(dir), withBackend)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, ns, b.Namespace())
}

func TestApp_Engines(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	a, err := New(ctx, testConfig(t.TempDir()), WithBackend(func(types.AgentConfig) chat.Backend { return backend }))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"assistant", "support"}, a.Agents())

	def, err := a.Engine("")
	require.NoError(t, err)
	assert.Equal(t, "assistant", def.AgentID)
	assert.Same(t, def, a.DefaultEngine())

	support, err := a.Engine("support")
	require.NoError(t, err)
	assert.Equal(t, "Ticket", support.Sessions.Current().Title)
	assert.Equal(t, "Support", support.Sessions.Current().Messages[0].Text)

	_, err = a.Engine("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	res, err := support.Chat.Send(ctx, support.Sessions.CurrentID(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Message.Text)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, a.Namespace(), backend.requests[0].Metadata.Namespace)
	assert.Equal(t, "web", backend.requests[0].Metadata.Source)
}

func TestApp_SQLiteDriver(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("")
	cfg.Storage = &types.StorageConfig{Driver: storage.DriverSQLite, Path: t.TempDir() + "/agentchat.db"}

	a, err := New(ctx, cfg, WithBackend(func(types.AgentConfig) chat.Backend { return &recordingBackend{} }))
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Storage.Exists(ctx, NamespaceKey))
	assert.True(t, a.Storage.Exists(ctx, "support-chats"))
}
