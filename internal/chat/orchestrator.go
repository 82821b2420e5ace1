package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/session"
	"github.com/opencode-ai/agentchat/internal/stream"
	"github.com/opencode-ai/agentchat/pkg/types"
)

var (
	ErrEmptyInput = errors.New("message is empty")
	ErrBusy       = errors.New("a reply is already in progress for this session")
	ErrCancelled  = errors.New("request cancelled")
	ErrClosed     = errors.New("orchestrator closed")
)

// ConnectionErrorText is committed in place of a reply the backend never
// delivered.
const ConnectionErrorText = "Sorry, I couldn't reach the server. Please check your connection and try again."

// State is a session's position in the request cycle.
type State string

const (
	StateIdle       State = "idle"
	StateSending    State = "sending"
	StateStreaming  State = "streaming"
	StateCommitting State = "committing"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Result describes a finished request.
type Result struct {
	Session *types.Session
	Message types.Message
	// Failed is set when ConnectionErrorText was committed. Err holds the cause.
	Failed bool
	Err    error
	Frames int
	Mode   stream.Mode
}

// Options configures an Orchestrator.
type Options struct {
	Namespace string
	Source    string
	Bus       *event.Bus
	Extractor Extractor
	Now       func() time.Time
}

// flight is one in-progress request.
type flight struct {
	cancel context.CancelFunc
	state  State
	text   string
	done   chan struct{}

	// committing is set once the reply can no longer be aborted.
	committing bool
}

// Orchestrator runs chat requests for one agent's sessions.
type Orchestrator struct {
	store     *session.Store
	backend   Backend
	bus       *event.Bus
	extractor Extractor
	namespace string
	source    string
	now       func() time.Time

	mu      sync.Mutex
	flights map[string]*flight
	closed  bool
}

// NewOrchestrator creates an orchestrator over store and backend.
func NewOrchestrator(store *session.Store, backend Backend, opts Options) *Orchestrator {
	if opts.Extractor == nil {
		opts.Extractor = DefaultExtractor()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:     store,
		backend:   backend,
		bus:       opts.Bus,
		extractor: opts.Extractor,
		namespace: opts.Namespace,
		source:    opts.Source,
		now:       opts.Now,
		flights:   make(map[string]*flight),
	}
}

// Store returns the session store the orchestrator commits to.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Send submits input on a session and blocks until the reply is committed,
// the request fails, or it is cancelled. Backend failures are not returned
// as errors: they commit ConnectionErrorText and set Result.Failed.
func (o *Orchestrator) Send(ctx context.Context, sessionID, input string, attachments []Attachment) (*Result, error) {
	if strings.TrimSpace(input) == "" && len(attachments) == 0 {
		return nil, ErrEmptyInput
	}
	if _, err := o.store.Load(sessionID); err != nil {
		return nil, err
	}

	fctx, f, err := o.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer o.finish(sessionID, f)

	log := logging.With().
		Str("agent", o.store.Agent().ID).
		Str("session", sessionID).
		Logger()

	// Persist with a context that outlives cancellation so a commit is never
	// half applied.
	persistCtx := context.WithoutCancel(ctx)

	text := composeInput(input, attachments, o.extractor)
	if _, err := o.store.AppendMessage(persistCtx, sessionID, types.NewMessage(types.SenderUser, text, o.now())); err != nil {
		return nil, fmt.Errorf("commit user message: %w", err)
	}

	useMemory := true
	if prefs, err := o.store.Prefs(persistCtx); err == nil {
		useMemory = prefs.UseMemory
	}

	body, err := o.backend.Open(fctx, Request{
		ChatInput: text,
		SessionID: sessionID,
		UseMemory: useMemory,
		Metadata:  Metadata{Namespace: o.namespace, Source: o.source},
	})
	if err != nil {
		if fctx.Err() != nil {
			return o.cancelled(sessionID)
		}
		log.Warn().Err(err).Msg("backend unreachable")
		return o.fail(fctx, persistCtx, sessionID, f, err)
	}
	defer body.Close()

	o.setState(sessionID, f, StateStreaming, "")

	pipeline := stream.NewPipeline(func(text string) {
		if fctx.Err() != nil {
			return
		}
		o.mu.Lock()
		f.text = text
		o.mu.Unlock()
		o.publish(event.MessageDelta, event.MessageDeltaData{
			AgentID:   o.store.Agent().ID,
			SessionID: sessionID,
			Text:      text,
		})
	})

	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if fctx.Err() != nil {
			return o.cancelled(sessionID)
		}
		if n > 0 {
			pipeline.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			log.Warn().Err(readErr).Int("received", len(pipeline.Text())).Msg("stream interrupted")
			return o.fail(fctx, persistCtx, sessionID, f, &NetworkError{Op: "read", Err: readErr})
		}
	}

	final, title := pipeline.Close()
	if !o.enterCommit(fctx, sessionID, f, StateCommitting, "") {
		return o.cancelled(sessionID)
	}

	msg := types.NewMessage(types.SenderAI, final, o.now())
	msg.RawAccumulatedText = pipeline.Text()
	sess, err := o.store.Commit(persistCtx, sessionID, msg, title)
	if err != nil {
		log.Error().Err(err).Msg("commit reply failed")
		return nil, fmt.Errorf("commit reply: %w", err)
	}

	frames, skipped := pipeline.Stats()
	log.Debug().
		Str("mode", pipeline.Mode().String()).
		Int("frames", frames).
		Int("skipped", skipped).
		Bool("ended", pipeline.Ended()).
		Msg("reply committed")

	return &Result{Session: sess, Message: msg, Frames: frames, Mode: pipeline.Mode()}, nil
}

// begin registers a flight for the session, enforcing one per session.
func (o *Orchestrator) begin(ctx context.Context, sessionID string) (context.Context, *flight, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if _, busy := o.flights[sessionID]; busy {
		o.mu.Unlock()
		return nil, nil, ErrBusy
	}
	fctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel, state: StateSending, done: make(chan struct{})}
	o.flights[sessionID] = f
	o.mu.Unlock()

	o.publishState(sessionID, StateSending, "")
	return fctx, f, nil
}

// finish releases the flight and returns the session to Idle.
func (o *Orchestrator) finish(sessionID string, f *flight) {
	o.mu.Lock()
	if o.flights[sessionID] == f {
		delete(o.flights, sessionID)
	}
	o.mu.Unlock()
	f.cancel()
	close(f.done)
	o.publishState(sessionID, StateIdle, "")
}

func (o *Orchestrator) setState(sessionID string, f *flight, s State, errText string) {
	o.mu.Lock()
	f.state = s
	o.mu.Unlock()
	o.publishState(sessionID, s, errText)
}

// enterCommit moves the flight into a committing state unless it was
// cancelled first. Abort leaves a committing flight to finish.
func (o *Orchestrator) enterCommit(fctx context.Context, sessionID string, f *flight, s State, errText string) bool {
	o.mu.Lock()
	if fctx.Err() != nil {
		o.mu.Unlock()
		return false
	}
	f.state = s
	f.committing = true
	o.mu.Unlock()
	o.publishState(sessionID, s, errText)
	return true
}

// fail commits ConnectionErrorText so the exchange stays visible.
func (o *Orchestrator) fail(fctx, ctx context.Context, sessionID string, f *flight, cause error) (*Result, error) {
	if !o.enterCommit(fctx, sessionID, f, StateFailed, cause.Error()) {
		return o.cancelled(sessionID)
	}

	msg := types.NewMessage(types.SenderAI, ConnectionErrorText, o.now())
	sess, err := o.store.Commit(ctx, sessionID, msg, nil)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("commit error message failed")
		return nil, fmt.Errorf("commit error message: %w", err)
	}
	return &Result{Session: sess, Message: msg, Failed: true, Err: cause}, nil
}

// cancelled drops the placeholder without committing anything.
func (o *Orchestrator) cancelled(sessionID string) (*Result, error) {
	o.publishState(sessionID, StateCancelled, "")
	logging.Debug().Str("session", sessionID).Msg("request cancelled")
	return nil, ErrCancelled
}

// Inflight returns the live text of the reply being streamed for a session.
func (o *Orchestrator) Inflight(sessionID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flights[sessionID]
	if !ok {
		return "", false
	}
	return f.text, true
}

// State reports where a session is in the request cycle.
func (o *Orchestrator) State(sessionID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.flights[sessionID]; ok {
		return f.state
	}
	return StateIdle
}

// Abort cancels the request in flight on a session and waits for it to
// unwind. A reply already being committed is allowed to land. It reports
// whether there was a request.
func (o *Orchestrator) Abort(sessionID string) bool {
	o.mu.Lock()
	f, ok := o.flights[sessionID]
	if ok && !f.committing {
		f.cancel()
	}
	o.mu.Unlock()
	if !ok {
		return false
	}
	<-f.done
	return true
}

// Switch aborts requests on every other session, then makes id the current
// session.
func (o *Orchestrator) Switch(ctx context.Context, id string) (*types.Session, error) {
	if _, err := o.store.Load(id); err != nil {
		return nil, err
	}
	for _, other := range o.inflightIDs() {
		if other != id {
			o.Abort(other)
		}
	}
	return o.store.SetCurrent(ctx, id)
}

// NewSession aborts requests on every session, then creates a session, which
// becomes current.
func (o *Orchestrator) NewSession(ctx context.Context) (*types.Session, error) {
	for _, other := range o.inflightIDs() {
		o.Abort(other)
	}
	return o.store.Create(ctx)
}

// Delete aborts any request on the session and removes it.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.Abort(id)
	return o.store.Delete(ctx, id)
}

func (o *Orchestrator) inflightIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.flights))
	for id := range o.flights {
		ids = append(ids, id)
	}
	return ids
}

// Close aborts every request and rejects new ones.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	for _, id := range o.inflightIDs() {
		o.Abort(id)
	}
	if c, ok := o.backend.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

func (o *Orchestrator) publishState(sessionID string, s State, errText string) {
	o.publish(event.StateChanged, event.StateData{
		AgentID:   o.store.Agent().ID,
		SessionID: sessionID,
		State:     string(s),
		Error:     errText,
	})
}

func (o *Orchestrator) publish(t event.EventType, data any) {
	if o.bus == nil {
		return
	}
	o.bus.PublishSync(event.Event{Type: t, Data: data})
}
