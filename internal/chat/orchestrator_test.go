package chat_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/internal/session"
	"github.com/opencode-ai/agentchat/internal/storage"
	"github.com/opencode-ai/agentchat/internal/stream"
	"github.com/opencode-ai/agentchat/pkg/types"
)

// fakeBackend is an httptest server whose reply is set per test.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []chat.Request
	attempts atomic.Int32
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.attempts.Add(1)
		var req chat.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			fb.mu.Lock()
			fb.requests = append(fb.requests, req)
			fb.mu.Unlock()
		}
		fb.mu.Lock()
		h := fb.handler
		fb.mu.Unlock()
		h(w, r)
	}))
	return fb
}

func (fb *fakeBackend) respond(h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handler = h
}

func (fb *fakeBackend) lastRequest() chat.Request {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.requests[len(fb.requests)-1]
}

// chunks writes each chunk and flushes, so the client sees separate reads.
func chunks(contentType string, parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, p := range parts {
			io.WriteString(w, p)
			flusher.Flush()
			time.Sleep(2 * time.Millisecond)
		}
	}
}

// hanging sends one delta then holds the response open until released or the
// client goes away.
func hanging(release <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: {\"type\":\"item\",\"content\":\"partial\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
			io.WriteString(w, "data: {\"type\":\"item\",\"content\":\" late\"}\n\n")
		case <-r.Context().Done():
		}
	}
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx     context.Context
		backend *fakeBackend
		store   *session.Store
		bus     *event.Bus
		orch    *chat.Orchestrator
		current string
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = newFakeBackend()
		bus = event.NewBus()

		var err error
		store, err = session.NewStore(ctx, storage.New(GinkgoT().TempDir()), session.AgentProfile{
			ID:      "assistant",
			Welcome: "Hi!",
		}, session.WithBus(bus))
		Expect(err).NotTo(HaveOccurred())
		current = store.CurrentID()

		client := chat.NewClient(chat.ClientConfig{
			Endpoint:         backend.URL,
			ConnectTimeout:   2 * time.Second,
			FirstByteTimeout: 2 * time.Second,
			BackOff:          func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		})
		orch = chat.NewOrchestrator(store, client, chat.Options{
			Namespace: "01HNAMESPACE",
			Source:    "test",
			Bus:       bus,
		})
	})

	AfterEach(func() {
		orch.Close()
		backend.Close()
		bus.Close()
	})

	lastMessage := func(id string) types.Message {
		sess, err := store.Load(id)
		Expect(err).NotTo(HaveOccurred())
		return sess.Messages[len(sess.Messages)-1]
	}

	Describe("Send", func() {
		It("reconstructs an event-block stream split across chunks", func() {
			backend.respond(chunks("text/event-stream",
				"data: {\"type\":\"item\",\"con",
				"tent\":\"Hel\"}\n\ndata: {\"type\":\"item\",\"content\":\"lo\"}\n",
				"\n",
			))

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeFalse())
			Expect(res.Message.Text).To(Equal("Hello"))
			Expect(res.Mode).To(Equal(stream.ModeEventBlock))
			Expect(lastMessage(current).Text).To(Equal("Hello"))
			Expect(lastMessage(current).Sender).To(Equal(types.SenderAI))
		})

		It("commits text and title from a line-delimited stream", func() {
			backend.respond(chunks("application/x-ndjson",
				"{\"type\":\"item\",\"content\":\"A\"}\n",
				"{\"type\":\"item\",\"content\":\"B\"}\n{\"type\":\"end\",\"title\":\"Greeting\"}\n",
			))

			res, err := orch.Send(ctx, current, "hello there", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Mode).To(Equal(stream.ModeLineDelimited))

			sess, err := store.Load(current)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Title).To(Equal("Greeting"))
			Expect(sess.Messages).To(HaveLen(3))
			Expect(sess.Messages[1].Text).To(Equal("hello there"))
			Expect(sess.Messages[1].Sender).To(Equal(types.SenderUser))
			Expect(sess.Messages[2].Text).To(Equal("AB"))
		})

		It("commits the fallback text when no delta arrives", func() {
			backend.respond(chunks("text/event-stream", "data: {\"type\":\"end\"}\n\n"))

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Message.Text).To(Equal(stream.FallbackText))
			Expect(lastMessage(current).Text).To(Equal(stream.FallbackText))
		})

		It("skips malformed frames and keeps streaming", func() {
			backend.respond(chunks("text/event-stream",
				"data: {\"type\":\"item\",\"content\":\"A\"}\n\n",
				"data: {not json\n\n",
				"data: {\"type\":\"item\",\"content\":\"B\"}\n\n",
			))

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Message.Text).To(Equal("AB"))
			Expect(res.Frames).To(Equal(3))
		})

		It("sends the request body the backend expects", func() {
			backend.respond(chunks("text/event-stream", "data: {\"type\":\"item\",\"content\":\"ok\"}\n\n"))
			Expect(store.SetUseMemory(ctx, false)).To(Succeed())

			_, err := orch.Send(ctx, current, "  what's up  ", nil)
			Expect(err).NotTo(HaveOccurred())

			req := backend.lastRequest()
			Expect(req.ChatInput).To(Equal("what's up"))
			Expect(req.SessionID).To(Equal(current))
			Expect(req.UseMemory).To(BeFalse())
			Expect(req.Metadata.Namespace).To(Equal("01HNAMESPACE"))
			Expect(req.Metadata.Source).To(Equal("test"))
		})

		It("appends attachment text to the user message", func() {
			backend.respond(chunks("text/event-stream", "data: {\"type\":\"item\",\"content\":\"ok\"}\n\n"))

			_, err := orch.Send(ctx, current, "", []chat.Attachment{
				{Name: "notes.txt", ContentType: "text/plain", Data: []byte("remember the milk")},
				{Name: "scan.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
			})
			Expect(err).NotTo(HaveOccurred())

			sess, err := store.Load(current)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Messages[1].Text).To(ContainSubstring("remember the milk"))
			Expect(sess.Messages[1].Text).To(ContainSubstring("scan.pdf"))
			Expect(backend.lastRequest().ChatInput).To(Equal(sess.Messages[1].Text))
		})

		It("rejects empty input", func() {
			_, err := orch.Send(ctx, current, "   ", nil)
			Expect(err).To(MatchError(chat.ErrEmptyInput))
			Expect(backend.attempts.Load()).To(BeZero())
		})

		It("rejects unknown sessions", func() {
			_, err := orch.Send(ctx, "missing", "hi", nil)
			Expect(err).To(MatchError(session.ErrNotFound))
		})

		It("publishes deltas and state transitions in order", func() {
			backend.respond(chunks("text/event-stream",
				"data: {\"type\":\"item\",\"content\":\"a\"}\n\n",
				"data: {\"type\":\"item\",\"content\":\"b\"}\n\n",
			))

			var mu sync.Mutex
			var deltas []string
			var states []string
			unsubDelta := bus.Subscribe(event.MessageDelta, func(e event.Event) {
				mu.Lock()
				defer mu.Unlock()
				deltas = append(deltas, e.Data.(event.MessageDeltaData).Text)
			})
			defer unsubDelta()
			unsubState := bus.Subscribe(event.StateChanged, func(e event.Event) {
				mu.Lock()
				defer mu.Unlock()
				states = append(states, e.Data.(event.StateData).State)
			})
			defer unsubState()

			_, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			defer mu.Unlock()
			Expect(deltas).To(Equal([]string{"a", "ab"}))
			Expect(states).To(Equal([]string{"sending", "streaming", "committing", "idle"}))
		})
	})

	Describe("network failures", func() {
		It("commits the connection error after retrying 5xx", func() {
			backend.respond(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			})

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeTrue())

			var netErr *chat.NetworkError
			Expect(res.Err).To(BeAssignableToTypeOf(netErr))
			Expect(backend.attempts.Load()).To(BeEquivalentTo(4))

			sess, err := store.Load(current)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Messages[len(sess.Messages)-2].Text).To(Equal("hi"))
			Expect(sess.Messages[len(sess.Messages)-1].Text).To(Equal(chat.ConnectionErrorText))
			Expect(orch.State(current)).To(Equal(chat.StateIdle))
		})

		It("does not retry 4xx", func() {
			backend.respond(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad input", http.StatusBadRequest)
			})

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeTrue())
			Expect(backend.attempts.Load()).To(BeEquivalentTo(1))
			Expect(res.Err.Error()).To(ContainSubstring("400"))
		})

		It("succeeds when a retry gets through", func() {
			var calls atomic.Int32
			ok := chunks("text/event-stream", "data: {\"type\":\"item\",\"content\":\"finally\"}\n\n")
			backend.respond(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				ok(w, r)
			})

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeFalse())
			Expect(res.Message.Text).To(Equal("finally"))
		})

		It("fails when the backend is unreachable", func() {
			client := chat.NewClient(chat.ClientConfig{
				Endpoint: "http://127.0.0.1:1/unreachable",
				BackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
			})
			unreachable := chat.NewOrchestrator(store, client, chat.Options{})
			defer unreachable.Close()

			res, err := unreachable.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeTrue())
			Expect(lastMessage(current).Text).To(Equal(chat.ConnectionErrorText))
		})

		It("times out a silent body", func() {
			client := chat.NewClient(chat.ClientConfig{
				Endpoint:         backend.URL,
				FirstByteTimeout: 100 * time.Millisecond,
				BackOff:          func() backoff.BackOff { return &backoff.ZeroBackOff{} },
			})
			slow := chat.NewOrchestrator(store, client, chat.Options{})
			defer slow.Close()

			backend.respond(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			})

			res, err := slow.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(BeTrue())
			Expect(res.Err).To(MatchError(chat.ErrFirstByteTimeout))
		})
	})

	Describe("concurrency and cancellation", func() {
		var release chan struct{}

		BeforeEach(func() {
			release = make(chan struct{})
			backend.respond(hanging(release))
		})

		AfterEach(func() {
			select {
			case <-release:
			default:
				close(release)
			}
		})

		sendAsync := func(id string) <-chan error {
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := orch.Send(ctx, id, "hi", nil)
				done <- err
			}()
			return done
		}

		It("exposes the in-flight placeholder and rejects a second request", func() {
			done := sendAsync(current)

			Eventually(func() string {
				text, _ := orch.Inflight(current)
				return text
			}).Should(Equal("partial"))
			Expect(orch.State(current)).To(Equal(chat.StateStreaming))

			_, err := orch.Send(ctx, current, "again", nil)
			Expect(err).To(MatchError(chat.ErrBusy))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(lastMessage(current).Text).To(Equal("partial late"))

			_, ok := orch.Inflight(current)
			Expect(ok).To(BeFalse())
		})

		It("allows concurrent requests on different sessions", func() {
			other, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())

			first := sendAsync(current)
			second := sendAsync(other.ID)

			Eventually(func() bool {
				_, a := orch.Inflight(current)
				_, b := orch.Inflight(other.ID)
				return a && b
			}).Should(BeTrue())

			close(release)
			Eventually(first).Should(Receive(BeNil()))
			Eventually(second).Should(Receive(BeNil()))
		})

		It("cancels other sessions on switch without committing", func() {
			other, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			before, err := store.Load(current)
			Expect(err).NotTo(HaveOccurred())

			done := sendAsync(current)
			Eventually(func() chat.State { return orch.State(current) }).Should(Equal(chat.StateStreaming))

			_, err = orch.Switch(ctx, other.ID)
			Expect(err).NotTo(HaveOccurred())

			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))
			Expect(store.CurrentID()).To(Equal(other.ID))

			after, err := store.Load(current)
			Expect(err).NotTo(HaveOccurred())
			// Only the user message was added; no reply was committed.
			Expect(after.Messages).To(HaveLen(len(before.Messages) + 1))
			Expect(after.Messages[len(after.Messages)-1].Sender).To(Equal(types.SenderUser))
			Expect(orch.State(current)).To(Equal(chat.StateIdle))
		})

		It("cancels other sessions before moving the current pointer", func() {
			other, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.SetCurrent(ctx, current)
			Expect(err).NotTo(HaveOccurred())

			var mu sync.Mutex
			var seen []string
			unsub := bus.SubscribeAll(func(e event.Event) {
				mu.Lock()
				defer mu.Unlock()
				switch d := e.Data.(type) {
				case event.StateData:
					if d.SessionID == current && d.State == string(chat.StateCancelled) {
						seen = append(seen, "cancelled")
					}
				case event.SessionData:
					if e.Type == event.SessionSwitched && d.Info.ID == other.ID {
						seen = append(seen, "switched")
					}
				}
			})
			defer unsub()

			done := sendAsync(current)
			Eventually(func() chat.State { return orch.State(current) }).Should(Equal(chat.StateStreaming))

			_, err = orch.Switch(ctx, other.ID)
			Expect(err).NotTo(HaveOccurred())
			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]string{"cancelled", "switched"}))
		})

		It("lets a reply that is already committing land", func() {
			backend.respond(chunks("application/x-ndjson",
				"{\"type\":\"item\",\"content\":\"done\"}\n",
			))

			aborted := make(chan bool, 1)
			unsub := bus.Subscribe(event.StateChanged, func(e event.Event) {
				if e.Data.(event.StateData).State == string(chat.StateCommitting) {
					go func() { aborted <- orch.Abort(current) }()
					time.Sleep(20 * time.Millisecond)
				}
			})
			defer unsub()

			res, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Message.Text).To(Equal("done"))
			Expect(lastMessage(current).Text).To(Equal("done"))
			Eventually(aborted).Should(Receive(BeTrue()))
		})

		It("aborts explicitly", func() {
			done := sendAsync(current)
			Eventually(func() bool {
				_, ok := orch.Inflight(current)
				return ok
			}).Should(BeTrue())

			Expect(orch.Abort(current)).To(BeTrue())
			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))
			Expect(orch.Abort(current)).To(BeFalse())
		})

		It("cancels when the caller's context ends", func() {
			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := orch.Send(cctx, current, "hi", nil)
				done <- err
			}()

			Eventually(func() bool {
				_, ok := orch.Inflight(current)
				return ok
			}).Should(BeTrue())
			cancel()
			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))
		})

		It("rejects new requests after Close", func() {
			done := sendAsync(current)
			Eventually(func() bool {
				_, ok := orch.Inflight(current)
				return ok
			}).Should(BeTrue())

			orch.Close()
			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))

			_, err := orch.Send(ctx, current, "hi", nil)
			Expect(err).To(MatchError(chat.ErrClosed))
		})

		It("aborts before deleting a session", func() {
			other, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			done := sendAsync(other.ID)
			Eventually(func() bool {
				_, ok := orch.Inflight(other.ID)
				return ok
			}).Should(BeTrue())

			Expect(orch.Delete(ctx, other.ID)).To(Succeed())
			Eventually(done).Should(Receive(MatchError(chat.ErrCancelled)))
			_, err = store.Load(other.ID)
			Expect(err).To(MatchError(session.ErrNotFound))
		})
	})
})
