// Package conversation owns the chat timeline of a single client.
package conversation

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

const (
	Greeting      = "Hello! I'm your PCOD Care assistant. How can I help you today?"
	FallbackText  = "I'm having trouble fetching the answer right now. Please try again."
	FailureNotice = "Failed to get a response from the assistant."
)

var (
	ErrPending = errors.New("a reply is still pending")
	ErrClosed  = errors.New("conversation closed")
)

// Completer turns one user utterance into one assistant reply.
type Completer interface {
	Complete(ctx context.Context, utterance string) (string, error)
}

// Speaker plays text back to the user. Speak must not block.
type Speaker interface {
	Speak(text string)
}

type Options struct {
	Speaker  Speaker
	Timeout  time.Duration // per completion; 0 = none
	Greeting string
	Logger   *log.Logger
}

// Manager is the only writer of a conversation's timeline. Typed and voice
// submissions share one pending gate, so at most one completion is in flight.
//
// Subscribers are called in mutation order from whichever goroutine made the
// change. They may read the Manager but must not Submit from inside the
// callback.
type Manager struct {
	completer Completer
	speaker   Speaker
	timeout   time.Duration
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	emitMu sync.Mutex

	mu      sync.Mutex
	state   SessionState
	closed  bool
	subs    map[int]func(Event)
	nextSub int
}

func New(c Completer, opts Options) *Manager {
	if opts.Greeting == "" {
		opts.Greeting = Greeting
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		completer: c,
		speaker:   opts.Speaker,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		state: SessionState{
			Timeline: []Message{{Role: RoleAssistant, Content: opts.Greeting}},
		},
		subs: make(map[int]func(Event)),
	}
}

func (m *Manager) SubmitTyped(text string) error {
	return m.Submit(text, OriginTyped)
}

// SubmitVoice behaves like SubmitTyped and additionally speaks the reply.
func (m *Manager) SubmitVoice(transcript string) error {
	return m.Submit(transcript, OriginVoice)
}

// Submit appends a user turn and requests the reply asynchronously. Blank
// text is ignored. While an earlier reply is pending it returns ErrPending
// and leaves the state untouched.
func (m *Manager) Submit(text string, origin Origin) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.state.Pending:
		m.mu.Unlock()
		return ErrPending
	}

	m.state.Timeline = append(m.state.Timeline, Message{Role: RoleUser, Content: text})
	events := []Event{m.appendedLocked()}
	if origin == OriginTyped {
		m.state.Input = ""
		events = append(events, Event{Kind: EventInput})
	}
	m.state.Pending = true
	events = append(events, Event{Kind: EventPending, Pending: true})
	m.wg.Add(1)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	emit(subs, events)

	m.logger.Debug("Submitted", "origin", origin, "chars", len(text))

	go m.complete(text, origin)
	return nil
}

func (m *Manager) complete(text string, origin Origin) {
	defer m.wg.Done()

	ctx := m.ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	reply, err := m.completer.Complete(ctx, text)
	failed := err != nil
	if failed {
		m.logger.Error("Failed to get reply", "origin", origin, "err", err)
		reply = FallbackText
	}

	m.emitMu.Lock()
	m.mu.Lock()
	m.state.Timeline = append(m.state.Timeline, Message{Role: RoleAssistant, Content: reply})
	events := []Event{m.appendedLocked()}
	if failed {
		events = append(events, Event{Kind: EventNotice, Text: FailureNotice})
	}
	m.state.Pending = false
	events = append(events, Event{Kind: EventPending, Pending: false})
	subs := m.subscribersLocked()
	m.mu.Unlock()

	emit(subs, events)
	m.emitMu.Unlock()

	if origin == OriginVoice && m.speaker != nil {
		m.speaker.Speak(reply)
	}
}

// Reset clears the input buffer. The timeline is left alone.
func (m *Manager) Reset() {
	m.SetInput("")
}

func (m *Manager) SetInput(text string) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	m.state.Input = text
	subs := m.subscribersLocked()
	m.mu.Unlock()

	emit(subs, []Event{{Kind: EventInput, Text: text}})
}

func (m *Manager) SetSearchTerm(term string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SearchTerm = term
}

func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Timeline = append([]Message(nil), m.state.Timeline...)
	return s
}

func (m *Manager) Timeline() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.state.Timeline...)
}

func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Pending
}

// Subscribe registers fn for timeline events and returns its cancel func.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Wait blocks until the in-flight completion, if any, has been appended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close aborts the in-flight completion and waits for its fallback turn.
// Later submissions fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) appendedLocked() Event {
	i := len(m.state.Timeline) - 1
	return Event{Kind: EventAppend, Index: i, Message: m.state.Timeline[i]}
}

func (m *Manager) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func emit(subs []func(Event), events []Event) {
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
