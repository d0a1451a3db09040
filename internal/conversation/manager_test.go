package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completerFunc func(ctx context.Context, utterance string) (string, error)

func (f completerFunc) Complete(ctx context.Context, utterance string) (string, error) {
	return f(ctx, utterance)
}

func echo(prefix string) completerFunc {
	return func(_ context.Context, u string) (string, error) {
		return prefix + u, nil
	}
}

type recordingSpeaker struct {
	mu    sync.Mutex
	spoke []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoke = append(s.spoke, text)
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoke...)
}

// gate blocks every completion until released.
type gate struct {
	release chan struct{}
	started chan string
}

func newGate() *gate {
	return &gate{release: make(chan struct{}), started: make(chan string, 4)}
}

func (g *gate) Complete(ctx context.Context, u string) (string, error) {
	g.started <- u
	select {
	case <-g.release:
		return "reply to " + u, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestNewSeedsGreeting(t *testing.T) {
	m := New(echo(""), Options{})

	s := m.State()
	assert.Equal(t, []Message{{Role: RoleAssistant, Content: Greeting}}, s.Timeline)
	assert.False(t, s.Pending)
	assert.Empty(t, s.Input)
}

func TestSubmitTypedScenario(t *testing.T) {
	m := New(echo("answer: "), Options{})

	require.NoError(t, m.SubmitTyped("What is PCOD?"))
	m.Wait()

	tl := m.Timeline()
	require.Len(t, tl, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "What is PCOD?"}, tl[1])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "answer: What is PCOD?"}, tl[2])
	assert.False(t, m.Pending())
}

func TestSubmitGrowsTimelineByTwo(t *testing.T) {
	m := New(echo(""), Options{})

	inputs := []string{"a", "What is PCOD?", "  padded  ", "ünïcödé", "multi\nline"}
	for i, in := range inputs {
		require.NoError(t, m.SubmitTyped(in))
		m.Wait()
		assert.Len(t, m.Timeline(), 1+2*(i+1), "after %q", in)
	}
}

func TestSubmitBlankIsNoop(t *testing.T) {
	called := false
	m := New(completerFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}), Options{})
	m.SetInput("draft")

	for _, in := range []string{"", " ", "\t\n", "   \r\n  "} {
		require.NoError(t, m.SubmitTyped(in))
		require.NoError(t, m.SubmitVoice(in))
	}
	m.Wait()

	assert.False(t, called)
	assert.Len(t, m.Timeline(), 1)
	assert.Equal(t, "draft", m.State().Input)
}

func TestSubmitTrimsText(t *testing.T) {
	var got string
	m := New(completerFunc(func(_ context.Context, u string) (string, error) {
		got = u
		return "ok", nil
	}), Options{})

	require.NoError(t, m.SubmitTyped("  hello \n"))
	m.Wait()

	assert.Equal(t, "hello", got)
	assert.Equal(t, "hello", m.Timeline()[1].Content)
}

func TestFailureAppendsFallback(t *testing.T) {
	var notices []string
	m := New(completerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("network down")
	}), Options{})
	m.Subscribe(func(ev Event) {
		if ev.Kind == EventNotice {
			notices = append(notices, ev.Text)
		}
	})

	require.NoError(t, m.SubmitTyped("What is PCOD?"))
	m.Wait()

	tl := m.Timeline()
	require.Len(t, tl, 3)
	assert.Equal(t, Message{Role: RoleAssistant, Content: FallbackText}, tl[2])
	assert.Equal(t, []string{FailureNotice}, notices)
	assert.False(t, m.Pending())
}

func TestPendingRejectsTypedAndVoice(t *testing.T) {
	g := newGate()
	m := New(g, Options{})

	require.NoError(t, m.SubmitTyped("first"))
	<-g.started
	assert.True(t, m.Pending())

	assert.ErrorIs(t, m.SubmitTyped("second"), ErrPending)
	assert.ErrorIs(t, m.SubmitVoice("third"), ErrPending)
	assert.Len(t, m.Timeline(), 2)

	close(g.release)
	m.Wait()

	tl := m.Timeline()
	require.Len(t, tl, 3)
	assert.Equal(t, "reply to first", tl[2].Content)

	require.NoError(t, m.SubmitVoice("again"))
	m.Wait()
	assert.Len(t, m.Timeline(), 5)
}

func TestVoiceReplyIsSpoken(t *testing.T) {
	sp := &recordingSpeaker{}
	m := New(echo("re: "), Options{Speaker: sp})

	require.NoError(t, m.SubmitTyped("typed"))
	m.Wait()
	assert.Empty(t, sp.said())

	require.NoError(t, m.SubmitVoice("spoken"))
	m.Wait()
	assert.Equal(t, []string{"re: spoken"}, sp.said())
}

func TestVoiceFallbackIsSpoken(t *testing.T) {
	sp := &recordingSpeaker{}
	m := New(completerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	}), Options{Speaker: sp})

	require.NoError(t, m.SubmitVoice("hello"))
	m.Wait()

	assert.Equal(t, []string{FallbackText}, sp.said())
}

func TestInputBuffer(t *testing.T) {
	m := New(echo(""), Options{})

	m.SetInput("draft")
	require.NoError(t, m.SubmitVoice("voice"))
	m.Wait()
	assert.Equal(t, "draft", m.State().Input, "voice keeps the typed draft")

	require.NoError(t, m.SubmitTyped("draft"))
	m.Wait()
	assert.Empty(t, m.State().Input)

	m.SetInput("again")
	before := m.Timeline()
	m.Reset()
	assert.Empty(t, m.State().Input)
	assert.Equal(t, before, m.Timeline())
}

func TestSearchTermIsPartOfState(t *testing.T) {
	m := New(echo(""), Options{})

	m.SetSearchTerm("fertility")

	assert.Equal(t, "fertility", m.State().SearchTerm)
	assert.Len(t, m.Timeline(), 1)
}

func TestEventsArriveInOrder(t *testing.T) {
	m := New(echo("r:"), Options{})

	var mu sync.Mutex
	var got []Event
	cancel := m.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	require.NoError(t, m.SubmitTyped("q"))
	m.Wait()
	cancel()

	require.NoError(t, m.SubmitTyped("ignored"))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Event{
		{Kind: EventAppend, Index: 1, Message: Message{Role: RoleUser, Content: "q"}},
		{Kind: EventInput},
		{Kind: EventPending, Pending: true},
		{Kind: EventAppend, Index: 2, Message: Message{Role: RoleAssistant, Content: "r:q"}},
		{Kind: EventPending, Pending: false},
	}, got)
}

func TestAppendIndexIsAlwaysLast(t *testing.T) {
	m := New(echo(""), Options{})

	m.Subscribe(func(ev Event) {
		if ev.Kind == EventAppend {
			assert.Equal(t, len(m.Timeline())-1, ev.Index)
		}
	})

	for _, in := range []string{"a", "b", "c"} {
		require.NoError(t, m.SubmitTyped(in))
		m.Wait()
	}
}

func TestTimeoutFallsBack(t *testing.T) {
	g := newGate()
	m := New(g, Options{Timeout: 20 * time.Millisecond})

	require.NoError(t, m.SubmitTyped("slow"))
	m.Wait()

	tl := m.Timeline()
	require.Len(t, tl, 3)
	assert.Equal(t, FallbackText, tl[2].Content)
	assert.False(t, m.Pending())
}

func TestCloseCancelsInFlight(t *testing.T) {
	g := newGate()
	m := New(g, Options{})

	require.NoError(t, m.SubmitTyped("q"))
	<-g.started
	m.Close()

	tl := m.Timeline()
	require.Len(t, tl, 3)
	assert.Equal(t, FallbackText, tl[2].Content)
	assert.ErrorIs(t, m.SubmitTyped("late"), ErrClosed)
}

func TestStateIsASnapshot(t *testing.T) {
	m := New(echo(""), Options{})

	s := m.State()
	s.Timeline[0].Content = "changed"

	assert.Equal(t, Greeting, m.Timeline()[0].Content)
}
