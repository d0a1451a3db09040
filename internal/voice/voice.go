// Package voice connects a speech recognizer to a conversation.
//
// The recognizer and speaker belong to the environment: the local audio
// device in a build with the voice tag, or the browser on the other end of a
// widget connection. The bridge only decides what a finished transcript does.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrUnsupported reports that no speech capability is available. Typed chat
// keeps working without it.
var ErrUnsupported = errors.New("voice capability unavailable")

// Recognizer captures speech. Start returns partial transcripts and closes
// the channel once capture ends; Stop ends capture and returns the final
// transcript.
type Recognizer interface {
	Start(ctx context.Context, continuous bool) (<-chan string, error)
	Stop(ctx context.Context) (string, error)
}

// Submitter receives finished transcripts.
type Submitter interface {
	SubmitVoice(transcript string) error
}

// Unsupported is the Recognizer of an environment without speech input.
type Unsupported struct{}

func (Unsupported) Start(context.Context, bool) (<-chan string, error) {
	return nil, ErrUnsupported
}

func (Unsupported) Stop(context.Context) (string, error) {
	return "", ErrUnsupported
}

type Bridge struct {
	rec       Recognizer
	sub       Submitter
	onPartial func(string)

	mu         sync.Mutex
	capturing  bool
	transcript string
	done       chan struct{}
}

// NewBridge wires rec to sub. A nil rec gives a bridge that is unavailable
// but still accepts transcripts through HandleTranscript.
func NewBridge(rec Recognizer, sub Submitter) *Bridge {
	if rec == nil {
		rec = Unsupported{}
	}
	return &Bridge{rec: rec, sub: sub}
}

// OnPartial sets a callback for partial transcripts. Call before Start.
func (b *Bridge) OnPartial(fn func(string)) {
	b.mu.Lock()
	b.onPartial = fn
	b.mu.Unlock()
}

func (b *Bridge) Available() bool {
	_, ok := b.rec.(Unsupported)
	return !ok
}

// Start clears the transcript and begins continuous capture. It is a no-op
// while already capturing.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.Available() {
		return ErrUnsupported
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capturing {
		return nil
	}

	partials, err := b.rec.Start(ctx, true)
	if err != nil {
		return err
	}

	b.transcript = ""
	b.capturing = true
	b.done = make(chan struct{})
	go b.drain(partials, b.done)

	return nil
}

// Listen captures a single utterance, ending when the recognizer detects
// silence, and forwards its transcript like Stop does. It blocks until the
// utterance has been forwarded and is a no-op while already capturing.
func (b *Bridge) Listen(ctx context.Context) error {
	if !b.Available() {
		return ErrUnsupported
	}

	b.mu.Lock()
	if b.capturing {
		b.mu.Unlock()
		return nil
	}

	partials, err := b.rec.Start(ctx, false)
	if err != nil {
		b.mu.Unlock()
		return err
	}

	b.transcript = ""
	b.capturing = true
	done := make(chan struct{})
	b.done = done
	b.mu.Unlock()

	b.drain(partials, done)

	// the recognizer holds the final transcript and any capture error
	return b.Stop(ctx)
}

func (b *Bridge) drain(partials <-chan string, done chan struct{}) {
	defer close(done)
	for p := range partials {
		b.mu.Lock()
		if b.capturing {
			b.transcript = p
		}
		fn := b.onPartial
		b.mu.Unlock()

		if fn != nil {
			fn(p)
		}
	}
}

// Stop ends capture and forwards the final transcript. Stopping an idle
// bridge does nothing.
func (b *Bridge) Stop(ctx context.Context) error {
	if !b.Available() {
		return ErrUnsupported
	}

	b.mu.Lock()
	if !b.capturing {
		b.mu.Unlock()
		return nil
	}
	b.capturing = false
	done := b.done
	b.mu.Unlock()

	final, err := b.rec.Stop(ctx)
	if done != nil {
		<-done
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.transcript = final
	b.mu.Unlock()

	return b.forward(final)
}

func (b *Bridge) Toggle(ctx context.Context) error {
	if b.Capturing() {
		return b.Stop(ctx)
	}
	return b.Start(ctx)
}

// HandleTranscript forwards a transcript produced outside the bridge's own
// recognizer, such as one sent by a remote client.
func (b *Bridge) HandleTranscript(text string) error {
	b.mu.Lock()
	b.transcript = text
	b.mu.Unlock()

	return b.forward(text)
}

func (b *Bridge) forward(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return b.sub.SubmitVoice(text)
}

// Clear empties the transcript. The conversation is not touched.
func (b *Bridge) Clear() {
	b.mu.Lock()
	b.transcript = ""
	b.mu.Unlock()
}

func (b *Bridge) Transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transcript
}

func (b *Bridge) Capturing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capturing
}
