package server

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"

	"pcodcare/internal/conversation"
	"pcodcare/internal/faq"
	"pcodcare/internal/voice"
	"pcodcare/pkg/protocol"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrClipBusy        = errors.New("a clip is already being transcribed")
)

// remoteSpeaker hands replies to the widget, which plays them itself.
type remoteSpeaker struct {
	conn *protocol.Conn
}

func (s remoteSpeaker) Speak(text string) {
	s.conn.Send(protocol.SpeakMessage(text))
}

type session struct {
	id     string
	conn   *protocol.Conn
	mgr    *conversation.Manager
	bridge *voice.Bridge
	faq    *faq.Index
	clips  ClipTranscriber
	logger *log.Logger

	mu        sync.Mutex
	expansion faq.Expansion

	clipBusy atomic.Bool
	wg       sync.WaitGroup
}

// The widget is its own recognizer, so the bridge only forwards transcripts
// the client sends.
func (sess *session) newBridge() *voice.Bridge {
	return voice.NewBridge(nil, sess.mgr)
}

func (sess *session) run() {
	ctx, cancel := context.WithCancel(context.Background())

	sess.conn.Send(protocol.StateMessage(sess.state()))
	unsubscribe := sess.mgr.Subscribe(func(ev conversation.Event) {
		sess.conn.Send(eventMessage(ev))
	})

	defer func() {
		cancel()
		sess.wg.Wait()
		unsubscribe()
		sess.mgr.Close()
		sess.conn.Close()
	}()

	for {
		in := sess.conn.Read()
		switch in.Kind {
		case protocol.ConnClose:
			return

		case protocol.ReadFailure:
			sess.logger.Debug("Read failed", "err", in.Err)
			return

		case protocol.ReadBinary:
			sess.handleClip(ctx, in.Msg)

		case protocol.ReadText:
			msg, err := protocol.Parse(in.Msg)
			if err != nil {
				sess.logger.Warn("Failed to parse", "err", err)
				sess.fail(err)
				continue
			}
			sess.handle(msg)
		}
	}
}

func (sess *session) handle(msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeInput:
		sess.mgr.SetInput(msg.Text)

	case protocol.TypeReset:
		sess.mgr.Reset()

	case protocol.TypeSubmit:
		if err := sess.mgr.SubmitTyped(msg.Text); err != nil {
			sess.fail(err)
		}

	case protocol.TypeVoice:
		if err := sess.bridge.HandleTranscript(msg.Text); err != nil {
			sess.fail(err)
		}

	case protocol.TypeSearch:
		sess.mgr.SetSearchTerm(msg.Text)
		sess.conn.Send(protocol.FAQMessage(sess.faqView()))

	case protocol.TypeToggle:
		if _, ok := sess.faq.Lookup(msg.Text); !ok {
			sess.fail(fmt.Errorf("%w: %q", ErrUnknownQuestion, msg.Text))
			return
		}
		sess.mu.Lock()
		sess.expansion.Toggle(msg.Text)
		sess.mu.Unlock()
		sess.conn.Send(protocol.FAQMessage(sess.faqView()))
	}
}

// handleClip transcribes in the background so the widget can keep typing;
// the transcript then goes through the voice path.
func (sess *session) handleClip(ctx context.Context, clip []byte) {
	if sess.clips == nil {
		sess.fail(voice.ErrUnsupported)
		return
	}
	if !sess.clipBusy.CompareAndSwap(false, true) {
		sess.fail(ErrClipBusy)
		return
	}

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer sess.clipBusy.Store(false)

		text, err := sess.clips.TranscribeClip(ctx, clip)
		if err != nil {
			sess.logger.Error("Failed to transcribe clip", "err", err)
			sess.fail(err)
			return
		}
		if err := sess.bridge.HandleTranscript(text); err != nil {
			sess.fail(err)
		}
	}()
}

func (sess *session) fail(err error) {
	sess.conn.Send(protocol.ErrorMessage(err))
}

func (sess *session) faqView() protocol.FAQView {
	term := sess.mgr.State().SearchTerm

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return protocol.FAQView{
		Term:     term,
		Entries:  wireEntries(sess.faq.Search(term)),
		Expanded: sess.expansion.Keys(),
	}
}

func (sess *session) state() protocol.State {
	return protocol.State{
		Session: sess.id,
		Voice:   sess.bridge.Available(),
		Clips:   sess.clips != nil,
		Chat:    wireChat(sess.mgr.State()),
		FAQ:     sess.faqView(),
	}
}
