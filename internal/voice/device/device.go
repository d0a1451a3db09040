//go:build voice

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"pcodcare/internal/audio"
	"pcodcare/internal/notify"
	"pcodcare/internal/tts"
	"pcodcare/pkg/audioconv"
	"pcodcare/pkg/stt"
)

const (
	duckFade = 250 * time.Millisecond

	// vocabulary whisper tends to mishear
	domainPrompt = "PCOD, PCOS, polycystic ovary, insulin resistance, fertility."
)

type capture struct {
	text string
	err  error
}

// Device implements voice.Recognizer, conversation.Speaker and the clip
// transcriber of the widget server.
type Device struct {
	cfg  Config
	rec  *audio.Recorder
	tr   *stt.Transcriber
	duck *audio.Ducker

	mu     sync.Mutex
	stop   chan struct{}
	result chan capture

	speakMu sync.Mutex
}

func Open(cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		return nil, fmt.Errorf("init audio: %w", err)
	}

	tr, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		rec.Close()
		return nil, fmt.Errorf("init whisper: %w", err)
	}

	return &Device{
		cfg:  cfg,
		rec:  rec,
		tr:   tr,
		duck: audio.NewDucker([]string{"espeak", "espeak-ng", "pcodcare"}, 5),
	}, nil
}

func (d *Device) Close() error {
	d.rec.Close()
	return d.tr.Close()
}

// Start begins a capture. Whisper is not streaming, so the only partial is
// the transcript of the whole capture, published right before the channel
// closes.
func (d *Device) Start(ctx context.Context, continuous bool) (<-chan string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		return nil, errors.New("capture already running")
	}

	stop := make(chan struct{})
	result := make(chan capture, 1)
	partials := make(chan string, 1)
	d.stop, d.result = stop, result

	go func() {
		defer close(partials)

		if d.cfg.CueSound != "" {
			if err := notify.Beep(d.cfg.CueSound); err != nil {
				log.Warn("Failed to play cue", "err", err)
			}
		}

		var (
			pcm []float32
			err error
		)
		if continuous {
			pcm, err = d.rec.RecordUntil(stop, d.cfg.MaxCapture)
		} else {
			pcm, err = d.rec.RecordAuto(d.cfg.MaxCapture)
		}
		if err != nil {
			result <- capture{err: fmt.Errorf("record: %w", err)}
			return
		}

		log.Debug("Recorded", "samples", len(pcm))

		text, err := d.transcribe(ctx, pcm)
		if err == nil {
			partials <- text
		}
		result <- capture{text: text, err: err}
	}()

	return partials, nil
}

// Stop ends the running capture and waits for its transcript.
func (d *Device) Stop(ctx context.Context) (string, error) {
	d.mu.Lock()
	stop, result := d.stop, d.result
	d.stop, d.result = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return "", nil
	}
	close(stop)

	select {
	case c := <-result:
		return c.text, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Speak plays text in the background, ducking other audio while it runs.
// Replies are played one at a time.
func (d *Device) Speak(text string) {
	go func() {
		d.speakMu.Lock()
		defer d.speakMu.Unlock()

		ctx := context.Background()
		if d.cfg.DuckFactor > 0 {
			if err := d.duck.Duck(ctx, d.cfg.DuckFactor, duckFade); err != nil {
				log.Warn("Failed to duck audio", "err", err)
			}
			defer func() {
				if err := d.duck.Restore(ctx, duckFade); err != nil {
					log.Warn("Failed to restore audio", "err", err)
				}
			}()
		}

		if err := tts.Speak(text, d.cfg.TTSVoice, d.cfg.TTSRate); err != nil {
			log.Error("Failed to voice out", "err", err)
		}
	}()
}

// TranscribeClip decodes an uploaded wav, mp3 or ogg clip and transcribes it.
func (d *Device) TranscribeClip(ctx context.Context, clip []byte) (string, error) {
	pcm, err := audioconv.Decode(bytes.NewReader(clip), audioconv.Options{
		MaxSamples: int(d.cfg.MaxCapture.Seconds() * audioconv.TargetRate),
	})
	if err != nil {
		return "", fmt.Errorf("decode clip: %w", err)
	}
	return d.transcribe(ctx, pcm)
}

func (d *Device) transcribe(ctx context.Context, pcm []float32) (string, error) {
	res, err := d.tr.TranscribePCM(ctx, pcm, stt.Options{
		Language:      d.cfg.Language,
		Threads:       d.cfg.Threads,
		InitialPrompt: domainPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	log.Info("Transcribed", "text", res.Text, "lang", res.Language, "took", res.Took)
	return res.Text, nil
}
