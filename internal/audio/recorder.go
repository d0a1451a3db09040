//go:build voice

package audio

import (
	"errors"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	autoFrame     = 320  // 20ms
	untilFrame    = 1024 // 64ms
	silenceRMS    = 0.015
	silenceFrames = 30 // 600ms
)

var ErrNoAudio = errors.New("no audio recorded")

// Recorder captures mono float32 PCM at SampleRate from the default input.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordAuto records one utterance and stops after a stretch of silence or
// after maxLen.
func (r *Recorder) RecordAuto(maxLen time.Duration) ([]float32, error) {
	if maxLen <= 0 {
		maxLen = 10 * time.Second
	}

	ep := newEndpointer(silenceRMS, silenceFrames)
	out := make([]float32, 0, SampleRate*3)

	err := capture(autoFrame, maxLen, func(frame []float32) bool {
		keep, done := ep.push(frame)
		if keep {
			out = append(out, frame...)
		}
		return !done
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoAudio
	}
	return out, nil
}

// RecordUntil records everything until stop is closed or maxLen elapses.
func (r *Recorder) RecordUntil(stop <-chan struct{}, maxLen time.Duration) ([]float32, error) {
	if maxLen <= 0 {
		maxLen = 15 * time.Second
	}

	out := make([]float32, 0, int(SampleRate*maxLen.Seconds()))

	err := capture(untilFrame, maxLen, func(frame []float32) bool {
		out = append(out, frame...)
		select {
		case <-stop:
			return false
		default:
			return true
		}
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoAudio
	}
	return out, nil
}

// capture feeds frames to fn until it returns false or maxLen of audio has
// been read. The frame slice is reused between calls.
func capture(frameSize int, maxLen time.Duration, fn func([]float32) bool) error {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	frames := int(maxLen.Seconds() * SampleRate / float64(frameSize))
	for range frames {
		if err := stream.Read(); err != nil {
			return err
		}
		if !fn(buf) {
			return nil
		}
	}
	return nil
}
