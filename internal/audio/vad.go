package audio

import "math"

// SampleRate is what whisper consumes; capture happens at this rate directly.
const SampleRate = 16000

// endpointer decides when an utterance is over: it waits for the first loud
// frame, then ends after hangover consecutive quiet frames.
type endpointer struct {
	threshold float64
	hangover  int

	speaking bool
	quiet    int
}

func newEndpointer(threshold float64, hangover int) *endpointer {
	return &endpointer{threshold: threshold, hangover: hangover}
}

// push classifies one frame. keep reports whether the frame belongs to the
// utterance, done whether the utterance has ended.
func (e *endpointer) push(frame []float32) (keep, done bool) {
	if frameRMS(frame) > e.threshold {
		e.speaking = true
		e.quiet = 0
		return true, false
	}
	if !e.speaking {
		return false, false
	}

	e.quiet++
	if e.quiet >= e.hangover {
		return false, true
	}
	return true, false
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(f)))
}
