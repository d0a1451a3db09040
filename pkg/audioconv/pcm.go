// Package audioconv decodes short audio clips into the 16 kHz mono float32
// PCM that the transcriber expects.
package audioconv

import "math"

const TargetRate = 16000

type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatOgg
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// Sniff identifies the container from the first bytes of a clip.
func Sniff(head []byte) Format {
	switch {
	case len(head) >= 4 && string(head[:4]) == "RIFF":
		return FormatWAV
	case len(head) >= 4 && string(head[:4]) == "OggS":
		return FormatOgg
	case len(head) >= 3 && string(head[:3]) == "ID3":
		return FormatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

type Options struct {
	MaxSamples int // 0 = unlimited
}

func (o Options) limit(x []float32) []float32 {
	if o.MaxSamples > 0 && len(x) > o.MaxSamples {
		return x[:o.MaxSamples]
	}
	return x
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// resampleLinear is good enough for speech going into whisper.
func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := range n {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		switch {
		case i0 >= len(in):
			out[i] = in[len(in)-1]
		case i1 >= len(in):
			out[i] = in[i0]
		default:
			a := float32(src - float64(i0))
			out[i] = in[i0]*(1-a) + in[i1]*a
		}
	}
	return out
}

func toMono16k(x []float32, channels, rate int, opt Options) []float32 {
	x = downmixInterleaved(x, channels)
	x = resampleLinear(x, rate, TargetRate)
	return opt.limit(x)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
