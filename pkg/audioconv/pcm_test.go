package audioconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniff(t *testing.T) {
	cases := map[string]struct {
		head []byte
		want Format
	}{
		"wav":      {[]byte("RIFF...."), FormatWAV},
		"ogg":      {[]byte("OggS\x00"), FormatOgg},
		"mp3 id3":  {[]byte("ID3\x04"), FormatMP3},
		"mp3 sync": {[]byte{0xFF, 0xFB, 0x90}, FormatMP3},
		"webm":     {[]byte{0x1A, 0x45, 0xDF, 0xA3}, FormatUnknown},
		"short":    {[]byte("R"), FormatUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sniff(tc.head))
		})
	}
}

func TestDownmixInterleaved(t *testing.T) {
	got := downmixInterleaved([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, got)

	mono := []float32{0.1, 0.2}
	assert.Equal(t, mono, downmixInterleaved(mono, 1))
}

func TestResampleLinear(t *testing.T) {
	in := make([]float32, 48000)
	out := resampleLinear(in, 48000, TargetRate)
	assert.Len(t, out, 16000)

	same := []float32{1, 2, 3}
	assert.Equal(t, same, resampleLinear(same, TargetRate, TargetRate))

	up := resampleLinear([]float32{0, 1}, 1, 2)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, up)
}

func TestIntConversionClamps(t *testing.T) {
	got := intSliceToFloat32([]int{32767, -32768, 0, 40000}, 16)
	assert.InDelta(t, 1.0, got[0], 1e-4)
	assert.Equal(t, float32(-1), got[1])
	assert.Equal(t, float32(0), got[2])
	assert.Equal(t, float32(1), got[3])

	assert.Equal(t, []float32{0.5, -0.5}, int16SliceToFloat32([]int16{16384, -16384}))
}

func TestToMono16kLimits(t *testing.T) {
	x := make([]float32, 64000) // 2s stereo @ 16k
	got := toMono16k(x, 2, TargetRate, Options{MaxSamples: 1000})
	assert.Len(t, got, 1000)
}
