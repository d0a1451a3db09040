//go:build !voice

package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcodcare/internal/voice"
)

func TestOpenWithoutVoiceBuild(t *testing.T) {
	d, err := Open(Config{WhisperModel: "model.bin"})
	require.ErrorIs(t, err, voice.ErrUnsupported)
	assert.Nil(t, d)

	var stub Device
	_, err = stub.TranscribeClip(context.Background(), []byte("RIFF"))
	assert.ErrorIs(t, err, voice.ErrUnsupported)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, "en", c.Language)
	assert.Equal(t, "en", c.TTSVoice)
	assert.Positive(t, c.MaxCapture)
}
