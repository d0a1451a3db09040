//go:build !voice

package device

import (
	"context"

	"pcodcare/internal/voice"
)

// Device is unavailable in builds without the voice tag.
type Device struct{}

func Open(Config) (*Device, error) {
	return nil, voice.ErrUnsupported
}

func (*Device) Close() error { return nil }

func (*Device) Start(context.Context, bool) (<-chan string, error) {
	return nil, voice.ErrUnsupported
}

func (*Device) Stop(context.Context) (string, error) {
	return "", voice.ErrUnsupported
}

func (*Device) Speak(string) {}

func (*Device) TranscribeClip(context.Context, []byte) (string, error) {
	return "", voice.ErrUnsupported
}
