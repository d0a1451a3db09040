// Package device is the voice capability of the machine the daemon runs on:
// microphone capture, whisper transcription and espeak playback.
package device

import "time"

type Config struct {
	WhisperModel string
	Language     string
	Threads      int
	MaxCapture   time.Duration
	CueSound     string // mp3 played when capture starts, optional
	TTSVoice     string
	TTSRate      int
	DuckFactor   float64 // volume factor for other streams while speaking; 0 disables
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.MaxCapture <= 0 {
		c.MaxCapture = 15 * time.Second
	}
	if c.TTSVoice == "" {
		c.TTSVoice = "en"
	}
	return c
}
