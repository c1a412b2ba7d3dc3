package audio

import "time"

// Default player settings.
const (
	DefaultSampleRate       = 44100
	DefaultProgressInterval = 250 * time.Millisecond
)

// Config represents audio player configuration.
type Config struct {
	SampleRate       int           // Speaker sample rate in Hz
	ProgressInterval time.Duration // How often position updates are reported while playing
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	return c
}
