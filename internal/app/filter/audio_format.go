package filter

import (
	"context"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// AudioFormatConfig represents the configuration for AudioFormatFilter.
type AudioFormatConfig struct {
	// Allowed restricts accepted MIME types. Empty means any audio/* type.
	Allowed []string `yaml:"allowed" mapstructure:"allowed" validate:"dive,startswith=audio/"`
}

// AudioFormatFilter accepts only payloads detected as audio.
type AudioFormatFilter struct {
	config *AudioFormatConfig
}

// NewAudioFormatFilter creates a new audio format filter.
func NewAudioFormatFilter() *AudioFormatFilter {
	return &AudioFormatFilter{}
}

func (f *AudioFormatFilter) Name() string {
	return "audio_format_filter"
}

func (f *AudioFormatFilter) Description() string {
	return "Accepts only files whose content is detected as audio"
}

func (f *AudioFormatFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *AudioFormatFilter) ValidateConfig(settings map[string]any) error {
	var config AudioFormatConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	config.Allowed = lo.Map(config.Allowed, func(s string, _ int) string {
		return strings.ToLower(s)
	})
	f.config = &config
	zlog.Info().Msgf("audio format filter config: %+v", config)
	return nil
}

func (f *AudioFormatFilter) AppliesTo(origin Origin) bool {
	// Non-audio payloads are never playable
	return true
}

func (f *AudioFormatFilter) Check(ctx context.Context, c Candidate) Result {
	mimeType := strings.ToLower(c.MIMEType)
	// Strip parameters such as "; charset=binary"
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	if !strings.HasPrefix(mimeType, "audio/") {
		return Reject("unsupported_format")
	}

	if f.config != nil && len(f.config.Allowed) > 0 && !lo.Contains(f.config.Allowed, mimeType) {
		return Reject("unsupported_format")
	}
	return Accept()
}

func init() {
	Register("audio_format_filter", func() Filter {
		return NewAudioFormatFilter()
	})
}
