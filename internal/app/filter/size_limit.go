package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// SizeLimitConfig represents the configuration for SizeLimitFilter.
type SizeLimitConfig struct {
	MinBytes int64   `yaml:"min_bytes" mapstructure:"min_bytes" default:"1" validate:"gte=1"`
	MaxMB    float64 `yaml:"max_mb" mapstructure:"max_mb" validate:"gte=0"`
}

// SizeLimitFilter checks if an uploaded payload size is within allowed limits.
type SizeLimitFilter struct {
	config *SizeLimitConfig
}

// NewSizeLimitFilter creates a new size limit filter.
func NewSizeLimitFilter() *SizeLimitFilter {
	return &SizeLimitFilter{}
}

func (f *SizeLimitFilter) Name() string {
	return "size_limit_filter"
}

func (f *SizeLimitFilter) Description() string {
	return "Checks if uploaded file size is within allowed limits"
}

func (f *SizeLimitFilter) ReturnCodes() []string {
	return []string{"size_limit_exceeded"}
}

func (f *SizeLimitFilter) ValidateConfig(settings map[string]any) error {
	var config SizeLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	// Custom validation: min_bytes cannot be greater than max_mb (0 means no limit)
	if config.MaxMB > 0 && float64(config.MinBytes) > config.MaxMB*1024*1024 {
		return errors.New("min_bytes cannot be greater than max_mb")
	}
	f.config = &config
	zlog.Info().Msgf("size limit filter config: %+v", config)
	return nil
}

func (f *SizeLimitFilter) AppliesTo(origin Origin) bool {
	// Apply to client uploads only
	return origin == OriginUpload
}

func (f *SizeLimitFilter) Check(ctx context.Context, c Candidate) Result {
	// If config is not set, accept all files
	if f.config == nil {
		return Accept()
	}

	if c.Size < f.config.MinBytes {
		return Reject("size_limit_exceeded")
	}

	if f.config.MaxMB > 0 && float64(c.Size) > f.config.MaxMB*1024*1024 {
		return Reject("size_limit_exceeded")
	}

	return Accept()
}

func init() {
	Register("size_limit_filter", func() Filter {
		return NewSizeLimitFilter()
	})
}
