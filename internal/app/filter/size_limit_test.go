package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeLimitFilter_Check(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name         string
		minBytes     int64
		maxMB        float64
		size         int64
		shouldReject bool
		description  string
	}{
		{
			name:         "Within limits",
			minBytes:     1,
			maxMB:        10,
			size:         5 * mb,
			shouldReject: false,
			description:  "Should accept file within min/max limits",
		},
		{
			name:         "Empty payload",
			minBytes:     1,
			maxMB:        0,
			size:         0,
			shouldReject: true,
			description:  "Should reject empty file",
		},
		{
			name:         "Too large",
			minBytes:     1,
			maxMB:        10,
			size:         11 * mb,
			shouldReject: true,
			description:  "Should reject file larger than max",
		},
		{
			name:         "Exact max",
			minBytes:     1,
			maxMB:        10,
			size:         10 * mb,
			shouldReject: false,
			description:  "Should accept file exactly at max",
		},
		{
			name:         "No upper limit",
			minBytes:     1,
			maxMB:        0,
			size:         500 * mb,
			shouldReject: false,
			description:  "Should accept any size when max is zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewSizeLimitFilter()
			// Manually configuring for test by setting config directly
			f.config = &SizeLimitConfig{
				MinBytes: tt.minBytes,
				MaxMB:    tt.maxMB,
			}

			result := f.Check(context.Background(), Candidate{Filename: "a.mp3", Size: tt.size, Origin: OriginUpload})

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "size_limit_exceeded", result.Code, tt.description)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestSizeLimitFilter_NoConfig(t *testing.T) {
	f := NewSizeLimitFilter()
	result := f.Check(context.Background(), Candidate{Size: 0})
	assert.True(t, result.Accepted, "unconfigured filter accepts everything")
}

func TestSizeLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name         string
		settings     map[string]any
		wantErr      bool
		wantMinBytes int64
		wantMaxMB    float64
	}{
		{
			name:         "defaults",
			settings:     map[string]any{},
			wantMinBytes: 1,
		},
		{
			name:         "integer max from yaml",
			settings:     map[string]any{"max_mb": 20},
			wantMinBytes: 1,
			wantMaxMB:    20,
		},
		{
			name:         "explicit min",
			settings:     map[string]any{"min_bytes": 128, "max_mb": 1.5},
			wantMinBytes: 128,
			wantMaxMB:    1.5,
		},
		{
			name:     "negative max",
			settings: map[string]any{"max_mb": -1},
			wantErr:  true,
		},
		{
			name:     "min larger than max",
			settings: map[string]any{"min_bytes": 2 * 1024 * 1024, "max_mb": 1},
			wantErr:  true,
		},
		{
			name:     "wrong type",
			settings: map[string]any{"max_mb": "lots"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewSizeLimitFilter()
			err := f.ValidateConfig(tt.settings)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, f.config)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMinBytes, f.config.MinBytes)
			assert.Equal(t, tt.wantMaxMB, f.config.MaxMB)
		})
	}
}

func TestFilters_AppliesTo(t *testing.T) {
	tests := []struct {
		name        string
		filter      Filter
		wantUpload  bool
		wantLibrary bool
	}{
		{"audio format", NewAudioFormatFilter(), true, true},
		{"size limit", NewSizeLimitFilter(), true, false},
		{"duplicate file", NewDuplicateFileFilter(nil), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantUpload, tt.filter.AppliesTo(OriginUpload))
			assert.Equal(t, tt.wantLibrary, tt.filter.AppliesTo(OriginLibrary))
		})
	}
}
