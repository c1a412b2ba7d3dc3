package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// Mock TrackLister for testing
type mockTrackLister struct {
	tracks []track.Track
}

func (m *mockTrackLister) Tracks() []track.Track {
	return m.tracks
}

func TestDuplicateFileFilter_Check(t *testing.T) {
	lister := &mockTrackLister{
		tracks: []track.Track{
			{
				ID:       "t1",
				Name:     "intro",
				Filename: "intro.mp3",
				Source:   track.NewSource(make([]byte, 100), "audio/mpeg"),
			},
		},
	}

	tests := []struct {
		name         string
		candidate    Candidate
		wantAccepted bool
	}{
		{
			name:         "same filename and size",
			candidate:    Candidate{Filename: "intro.mp3", Size: 100, Origin: OriginLibrary},
			wantAccepted: false,
		},
		{
			name:         "same filename, rewritten file",
			candidate:    Candidate{Filename: "intro.mp3", Size: 200, Origin: OriginLibrary},
			wantAccepted: true,
		},
		{
			name:         "different filename",
			candidate:    Candidate{Filename: "outro.mp3", Size: 100, Origin: OriginLibrary},
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDuplicateFileFilter(lister)
			result := f.Check(context.Background(), tt.candidate)

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "duplicate_file", result.Code)
			}
		})
	}
}

func TestDuplicateFileFilter_EmptyPlaylist(t *testing.T) {
	f := NewDuplicateFileFilter(&mockTrackLister{})
	result := f.Check(context.Background(), Candidate{Filename: "a.mp3", Size: 1, Origin: OriginLibrary})
	assert.True(t, result.Accepted)

	f = NewDuplicateFileFilter(nil)
	result = f.Check(context.Background(), Candidate{Filename: "a.mp3", Size: 1, Origin: OriginLibrary})
	assert.True(t, result.Accepted)
}
