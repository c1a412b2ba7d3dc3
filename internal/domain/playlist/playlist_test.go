package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/tunedeck/internal/domain/track"
)

func TestPlaylist_Append(t *testing.T) {
	p := New()
	assert.True(t, p.IsEmpty())

	wasEmpty := p.Append(track.Track{ID: "a"}, track.Track{ID: "b"})
	assert.True(t, wasEmpty)
	assert.Equal(t, 2, p.Len())

	wasEmpty = p.Append(track.Track{ID: "a"})
	assert.False(t, wasEmpty)
	assert.Equal(t, 3, p.Len())

	ids := make([]string, 0, p.Len())
	for _, tr := range p.Tracks() {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"a", "b", "a"}, ids, "order preserved, duplicates allowed")
}

func TestPlaylist_Append_Nothing(t *testing.T) {
	p := New()
	wasEmpty := p.Append()
	assert.True(t, wasEmpty)
	assert.True(t, p.IsEmpty())
}

func TestPlaylist_At(t *testing.T) {
	p := New()
	p.Append(track.Track{ID: "a"}, track.Track{ID: "b"})

	tests := []struct {
		name   string
		index  int
		wantID string
		wantOK bool
	}{
		{name: "first", index: 0, wantID: "a", wantOK: true},
		{name: "last", index: 1, wantID: "b", wantOK: true},
		{name: "negative", index: -1, wantOK: false},
		{name: "past end", index: 2, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := p.At(tt.index)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, tr.ID)
		})
	}
}

func TestPlaylist_TracksIsCopy(t *testing.T) {
	p := New()
	p.Append(track.Track{ID: "a"})

	tracks := p.Tracks()
	tracks[0].ID = "mutated"

	tr, _ := p.At(0)
	assert.Equal(t, "a", tr.ID)
}

func TestPlaylist_TotalSize(t *testing.T) {
	p := New()
	assert.Equal(t, int64(0), p.TotalSize())

	p.Append(
		track.Track{ID: "a", Source: track.NewSource(make([]byte, 100), "audio/mpeg")},
		track.Track{ID: "b", Source: track.NewSource(make([]byte, 250), "audio/wav")},
	)
	assert.Equal(t, int64(350), p.TotalSize())
}
