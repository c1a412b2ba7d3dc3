package track

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
	}{
		{name: "simple mp3", filename: "song.mp3", expected: "song"},
		{name: "multiple dots", filename: "my.best.song.wav", expected: "my.best.song"},
		{name: "no extension", filename: "track", expected: "track"},
		{name: "with directory", filename: "/music/album/01 - intro.mp3", expected: "01 - intro"},
		{name: "dotfile", filename: ".mp3", expected: ".mp3"},
		{name: "empty", filename: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NameFromFilename(tt.filename))
		})
	}
}

func TestTrack_DisplayArtist(t *testing.T) {
	tr := &Track{Artist: ""}
	assert.Equal(t, UnknownArtist, tr.DisplayArtist())

	tr = &Track{Artist: "   "}
	assert.Equal(t, UnknownArtist, tr.DisplayArtist())

	tr = &Track{Artist: "Nujabes"}
	assert.Equal(t, "Nujabes", tr.DisplayArtist())
}

func TestSource_Open(t *testing.T) {
	src := NewSource([]byte("ID3payload"), "audio/mpeg")

	assert.Equal(t, "audio/mpeg", src.MIMEType())
	assert.Equal(t, int64(10), src.Size())
	assert.False(t, src.IsEmpty())

	// Each Open starts from the beginning
	for i := 0; i < 2; i++ {
		data, err := io.ReadAll(src.Open())
		require.NoError(t, err)
		assert.Equal(t, "ID3payload", string(data))
	}

	assert.True(t, Source{}.IsEmpty())
}
