package filter

import (
	"context"

	"github.com/samber/lo"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// DuplicateFileFilter rejects library files that are already in the playlist.
// A file counts as present when a track with the same filename and payload size exists.
// Client uploads are never checked: the playlist allows duplicates.
type DuplicateFileFilter struct {
	lister TrackLister
}

// TrackLister interface for accessing playlist data.
type TrackLister interface {
	Tracks() []track.Track
}

// NewDuplicateFileFilter creates a new duplicate file filter.
func NewDuplicateFileFilter(lister TrackLister) *DuplicateFileFilter {
	return &DuplicateFileFilter{
		lister: lister,
	}
}

// Name returns the filter name.
func (f *DuplicateFileFilter) Name() string {
	return "duplicate_file_filter"
}

// Description returns the filter description.
func (f *DuplicateFileFilter) Description() string {
	return "Skips library files that were already imported into the playlist"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateFileFilter) ReturnCodes() []string {
	return []string{"duplicate_file"}
}

// AppliesTo returns which origins this filter applies to.
func (f *DuplicateFileFilter) AppliesTo(origin Origin) bool {
	// Watch events fire repeatedly for one file
	return origin == OriginLibrary
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateFileFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the file is already in the playlist.
func (f *DuplicateFileFilter) Check(ctx context.Context, c Candidate) Result {
	if f.lister == nil {
		return Accept()
	}

	exists := lo.ContainsBy(f.lister.Tracks(), func(t track.Track) bool {
		return t.Filename == c.Filename && t.Source.Size() == c.Size
	})
	if exists {
		return Reject("duplicate_file")
	}
	return Accept()
}
