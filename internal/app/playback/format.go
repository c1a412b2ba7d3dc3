package playback

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// VolumeLevel is a coarse bucket of the output volume for display.
type VolumeLevel string

const (
	VolumeHigh VolumeLevel = "high"
	VolumeLow  VolumeLevel = "low"
	VolumeOff  VolumeLevel = "off"
	VolumeMute VolumeLevel = "mute"
)

// FormatTime formats a duration as m:ss. Negative durations format as 0:00.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ProgressPercent returns position as a percentage of duration.
// Returns 0 while the duration is unknown.
func ProgressPercent(position, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return lo.Clamp(float64(position)/float64(duration)*100, 0, 100)
}

// LevelForVolume buckets a volume in [0, 1].
func LevelForVolume(v float64) VolumeLevel {
	switch {
	case v > 0.7:
		return VolumeHigh
	case v > 0.3:
		return VolumeLow
	case v > 0:
		return VolumeOff
	default:
		return VolumeMute
	}
}
