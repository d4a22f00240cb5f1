// Package progress renders the gateway's live engine health state to a
// terminal, splitting TTY and non-TTY output the way the teacher's
// episode-generation progress bar does.
package progress

import (
	"fmt"
	"time"
)

// Snapshot is one provider's health row as the renderer displays it.
type Snapshot struct {
	Provider   string
	OK         bool
	VoiceCount int
	Error      string
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	mins := total / 60
	secs := total % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
