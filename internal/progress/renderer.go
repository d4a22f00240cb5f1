package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// HealthRenderer draws a per-provider health table on a TTY, overwriting
// it in place on each refresh, or prints timestamped single lines on a
// non-TTY (piped logs, CI).
type HealthRenderer struct {
	out   io.Writer
	start time.Time
	isTTY bool
	width int
	lines int
}

// NewHealthRenderer creates a renderer writing to out, auto-detecting
// TTY mode and terminal width.
func NewHealthRenderer(out *os.File) *HealthRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}

	return &HealthRenderer{out: out, start: time.Now(), isTTY: tty, width: width}
}

// Render draws the current set of provider snapshots, sorted by name.
func (r *HealthRenderer) Render(snapshots []Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Provider < snapshots[j].Provider })

	if r.isTTY {
		r.renderTTY(snapshots)
	} else {
		r.renderPlain(snapshots)
	}
}

// Finish clears the live table, leaving the terminal clean on exit.
func (r *HealthRenderer) Finish() {
	if r.isTTY && r.lines > 0 {
		r.clearLines()
	}
}

func (r *HealthRenderer) renderTTY(snapshots []Snapshot) {
	if r.lines > 0 {
		r.clearLines()
	}

	rows := make([]string, 0, len(snapshots)+2)
	rows = append(rows, fmt.Sprintf("  %-20s %-8s %-8s %s", "PROVIDER", "STATUS", "VOICES", ""))
	for _, s := range snapshots {
		status := "ok"
		detail := ""
		if !s.OK {
			status = "FAIL"
			detail = truncate(s.Error, r.width-44)
		}
		rows = append(rows, fmt.Sprintf("  %-20s %-8s %-8d %s", s.Provider, status, s.VoiceCount, detail))
	}
	rows = append(rows, fmt.Sprintf("  %s", formatElapsed(time.Since(r.start))))

	fmt.Fprint(r.out, strings.Join(rows, "\n"))
	r.lines = len(rows)
}

func (r *HealthRenderer) renderPlain(snapshots []Snapshot) {
	for _, s := range snapshots {
		status := "ok"
		if !s.OK {
			status = "FAIL: " + s.Error
		}
		fmt.Fprintf(r.out, "[%s] %-20s %-8s voices=%d\n", formatElapsed(time.Since(r.start)), s.Provider, status, s.VoiceCount)
	}
}

func (r *HealthRenderer) clearLines() {
	for i := 0; i < r.lines; i++ {
		if i == 0 {
			fmt.Fprint(r.out, "\r\033[2K")
		} else {
			fmt.Fprint(r.out, "\033[A\033[2K")
		}
	}
	fmt.Fprint(r.out, "\r")
	r.lines = 0
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
