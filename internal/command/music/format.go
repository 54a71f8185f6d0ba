package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/internal/storage"
)

// queueWindow is how many entries the queue listing shows around the cursor.
const queueWindow = 15

func formatQueue(entries []queue.Entry, cursor int, now time.Time) string {
	start := max(0, cursor-2)
	end := min(len(entries), start+queueWindow)
	if end-start < queueWindow {
		start = max(0, end-queueWindow)
	}

	var b strings.Builder
	if start > 0 {
		fmt.Fprintf(&b, "… %d earlier\n", start)
	}
	for i := start; i < end; i++ {
		e := entries[i]
		marker := "`" + fmt.Sprint(i+1) + ".`"
		if i == cursor {
			marker = "▶️"
		}
		fmt.Fprintf(&b, "%s %s `%s`", marker, linkTitle(e.Track), track.DisplayDuration(e.Track))
		if r := e.Track.Requester(); r != "" {
			fmt.Fprintf(&b, " · <@%s>", r)
		}
		fmt.Fprintf(&b, " · queued %s\n", humanize.RelTime(e.QueuedAt, now, "ago", "from now"))
	}
	if end < len(entries) {
		fmt.Fprintf(&b, "… %d more\n", len(entries)-end)
	}
	return strings.TrimRight(b.String(), "\n")
}

func queueFooter(n int, length string, loop queue.LoopMode, remaining time.Duration) string {
	parts := []string{fmt.Sprintf("%d tracks", n), "total " + length}
	if remaining > 0 {
		parts = append(parts, track.FormatClock(remaining)+" left of current")
	}
	if loop != queue.LoopNone {
		parts = append(parts, "loop "+loop.String())
	}
	return strings.Join(parts, " · ")
}

func formatHistory(history []storage.TrackRecord, now time.Time) string {
	var b strings.Builder
	for i, h := range history {
		title := h.Title
		if h.URL != "" {
			title = fmt.Sprintf("[%s](%s)", h.Title, h.URL)
		}
		fmt.Fprintf(&b, "`%d.` %s · %s\n", i+1, title, humanize.RelTime(h.PlayedAt, now, "ago", "from now"))
	}
	return strings.TrimRight(b.String(), "\n")
}
