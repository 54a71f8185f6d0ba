package queue

import (
	"fmt"
	"strings"
)

// LoopMode decides where the cursor goes when a track ends.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopOne
	LoopAll
)

func (m LoopMode) String() string {
	switch m {
	case LoopNone:
		return "none"
	case LoopOne:
		return "one"
	case LoopAll:
		return "all"
	default:
		return fmt.Sprintf("loop(%d)", int(m))
	}
}

// Emoji is the indicator shown on the now-playing message; empty for LoopNone.
func (m LoopMode) Emoji() string {
	switch m {
	case LoopOne:
		return "🔂"
	case LoopAll:
		return "🔁"
	default:
		return ""
	}
}

// ParseLoopMode accepts "none", "one", "all" and a few aliases.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off", "":
		return LoopNone, nil
	case "one", "track", "single":
		return LoopOne, nil
	case "all", "queue":
		return LoopAll, nil
	}
	return LoopNone, fmt.Errorf("unknown loop mode %q", s)
}
