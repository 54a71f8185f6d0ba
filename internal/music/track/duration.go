package track

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// LiveLabel replaces the duration of livestreams in any rendered text.
const LiveLabel = "livestream"

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses ISO-8601 durations as returned by video APIs
// ("PT4M13S", "P1DT2H", "PT90M"). Weeks and days fold into hours, so
// ">24h" values come out as a plain duration.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	var total time.Duration
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	if m[5] != "" {
		secs, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(math.Round(secs * float64(time.Second)))
	}

	return total, nil
}

// FormatClock renders d as M:SS, or H:MM:SS from one hour up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// DisplayDuration is the per-track duration text, LiveLabel for livestreams.
func DisplayDuration(t Track) string {
	if t.IsLive() {
		return LiveLabel
	}
	return FormatClock(t.Duration())
}
