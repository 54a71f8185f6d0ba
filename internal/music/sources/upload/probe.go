package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Prober measures the duration of a media URL.
type Prober interface {
	Probe(ctx context.Context, url string) (time.Duration, error)
}

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	Path    string
	Timeout time.Duration
}

func NewFFProbe() *FFProbe {
	return &FFProbe{Path: "ffprobe", Timeout: 15 * time.Second}
}

func (p *FFProbe) Probe(ctx context.Context, url string) (time.Duration, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(out []byte) (time.Duration, error) {
	var res struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if res.Format.Duration == "" || res.Format.Duration == "N/A" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(res.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", res.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
