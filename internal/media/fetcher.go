package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Fetcher probes source metadata with yt-dlp without downloading anything.
type Fetcher struct {
	log         *slog.Logger
	cookiesFile string
}

func NewFetcher(log *slog.Logger, cookiesFile string) *Fetcher {
	return &Fetcher{log: log, cookiesFile: cookiesFile}
}

type probeEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Channel  string  `json:"channel"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	Type     string  `json:"_type"`
}

// Metadata returns info for a single video or a flat playlist listing.
func (f *Fetcher) Metadata(ctx context.Context, url string) (*MediaInfo, error) {
	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		"--no-check-certificate",
		"--retries", "3",
		"--extractor-retries", "3",
	}
	if f.cookiesFile != "" {
		if _, err := os.Stat(f.cookiesFile); err == nil {
			args = append(args, "--cookies", f.cookiesFile)
		}
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		f.log.Error("metadata probe failed", "url", url, "stderr", truncate(stderr.String(), 500))
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, truncate(stderr.String(), 200))
	}

	var root struct {
		probeEntry
		Entries []probeEntry `json:"entries"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &root); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &MediaInfo{
		URL:      url,
		Title:    root.Title,
		Channel:  channelOf(root.probeEntry),
		Duration: formatDuration(root.Duration),
	}
	if root.Type == "playlist" {
		info.Playlist = true
		for _, e := range root.Entries {
			itemURL := e.URL
			if itemURL == "" && e.ID != "" {
				itemURL = "https://www.youtube.com/watch?v=" + e.ID
			}
			if itemURL == "" {
				continue
			}
			info.Items = append(info.Items, PlaylistItem{URL: itemURL, Title: e.Title})
		}
		if len(info.Items) == 0 {
			return nil, fmt.Errorf("%w: empty playlist", ErrNotAvailable)
		}
	}
	return info, nil
}

func channelOf(e probeEntry) string {
	if e.Channel != "" {
		return e.Channel
	}
	return e.Uploader
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
