package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Downloader materializes artifacts with yt-dlp into per-job scratch
// directories under baseDir.
type Downloader struct {
	log         *slog.Logger
	baseDir     string
	cookiesFile string
}

func NewDownloader(log *slog.Logger, baseDir, cookiesFile string) *Downloader {
	return &Downloader{log: log, baseDir: baseDir, cookiesFile: cookiesFile}
}

// Fetch downloads one item. The caller owns the returned artifact and must
// Release it on every path.
func (d *Downloader) Fetch(ctx context.Context, url, formatKey string) (*Artifact, error) {
	selector, ok := formatSelectors[formatKey]
	if !ok {
		selector = formatSelectors["720p"]
		formatKey = "720p"
	}

	dir := filepath.Join(d.baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	args := []string{
		"--format", selector,
		"--output", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--restrict-filenames",
		"--no-playlist",
		"--no-check-certificate",
		"--retries", "3",
		"--extractor-retries", "3",
	}
	if d.cookiesFile != "" {
		if _, err := os.Stat(d.cookiesFile); err == nil {
			args = append(args, "--cookies", d.cookiesFile)
		}
	}
	if IsAudio(formatKey) {
		args = append(args, "--extract-audio", "--audio-format", "mp3", "--audio-quality", "192K")
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		kind := Classify(ctx.Err(), stderr.String())
		d.log.Error("download failed", "url", url, "format", formatKey, "stderr", truncate(stderr.String(), 500))
		return nil, &DownloadError{Kind: kind, Msg: truncate(stderr.String(), 200)}
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		os.RemoveAll(dir)
		return nil, &DownloadError{Kind: Classify(nil, ""), Msg: "no file produced"}
	}

	path := filepath.Join(dir, entries[0].Name())
	stat, err := os.Stat(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	art := &Artifact{
		Path:      path,
		Dir:       dir,
		Title:     strings.TrimSuffix(entries[0].Name(), filepath.Ext(entries[0].Name())),
		Duration:  d.probeDuration(ctx, path),
		SizeBytes: stat.Size(),
	}
	d.log.Info("downloaded", "title", art.Title, "size", art.SizeBytes)
	return art, nil
}

// Release deletes the artifact and its scratch directory.
func (d *Downloader) Release(art *Artifact) {
	if art == nil || art.Dir == "" {
		return
	}
	if err := os.RemoveAll(art.Dir); err != nil {
		d.log.Error("scratch cleanup failed", "dir", art.Dir, "err", err)
	}
}

func (d *Downloader) probeDuration(ctx context.Context, path string) string {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return ""
	}
	return formatDuration(seconds)
}
