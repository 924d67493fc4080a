package media

import (
	"errors"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
)

// ErrNotAvailable is returned by metadata probes when the source cannot be
// inspected at all (private, deleted, geo-blocked).
var ErrNotAvailable = errors.New("media not available")

// DownloadError carries the user-facing failure classification decided at
// this boundary; the orchestrator records it on the job verbatim.
type DownloadError struct {
	Kind models.FailureKind
	Msg  string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed (%s): %s", e.Kind, e.Msg)
}

// MediaInfo describes a probed source, either a single item or a playlist.
type MediaInfo struct {
	URL      string
	Title    string
	Channel  string
	Duration string
	Playlist bool
	Items    []PlaylistItem
}

type PlaylistItem struct {
	URL   string
	Title string
}

// ItemCount is the number of deliverables the source quotes for.
func (m *MediaInfo) ItemCount() int {
	if !m.Playlist {
		return 1
	}
	return len(m.Items)
}

// Artifact is a downloaded file inside its own scratch directory. The
// directory is removed as a whole when the artifact is released.
type Artifact struct {
	Path      string
	Dir       string
	Title     string
	Duration  string
	SizeBytes int64
}

// Format options accepted from the transport, mapped to yt-dlp selectors.
var formatSelectors = map[string]string{
	"mp3":   "bestaudio/best",
	"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
	"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"best":  "bestvideo+bestaudio/best",
}

// ValidFormat reports whether the format key is one the downloader accepts.
func ValidFormat(key string) bool {
	_, ok := formatSelectors[key]
	return ok
}

// IsAudio reports whether the format produces an audio-only artifact.
func IsAudio(key string) bool {
	return key == "mp3"
}
