package telegram

import "regexp"

var (
	videoURLPattern = regexp.MustCompile(
		`^(https?://)?(www\.|m\.|music\.)?(youtube\.com/(watch\?v=|shorts/|live/)[\w-]{11}|youtu\.be/[\w-]{11})`)
	playlistURLPattern = regexp.MustCompile(
		`^(https?://)?(www\.|m\.|music\.)?youtube\.com/playlist\?list=[\w-]+`)
)

// looksLikeMediaURL reports whether the text is a YouTube video or playlist
// link we can hand to the fetcher.
func looksLikeMediaURL(text string) bool {
	return videoURLPattern.MatchString(text) || playlistURLPattern.MatchString(text)
}
