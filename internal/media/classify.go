package media

import (
	"context"
	"errors"
	"strings"

	"github.com/mediavault/tubefetch/internal/models"
)

// Classify maps raw yt-dlp output to the user-facing failure category set.
// Timeouts and cancellations count as transient.
func Classify(err error, stderr string) models.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.FailureRateLimited
	}

	msg := strings.ToLower(stderr)
	if msg == "" && err != nil {
		msg = strings.ToLower(err.Error())
	}

	switch {
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "not available"),
		strings.Contains(msg, "has been removed"):
		return models.FailureUnavailable
	case strings.Contains(msg, "private"),
		strings.Contains(msg, "sign in"),
		strings.Contains(msg, "age"),
		strings.Contains(msg, "members-only"):
		return models.FailureRestricted
	case strings.Contains(msg, "copyright"):
		return models.FailureCopyright
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "timed out"):
		return models.FailureRateLimited
	default:
		return models.FailureUnknown
	}
}

// UserMessage renders a failure category for chat display.
func UserMessage(kind models.FailureKind) string {
	switch kind {
	case models.FailureUnavailable:
		return "The video is unavailable or has been removed."
	case models.FailureRestricted:
		return "The video is private or requires sign-in to access."
	case models.FailureCopyright:
		return "The video is blocked for copyright reasons."
	case models.FailureRateLimited:
		return "The source is rate-limiting downloads right now. Please try again later."
	default:
		return "An unexpected error occurred while processing the video."
	}
}
