// Package transcript resolves video links to their caption text.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

var (
	// ErrInvalidVideoID means the link does not point at a video.
	ErrInvalidVideoID = errors.New("transcript: invalid video id")
	// ErrNoSubtitles means the video exists but exposes no transcript.
	ErrNoSubtitles = errors.New("transcript: no subtitles available")
	// ErrVideoUnavailable means the video cannot be played (removed, private, age gated).
	ErrVideoUnavailable = errors.New("transcript: video unavailable")
	// ErrTooManyRequests means YouTube is rate limiting us.
	ErrTooManyRequests = errors.New("transcript: too many requests")
)

// Segment is one timed caption fragment.
type Segment struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?|shorts|live)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

var bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoID extracts the 11 character YouTube id from a link or a bare id.
// Only youtube.com and youtu.be links are accepted.
func VideoID(link string) (string, error) {
	link = strings.TrimSpace(link)
	id := link
	if !bareIDPattern.MatchString(link) {
		m := videoIDPattern.FindStringSubmatch(link)
		if m == nil {
			return "", ErrInvalidVideoID
		}
		id = m[1]
	}
	if _, err := youtube.ExtractVideoID(id); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidVideoID, err)
	}
	return id, nil
}

// Join concatenates segment texts in order, separated by single spaces.
func Join(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// VideoClient is the part of *youtube.Client the fetcher needs.
type VideoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

// YouTube fetches video transcripts through the innertube API.
type YouTube struct {
	Lang   string
	Client VideoClient
}

func NewYouTube() *YouTube {
	return &YouTube{
		Lang:   "en",
		Client: &youtube.Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}},
	}
}

// Fetch returns the transcript of the video behind link.
func (y *YouTube) Fetch(ctx context.Context, link string) ([]Segment, error) {
	id, err := VideoID(link)
	if err != nil {
		return nil, err
	}
	if y.Client == nil {
		return nil, errors.New("transcript: youtube client is nil")
	}

	video, err := y.Client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	raw, err := y.Client.GetTranscriptCtx(ctx, video, y.Lang)
	if err != nil {
		return nil, classify(err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSubtitles
	}

	out := make([]Segment, 0, len(raw))
	for _, s := range raw {
		out = append(out, Segment{
			Text:     strings.TrimSpace(s.Text),
			Start:    time.Duration(s.StartMs) * time.Millisecond,
			Duration: time.Duration(s.Duration) * time.Millisecond,
		})
	}
	return out, nil
}

// classify maps youtube client errors onto this package's sentinels,
// keeping the original error in the chain.
func classify(err error) error {
	var status youtube.ErrUnexpectedStatusCode
	var playability youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrTranscriptDisabled):
		return fmt.Errorf("%w: %w", ErrNoSubtitles, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %w", ErrInvalidVideoID, err)
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.As(err, &playability):
		return fmt.Errorf("%w: %w", ErrVideoUnavailable, err)
	case errors.As(err, &status) && int(status) == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrTooManyRequests, err)
	}
	return fmt.Errorf("transcript: %w", err)
}
