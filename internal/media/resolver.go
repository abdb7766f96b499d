// Package media resolves user requests (URLs, search terms, playlists) into
// playable tracks.
package media

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Track is the metadata for one resolvable piece of media. Duration zero
// with Live set marks a livestream.
type Track struct {
	ID       string
	Title    string
	URL      string
	Duration time.Duration
	Live     bool
}

// PlaylistEntry is one yielded playlist element. Err is set for entries
// whose metadata could not be fetched; the importer counts those as failed
// and moves on.
type PlaylistEntry struct {
	Track *Track
	Err   error
}

// Resolver turns user input into tracks and tracks into stream URLs.
type Resolver interface {
	// Resolve handles a direct video URL or a free-text search term.
	Resolve(ctx context.Context, input string) (*Track, error)
	// StreamURL fetches a playable URL for the track, lazily at play time.
	StreamURL(ctx context.Context, videoID string) (string, error)
	// ExpandPlaylist yields playlist entries one at a time until the
	// playlist is exhausted, the cap is hit, or ctx is cancelled.
	ExpandPlaylist(ctx context.Context, playlistID string, limit int) <-chan PlaylistEntry
}

var urlPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// IsURL reports whether the input is a direct link rather than a search
// term.
func IsURL(input string) bool {
	return urlPattern.MatchString(strings.TrimSpace(input))
}

// PlaylistID extracts the playlist identifier from a YouTube URL, or ""
// when the URL does not address a playlist.
func PlaylistID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// VideoID extracts the video identifier from a YouTube watch or short URL.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	// youtu.be/<id> and /shorts/<id> carry the id in the path.
	path := strings.Trim(u.Path, "/")
	if host := strings.TrimPrefix(u.Host, "www."); host == "youtu.be" && path != "" {
		return path, nil
	}
	if rest, ok := strings.CutPrefix(path, "shorts/"); ok && rest != "" {
		return rest, nil
	}
	return "", fmt.Errorf("no video id in %q", raw)
}
