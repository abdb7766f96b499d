package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/youtube/v3"
)

// playlistPageSize is the YouTube Data API maximum per page.
const playlistPageSize = 50

// Options bounds the upstream calls.
type Options struct {
	// MaxSearchResults is how many search hits to request; earlier hits
	// whose metadata cannot be fetched fall through to later ones.
	MaxSearchResults int64
	// RequestTimeout caps each individual upstream request.
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxSearchResults <= 0 {
		o.MaxSearchResults = 5
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	return o
}

// YouTube resolves tracks through two clients: the Data API for search and
// playlist paging, and the scraping client for per-video metadata and
// stream URLs.
type YouTube struct {
	service *youtube.Service
	client  *ytdl.Client
	opts    Options
	log     zerolog.Logger

	// Stream URLs for the same video requested concurrently collapse into
	// one upstream fetch.
	flight singleflight.Group
}

func NewYouTube(service *youtube.Service, opts Options, log zerolog.Logger) *YouTube {
	return &YouTube{
		service: service,
		client:  &ytdl.Client{},
		opts:    opts.withDefaults(),
		log:     log,
	}
}

// Resolve handles a direct video URL or a free-text search term. The first
// search hit wins, matching the way people use the play command.
func (y *YouTube) Resolve(ctx context.Context, input string) (*Track, error) {
	if IsURL(input) {
		id, err := VideoID(input)
		if err != nil {
			return nil, err
		}
		return y.track(ctx, id)
	}

	sctx, cancel := context.WithTimeout(ctx, y.opts.RequestTimeout)
	defer cancel()
	call := y.service.Search.List([]string{"id"}).
		Q(input).
		Type("video").
		MaxResults(y.opts.MaxSearchResults).
		Context(sctx)
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", input, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("no results for %q", input)
	}

	var lastErr error
	for _, item := range resp.Items {
		track, err := y.track(ctx, item.Id.VideoId)
		if err != nil {
			lastErr = err
			continue
		}
		return track, nil
	}
	return nil, fmt.Errorf("no playable result for %q: %w", input, lastErr)
}

// track fetches metadata for one video id.
func (y *YouTube) track(ctx context.Context, id string) (*Track, error) {
	ctx, cancel := context.WithTimeout(ctx, y.opts.RequestTimeout)
	defer cancel()
	video, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching video %s: %w", id, err)
	}
	return &Track{
		ID:       video.ID,
		Title:    video.Title,
		URL:      "https://www.youtube.com/watch?v=" + video.ID,
		Duration: video.Duration,
		Live:     video.Duration == 0,
	}, nil
}

// StreamURL picks the best audio format and returns its direct URL.
// Concurrent requests for the same video share one fetch.
func (y *YouTube) StreamURL(ctx context.Context, videoID string) (string, error) {
	v, err, _ := y.flight.Do(videoID, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(ctx, y.opts.RequestTimeout)
		defer cancel()
		video, err := y.client.GetVideoContext(fctx, videoID)
		if err != nil {
			return "", fmt.Errorf("fetching video %s: %w", videoID, err)
		}
		formats := video.Formats.WithAudioChannels()
		if len(formats) == 0 {
			return "", fmt.Errorf("no audio formats for %s", videoID)
		}
		formats.Sort()
		url, err := y.client.GetStreamURLContext(fctx, video, &formats[0])
		if err != nil {
			return "", fmt.Errorf("stream url for %s: %w", videoID, err)
		}
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ExpandPlaylist walks the playlist page by page and yields entries on the
// returned channel. Metadata for each page's videos is fetched by a small
// worker pool; yields preserve playlist order within the page. The producer
// stops between items when ctx is cancelled.
func (y *YouTube) ExpandPlaylist(ctx context.Context, playlistID string, limit int) <-chan PlaylistEntry {
	out := make(chan PlaylistEntry, 1)
	go func() {
		defer close(out)
		yielded := 0
		pageToken := ""
		for {
			pctx, cancel := context.WithTimeout(ctx, y.opts.RequestTimeout)
			call := y.service.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(playlistPageSize).
				Context(pctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Do()
			cancel()
			if err != nil {
				select {
				case out <- PlaylistEntry{Err: fmt.Errorf("listing playlist %s: %w", playlistID, err)}:
				case <-ctx.Done():
				}
				return
			}

			ids := make([]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				ids = append(ids, item.ContentDetails.VideoId)
			}
			entries := y.fetchPage(ctx, ids)

			for _, entry := range entries {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
				yielded++
				if limit > 0 && yielded >= limit {
					return
				}
			}

			pageToken = resp.NextPageToken
			if pageToken == "" {
				return
			}
		}
	}()
	return out
}

// fetchPage resolves metadata for one page of video ids with bounded
// concurrency, keeping playlist order.
func (y *YouTube) fetchPage(ctx context.Context, ids []string) []PlaylistEntry {
	entries := make([]PlaylistEntry, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			track, err := y.track(gctx, id)
			mu.Lock()
			if err != nil {
				entries[i] = PlaylistEntry{Err: fmt.Errorf("video %s: %w", id, err)}
			} else {
				entries[i] = PlaylistEntry{Track: track}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return entries
}
