package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxImageBytes = 16 << 20

// CachedImage holds the raw bytes of one fetched frame image
type CachedImage struct {
	Data        []byte
	ContentType string
}

// ImageLoader fetches frame images ahead of display and keeps them in memory.
// Bytes are stored as received and never decoded.
type ImageLoader struct {
	httpClient *http.Client
	workers    int
	maxBytes   int64

	mu     sync.RWMutex
	cache  map[string]CachedImage
	wanted map[string]struct{}
}

// NewImageLoader creates a loader running at most workers concurrent fetches
func NewImageLoader(workers int) *ImageLoader {
	if workers <= 0 {
		workers = 4
	}
	return &ImageLoader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		workers:    workers,
		maxBytes:   maxImageBytes,
		cache:      make(map[string]CachedImage),
	}
}

// Preload fetches every frame not yet cached and drops images of frames
// that are no longer part of the timeline. It returns the number of frames
// available in the cache afterwards.
func (l *ImageLoader) Preload(ctx context.Context, frames entities.Timeline) int {
	l.retain(frames)

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, frame := range frames {
		locator := frame.Locator
		if _, ok := l.Image(locator); ok {
			continue
		}
		g.Go(func() error {
			img, err := l.fetch(gctx, locator)
			if err != nil {
				failed.Add(1)
				log.Printf("Error preloading frame %s: %v", frame.Timestamp.Format(time.RFC3339), err)
				return nil
			}
			l.store(locator, img)
			return nil
		})
	}
	_ = g.Wait()

	loaded := len(frames) - int(failed.Load())
	log.Printf("Preloaded %d of %d frames", loaded, len(frames))
	return loaded
}

// Image returns the cached image for locator
func (l *ImageLoader) Image(locator string) (CachedImage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.cache[locator]
	return img, ok
}

// retain evicts every cached image whose locator is not in frames
func (l *ImageLoader) retain(frames entities.Timeline) {
	keep := make(map[string]struct{}, len(frames))
	for _, f := range frames {
		keep[f.Locator] = struct{}{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wanted = keep
	for locator := range l.cache {
		if _, ok := keep[locator]; !ok {
			delete(l.cache, locator)
		}
	}
}

// store caches img unless a newer timeline superseded its frame meanwhile
func (l *ImageLoader) store(locator string, img CachedImage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.wanted[locator]; ok {
		l.cache[locator] = img
	}
}

func (l *ImageLoader) fetch(ctx context.Context, locator string) (CachedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return CachedImage{}, fmt.Errorf("failed to build request: %w", err)
	}
	res, err := l.httpClient.Do(req)
	if err != nil {
		return CachedImage{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return CachedImage{}, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, l.maxBytes+1))
	if err != nil {
		return CachedImage{}, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return CachedImage{}, fmt.Errorf("image larger than %d bytes", l.maxBytes)
	}
	return CachedImage{Data: data, ContentType: res.Header.Get("Content-Type")}, nil
}
