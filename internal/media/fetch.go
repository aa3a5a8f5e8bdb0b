// Package media prefetches user-supplied photos and packages them as data
// URIs the playback engine can consume without touching the network again.
//
// Policy: a photo that cannot be fetched is reported as a warning and its
// slot keeps the authored placeholder. It never aborts the job and never
// changes the output's size or duration.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Target is one photo to prefetch: the source URL and the pixel box of the
// slot it will fill (zero box means keep the original size).
type Target struct {
	URL       string
	MaxWidth  int
	MaxHeight int
}

// Fetcher downloads and normalizes user photos.
type Fetcher struct {
	Client      *http.Client
	Retries     int           // attempts per asset, default 3
	Backoff     time.Duration // base delay between attempts, default 500ms
	Concurrency int           // parallel downloads, default 4
	MaxBytes    int64         // per-file cap, default 32 MiB
	JPEGQuality int           // re-encode quality, default 90
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) retries() int {
	if f.Retries > 0 {
		return f.Retries
	}
	return 3
}

func (f *Fetcher) backoff() time.Duration {
	if f.Backoff > 0 {
		return f.Backoff
	}
	return 500 * time.Millisecond
}

func (f *Fetcher) concurrency() int {
	if f.Concurrency > 0 {
		return f.Concurrency
	}
	return 4
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return 32 << 20
}

func (f *Fetcher) quality() int {
	if f.JPEGQuality > 0 {
		return f.JPEGQuality
	}
	return 90
}

// Prefetch downloads every target in parallel and returns slot id -> data
// URI for the ones that succeeded, plus human-readable warnings for the ones
// that did not. Each asset retries independently.
func (f *Fetcher) Prefetch(ctx context.Context, targets map[string]Target) (map[string]string, []string) {
	out := make(map[string]string, len(targets))
	var warnings []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency())

	// Стабильный порядок обхода, чтобы прогресс и логи были воспроизводимы.
	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		id, target := id, targets[id]
		g.Go(func() error {
			uri, err := f.fetchOne(gctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w := fmt.Sprintf("слот %s: %v", id, err)
				warnings = append(warnings, w)
				log.Printf("[!] Не удалось получить фото, слот останется пустым: %s", w)
				// Ошибка отдельного ассета не валит всю загрузку.
				return nil
			}
			out[id] = uri
			return nil
		})
	}
	_ = g.Wait()
	return out, warnings
}

func (f *Fetcher) fetchOne(ctx context.Context, target Target) (string, error) {
	var lastErr error
	for attempt := 0; attempt < f.retries(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.backoff() * time.Duration(attempt)):
			}
		}
		uri, err := f.download(ctx, target)
		if err == nil {
			return uri, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("после %d попыток: %w", f.retries(), lastErr)
}

func (f *Fetcher) download(ctx context.Context, target Target) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes()+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > f.maxBytes() {
		return "", fmt.Errorf("файл больше %d байт", f.maxBytes())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("не удалось декодировать изображение: %w", err)
	}

	img = fitToBox(img, target.MaxWidth, target.MaxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: f.quality()}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitToBox downscales an image to fit maxW x maxH preserving aspect ratio.
// Upscaling is never done; the player scales inside the slot itself.
func fitToBox(img image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 || maxH <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Rect, img, b, draw.Over, nil)
	return dst
}
