// Package render drives a vector-animation playback engine headlessly,
// frame by frame, producing a deterministic raster sequence.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"
)

// HeadlessEngine is the narrow contract to the playback substrate. It keeps
// extraction and injection independent of any particular engine; the
// production implementation is ChromeEngine, tests use a deterministic fake.
type HeadlessEngine interface {
	// Load hands the engine a standalone animation document (wire JSON) and
	// the target raster size.
	Load(ctx context.Context, doc []byte, width, height int) error
	// AwaitReady blocks until the engine can render frame 0. One-shot.
	AwaitReady(ctx context.Context) error
	// Seek positions the playhead at an exact frame index, not wall clock.
	Seek(ctx context.Context, frame int) error
	// CaptureFrame rasterizes the current playhead position.
	CaptureFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// ErrReadyTimeout reports that the engine never signalled readiness within
// the configured window. Fatal for the scene, not the whole job.
var ErrReadyTimeout = errors.New("engine readiness timeout")

// DefaultReadyTimeout bounds the wait for engine readiness.
const DefaultReadyTimeout = 30 * time.Second

// FrameSource is a lazy, finite, non-restartable frame stream. Next returns
// io.EOF after the last frame. Frames come in strictly increasing index
// order; none is skipped.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// Sequence pulls frames 0..total-1 from a loaded engine, one seek+capture
// per pull, so long scenes never sit in memory whole.
type Sequence struct {
	engine  HeadlessEngine
	total   int
	next    int
	onFrame func(index int)
}

// Start loads the document into the engine and waits for readiness. A
// context deadline hit while waiting surfaces as ErrReadyTimeout.
func Start(ctx context.Context, engine HeadlessEngine, doc []byte, width, height, totalFrames int, readyTimeout time.Duration) (*Sequence, error) {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	if err := engine.Load(ctx, doc, width, height); err != nil {
		return nil, fmt.Errorf("engine load: %w", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := engine.AwaitReady(readyCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrReadyTimeout
		}
		return nil, fmt.Errorf("engine ready: %w", err)
	}
	return &Sequence{engine: engine, total: totalFrames}, nil
}

// OnFrame registers an advisory per-frame hook (progress reporting). Panics
// inside the hook are swallowed: progress must never break the render.
func (s *Sequence) OnFrame(fn func(index int)) {
	s.onFrame = fn
}

// Total returns the number of frames the sequence will produce.
func (s *Sequence) Total() int { return s.total }

// Next yields the next frame in order, io.EOF when exhausted.
func (s *Sequence) Next(ctx context.Context) (image.Image, error) {
	if s.next >= s.total {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := s.next
	if err := s.engine.Seek(ctx, idx); err != nil {
		return nil, fmt.Errorf("seek frame %d: %w", idx, err)
	}
	img, err := s.engine.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame %d: %w", idx, err)
	}
	s.next++
	if s.onFrame != nil {
		func() {
			defer func() { _ = recover() }()
			s.onFrame(idx)
		}()
	}
	return img, nil
}
