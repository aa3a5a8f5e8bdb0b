package render

import (
	"context"
	"image"
)

// Spool lets capture run slightly ahead of the consumer through a bounded
// frame channel. The depth stays small (a handful of frames), so the stream
// remains lazy and long scenes never sit in memory whole. Frame order and the
// terminal error (io.EOF included) pass through unchanged. Cancel ctx to
// release the producer when the consumer stops pulling early.
func Spool(ctx context.Context, src FrameSource, depth int) FrameSource {
	if depth < 1 {
		depth = 1
	}
	s := &spooledSource{
		frames: make(chan image.Image, depth),
		done:   make(chan error, 1),
	}
	go func() {
		defer close(s.frames)
		for {
			img, err := src.Next(ctx)
			if err != nil {
				s.done <- err
				return
			}
			select {
			case s.frames <- img:
			case <-ctx.Done():
				s.done <- ctx.Err()
				return
			}
		}
	}()
	return s
}

type spooledSource struct {
	frames chan image.Image
	done   chan error
	err    error
}

func (s *spooledSource) Next(ctx context.Context) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	select {
	case img, ok := <-s.frames:
		if !ok {
			// Буферизованные кадры выданы, остался финальный статус.
			s.err = <-s.done
			return nil, s.err
		}
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
