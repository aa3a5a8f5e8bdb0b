package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ivlev/lottie2video/internal/render"
	"github.com/ivlev/lottie2video/internal/system"
)

// SegmentParams describes one constant-frame-rate scene segment.
type SegmentParams struct {
	Width, Height int
	FPS           float64
	Encoder       string // libx264 / h264_nvenc / h264_videotoolbox
	Quality       int    // CRF for x264, CQ for nvenc, bitrate/100k for videotoolbox
}

// ConcatParams describes the final lossless assembly.
type ConcatParams struct {
	// AudioPath, when set, is muxed under the concatenated video. The video
	// stream is still copied, only audio is encoded.
	AudioPath string
}

// Encoder assembles raster frame streams into video files.
type Encoder interface {
	EncodeSegment(ctx context.Context, frames render.FrameSource, segPath string, params SegmentParams) error
	Concatenate(ctx context.Context, segmentPaths []string, finalPath string, tmpDir string, params ConcatParams) error
}

// FFmpegEncoder drives the system ffmpeg binary.
type FFmpegEncoder struct{}

// EncodeSegment streams raw RGBA frames to ffmpeg stdin and produces one CFR
// segment. Each frame is written the moment it is pulled, so the segment
// encode keeps pace with capture and nothing is spooled to disk.
func (e *FFmpegEncoder) EncodeSegment(ctx context.Context, frames render.FrameSource, segPath string, p SegmentParams) error {
	args := buildSegmentArgs(segPath, p)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	writeErr := func() error {
		defer stdin.Close()
		for {
			img, err := frames.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := writeRawRGBA(stdin, img, p.Width, p.Height); err != nil {
				return fmt.Errorf("write raw error: %w", err)
			}
		}
	}()

	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", waitErr, out.String())
	}
	return nil
}

func buildSegmentArgs(segPath string, p SegmentParams) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%f", p.FPS),
		"-i", "-",
		"-r", fmt.Sprintf("%f", p.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", p.Encoder,
	}

	// Качество в зависимости от энкодера
	switch p.Encoder {
	case "h264_videotoolbox":
		bitrate := p.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", "medium")
	}

	args = append(args, segPath)
	return args
}

// writeRawRGBA emits one frame as packed RGBA. Frames that come back from
// the engine at a different geometry are redrawn into the segment size so
// ffmpeg always sees a constant raster.
func writeRawRGBA(w io.Writer, img image.Image, width, height int) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Dx() != width || bounds.Dy() != height ||
		rgba.Stride != width*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		target := system.GetImage(image.Rect(0, 0, width, height))
		defer system.PutImage(target)
		draw.Draw(target, target.Rect, image.Black, image.Point{}, draw.Src)
		draw.Draw(target, target.Rect, img, bounds.Min, draw.Src)
		_, err := w.Write(target.Pix)
		return err
	}
	_, err := w.Write(rgba.Pix)
	return err
}

// Concatenate performs lossless stream concatenation of per-scene segments
// in order. With an audio track the video stream is still copied; only the
// audio gets encoded and the result is cut to the shorter of the two.
func (e *FFmpegEncoder) Concatenate(ctx context.Context, segmentPaths []string, finalPath string, tmpDir string, p ConcatParams) error {
	concatFilePath := filepath.Join(tmpDir, "inputs.txt")
	f, err := os.Create(concatFilePath)
	if err != nil {
		return err
	}
	for _, sp := range segmentPaths {
		absPath, _ := filepath.Abs(sp)
		fmt.Fprintf(f, "file '%s'\n", absPath)
	}
	f.Close()

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", concatFilePath}
	if p.AudioPath != "" {
		args = append(args, "-i", p.AudioPath,
			"-map", "0:v", "-map", "1:a",
			"-c:v", "copy", "-c:a", "aac", "-shortest")
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, finalPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat error: %v, output: %s", err, string(out))
	}
	return nil
}
