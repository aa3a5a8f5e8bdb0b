package card

import (
	"context"
	"errors"
	"image/color"
	"io"
	"testing"
)

func TestFrames(t *testing.T) {
	cases := []struct {
		seconds float64
		fps     float64
		want    int
	}{
		{3, 30, 90},
		{1.5, 30, 45},
		{0, 30, 90}, // default 3s
		{0.01, 30, 1},
	}
	for _, tc := range cases {
		if got := (Spec{Seconds: tc.seconds}).Frames(tc.fps); got != tc.want {
			t.Errorf("Frames(%v s @ %v fps) = %d, want %d", tc.seconds, tc.fps, got, tc.want)
		}
	}
}

func TestComposeSizeAndBackground(t *testing.T) {
	img, err := Compose(Spec{Title: "Наша книга", URL: "https://example.com/p/42"}, 720, 1280)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if img.Bounds().Dx() != 720 || img.Bounds().Dy() != 1280 {
		t.Errorf("size = %v, want 720x1280", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}) {
		t.Errorf("corner pixel = %v, want background", got)
	}

	// The QR code and title must actually paint something.
	painted := false
	for y := 0; y < 1280 && !painted; y += 7 {
		for x := 0; x < 720; x += 7 {
			if img.RGBAAt(x, y) != background {
				painted = true
				break
			}
		}
	}
	if !painted {
		t.Error("card is a uniform background, nothing was drawn")
	}
}

func TestComposeRejectsBadSize(t *testing.T) {
	if _, err := Compose(Spec{}, 0, 100); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestRepeatCountsFrames(t *testing.T) {
	img, err := Compose(Spec{Title: "x"}, 64, 64)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	src := Repeat(img, 5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		frame, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame != img {
			t.Fatalf("frame %d is not the composed still", i)
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after n frames err = %v, want io.EOF", err)
	}
}

func TestRepeatHonorsCancellation(t *testing.T) {
	img, _ := Compose(Spec{Title: "x"}, 64, 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Repeat(img, 5).Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
