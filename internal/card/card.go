// Package card composes the optional trailing card of a memory book video:
// a dark background, the project title and a QR code linking back to the
// project page. The card is encoded as one more segment so the final
// concatenation stays lossless.
package card

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Spec describes the card content.
type Spec struct {
	Title   string
	URL     string
	Seconds float64
}

// Frames converts the display time to a frame count at the given rate.
func (s Spec) Frames(fps float64) int {
	sec := s.Seconds
	if sec <= 0 {
		sec = 3
	}
	n := int(sec * fps)
	if n < 1 {
		n = 1
	}
	return n
}

var (
	background = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	foreground = color.RGBA{R: 0xf2, G: 0xf2, B: 0xf2, A: 0xff}
)

// Compose renders the card at the target raster size.
func Compose(spec Spec, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("card: bad size %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Rect, image.NewUniform(background), image.Point{}, draw.Src)

	centerY := height / 2
	if spec.URL != "" {
		qrSize := width / 4
		if s := height / 3; s < qrSize {
			qrSize = s
		}
		if qrSize < 64 {
			qrSize = 64
		}
		qr, err := qrcode.New(spec.URL, qrcode.Medium)
		if err != nil {
			return nil, fmt.Errorf("card: qr: %w", err)
		}
		qr.BackgroundColor = background
		qr.ForegroundColor = foreground
		qrImg := qr.Image(qrSize)
		offset := image.Pt((width-qrSize)/2, centerY-qrSize/2)
		draw.Draw(img, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(qrSize, qrSize))},
			qrImg, qrImg.Bounds().Min, draw.Over)
		centerY += qrSize/2 + 40
	}

	if spec.Title != "" {
		drawCentered(img, spec.Title, width/2, centerY)
	}
	return img, nil
}

// drawCentered draws a single line of text centered at (cx, y).
func drawCentered(dst *image.RGBA, text string, cx, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(foreground),
		Face: face,
	}
	w := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(cx) - w/2,
		Y: fixed.I(y),
	}
	d.DrawString(text)
}

// Repeat exposes one still image as a frame source of n identical frames,
// matching the shape the segment encoder consumes.
func Repeat(img image.Image, n int) *stillSource {
	return &stillSource{img: img, left: n}
}

type stillSource struct {
	img  image.Image
	left int
}

func (s *stillSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.left <= 0 {
		return nil, io.EOF
	}
	s.left--
	return s.img, nil
}
