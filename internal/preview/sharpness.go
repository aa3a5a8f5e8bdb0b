package preview

import (
	"image"
	"image/color"
	"math"
)

// sharpness scores a frame by mean gradient magnitude on a subsampled
// grayscale copy. Higher means more visible detail.
func sharpness(img image.Image) float64 {
	gray := toGray(img, 4)
	b := gray.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return 0
	}

	sum := 0.0
	count := 0
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx := float64(gray.GrayAt(x+1, y).Y) - float64(gray.GrayAt(x-1, y).Y)
			gy := float64(gray.GrayAt(x, y+1).Y) - float64(gray.GrayAt(x, y-1).Y)
			sum += math.Sqrt(gx*gx + gy*gy)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// toGray converts with a stride to keep scoring cheap on large frames.
func toGray(img image.Image, step int) *image.Gray {
	if step < 1 {
		step = 1
	}
	b := img.Bounds()
	w := b.Dx() / step
	h := b.Dy() / step
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x*step, b.Min.Y+y*step)))
		}
	}
	return gray
}
