package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
)

// phashGridSize is the square sampling grid behind the perceptual hash:
// 4x4 gives a 16-bit hash, coarse on purpose so re-encoded copies of the
// same picture still collide.
const phashGridSize = 4

// Phash is a rotation-invariant perceptual hash of a thumbnail. Animated
// GIFs hash up to three probe frames joined with commas; everything else
// hashes as a single image.
func Phash(thumbnailBytes []byte) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(thumbnailBytes))
	if err != nil {
		return "", fmt.Errorf("thumbnail: could not decode for hashing: %w", err)
	}
	if format == "gif" {
		animated, err := gif.DecodeAll(bytes.NewReader(thumbnailBytes))
		if err == nil && len(animated.Image) > 1 {
			return hashGifFrames(animated), nil
		}
	}
	return hashSingleImage(img, phashGridSize), nil
}

// hashGifFrames probes the first, middle and last frame, enough to tell
// two animations apart without hashing every frame.
func hashGifFrames(animated *gif.GIF) string {
	frames := animated.Image
	if len(frames) == 2 {
		return hashSingleImage(frames[0], phashGridSize) + "," +
			hashSingleImage(frames[1], phashGridSize)
	}
	mid := len(frames) / 2
	return hashSingleImage(frames[0], phashGridSize) + "," +
		hashSingleImage(frames[mid], phashGridSize) + "," +
		hashSingleImage(frames[len(frames)-1], phashGridSize)
}

// sampleIndexes spreads pixels sample points evenly across [0, n-1].
func sampleIndexes(n int, pixels int) []int {
	indexes := make([]int, pixels)
	if pixels == 1 || n <= 1 {
		return indexes
	}
	for i := range indexes {
		indexes[i] = int(float64(n-1) * float64(i) / float64(pixels-1))
	}
	return indexes
}

// hashSingleImage samples a pixels-squared grayscale grid, thresholds each
// cell against the grid mean, and packs the bits MSB-first. The same grid
// is read in all four orientations and the smallest value wins, so a
// rotated copy hashes identically.
func hashSingleImage(img image.Image, pixels int) string {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rows := sampleIndexes(height, pixels)
	cols := sampleIndexes(width, pixels)

	grayAt := func(y, x int) float64 {
		c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
		return float64(c.Y)
	}

	bitLength := pixels * pixels
	grids := make([][]float64, 4)
	for r := range grids {
		grids[r] = make([]float64, bitLength)
	}
	for i := 0; i < pixels; i++ {
		for j := 0; j < pixels; j++ {
			k := i*pixels + j
			grids[0][k] = grayAt(rows[i], cols[j])
			grids[1][k] = grayAt(rows[j], width-1-cols[i])
			grids[2][k] = grayAt(height-1-rows[i], width-1-cols[j])
			grids[3][k] = grayAt(height-1-rows[j], cols[i])
		}
	}

	best := ^uint64(0)
	for _, grid := range grids {
		var sum float64
		for _, v := range grid {
			sum += v
		}
		mean := sum / float64(bitLength)
		var hash uint64
		for k, v := range grid {
			if v > mean {
				hash |= 1 << (bitLength - 1 - k)
			}
		}
		if hash < best {
			best = hash
		}
	}
	return fmt.Sprintf("%0*x", (bitLength+3)/4, best)
}
