package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"

	// Register the decoders for the still-image types the catalog accepts.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality = 85
	// An animated preview keeps motion without keeping the whole clip.
	maxGifFrames  = 5
	gifFrameDelay = 100 // hundredths of a second
)

// imageThumbnail shrinks a still image to the target width and re-encodes
// it as JPEG.
func imageThumbnail(sourceBytes []byte, widthPixels int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(sourceBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not decode image: %w", err)
	}
	resized := imaging.Resize(img, widthPixels, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("thumbnail: could not encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// gifThumbnail resizes the first frames of an animated GIF into a smaller
// animated GIF. Frames are composited onto a shared canvas before
// resizing, since a frame may cover only the region that changed.
func gifThumbnail(sourceBytes []byte, widthPixels int) ([]byte, error) {
	source, err := gif.DecodeAll(bytes.NewReader(sourceBytes))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not decode gif: %w", err)
	}
	if len(source.Image) == 0 {
		return nil, fmt.Errorf("thumbnail: gif has no frames")
	}

	canvasWidth, canvasHeight := source.Config.Width, source.Config.Height
	if canvasWidth == 0 || canvasHeight == 0 {
		bounds := source.Image[0].Bounds()
		canvasWidth, canvasHeight = bounds.Dx(), bounds.Dy()
	}
	heightPixels := canvasHeight * widthPixels / canvasWidth
	if heightPixels < 1 {
		heightPixels = 1
	}

	frameCount := len(source.Image)
	if frameCount > maxGifFrames {
		frameCount = maxGifFrames
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	var frames []*image.Paletted
	for _, frame := range source.Image[:frameCount] {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		resized := imaging.Resize(canvas, widthPixels, heightPixels, imaging.Lanczos)
		paletted := image.NewPaletted(image.Rect(0, 0, widthPixels, heightPixels), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), resized, image.Point{})
		frames = append(frames, paletted)
	}
	// Single-frame sources still come out animated, like the originals.
	if len(frames) == 1 {
		frames = append(frames, frames[0])
	}

	delays := make([]int, len(frames))
	for i := range delays {
		delays[i] = gifFrameDelay
	}
	var buf bytes.Buffer
	err = gif.EncodeAll(&buf, &gif.GIF{
		Image:     frames,
		Delay:     delays,
		LoopCount: 0,
		Config: image.Config{
			Width:  widthPixels,
			Height: heightPixels,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not encode gif: %w", err)
	}
	return buf.Bytes(), nil
}
