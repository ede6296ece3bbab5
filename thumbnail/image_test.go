package thumbnail

import (
	"bytes"
	"image"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageThumbnail(t *testing.T) {
	source := encodePng(t, grayImage(100, 60, func(x, y int) uint8 {
		return uint8((x * 255) / 100)
	}))

	thumbnailBytes, err := imageThumbnail(source, 50)
	assert.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(thumbnailBytes))
	assert.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	t.Run("BadBytes", func(t *testing.T) {
		_, err := imageThumbnail([]byte("not an image"), 50)
		assert.Error(t, err)
	})
}

func TestGifThumbnail(t *testing.T) {
	frames := []*image.Paletted{
		patternFrame(40, 20, func(x, y int) bool { return x < 20 }),
		patternFrame(40, 20, func(x, y int) bool { return x >= 20 }),
		patternFrame(40, 20, func(x, y int) bool { return y < 10 }),
	}

	thumbnailBytes, err := gifThumbnail(encodeGif(t, frames), 20)
	assert.NoError(t, err)

	result, err := gif.DecodeAll(bytes.NewReader(thumbnailBytes))
	assert.NoError(t, err)
	assert.Len(t, result.Image, 3)
	assert.Equal(t, 20, result.Config.Width)
	assert.Equal(t, 10, result.Config.Height)
	assert.Equal(t, 0, result.LoopCount)
	for i, frame := range result.Image {
		assert.Equal(t, 20, frame.Bounds().Dx())
		assert.Equal(t, 10, frame.Bounds().Dy())
		assert.Equal(t, gifFrameDelay, result.Delay[i])
	}

	t.Run("CapsFrameCount", func(t *testing.T) {
		var many []*image.Paletted
		for i := 0; i < 9; i++ {
			lit := i
			many = append(many, patternFrame(40, 20, func(x, y int) bool { return x == lit }))
		}
		thumbnailBytes, err := gifThumbnail(encodeGif(t, many), 20)
		assert.NoError(t, err)
		result, err := gif.DecodeAll(bytes.NewReader(thumbnailBytes))
		assert.NoError(t, err)
		assert.Len(t, result.Image, maxGifFrames)
	})

	t.Run("SingleFrameStaysAnimated", func(t *testing.T) {
		thumbnailBytes, err := gifThumbnail(encodeGif(t, frames[:1]), 20)
		assert.NoError(t, err)
		result, err := gif.DecodeAll(bytes.NewReader(thumbnailBytes))
		assert.NoError(t, err)
		assert.Len(t, result.Image, 2)
	})

	t.Run("BadBytes", func(t *testing.T) {
		_, err := gifThumbnail([]byte("not a gif"), 20)
		assert.Error(t, err)
	})
}
