package backend

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStreamValidate(t *testing.T) {
	stream := FileStream{Key: "photos/cat.jpg", Reader: strings.NewReader("x"), ByteSize: 1}
	assert.NoError(t, stream.Validate())

	stream = FileStream{Reader: strings.NewReader("x")}
	assert.Error(t, stream.Validate())

	stream = FileStream{Key: "photos/cat.jpg"}
	assert.Error(t, stream.Validate())

	stream = FileStream{Key: "photos/cat.jpg", Reader: strings.NewReader("x"), ByteSize: -1}
	assert.Error(t, stream.Validate())
}

func TestValidateMappings(t *testing.T) {
	assert.NoError(t, ValidateMappings([]KeyMapping{
		{SourceKey: "a.jpg", DestinationKey: "b.jpg"},
		{SourceKey: "c.jpg", DestinationKey: "d.jpg"},
	}))

	t.Run("SelfMapping", func(t *testing.T) {
		err := ValidateMappings([]KeyMapping{{SourceKey: "a.jpg", DestinationKey: "a.jpg"}})
		assert.ErrorContains(t, err, "onto itself")
	})

	t.Run("MissingKey", func(t *testing.T) {
		err := ValidateMappings([]KeyMapping{{SourceKey: "a.jpg"}})
		assert.Error(t, err)
	})

	t.Run("DuplicateDestination", func(t *testing.T) {
		err := ValidateMappings([]KeyMapping{
			{SourceKey: "a.jpg", DestinationKey: "x.jpg"},
			{SourceKey: "b.jpg", DestinationKey: "x.jpg"},
		})
		assert.ErrorContains(t, err, "duplicate copy destination")
	})
}

func TestURLBundleFullUrl(t *testing.T) {
	bundle := URLBundle{
		BaseUrl: "https://cdn.example.com/read",
		Paths:   map[string]string{"photos/cat.jpg": "/photos/cat.jpg?expires=10"},
	}
	assert.Equal(t, "https://cdn.example.com/read/photos/cat.jpg?expires=10",
		bundle.FullUrl("photos/cat.jpg"))
	assert.Equal(t, "", bundle.FullUrl("unknown.jpg"))
}

func TestChunkedReaderCapsReads(t *testing.T) {
	r := NewChunkedReader(strings.NewReader("0123456789"), 4)
	buf := make([]byte, 64)
	n, err := r.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	rest, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "456789", string(rest))
}
