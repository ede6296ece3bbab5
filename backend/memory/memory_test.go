package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mediavault/backend"
	"mediavault/media"

	"github.com/stretchr/testify/assert"
)

func uploadOne(t *testing.T, store *MemoryStore, key, payload string) {
	results := store.Upload(context.Background(), []backend.FileStream{{
		Key:      key,
		Reader:   strings.NewReader(payload),
		ByteSize: int64(len(payload)),
		MimeType: media.MIME_JPEG,
	}}, 1024)
	assert.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestUploadAndGet(t *testing.T) {
	store := NewMemoryStore()
	uploadOne(t, store, "photos/cat.jpg", "jpeg-bytes")

	data, ok := store.GetObject("photos/cat.jpg")
	assert.True(t, ok)
	assert.True(t, bytes.Equal([]byte("jpeg-bytes"), data))

	_, ok = store.GetObject("photos/dog.jpg")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	store := NewMemoryStore()
	uploadOne(t, store, "photos/cat.jpg", "jpeg-bytes")

	results := store.Delete(context.Background(), []string{"photos/cat.jpg", "photos/missing.jpg"}, false)
	assert.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	_, ok := store.GetObject("photos/cat.jpg")
	assert.False(t, ok)

	t.Run("AllowMissing", func(t *testing.T) {
		results := store.Delete(context.Background(), []string{"photos/missing.jpg"}, true)
		assert.Len(t, results, 1)
		assert.NoError(t, results[0].Err)
	})
}

func TestCopy(t *testing.T) {
	store := NewMemoryStore()
	uploadOne(t, store, "photos/cat.jpg", "jpeg-bytes")
	ctx := context.Background()

	t.Run("Copy", func(t *testing.T) {
		results := store.Copy(ctx, []backend.KeyMapping{
			{SourceKey: "photos/cat.jpg", DestinationKey: "photos/cat-copy.jpg"},
		}, backend.CopyOptions{})
		assert.Len(t, results, 1)
		assert.NoError(t, results[0].Err)
		assert.Equal(t, "photos/cat.jpg", results[0].Key)

		_, ok := store.GetObject("photos/cat.jpg")
		assert.True(t, ok)
		data, ok := store.GetObject("photos/cat-copy.jpg")
		assert.True(t, ok)
		assert.True(t, bytes.Equal([]byte("jpeg-bytes"), data))
	})

	t.Run("Move", func(t *testing.T) {
		results := store.Copy(ctx, []backend.KeyMapping{
			{SourceKey: "photos/cat-copy.jpg", DestinationKey: "photos/cat-moved.jpg"},
		}, backend.CopyOptions{DeleteSource: true})
		assert.NoError(t, results[0].Err)

		_, ok := store.GetObject("photos/cat-copy.jpg")
		assert.False(t, ok)
		_, ok = store.GetObject("photos/cat-moved.jpg")
		assert.True(t, ok)
	})

	t.Run("MissingSource", func(t *testing.T) {
		mappings := []backend.KeyMapping{
			{SourceKey: "photos/nope.jpg", DestinationKey: "photos/nope-copy.jpg"},
		}
		results := store.Copy(ctx, mappings, backend.CopyOptions{})
		assert.Error(t, results[0].Err)

		results = store.Copy(ctx, mappings, backend.CopyOptions{AllowMissing: true})
		assert.NoError(t, results[0].Err)
	})

	t.Run("OverwriteGate", func(t *testing.T) {
		uploadOne(t, store, "photos/a.jpg", "aaa")
		uploadOne(t, store, "photos/b.jpg", "bbb")

		mappings := []backend.KeyMapping{{SourceKey: "photos/a.jpg", DestinationKey: "photos/b.jpg"}}
		results := store.Copy(ctx, mappings, backend.CopyOptions{})
		assert.Error(t, results[0].Err)

		results = store.Copy(ctx, mappings, backend.CopyOptions{OverwriteExisting: true})
		assert.NoError(t, results[0].Err)
		data, _ := store.GetObject("photos/b.jpg")
		assert.Equal(t, []byte("aaa"), data)
	})

	t.Run("RejectsDuplicateDestinations", func(t *testing.T) {
		results := store.Copy(ctx, []backend.KeyMapping{
			{SourceKey: "photos/a.jpg", DestinationKey: "photos/dup.jpg"},
			{SourceKey: "photos/b.jpg", DestinationKey: "photos/dup.jpg"},
		}, backend.CopyOptions{})
		assert.Len(t, results, 2)
		assert.Error(t, results[0].Err)
		assert.Error(t, results[1].Err)
	})
}

func TestListObjects(t *testing.T) {
	store := NewMemoryStore()
	uploadOne(t, store, "photos/cat.jpg", "1")
	uploadOne(t, store, "photos/2024/beach.jpg", "22")
	uploadOne(t, store, "docs/readme.txt", "333")
	ctx := context.Background()

	t.Run("NonRecursive", func(t *testing.T) {
		infos, err := store.ListObjects(ctx, "photos", false)
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
		assert.Equal(t, "photos/2024", infos[0].Path)
		assert.True(t, infos[0].IsDir)
		assert.Equal(t, "photos/cat.jpg", infos[1].Path)
		assert.False(t, infos[1].IsDir)
		assert.Equal(t, int64(1), infos[1].SizeBytes)
	})

	t.Run("Recursive", func(t *testing.T) {
		infos, err := store.ListObjects(ctx, "photos", true)
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
		assert.Equal(t, "photos/2024/beach.jpg", infos[0].Path)
		assert.Equal(t, "beach.jpg", infos[0].Name)
		assert.Equal(t, "photos/cat.jpg", infos[1].Path)
	})

	t.Run("Root", func(t *testing.T) {
		infos, err := store.ListObjects(ctx, "", true)
		assert.NoError(t, err)
		assert.Len(t, infos, 3)
	})
}

func TestGetShareableUrls(t *testing.T) {
	store := NewMemoryStore()
	bundle, err := store.GetShareableUrls([]string{"photos/cat.jpg"}, 3600)
	assert.NoError(t, err)
	assert.Equal(t, "memory://", bundle.BaseUrl)
	assert.Equal(t, "photos/cat.jpg?expires=3600", bundle.Paths["photos/cat.jpg"])
}
