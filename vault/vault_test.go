package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mediavault/backend"
	"mediavault/backend/memory"
	"mediavault/checksum"
	"mediavault/database"
	"mediavault/database/model"
	"mediavault/database/repository"
	"mediavault/media"
	"mediavault/thumbnail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// stubGenerator hands back canned thumbnail components keyed by file key
// and counts attempts, so tests can assert generation happens at most
// once per key.
type stubGenerator struct {
	mu       sync.Mutex
	calls    map[string]int
	failKeys map[string]bool
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{calls: map[string]int{}, failKeys: map[string]bool{}}
}

func keyFromUrl(sourceUrl string) string {
	key := strings.TrimPrefix(sourceUrl, "memory://")
	if i := strings.Index(key, "?"); i >= 0 {
		key = key[:i]
	}
	return key
}

func (g *stubGenerator) Generate(ctx context.Context, sourceUrl string, mimeType media.MimeType, widthPixels int) (thumbnail.Components, error) {
	key := keyFromUrl(sourceUrl)
	g.mu.Lock()
	g.calls[key]++
	fail := g.failKeys[key]
	g.mu.Unlock()
	if fail {
		return thumbnail.Components{}, fmt.Errorf("stub: generation blew up for %s", key)
	}
	payload := []byte("thumb-of-" + key)
	return thumbnail.Components{
		ThumbnailBytes: payload,
		Phash:          "00f7a1b2",
		Checksum:       checksum.HexEncodeStr(checksum.Sha256(payload)),
	}, nil
}

func (g *stubGenerator) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

type vaultEnv struct {
	vault     *Vault
	data      *memory.MemoryStore
	cache     *memory.MemoryStore
	generator *stubGenerator
	actions   repository.FileActionRepository
	tags      repository.TagRepository
	db        *database.DB
}

func setupVault(t *testing.T) *vaultEnv {
	dbPath := filepath.Join(t.TempDir(), "mediavault-test.db")
	db, err := database.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { db.Close(context.Background()) })

	tags := repository.NewTagRepository(db, repository.NewTagCache(repository.DefaultTagCacheTTL))
	actions := repository.NewFileActionRepository(db, tags)
	data := memory.NewMemoryStore()
	cache := memory.NewMemoryStore()
	generator := newStubGenerator()
	v := NewVault(data, cache, actions, tags, generator, Options{MaxConcurrentTasks: 2})
	return &vaultEnv{
		vault:     v,
		data:      data,
		cache:     cache,
		generator: generator,
		actions:   actions,
		tags:      tags,
		db:        db,
	}
}

func (env *vaultEnv) putObject(t *testing.T, key string, content string) {
	mimeType, _ := media.FromFilename(key)
	results := env.data.Upload(context.Background(), []backend.FileStream{{
		Key:      key,
		Reader:   strings.NewReader(content),
		ByteSize: int64(len(content)),
		MimeType: mimeType,
	}}, 1024)
	require.NoError(t, results[0].Err)
}

func TestResolveInfoGeneratesAtMostOnce(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/cat.jpg", "jpeg-bytes")

	first, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "image/jpeg", *first[0].MimeType)
	assert.Equal(t, "photos/cat.jpg_thumbnail.jpg", *first[0].ThumbnailKey)
	assert.Equal(t, "image/jpeg", *first[0].ThumbnailMimeType)
	assert.NotNil(t, first[0].ThumbnailChecksum)
	assert.NotNil(t, first[0].ThumbnailPhash)

	cached, ok := env.cache.GetObject("photos/cat.jpg_thumbnail.jpg")
	assert.True(t, ok)
	assert.Equal(t, "thumb-of-photos/cat.jpg", string(cached))

	second, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].EntityId, second[0].EntityId)
	assert.Equal(t, 1, env.generator.callCount("photos/cat.jpg"))

	history, err := env.actions.GetHistory(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestResolveInfoUnsupportedTypeIsTerminal(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "docs/report.pdf", "%PDF-1.7")

	for i := 0; i < 2; i++ {
		entries, err := env.vault.ResolveInfo(ctx, []string{"docs/report.pdf"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].MimeType)
		assert.Nil(t, entries[0].ThumbnailKey)
	}

	assert.Equal(t, 0, env.generator.callCount("docs/report.pdf"))
	history, err := env.actions.GetHistory(ctx, "docs/report.pdf")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, model.ACTION_CREATE, history[0].Action)
}

func TestResolveInfoRecordsFailedGeneration(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/broken.jpg", "not really a jpeg")
	env.generator.failKeys["photos/broken.jpg"] = true

	entries, err := env.vault.ResolveInfo(ctx, []string{"photos/broken.jpg"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "image/jpeg", *entries[0].MimeType)
	assert.Nil(t, entries[0].ThumbnailKey)

	_, err = env.vault.ResolveInfo(ctx, []string{"photos/broken.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.generator.callCount("photos/broken.jpg"))
}

func TestCopyForksIdentityAndTags(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/cat.jpg", "jpeg-bytes")

	source, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)
	require.Len(t, source, 1)
	_, err = env.vault.UpdateTags(ctx, "photos/cat.jpg", []string{"pets", "2024"})
	require.NoError(t, err)

	results, err := env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "photos/cat.jpg", DestinationKey: "album/cat.jpg"},
	}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	entries, err := env.actions.GetByFileKeys(ctx, []string{"photos/cat.jpg", "album/cat.jpg"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byKey := map[string]model.FileEntry{}
	for _, e := range entries {
		byKey[e.FileKey] = e
	}
	copied := byKey["album/cat.jpg"]
	assert.NotEqual(t, source[0].EntityId, copied.EntityId)
	assert.Equal(t, model.ACTION_CREATE, copied.Action)
	assert.Equal(t, "album/cat.jpg_thumbnail.jpg", *copied.ThumbnailKey)
	assert.Equal(t, *source[0].ThumbnailChecksum, *copied.ThumbnailChecksum)
	assert.ElementsMatch(t, []string{"pets", "2024"}, copied.Tags)

	// the fork got its own tag batch
	batches, err := env.tags.GetTagHistory(ctx, "album/cat.jpg")
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	// both blobs and both thumbnails exist
	_, ok := env.data.GetObject("photos/cat.jpg")
	assert.True(t, ok)
	_, ok = env.data.GetObject("album/cat.jpg")
	assert.True(t, ok)
	_, ok = env.cache.GetObject("album/cat.jpg_thumbnail.jpg")
	assert.True(t, ok)
}

func TestMovePreservesIdentityWithoutNewTagBatch(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "inbox/dog.png", "png-bytes")

	source, err := env.vault.ResolveInfo(ctx, []string{"inbox/dog.png"})
	require.NoError(t, err)
	_, err = env.vault.UpdateTags(ctx, "inbox/dog.png", []string{"pets"})
	require.NoError(t, err)

	results, err := env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "inbox/dog.png", DestinationKey: "photos/dog.png"},
	}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	moved, err := env.actions.GetByFileKeys(ctx, []string{"photos/dog.png"})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, source[0].EntityId, moved[0].EntityId)
	assert.Equal(t, model.ACTION_MOVE, moved[0].Action)
	assert.Equal(t, "photos/dog.png_thumbnail.jpg", *moved[0].ThumbnailKey)
	assert.ElementsMatch(t, []string{"pets"}, moved[0].Tags)

	// identity continuity: full lifeline from the new key
	history, err := env.actions.GetHistory(ctx, "photos/dog.png")
	require.NoError(t, err)
	require.Len(t, history, 3) // CREATE, UPDATE (tag edit), MOVE
	assert.Equal(t, model.ACTION_MOVE, history[0].Action)
	for _, h := range history {
		assert.Equal(t, source[0].EntityId, h.EntityId)
	}

	// no tag re-insertion on move: still exactly one batch
	batches, err := env.tags.GetTagHistory(ctx, "photos/dog.png")
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	// old blob and thumbnail are gone
	_, ok := env.data.GetObject("inbox/dog.png")
	assert.False(t, ok)
	_, ok = env.cache.GetObject("inbox/dog.png_thumbnail.jpg")
	assert.False(t, ok)
	_, ok = env.cache.GetObject("photos/dog.png_thumbnail.jpg")
	assert.True(t, ok)
}

func TestCopyMissingSourceIsReconciled(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/alive.jpg", "jpeg-bytes")
	env.putObject(t, "photos/doomed.jpg", "jpeg-bytes")

	_, err := env.vault.ResolveInfo(ctx, []string{"photos/alive.jpg", "photos/doomed.jpg"})
	require.NoError(t, err)
	doomed, err := env.actions.GetByFileKeys(ctx, []string{"photos/doomed.jpg"})
	require.NoError(t, err)
	require.Len(t, doomed, 1)

	// the blob vanishes out of band; the log still believes in it
	env.data.Delete(ctx, []string{"photos/doomed.jpg"}, false)

	results, err := env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "photos/alive.jpg", DestinationKey: "album/alive.jpg"},
		{SourceKey: "photos/doomed.jpg", DestinationKey: "album/doomed.jpg"},
	}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	resultByKey := map[string]error{}
	for _, r := range results {
		resultByKey[r.Key] = r.Err
	}
	assert.NoError(t, resultByKey["photos/alive.jpg"])
	assert.Error(t, resultByKey["photos/doomed.jpg"])

	// healthy key moved normally
	movedEntries, err := env.actions.GetByFileKeys(ctx, []string{"album/alive.jpg"})
	require.NoError(t, err)
	assert.Len(t, movedEntries, 1)

	// failed key got a MISSING row at the source, same entity
	history, err := env.actions.GetHistory(ctx, "photos/doomed.jpg")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ACTION_MISSING, history[0].Action)
	assert.Equal(t, "photos/doomed.jpg", history[0].FileKey)
	assert.Equal(t, doomed[0].EntityId, history[0].EntityId)
}

func TestCopyValidation(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()

	_, err := env.vault.Copy(ctx, nil, false)
	assert.Error(t, err)

	_, err = env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "a.jpg", DestinationKey: "x.jpg"},
		{SourceKey: "a.jpg", DestinationKey: "y.jpg"},
	}, false)
	assert.ErrorContains(t, err, "duplicate copy source")

	_, err = env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "a.jpg", DestinationKey: "x.jpg"},
		{SourceKey: "b.jpg", DestinationKey: "x.jpg"},
	}, false)
	assert.ErrorContains(t, err, "duplicate copy destination")

	_, err = env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "a.jpg", DestinationKey: "b.jpg"},
		{SourceKey: "b.jpg", DestinationKey: "c.jpg"},
	}, false)
	assert.ErrorContains(t, err, "both a copy source and a destination")

	// untracked source is a hard error before any store call
	_, err = env.vault.Copy(ctx, []backend.KeyMapping{
		{SourceKey: "never-seen.jpg", DestinationKey: "somewhere.jpg"},
	}, false)
	assert.ErrorContains(t, err, "not tracked")
}

func TestDeleteRecordsIntent(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/cat.jpg", "jpeg-bytes")

	entries, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)

	results, err := env.vault.Delete(ctx, entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	_, ok := env.data.GetObject("photos/cat.jpg")
	assert.False(t, ok)
	_, ok = env.cache.GetObject("photos/cat.jpg_thumbnail.jpg")
	assert.False(t, ok)

	// key drops out of current views, history survives
	current, err := env.actions.GetByFileKeys(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)
	assert.Empty(t, current)
	history, err := env.actions.GetHistory(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ACTION_DELETE, history[0].Action)
}

func TestDeleteAppendsActionEvenWhenBlobIsGone(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/cat.jpg", "jpeg-bytes")
	entries, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)

	env.data.Delete(ctx, []string{"photos/cat.jpg"}, false)

	results, err := env.vault.Delete(ctx, entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)

	history, err := env.actions.GetHistory(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ACTION_DELETE, history[0].Action)
}

func TestUploadMedia(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()

	entries := []UploadEntry{
		{Filename: "cat.jpg", FileSource: checksum.Base64EncodeStr([]byte("jpeg-bytes"))},
		{Filename: "notes.txt", FileSource: checksum.Base64EncodeStr([]byte("plain text"))},
	}
	resolved, err := env.vault.UploadMedia(ctx, entries, "inbox/", 2)
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	data, ok := env.data.GetObject("inbox/cat.jpg")
	assert.True(t, ok)
	assert.Equal(t, "jpeg-bytes", string(data))
	_, ok = env.data.GetObject("inbox/notes.txt")
	assert.True(t, ok)

	byKey := map[string]model.FileEntry{}
	for _, e := range resolved {
		byKey[e.FileKey] = e
	}
	assert.Equal(t, "inbox/cat.jpg_thumbnail.jpg", *byKey["inbox/cat.jpg"].ThumbnailKey)
	assert.Nil(t, byKey["inbox/notes.txt"].ThumbnailKey)
}

func TestUploadMediaValidation(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()

	_, err := env.vault.UploadMedia(ctx, []UploadEntry{{Filename: "", FileSource: "aGk="}}, "", 2)
	assert.Error(t, err)
	_, err = env.vault.UploadMedia(ctx, []UploadEntry{{Filename: "../escape.jpg", FileSource: "aGk="}}, "", 2)
	assert.Error(t, err)
	_, err = env.vault.UploadMedia(ctx, []UploadEntry{{Filename: "x.jpg", FileSource: "not base64!!!"}}, "", 2)
	assert.Error(t, err)
}

func TestUpdateTags(t *testing.T) {
	env := setupVault(t)
	ctx := context.Background()
	env.putObject(t, "photos/cat.jpg", "jpeg-bytes")
	_, err := env.vault.ResolveInfo(ctx, []string{"photos/cat.jpg"})
	require.NoError(t, err)

	first, err := env.vault.UpdateTags(ctx, "photos/cat.jpg", []string{"pets"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pets"}, first.Tags)

	second, err := env.vault.UpdateTags(ctx, "photos/cat.jpg", []string{"pets", "favorites"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pets", "favorites"}, second.Tags)

	batches, err := env.tags.GetTagHistory(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.ElementsMatch(t, []string{"pets", "favorites"}, batches[0].Tags)
	assert.ElementsMatch(t, []string{"pets"}, batches[1].Tags)

	history, err := env.actions.GetHistory(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.ACTION_UPDATE, history[0].Action)

	_, err = env.vault.UpdateTags(ctx, "never-seen.jpg", []string{"x"})
	assert.ErrorContains(t, err, "not tracked")
}
