package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"mediavault/backend/memory"
	"mediavault/checksum"
	"mediavault/database"
	"mediavault/database/repository"
	"mediavault/media"
	"mediavault/thumbnail"
	"mediavault/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type cannedGenerator struct{}

func (g *cannedGenerator) Generate(ctx context.Context, sourceUrl string, mimeType media.MimeType, widthPixels int) (thumbnail.Components, error) {
	key := strings.TrimPrefix(sourceUrl, "memory://")
	if i := strings.Index(key, "?"); i >= 0 {
		key = key[:i]
	}
	payload := []byte("thumb-of-" + key)
	return thumbnail.Components{
		ThumbnailBytes: payload,
		Phash:          "00f7a1b2",
		Checksum:       checksum.HexEncodeStr(checksum.Sha256(payload)),
	}, nil
}

func setupServer(t *testing.T) (*Server, *memory.MemoryStore) {
	dbPath := filepath.Join(t.TempDir(), "mediavault-test.db")
	db, err := database.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { db.Close(context.Background()) })

	tags := repository.NewTagRepository(db, repository.NewTagCache(repository.DefaultTagCacheTTL))
	actions := repository.NewFileActionRepository(db, tags)
	data := memory.NewMemoryStore()
	v := vault.NewVault(data, memory.NewMemoryStore(), actions, tags, &cannedGenerator{}, vault.Options{})
	return NewServer("127.0.0.1", 0, v), data
}

func postJson(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadOne(t *testing.T, s *Server, dir string, filename string, content string) FileEntryDto {
	rec := postJson(t, s, "/api/v1/upload", map[string]any{
		"files": []map[string]string{
			{"filename": filename, "file_source": checksum.Base64EncodeStr([]byte(content))},
		},
		"target_dir": dir,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp fileEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	return resp.Files[0]
}

func TestUploadAndFilesInfo(t *testing.T) {
	s, data := setupServer(t)

	entry := uploadOne(t, s, "inbox", "cat.jpg", "jpeg-bytes")
	assert.Equal(t, "inbox/cat.jpg", entry.FileKey)
	assert.NotEmpty(t, entry.FileEntityUuid)
	require.NotNil(t, entry.ThumbnailKey)
	assert.Equal(t, "inbox/cat.jpg_thumbnail.jpg", *entry.ThumbnailKey)

	_, ok := data.GetObject("inbox/cat.jpg")
	assert.True(t, ok)

	rec := postJson(t, s, "/api/v1/files/info", map[string]any{
		"file_keys": []string{"inbox/cat.jpg"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp fileEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, entry.FileEntityUuid, resp.Files[0].FileEntityUuid)
}

func TestUploadRejectsMalformedEntries(t *testing.T) {
	s, _ := setupServer(t)

	rec := postJson(t, s, "/api/v1/upload", map[string]any{
		"files":      []map[string]string{{"filename": "", "file_source": "aGk="}},
		"target_dir": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJson(t, s, "/api/v1/upload", map[string]any{"surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagsAndSearch(t *testing.T) {
	s, _ := setupServer(t)
	beach := uploadOne(t, s, "photos", "beach.jpg", "a")
	uploadOne(t, s, "photos", "mountain.jpg", "b")

	rec := postJson(t, s, "/api/v1/tags", map[string]any{
		"file_key": "photos/beach.jpg",
		"tags":     []string{"vacation", "beach"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tagged FileEntryDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tagged))
	assert.Equal(t, beach.FileEntityUuid, tagged.FileEntityUuid)
	assert.ElementsMatch(t, []string{"vacation", "beach"}, tagged.Tags)

	rec = postJson(t, s, "/api/v1/tags", map[string]any{
		"file_key": "photos/mountain.jpg",
		"tags":     []string{"vacation", "mountain"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJson(t, s, "/api/v1/search", map[string]any{
		"include_groups": [][]string{{"vacation"}},
		"exclude":        []string{"beach"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var found fileEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found.Files, 1)
	assert.Equal(t, "photos/mountain.jpg", found.Files[0].FileKey)

	// include/exclude overlap is a caller error
	rec = postJson(t, s, "/api/v1/search", map[string]any{
		"include_groups": [][]string{{"vacation"}},
		"exclude":        []string{"vacation"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// empty criteria rejected before touching storage
	rec = postJson(t, s, "/api/v1/search", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTagsUnknownKeyIs404(t *testing.T) {
	s, _ := setupServer(t)
	rec := postJson(t, s, "/api/v1/tags", map[string]any{
		"file_key": "never/seen.jpg",
		"tags":     []string{"x"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCopyAndDelete(t *testing.T) {
	s, data := setupServer(t)
	uploadOne(t, s, "inbox", "cat.jpg", "jpeg-bytes")

	rec := postJson(t, s, "/api/v1/copy", map[string]any{
		"file_mappings": []map[string]string{
			{"source_key": "inbox/cat.jpg", "destination_key": "photos/cat.jpg"},
		},
		"delete_source": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var copied actionResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &copied))
	require.Len(t, copied.Results, 1)
	assert.True(t, copied.Results[0].Success)

	_, ok := data.GetObject("inbox/cat.jpg")
	assert.False(t, ok)
	_, ok = data.GetObject("photos/cat.jpg")
	assert.True(t, ok)

	// overlapping mappings never reach the stores
	rec = postJson(t, s, "/api/v1/copy", map[string]any{
		"file_mappings": []map[string]string{
			{"source_key": "photos/cat.jpg", "destination_key": "a.jpg"},
			{"source_key": "a.jpg", "destination_key": "b.jpg"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	infoRec := postJson(t, s, "/api/v1/files/info", map[string]any{
		"file_keys": []string{"photos/cat.jpg"},
	})
	var info fileEntriesResponse
	require.NoError(t, json.Unmarshal(infoRec.Body.Bytes(), &info))
	require.Len(t, info.Files, 1)

	rec = postJson(t, s, "/api/v1/delete", map[string]any{
		"file_entries": info.Files,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var deleted actionResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.Len(t, deleted.Results, 1)
	assert.True(t, deleted.Results[0].Success)
	_, ok = data.GetObject("photos/cat.jpg")
	assert.False(t, ok)

	// entries without identity are rejected up front
	rec = postJson(t, s, "/api/v1/delete", map[string]any{
		"file_entries": []map[string]string{{"file_key": "x.jpg"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryAndUrls(t *testing.T) {
	s, _ := setupServer(t)
	uploadOne(t, s, "inbox", "cat.jpg", "jpeg-bytes")

	rec := getPath(t, s, "/api/v1/history?file_key="+"inbox%2Fcat.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist map[string][]historyEntryDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist["history"], 1)
	assert.Equal(t, "CREATE", hist["history"][0].ActionType)
	assert.False(t, hist["history"][0].RecordedAt.IsZero())

	rec = getPath(t, s, "/api/v1/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJson(t, s, "/api/v1/files/urls", map[string]any{
		"file_keys": []string{"inbox/cat.jpg"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var urls urlsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &urls))
	assert.Equal(t, "memory://", urls.BaseUrl)
	assert.Contains(t, urls.Paths, "inbox/cat.jpg")

	rec = postJson(t, s, "/api/v1/thumbnails/urls", map[string]any{
		"thumbnail_keys": []string{"inbox/cat.jpg_thumbnail.jpg"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListDirectory(t *testing.T) {
	s, _ := setupServer(t)
	uploadOne(t, s, "inbox", "cat.jpg", "jpeg-bytes")
	uploadOne(t, s, "inbox/nested", "dog.png", "png-bytes")

	rec := getPath(t, s, "/api/v1/list?dir=inbox")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]objectInfoDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	var names []string
	for _, obj := range resp["objects"] {
		names = append(names, fmt.Sprintf("%s dir=%v", obj.Name, obj.IsDir))
	}
	assert.Contains(t, names, "cat.jpg dir=false")
	assert.Contains(t, names, "nested dir=true")
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := setupServer(t)
	rec := getPath(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	// the counter has seen at least the health request above
	rec = getPath(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediavault_http_requests_total")
}
