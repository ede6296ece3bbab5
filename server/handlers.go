package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mediavault/backend"
	"mediavault/database/model"
	L "mediavault/logger"
	"mediavault/vault"
)

// FileEntryDto is the wire form of one current log entry. Action type and
// row bookkeeping stay internal.
type FileEntryDto struct {
	FileKey           string   `json:"file_key"`
	FileEntityUuid    string   `json:"file_entity_uuid"`
	MimeType          *string  `json:"mime_type"`
	ThumbnailKey      *string  `json:"thumbnail_key"`
	ThumbnailMimeType *string  `json:"thumbnail_mime_type"`
	ThumbnailChecksum *string  `json:"thumbnail_checksum"`
	ThumbnailPhash    *string  `json:"thumbnail_phash"`
	Tags              []string `json:"tags"`
}

type fileEntriesResponse struct {
	Files []FileEntryDto `json:"files"`
}

type actionResultDto struct {
	FileKey string `json:"file_key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type actionResultsResponse struct {
	Results []actionResultDto `json:"results"`
}

type urlsResponse struct {
	BaseUrl string            `json:"base_url"`
	Paths   map[string]string `json:"paths"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toFileEntryDto(e *model.FileEntry) FileEntryDto {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return FileEntryDto{
		FileKey:           e.FileKey,
		FileEntityUuid:    e.EntityId,
		MimeType:          e.MimeType,
		ThumbnailKey:      e.ThumbnailKey,
		ThumbnailMimeType: e.ThumbnailMimeType,
		ThumbnailChecksum: e.ThumbnailChecksum,
		ThumbnailPhash:    e.ThumbnailPhash,
		Tags:              tags,
	}
}

func toFileEntriesResponse(entries []model.FileEntry) fileEntriesResponse {
	files := make([]FileEntryDto, 0, len(entries))
	for i := range entries {
		files = append(files, toFileEntryDto(&entries[i]))
	}
	return fileEntriesResponse{Files: files}
}

func toActionResultsResponse(results []backend.Result) actionResultsResponse {
	out := actionResultsResponse{Results: make([]actionResultDto, 0, len(results))}
	for _, res := range results {
		dto := actionResultDto{FileKey: res.Key, Success: res.Err == nil}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		out.Results = append(out.Results, dto)
	}
	return out
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		L.Error(fmt.Errorf("server: could not encode response: %w", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		L.Error(err)
	} else {
		L.Debug(fmt.Sprintf("server: rejected request: %v", err))
	}
	writeJson(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server: malformed request body: %w", err))
		return false
	}
	return true
}

type uploadRequest struct {
	Files []struct {
		Filename   string `json:"filename"`
		FileSource string `json:"file_source"`
	} `json:"files"`
	TargetDir string `json:"target_dir"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entries := make([]vault.UploadEntry, 0, len(req.Files))
	for _, f := range req.Files {
		entries = append(entries, vault.UploadEntry{Filename: f.Filename, FileSource: f.FileSource})
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	resolved, err := s.vault.UploadMedia(r.Context(), entries, req.TargetDir, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toFileEntriesResponse(resolved))
}

type fileKeysRequest struct {
	FileKeys         []string `json:"file_keys"`
	ExpiresInSeconds int      `json:"expires_in_seconds,omitempty"`
}

func (s *Server) handleFilesInfo(w http.ResponseWriter, r *http.Request) {
	var req fileKeysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entries, err := s.vault.ResolveInfo(r.Context(), req.FileKeys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toFileEntriesResponse(entries))
}

func (s *Server) handleFileUrls(w http.ResponseWriter, r *http.Request) {
	var req fileKeysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bundle, err := s.vault.GetFileUrls(req.FileKeys, req.ExpiresInSeconds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, urlsResponse{BaseUrl: bundle.BaseUrl, Paths: bundle.Paths})
}

type thumbnailUrlsRequest struct {
	ThumbnailKeys    []string `json:"thumbnail_keys"`
	ExpiresInSeconds int      `json:"expires_in_seconds,omitempty"`
}

func (s *Server) handleThumbnailUrls(w http.ResponseWriter, r *http.Request) {
	var req thumbnailUrlsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bundle, err := s.vault.GetThumbnailUrls(req.ThumbnailKeys, req.ExpiresInSeconds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, urlsResponse{BaseUrl: bundle.BaseUrl, Paths: bundle.Paths})
}

type copyRequest struct {
	FileMappings []struct {
		SourceKey      string `json:"source_key"`
		DestinationKey string `json:"destination_key"`
	} `json:"file_mappings"`
	DeleteSource bool `json:"delete_source"`
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mappings := make([]backend.KeyMapping, 0, len(req.FileMappings))
	for _, m := range req.FileMappings {
		mappings = append(mappings, backend.KeyMapping{
			SourceKey:      m.SourceKey,
			DestinationKey: m.DestinationKey,
		})
	}
	if err := vault.ValidateCopyMappings(mappings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.vault.Copy(r.Context(), mappings, req.DeleteSource)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toActionResultsResponse(results))
}

type deleteRequest struct {
	FileEntries []FileEntryDto `json:"file_entries"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entries := make([]model.FileEntry, 0, len(req.FileEntries))
	for _, dto := range req.FileEntries {
		if dto.FileKey == "" || dto.FileEntityUuid == "" {
			writeError(w, http.StatusBadRequest,
				fmt.Errorf("server: delete entries need file_key and file_entity_uuid"))
			return
		}
		entries = append(entries, model.FileEntry{
			FileKey:      dto.FileKey,
			EntityId:     dto.FileEntityUuid,
			ThumbnailKey: dto.ThumbnailKey,
		})
	}
	results, err := s.vault.Delete(r.Context(), entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toActionResultsResponse(results))
}

type updateTagsRequest struct {
	FileKey string   `json:"file_key"`
	Tags    []string `json:"tags"`
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	var req updateTagsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FileKey == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server: file_key is required"))
		return
	}
	seen := map[string]bool{}
	for _, name := range req.Tags {
		if err := model.ValidateTagName(name); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if seen[name] {
			writeError(w, http.StatusBadRequest, fmt.Errorf("server: duplicate tag %q", name))
			return
		}
		seen[name] = true
	}
	entry, err := s.vault.UpdateTags(r.Context(), req.FileKey, req.Tags)
	if err != nil {
		if errors.Is(err, vault.ErrNotTracked) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toFileEntryDto(&entry))
}

type searchRequest struct {
	IncludeGroups [][]string `json:"include_groups"`
	Exclude       []string   `json:"exclude"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	query := model.TagQuery{IncludeGroups: req.IncludeGroups, Exclude: req.Exclude}
	if err := query.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.vault.SearchByTags(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toFileEntriesResponse(entries))
}

type objectInfoDto struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	IsDir      bool      `json:"is_dir"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	dirPath := r.URL.Query().Get("dir")
	recursive := r.URL.Query().Get("recursive") == "true"
	infos, err := s.vault.ListDirectory(r.Context(), dirPath, recursive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	objects := make([]objectInfoDto, 0, len(infos))
	for _, info := range infos {
		objects = append(objects, objectInfoDto{
			Name:       info.Name,
			Path:       info.Path,
			SizeBytes:  info.SizeBytes,
			ModifiedAt: info.ModifiedAt,
			IsDir:      info.IsDir,
		})
	}
	writeJson(w, http.StatusOK, map[string][]objectInfoDto{"objects": objects})
}

type historyEntryDto struct {
	FileEntryDto
	ActionType string    `json:"action_type"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	fileKey := r.URL.Query().Get("file_key")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server: file_key is required"))
		return
	}
	entries, err := s.vault.GetHistory(r.Context(), fileKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	history := make([]historyEntryDto, 0, len(entries))
	for i := range entries {
		history = append(history, historyEntryDto{
			FileEntryDto: toFileEntryDto(&entries[i]),
			ActionType:   entries[i].Action.String(),
			RecordedAt:   entries[i].CreatedAt,
		})
	}
	writeJson(w, http.StatusOK, map[string][]historyEntryDto{"history": history})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	fileKey := r.URL.Query().Get("file_key")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server: file_key is required"))
		return
	}
	entries, err := s.vault.FindSimilar(r.Context(), fileKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, toFileEntriesResponse(entries))
}
