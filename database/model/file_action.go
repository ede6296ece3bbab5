package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ACTION_CREATE  ActionType = "CREATE"
	ACTION_MOVE    ActionType = "MOVE"
	ACTION_DELETE  ActionType = "DELETE"
	ACTION_UPDATE  ActionType = "UPDATE"
	ACTION_MISSING ActionType = "MISSING"
)

func (a ActionType) String() string {
	return string(a)
}

func ParseActionType(s string) (ActionType, error) {
	a := ActionType(s)
	switch a {
	case ACTION_CREATE, ACTION_MOVE, ACTION_DELETE, ACTION_UPDATE, ACTION_MISSING:
		return a, nil
	default:
		return "", fmt.Errorf("model: invalid action type: %s", s)
	}
}

// FileEntry is one row of the action log: a single state transition of a
// logical file. Rows are never updated after insert; Id and CreatedAt stay
// zero until the repository has stored the entry.
type FileEntry struct {
	Id                int64
	FileKey           string
	EntityId          string
	Action            ActionType
	MimeType          *string
	ThumbnailKey      *string
	ThumbnailMimeType *string
	ThumbnailChecksum *string
	ThumbnailPhash    *string
	Tags              []string
	CreatedAt         time.Time
}

// NewFileEntry starts a fresh identity: a CREATE row with a generated
// entity uuid. COPY destinations go through here too, since a copy is a
// new logical file.
func NewFileEntry(fileKey string) (FileEntry, error) {
	if fileKey == "" {
		return FileEntry{}, fmt.Errorf("model: file key is required")
	}
	return FileEntry{
		FileKey:  fileKey,
		EntityId: uuid.NewString(),
		Action:   ACTION_CREATE,
	}, nil
}

// ExistingFileEntry continues an identity: MOVE, DELETE, UPDATE and
// MISSING rows must carry the uuid of the entity they extend. CREATE is
// rejected here so a fresh identity can never alias an old one.
func ExistingFileEntry(fileKey string, entityId string, action ActionType) (FileEntry, error) {
	if fileKey == "" {
		return FileEntry{}, fmt.Errorf("model: file key is required")
	}
	if entityId == "" {
		return FileEntry{}, fmt.Errorf("model: entity id is required for %s", action)
	}
	switch action {
	case ACTION_MOVE, ACTION_DELETE, ACTION_UPDATE, ACTION_MISSING:
	case ACTION_CREATE:
		return FileEntry{}, fmt.Errorf("model: CREATE cannot reuse an existing entity id")
	default:
		return FileEntry{}, fmt.Errorf("model: invalid action type: %s", action)
	}
	return FileEntry{
		FileKey:  fileKey,
		EntityId: entityId,
		Action:   action,
	}, nil
}

// Validate is the pre-insert gate: required fields plus the rule that a
// thumbnail reference is only meaningful together with its mime type.
func (e *FileEntry) Validate() error {
	if e.FileKey == "" {
		return fmt.Errorf("model: file key is required")
	}
	if e.EntityId == "" {
		return fmt.Errorf("model: entity id is required")
	}
	if _, err := ParseActionType(string(e.Action)); err != nil {
		return err
	}
	if (e.ThumbnailKey == nil) != (e.ThumbnailMimeType == nil) {
		return fmt.Errorf("model: thumbnail key and thumbnail mime type must be set together")
	}
	return nil
}

// CopyThumbnailFields carries derived metadata from one row to its
// successor (moves, copies, tag updates).
func (e *FileEntry) CopyThumbnailFields(from *FileEntry) {
	e.MimeType = from.MimeType
	e.ThumbnailKey = from.ThumbnailKey
	e.ThumbnailMimeType = from.ThumbnailMimeType
	e.ThumbnailChecksum = from.ThumbnailChecksum
	e.ThumbnailPhash = from.ThumbnailPhash
}

// StrPtr is a convenience for filling optional columns.
func StrPtr(s string) *string {
	return &s
}
