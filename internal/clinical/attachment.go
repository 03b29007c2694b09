package clinical

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

// DefaultMaxAttachment caps an upload when no limit is configured.
const DefaultMaxAttachment int64 = 10 << 20

var (
	ErrAttachmentNotFound = apperr.NotFound("attachment not found")
	ErrAttachmentTooLarge = apperr.Validation("attachment exceeds the size limit")
	ErrAttachmentEmpty    = apperr.Validation("attachment is empty")
	ErrAttachmentType     = apperr.Validation("only jpeg, png, pdf, doc and docx files are accepted")
)

type AttachmentKind string

const (
	KindLab          AttachmentKind = "lab"
	KindImaging      AttachmentKind = "imaging"
	KindPrescription AttachmentKind = "prescription"
	KindOther        AttachmentKind = "other"
)

func (k AttachmentKind) Valid() bool {
	switch k {
	case KindLab, KindImaging, KindPrescription, KindOther:
		return true
	}
	return false
}

// Attachment is the metadata row for a file kept in a FileStore.
type Attachment struct {
	ID           uuid.UUID      `json:"id"`
	RecordID     uuid.UUID      `json:"record_id"`
	Kind         AttachmentKind `json:"kind"`
	Name         string         `json:"name"`
	OriginalName string         `json:"original_name"`
	ContentType  string         `json:"content_type"`
	SizeBytes    int64          `json:"size_bytes"`
	SHA256       string         `json:"sha256"`
	StorageKey   string         `json:"-"`
	UploadedBy   *uuid.UUID     `json:"uploaded_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// allowedTypes maps accepted extensions to the content type stored with the
// file. The extension and the declared type must agree.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// resolveContentType checks the file name against the declared type. An
// empty or generic declared type falls back to the extension.
func resolveContentType(fileName, declared string) (string, error) {
	want, ok := allowedTypes[strings.ToLower(path.Ext(fileName))]
	if !ok {
		return "", ErrAttachmentType
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "", "application/octet-stream":
		return want, nil
	case want:
		return want, nil
	}
	return "", ErrAttachmentType
}

// cleanFileName keeps the last path element of a client supplied name.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:255-len(ext)], "") + ext
	}
	return name
}

func storageKey(recordID, attachmentID uuid.UUID) string {
	return recordID.String() + "/" + attachmentID.String()
}
