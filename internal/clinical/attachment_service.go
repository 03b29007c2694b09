package clinical

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

const attachmentTable = "clinical_record_attachments"

type UploadInput struct {
	FileName    string
	ContentType string
	// Name is an optional display name; the file name is used when empty.
	Name string
	Kind AttachmentKind
	Body io.Reader
}

// Upload streams a file into the store and records its metadata. The bytes
// are hashed on the way through; anything over the limit is discarded.
func (s *Service) Upload(ctx context.Context, actor auth.Principal, recordID uuid.UUID, in UploadInput) (*Attachment, error) {
	if _, err := s.repo.GetByID(ctx, recordID); err != nil {
		return nil, wrap("load clinical record", err)
	}

	original := cleanFileName(in.FileName)
	if original == "" {
		return nil, apperr.Validation("file name is required")
	}
	contentType, err := resolveContentType(original, in.ContentType)
	if err != nil {
		return nil, err
	}
	kind := in.Kind
	if kind == "" {
		kind = KindOther
	}
	if !kind.Valid() {
		return nil, apperr.Validation("kind must be one of lab, imaging, prescription, other")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = original
	}
	if in.Body == nil {
		return nil, ErrAttachmentEmpty
	}

	a := &Attachment{
		ID:           uuid.New(),
		RecordID:     recordID,
		Kind:         kind,
		Name:         name,
		OriginalName: original,
		ContentType:  contentType,
		UploadedBy:   actor.ActorID(),
	}
	a.StorageKey = storageKey(recordID, a.ID)

	hash := sha256.New()
	body := io.TeeReader(io.LimitReader(in.Body, s.maxAttachment+1), hash)
	n, err := s.files.Save(ctx, a.StorageKey, body)
	if err != nil {
		return nil, apperr.Persistence("store attachment", err)
	}
	switch {
	case n > s.maxAttachment:
		_ = s.files.Remove(ctx, a.StorageKey)
		return nil, ErrAttachmentTooLarge
	case n == 0:
		_ = s.files.Remove(ctx, a.StorageKey)
		return nil, ErrAttachmentEmpty
	}
	a.SizeBytes = n
	a.SHA256 = hex.EncodeToString(hash.Sum(nil))

	if err := s.repo.CreateAttachment(ctx, a); err != nil {
		_ = s.files.Remove(ctx, a.StorageKey)
		return nil, wrap("create attachment", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, attachmentTable, a.ID))
	return a, nil
}

func (s *Service) ListAttachments(ctx context.Context, recordID uuid.UUID) ([]Attachment, error) {
	if _, err := s.repo.GetByID(ctx, recordID); err != nil {
		return nil, wrap("load clinical record", err)
	}
	out, err := s.repo.ListAttachments(ctx, recordID)
	if err != nil {
		return nil, apperr.Persistence("list attachments", err)
	}
	return out, nil
}

// OpenAttachment returns the metadata and a reader over the bytes. The
// caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, recordID, id uuid.UUID) (*Attachment, io.ReadCloser, error) {
	a, err := s.repo.GetAttachment(ctx, recordID, id)
	if err != nil {
		return nil, nil, wrap("load attachment", err)
	}
	rc, err := s.files.Open(ctx, a.StorageKey)
	if err != nil {
		return nil, nil, wrap("open attachment", err)
	}
	return a, rc, nil
}

// DeleteAttachment drops the metadata row first so a failed file removal
// leaves an orphan file rather than a row pointing at nothing.
func (s *Service) DeleteAttachment(ctx context.Context, actor auth.Principal, recordID, id uuid.UUID) error {
	a, err := s.repo.GetAttachment(ctx, recordID, id)
	if err != nil {
		return wrap("load attachment", err)
	}
	if err := s.repo.DeleteAttachment(ctx, recordID, id); err != nil {
		return wrap("delete attachment", err)
	}
	if err := s.files.Remove(ctx, a.StorageKey); err != nil && !errors.Is(err, ErrAttachmentNotFound) {
		return apperr.Persistence("remove attachment file", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionDelete, attachmentTable, id))
	return nil
}
