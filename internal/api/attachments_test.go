package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/clinical"
)

const testAttachmentMax = 64

// recordStore is a clinical.Repository holding a fixed set of records and
// whatever attachments the tests upload.
type recordStore struct {
	mu          sync.Mutex
	records     map[uuid.UUID]clinical.Record
	attachments map[uuid.UUID]clinical.Attachment
}

func newRecordStore(records ...clinical.Record) *recordStore {
	s := &recordStore{records: map[uuid.UUID]clinical.Record{}, attachments: map[uuid.UUID]clinical.Attachment{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *recordStore) PatientActive(context.Context, uuid.UUID) error { return nil }

func (s *recordStore) DoctorForUser(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (s *recordStore) ListByPatient(context.Context, uuid.UUID, int, int) ([]clinical.Record, int, error) {
	return nil, 0, nil
}

func (s *recordStore) GetByID(_ context.Context, id uuid.UUID) (*clinical.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, clinical.ErrRecordNotFound
	}
	return &r, nil
}

func (s *recordStore) Create(_ context.Context, r *clinical.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = *r
	return nil
}

func (s *recordStore) Update(ctx context.Context, r *clinical.Record) error { return s.Create(ctx, r) }

func (s *recordStore) CreateAttachment(_ context.Context, a *clinical.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[a.ID] = *a
	return nil
}

func (s *recordStore) ListAttachments(_ context.Context, recordID uuid.UUID) ([]clinical.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []clinical.Attachment{}
	for _, a := range s.attachments {
		if a.RecordID == recordID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *recordStore) GetAttachment(_ context.Context, recordID, id uuid.UUID) (*clinical.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[id]
	if !ok || a.RecordID != recordID {
		return nil, clinical.ErrAttachmentNotFound
	}
	return &a, nil
}

func (s *recordStore) DeleteAttachment(_ context.Context, recordID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[id]
	if !ok || a.RecordID != recordID {
		return clinical.ErrAttachmentNotFound
	}
	delete(s.attachments, id)
	return nil
}

type filePart struct {
	name        string
	contentType string
	body        []byte
}

func uploadRequest(t *testing.T, path, token string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAttachmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, "doc@hospital.test")
	nurse := ts.login(t, "nurse@hospital.test")
	base := "/api/records/" + ts.recordID.String() + "/attachments"
	body := []byte("%PDF-1.4 haemogram")

	req := uploadRequest(t, base, doc, map[string]string{"name": "Haemogram", "kind": "lab"},
		&filePart{name: "haemogram.pdf", contentType: "application/pdf", body: body})
	rec := ts.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeBody[clinical.Attachment](t, rec)
	assert.Equal(t, "Haemogram", a.Name)
	assert.Equal(t, "haemogram.pdf", a.OriginalName)
	assert.Equal(t, clinical.KindLab, a.Kind)
	assert.Equal(t, int64(len(body)), a.SizeBytes)
	assert.NotContains(t, rec.Body.String(), "storage_key")

	rec = ts.do(t, http.MethodGet, base, nurse, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]clinical.Attachment](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	rec = ts.do(t, http.MethodGet, base+"/"+a.ID.String(), nurse, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=haemogram.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	sum := sha256.Sum256(body)
	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, rec.Header().Get("ETag"))
	assert.Equal(t, body, rec.Body.Bytes())

	rec = ts.do(t, http.MethodDelete, base+"/"+a.ID.String(), nurse, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "nursing can read records but not change them")

	rec = ts.do(t, http.MethodDelete, base+"/"+a.ID.String(), doc, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, base+"/"+a.ID.String(), doc, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachmentUploadErrors(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, "doc@hospital.test")
	base := "/api/records/" + ts.recordID.String() + "/attachments"

	tests := []struct {
		name   string
		path   string
		fields map[string]string
		file   *filePart
		status int
	}{
		{"too large", base, nil, &filePart{"scan.png", "image/png", bytes.Repeat([]byte("x"), testAttachmentMax+1)}, http.StatusRequestEntityTooLarge},
		{"exact limit", base, nil, &filePart{"scan.png", "image/png", bytes.Repeat([]byte("x"), testAttachmentMax)}, http.StatusCreated},
		{"disallowed type", base, nil, &filePart{"run.sh", "text/x-sh", []byte("#!/bin/sh")}, http.StatusBadRequest},
		{"empty file", base, nil, &filePart{"note.docx", "", nil}, http.StatusBadRequest},
		{"no file part", base, map[string]string{"name": "x"}, nil, http.StatusBadRequest},
		{"bad kind", base, map[string]string{"kind": "selfie"}, &filePart{"a.pdf", "application/pdf", []byte("x")}, http.StatusBadRequest},
		{"unknown record", "/api/records/" + uuid.NewString() + "/attachments", nil, &filePart{"a.pdf", "application/pdf", []byte("x")}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.serve(uploadRequest(t, tt.path, doc, tt.fields, tt.file))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAttachmentUploadRejectsOversizedRequest(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, "doc@hospital.test")

	// The request limit trips before the file part is reached.
	req := uploadRequest(t, "/api/records/"+ts.recordID.String()+"/attachments", doc,
		map[string]string{"name": strings.Repeat("n", multipartOverhead+testAttachmentMax)},
		&filePart{"a.pdf", "application/pdf", []byte("x")})
	rec := ts.serve(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestAttachmentUploadRequiresMultipart(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, "doc@hospital.test")

	req := httptest.NewRequest(http.MethodPost, "/api/records/"+ts.recordID.String()+"/attachments", io.NopCloser(strings.NewReader("{}")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+doc)
	rec := ts.serve(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeBody[ErrorResponse](t, rec).Error)
}
