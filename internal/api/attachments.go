package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/clinical"
)

// multipartOverhead covers boundaries and the small text fields sent next to
// the file.
const multipartOverhead = 64 << 10

func uploadAttachmentHandler(svc *clinical.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, svc.MaxAttachmentBytes()+multipartOverhead)

		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "expected multipart/form-data")
			return
		}

		// Text fields must precede the file part; the file is streamed
		// straight into the store without buffering.
		in := clinical.UploadInput{}
		for in.Body == nil {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, apperr.KindValidation.String(), "file is required")
				return
			}
			if err != nil {
				writeUploadError(w, r, err)
				return
			}

			switch part.FormName() {
			case "file":
				in.FileName = part.FileName()
				in.ContentType = part.Header.Get("Content-Type")
				in.Body = part
			case "name":
				if in.Name, err = formValue(part); err != nil {
					writeUploadError(w, r, err)
					return
				}
			case "kind":
				kind, err := formValue(part)
				if err != nil {
					writeUploadError(w, r, err)
					return
				}
				in.Kind = clinical.AttachmentKind(kind)
			}
		}

		a, err := svc.Upload(r.Context(), principal(r), recordID, in)
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// writeUploadError reports oversized bodies as 413 whether the store limit
// or the request limit tripped first.
func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) || errors.Is(err, clinical.ErrAttachmentTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, apperr.KindValidation.String(), clinical.ErrAttachmentTooLarge.Error())
		return
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeAppError(w, r, err)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "malformed multipart body")
}

func formValue(part io.Reader) (string, error) {
	v, err := io.ReadAll(io.LimitReader(part, 1024))
	return string(v), err
}

func listAttachmentsHandler(svc *clinical.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		out, err := svc.ListAttachments(r.Context(), recordID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func downloadAttachmentHandler(svc *clinical.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		id, ok := pathID(w, r, "attachmentID")
		if !ok {
			return
		}
		a, body, err := svc.OpenAttachment(r.Context(), recordID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		defer body.Close()

		h := w.Header()
		h.Set("Content-Type", a.ContentType)
		h.Set("Content-Length", strconv.FormatInt(a.SizeBytes, 10))
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.OriginalName}))
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("ETag", `"`+a.SHA256+`"`)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("attachment_id", id.String()).Msg("attachment download interrupted")
		}
	}
}

func deleteAttachmentHandler(svc *clinical.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		id, ok := pathID(w, r, "attachmentID")
		if !ok {
			return
		}
		if err := svc.DeleteAttachment(r.Context(), principal(r), recordID, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
