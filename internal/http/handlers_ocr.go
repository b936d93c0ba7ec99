package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"eventfin/internal/attachments"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/ocr"
)

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 64 << 10

type ocrResponse struct {
	AttachmentRef string       `json:"attachment_ref,omitempty"`
	OCR           core.OCRData `json:"ocr"`
}

// handleOCR stores the uploaded "file" part and runs extraction on it.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return badRequest("expected multipart/form-data upload")
	}
	part, err := nextFilePart(mr)
	if err != nil {
		return err
	}
	defer part.Close()

	doc := ocr.Document{Name: part.FileName(), ContentType: part.Header.Get("Content-Type")}
	logger := log.FromContext(r.Context())

	if s.deps.Attachments == nil {
		doc.Body = part
		data, err := s.deps.Extractor.ExtractDocumentFields(r.Context(), doc)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ocrResponse{OCR: data})
		return nil
	}

	ref, n, err := s.deps.Attachments.Save(part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return attachments.ErrTooLarge
		}
		return err
	}
	if n == 0 {
		_ = s.deps.Attachments.Remove(ref)
		return ocr.ErrEmptyDocument
	}

	f, err := s.deps.Attachments.Open(ref)
	if err != nil {
		return err
	}
	defer f.Close()
	doc.Size = n
	doc.Body = f

	data, err := s.deps.Extractor.ExtractDocumentFields(r.Context(), doc)
	if err != nil {
		if rmErr := s.deps.Attachments.Remove(ref); rmErr != nil {
			logger.WarnContext(r.Context(), "Failed to remove attachment", log.FieldAttachment, ref, log.FieldError, rmErr)
		}
		return err
	}
	logger.InfoContext(r.Context(), "Receipt processed",
		log.FieldOperation, log.OpExtract,
		log.FieldAttachment, ref,
		"size_bytes", n)
	writeJSON(w, http.StatusOK, ocrResponse{AttachmentRef: ref, OCR: data})
	return nil
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, core.Invalid("file", ocr.ErrEmptyDocument)
		}
		if err != nil {
			return nil, badRequest("malformed multipart body")
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
