package http

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"categorizer/internal/core"
	"categorizer/internal/log"
	"categorizer/internal/views"
)

// multipartOverhead leaves room for part headers and boundaries on top of
// the file size limit, which the document store enforces on its own.
const multipartOverhead = 1 << 20

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpUpload, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, log.OpUpload, core.Validationf("No file part in the request."))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, log.OpUpload, core.Validationf("No file part in the request."))
			return
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if !errors.As(err, &maxBytes) {
				err = core.Validationf("Malformed multipart body.")
			}
			s.writeError(w, r, log.OpUpload, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		doc, err := s.svc.Documents.Upload(r.Context(), id, part.FileName(), part)
		part.Close()
		if err != nil {
			s.writeError(w, r, log.OpUpload, err)
			return
		}
		NewJSONResponse().Created().Body(views.Document(doc)).Write(w)
		return
	}
}

func (s *Server) handleViewDocument(w http.ResponseWriter, r *http.Request) {
	// Inline previews are framed by the bundled frontend.
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'; frame-ancestors 'self'")
	s.serveDocument(w, r, "inline")
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, "attachment")
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, disposition string) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	doc, f, err := s.svc.Documents.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition(disposition, doc.OriginalFilename))
	http.ServeContent(w, r, doc.OriginalFilename, doc.UploadedAt, f)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Documents.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Document deleted successfully").Write(w)
}

// contentDisposition falls back to the bare disposition when the name
// cannot be encoded.
func contentDisposition(disposition, filename string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}
