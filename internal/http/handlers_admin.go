package http

import (
	"io"
	"net/http"
	"time"

	"categorizer/internal/log"
)

// handleBackup streams the archive. Once the first byte is out the status is
// committed, so a later failure can only abort the connection.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	out := &countingWriter{w: w}
	name := s.svc.Backup.FileName(time.Now())

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", contentDisposition("attachment", name))

	if err := s.svc.Backup.WriteArchive(r.Context(), out); err != nil {
		if out.n == 0 {
			w.Header().Del("Content-Disposition")
			s.writeError(w, r, log.OpBackup, err)
			return
		}
		s.structured.LogError(r.Context(), "Backup stream failed", err, log.ComponentBackup, log.OpBackup,
			log.NewFields().WithRequestID(requestID(r)))
		panic(http.ErrAbortHandler)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (s *Server) handleResetDB(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Maintenance.Reset(r.Context()); err != nil {
		s.writeError(w, r, log.OpReset, err)
		return
	}
	NewJSONResponse().Message("Database reset successfully").Write(w)
}
