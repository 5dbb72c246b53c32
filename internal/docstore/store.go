// Package docstore keeps uploaded documents on the local file system under
// server-generated names.
package docstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyFile        = errors.New("empty file")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrTooLarge         = errors.New("file too large")
	ErrInvalidName      = errors.New("invalid stored file name")
	ErrMissingExtension = errors.New("missing file extension")
)

// AllowedExtensions lists the accepted upload extensions, without the dot.
var AllowedExtensions = map[string]string{
	"txt":  "text/plain",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"odt":  "application/vnd.oasis.opendocument.text",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
}

type Store struct {
	dir      string
	maxBytes int64
}

// Saved describes a file written by Save.
type Saved struct {
	StoredName string
	MimeType   string
	Size       int64
}

func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether the extension of name is accepted.
func Allowed(name string) bool {
	_, ok := AllowedExtensions[Extension(name)]
	return ok
}

// Save copies r into a new file named <uuid>.<ext>, where ext comes from
// originalName. The recorded MIME type is the one registered for ext.
func (s *Store) Save(originalName string, r io.Reader) (Saved, error) {
	ext := Extension(originalName)
	if ext == "" {
		return Saved{}, ErrMissingExtension
	}
	mimeType, ok := AllowedExtensions[ext]
	if !ok {
		return Saved{}, ErrUnsupportedType
	}

	stored := uuid.NewString() + "." + ext
	path := filepath.Join(s.dir, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return Saved{}, fmt.Errorf("create stored file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		os.Remove(path)
		return Saved{}, fmt.Errorf("write stored file: %w", err)
	case n == 0:
		os.Remove(path)
		return Saved{}, ErrEmptyFile
	case s.maxBytes > 0 && n > s.maxBytes:
		os.Remove(path)
		return Saved{}, ErrTooLarge
	}

	return Saved{StoredName: stored, MimeType: mimeType, Size: n}, nil
}

// Open returns the stored file. A missing file yields an error matching fs.ErrNotExist.
func (s *Store) Open(storedName string) (*os.File, error) {
	path, err := s.path(storedName)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *Store) Remove(storedName string) error {
	path, err := s.path(storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Purge removes every file in the upload directory.
func (s *Store) Purge() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.MkdirAll(s.dir, 0755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// path rejects names that would escape the upload directory.
func (s *Store) path(storedName string) (string, error) {
	if storedName == "" || storedName != filepath.Base(storedName) || strings.HasPrefix(storedName, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, storedName), nil
}
