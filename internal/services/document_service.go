package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"categorizer/internal/amqp"
	"categorizer/internal/core"
	"categorizer/internal/docstore"
	"categorizer/internal/log"
	"categorizer/internal/storage"
)

// DocumentService attaches files to transactions and keeps doc_flag in step
// with the attached documents.
type DocumentService struct {
	storage   *storage.SQLiteRepository
	files     *docstore.Store
	publisher ChangePublisher
}

func NewDocumentService(storage *storage.SQLiteRepository, files *docstore.Store, publisher ChangePublisher) *DocumentService {
	return &DocumentService{storage: storage, files: files, publisher: publisher}
}

// Upload stores the file under a generated name and records it against the
// transaction. The stored file is removed again if the database write fails.
func (s *DocumentService) Upload(ctx context.Context, transactionID int64, filename string, r io.Reader) (core.Document, error) {
	if filename == "" {
		return core.Document{}, core.Validationf("No selected file.")
	}
	if !docstore.Allowed(filename) {
		return core.Document{}, core.Validationf("File type not allowed.")
	}
	if _, err := s.storage.GetTransaction(ctx, transactionID); err != nil {
		return core.Document{}, err
	}

	saved, err := s.files.Save(filename, r)
	switch {
	case errors.Is(err, docstore.ErrEmptyFile):
		return core.Document{}, core.Validationf("Uploaded file is empty.")
	case errors.Is(err, docstore.ErrUnsupportedType), errors.Is(err, docstore.ErrMissingExtension):
		return core.Document{}, core.Validationf("File type not allowed.")
	case errors.Is(err, docstore.ErrTooLarge):
		return core.Document{}, fmt.Errorf("upload %q: %w", filename, err)
	case err != nil:
		return core.Document{}, core.Persistence("Could not store the uploaded file.", err)
	}

	var doc core.Document
	err = s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		var err error
		doc, err = repo.CreateDocument(ctx, core.Document{
			TransactionID:    transactionID,
			OriginalFilename: filename,
			StoredFilename:   saved.StoredName,
			MimeType:         saved.MimeType,
			SizeBytes:        saved.Size,
		})
		if err != nil {
			return err
		}
		return repo.RefreshDocFlag(ctx, transactionID)
	})
	if err != nil {
		if rmErr := s.files.Remove(saved.StoredName); rmErr != nil {
			slog.WarnContext(ctx, "Failed to remove orphaned upload", "stored_filename", saved.StoredName, log.FieldError, rmErr)
		}
		return core.Document{}, withPersistenceMessage(err, "Could not save document.")
	}

	slog.InfoContext(ctx, "Document uploaded",
		log.FieldDocumentID, doc.ID,
		log.FieldTransactionID, transactionID,
		log.FieldSizeBytes, doc.SizeBytes,
		"mime_type", doc.MimeType)
	notify(ctx, s.publisher, amqp.EntityDocument, amqp.ActionCreated, doc.ID)
	return doc, nil
}

// Open returns the document metadata and its stored file. The caller closes the file.
func (s *DocumentService) Open(ctx context.Context, id int64) (core.Document, *os.File, error) {
	doc, err := s.storage.GetDocument(ctx, id)
	if err != nil {
		return core.Document{}, nil, err
	}
	f, err := s.files.Open(doc.StoredFilename)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, docstore.ErrInvalidName) {
		return core.Document{}, nil, core.NotFoundf("File for document %d not found.", id)
	}
	if err != nil {
		return core.Document{}, nil, core.Persistence("Could not read the stored file.", err)
	}
	return doc, f, nil
}

// Delete removes the document row and its file, then recomputes doc_flag on
// the owning transaction.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	var doc core.Document
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		var err error
		if doc, err = repo.GetDocument(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteDocument(ctx, id); err != nil {
			return err
		}
		return repo.RefreshDocFlag(ctx, doc.TransactionID)
	})
	if err != nil {
		return withPersistenceMessage(err, "Could not delete document.")
	}

	if err := s.files.Remove(doc.StoredFilename); err != nil {
		slog.WarnContext(ctx, "Failed to remove stored document",
			log.FieldDocumentID, id,
			"stored_filename", doc.StoredFilename,
			log.FieldError, err)
	}
	slog.InfoContext(ctx, "Document deleted", log.FieldDocumentID, id, log.FieldTransactionID, doc.TransactionID)
	notify(ctx, s.publisher, amqp.EntityDocument, amqp.ActionDeleted, id)
	return nil
}
