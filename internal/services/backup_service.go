package services

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"categorizer/internal/core"
	"categorizer/internal/docstore"
	"categorizer/internal/log"
	"categorizer/internal/storage"
	"categorizer/internal/views"

	"github.com/xuri/excelize/v2"
)

const (
	backupDocumentsDir = "Documents/"
	transactionsSheet  = "Transactions"
)

// BackupService exports the whole data set together with the stored documents.
type BackupService struct {
	storage *storage.SQLiteRepository
	files   *docstore.Store
}

func NewBackupService(storage *storage.SQLiteRepository, files *docstore.Store) *BackupService {
	return &BackupService{storage: storage, files: files}
}

// FileName is the suggested download name for an archive taken at now.
func (s *BackupService) FileName(now time.Time) string {
	return fmt.Sprintf("categorizer_backup_%s.zip", now.UTC().Format("20060102_150405"))
}

type snapshot struct {
	transactions []core.Transaction
	groups       []core.TagGroup
	settings     []core.Setting
}

// WriteArchive writes a ZIP with JSON snapshots, a spreadsheet of the
// transactions and every stored document under Documents/. Documents whose
// file is gone are skipped.
func (s *BackupService) WriteArchive(ctx context.Context, w io.Writer) error {
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	if err := writeJSON(zw, "transactions.json", views.Transactions(snap.transactions)); err != nil {
		return err
	}
	if err := writeJSON(zw, "tag_groups.json", views.Groups(snap.groups)); err != nil {
		return err
	}
	if err := writeJSON(zw, "settings.json", views.Settings(snap.settings)); err != nil {
		return err
	}
	if err := writeSpreadsheet(zw, snap.transactions); err != nil {
		return err
	}

	written := 0
	for _, tx := range snap.transactions {
		for _, doc := range tx.Documents {
			ok, err := s.copyDocument(ctx, zw, doc)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	slog.InfoContext(ctx, "Backup archive written",
		"transactions", len(snap.transactions),
		"tag_groups", len(snap.groups),
		"documents", written)
	return nil
}

func (s *BackupService) load(ctx context.Context) (snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	if snap.transactions, err = s.storage.ListTransactions(ctx); err != nil {
		return snap, err
	}
	if snap.groups, err = s.storage.ListTagGroups(ctx); err != nil {
		return snap, err
	}
	if snap.settings, err = s.storage.ListSettings(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *BackupService) copyDocument(ctx context.Context, zw *zip.Writer, doc core.Document) (bool, error) {
	f, err := s.files.Open(doc.StoredFilename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, docstore.ErrInvalidName) {
			slog.WarnContext(ctx, "Stored document missing, skipped in backup",
				log.FieldDocumentID, doc.ID,
				"stored_filename", doc.StoredFilename)
			return false, nil
		}
		return false, fmt.Errorf("open document %d: %w", doc.ID, err)
	}
	defer f.Close()

	entry, err := zw.Create(ArchiveDocumentName(doc))
	if err != nil {
		return false, fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return false, fmt.Errorf("copy document %d: %w", doc.ID, err)
	}
	return true, nil
}

// ArchiveDocumentName is Documents/{id}_{original name}, with every character
// outside [A-Za-z0-9._-] replaced by an underscore.
func ArchiveDocumentName(doc core.Document) string {
	return fmt.Sprintf("%s%d_%s", backupDocumentsDir, doc.ID, sanitizeFilename(doc.OriginalFilename))
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return nil
}

func writeSpreadsheet(zw *zip.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	setRow := func(row int, values []any) error {
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(transactionsSheet, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
		return nil
	}

	headers := []any{"ID", "Date", "Amount", "Description", "Note", "Parent ID", "Split", "Tags", "Documents"}
	if err := setRow(1, headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, tx := range txs {
		names := make([]string, 0, len(tx.Tags))
		for _, tag := range tx.Tags {
			names = append(names, tag.Name)
		}
		values := []any{
			tx.ID,
			tx.Date.String(),
			tx.Amount.InexactFloat64(),
			nil,
			nil,
			nil,
			tx.ChildrenFlag,
			strings.Join(names, ", "),
			len(tx.Documents),
		}
		if tx.Description != nil {
			values[3] = *tx.Description
		}
		if tx.Note != nil {
			values[4] = *tx.Note
		}
		if tx.ParentID != nil {
			values[5] = *tx.ParentID
		}
		if err := setRow(i+2, values); err != nil {
			return fmt.Errorf("write transaction %d: %w", tx.ID, err)
		}
	}

	entry, err := zw.Create("transactions.xlsx")
	if err != nil {
		return fmt.Errorf("create transactions.xlsx: %w", err)
	}
	if err := f.Write(entry); err != nil {
		return fmt.Errorf("write transactions.xlsx: %w", err)
	}
	return nil
}
