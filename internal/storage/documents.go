package storage

import (
	"context"
	"database/sql"
	"errors"

	"categorizer/internal/core"

	"github.com/shopspring/decimal"
)

// GetSetting returns the stored setting for key, or a not-found error.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (core.Setting, error) {
	s, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Setting{}, core.NotFoundf("Setting '%s' not found.", key)
	}
	if err != nil {
		return core.Setting{}, dbError("get setting", err)
	}
	return settingFromRow(s), nil
}

func (r *SQLiteRepository) ListSettings(ctx context.Context) ([]core.Setting, error) {
	rows, err := r.queries.ListSettings(ctx)
	if err != nil {
		return nil, dbError("list settings", err)
	}
	out := make([]core.Setting, 0, len(rows))
	for _, s := range rows {
		out = append(out, settingFromRow(s))
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertSetting(ctx context.Context, key string, value *decimal.Decimal) (core.Setting, error) {
	s, err := r.queries.UpsertSetting(ctx, key, nullCents(value))
	if err != nil {
		return core.Setting{}, dbError("upsert setting", err)
	}
	return settingFromRow(s), nil
}

func settingFromRow(s Setting) core.Setting {
	return core.Setting{ID: s.ID, Key: s.Key, Value: decimalPtr(s.ValueCents)}
}

func (r *SQLiteRepository) CreateDocument(ctx context.Context, d core.Document) (core.Document, error) {
	row, err := r.queries.CreateDocument(ctx, CreateDocumentParams{
		TransactionID:    d.TransactionID,
		OriginalFilename: d.OriginalFilename,
		StoredFilename:   d.StoredFilename,
		MimeType:         d.MimeType,
		SizeBytes:        d.SizeBytes,
		UploadedAt:       nowText(),
	})
	if err != nil {
		return core.Document{}, dbError("create document", err)
	}
	return documentFromRow(row), nil
}

func (r *SQLiteRepository) GetDocument(ctx context.Context, id int64) (core.Document, error) {
	row, err := r.queries.GetDocument(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, core.NotFoundf("Document with id %d not found.", id)
	}
	if err != nil {
		return core.Document{}, dbError("get document", err)
	}
	return documentFromRow(row), nil
}

func (r *SQLiteRepository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	rows, err := r.queries.ListDocuments(ctx)
	if err != nil {
		return nil, dbError("list documents", err)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, d := range rows {
		docs = append(docs, documentFromRow(d))
	}
	return docs, nil
}

func (r *SQLiteRepository) DeleteDocument(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteDocument(ctx, id)
	if err != nil {
		return dbError("delete document", err)
	}
	if n == 0 {
		return core.NotFoundf("Document with id %d not found.", id)
	}
	return nil
}

func documentFromRow(d Document) core.Document {
	return core.Document{
		ID:               d.ID,
		TransactionID:    d.TransactionID,
		OriginalFilename: d.OriginalFilename,
		StoredFilename:   d.StoredFilename,
		MimeType:         d.MimeType,
		SizeBytes:        d.SizeBytes,
		UploadedAt:       parseTimestamp(d.UploadedAt),
	}
}
