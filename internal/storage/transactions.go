package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"categorizer/internal/core"

	"github.com/shopspring/decimal"
)

// CreateTransaction inserts t without touching its tags and returns the stored row.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Date:         t.Date.String(),
		AmountCents:  core.AmountToCents(t.Amount),
		Description:  nullString(t.Description),
		Note:         nullString(t.Note),
		ChildrenFlag: t.ChildrenFlag,
		DocFlag:      t.DocFlag,
		ParentID:     nullInt64(t.ParentID),
		CreatedAt:    nowText(),
	})
	if err != nil {
		return core.Transaction{}, dbError("create transaction", err)
	}
	return transactionFromRow(row)
}

// GetTransaction loads a transaction with its tags and documents.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFoundf("Transaction with id %d not found.", id)
	}
	if err != nil {
		return core.Transaction{}, dbError("get transaction", err)
	}
	t, err := transactionFromRow(row)
	if err != nil {
		return core.Transaction{}, err
	}

	tags, err := r.queries.ListTransactionTags(ctx, id)
	if err != nil {
		return core.Transaction{}, dbError("list transaction tags", err)
	}
	for _, tr := range tags {
		t.Tags = append(t.Tags, tagFromRow(tr.TagRow))
	}

	docs, err := r.queries.ListTransactionDocuments(ctx, id)
	if err != nil {
		return core.Transaction{}, dbError("list transaction documents", err)
	}
	for _, d := range docs {
		t.Documents = append(t.Documents, documentFromRow(d))
	}
	return t, nil
}

// ListTransactions returns every transaction, newest date first, with tags and documents.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, dbError("list transactions", err)
	}
	tagRows, err := r.queries.ListAllTransactionTags(ctx)
	if err != nil {
		return nil, dbError("list transaction tags", err)
	}
	docRows, err := r.queries.ListDocuments(ctx)
	if err != nil {
		return nil, dbError("list documents", err)
	}

	tagsByTx := make(map[int64][]core.Tag)
	for _, tr := range tagRows {
		tagsByTx[tr.TransactionID] = append(tagsByTx[tr.TransactionID], tagFromRow(tr.TagRow))
	}
	docsByTx := make(map[int64][]core.Document)
	for _, d := range docRows {
		docsByTx[d.TransactionID] = append(docsByTx[d.TransactionID], documentFromRow(d))
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		t.Tags = tagsByTx[t.ID]
		t.Documents = docsByTx[t.ID]
		out = append(out, t)
	}
	return out, nil
}

// UpdateTransaction writes the scalar fields of t. parent_id is never changed.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:           t.ID,
		Date:         t.Date.String(),
		AmountCents:  core.AmountToCents(t.Amount),
		Description:  nullString(t.Description),
		Note:         nullString(t.Note),
		ChildrenFlag: t.ChildrenFlag,
		DocFlag:      t.DocFlag,
		UpdatedAt:    nowText(),
	})
	if err != nil {
		return dbError("update transaction", err)
	}
	if n == 0 {
		return core.NotFoundf("Transaction with id %d not found.", t.ID)
	}
	return nil
}

// DeleteTransaction removes the document rows of the transaction and its
// children, then the transaction itself. Children and tag associations go
// with it through the foreign key cascade.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if err := r.queries.DeleteDocumentTree(ctx, id); err != nil {
		return dbError("delete documents", err)
	}
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return dbError("delete transaction", err)
	}
	if n == 0 {
		return core.NotFoundf("Transaction with id %d not found.", id)
	}
	return nil
}

func (r *SQLiteRepository) CountChildren(ctx context.Context, parentID int64) (int64, error) {
	n, err := r.queries.CountChildren(ctx, parentID)
	if err != nil {
		return 0, dbError("count children", err)
	}
	return n, nil
}

func (r *SQLiteRepository) RefreshChildrenFlag(ctx context.Context, id int64) error {
	if err := r.queries.RefreshChildrenFlag(ctx, id, nowText()); err != nil {
		return dbError("refresh children flag", err)
	}
	return nil
}

func (r *SQLiteRepository) RefreshDocFlag(ctx context.Context, id int64) error {
	if err := r.queries.RefreshDocFlag(ctx, id, nowText()); err != nil {
		return dbError("refresh doc flag", err)
	}
	return nil
}

// ListDocumentTree returns the documents of a transaction and of its children.
func (r *SQLiteRepository) ListDocumentTree(ctx context.Context, id int64) ([]core.Document, error) {
	rows, err := r.queries.ListDocumentTree(ctx, id)
	if err != nil {
		return nil, dbError("list document tree", err)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, d := range rows {
		docs = append(docs, documentFromRow(d))
	}
	return docs, nil
}

// AddTransactionTag reports whether a new association was created.
func (r *SQLiteRepository) AddTransactionTag(ctx context.Context, transactionID, tagID int64) (bool, error) {
	n, err := r.queries.AddTransactionTag(ctx, transactionID, tagID)
	if err != nil {
		return false, dbError("add transaction tag", err)
	}
	return n > 0, nil
}

// RemoveTransactionTag reports whether an association was removed.
func (r *SQLiteRepository) RemoveTransactionTag(ctx context.Context, transactionID, tagID int64) (bool, error) {
	n, err := r.queries.RemoveTransactionTag(ctx, transactionID, tagID)
	if err != nil {
		return false, dbError("remove transaction tag", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ClearTransactionTags(ctx context.Context, transactionID int64) error {
	if err := r.queries.ClearTransactionTags(ctx, transactionID); err != nil {
		return dbError("clear transaction tags", err)
	}
	return nil
}

// TransactionExists looks for a transaction with the same date, amount and description.
func (r *SQLiteRepository) TransactionExists(ctx context.Context, date core.Date, amount decimal.Decimal, description *string) (bool, error) {
	exists, err := r.queries.TransactionExists(ctx, date.String(), core.AmountToCents(amount), nullString(description))
	if err != nil {
		return false, dbError("find duplicate transaction", err)
	}
	return exists, nil
}

func transactionFromRow(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, core.Persistence(genericDBMessage,
			fmt.Errorf("transaction %d has malformed date %q", row.ID, row.Date))
	}
	return core.Transaction{
		ID:           row.ID,
		Date:         date,
		Amount:       core.AmountFromCents(row.AmountCents),
		Description:  stringPtr(row.Description),
		Note:         stringPtr(row.Note),
		ChildrenFlag: row.ChildrenFlag,
		DocFlag:      row.DocFlag,
		ParentID:     int64Ptr(row.ParentID),
		CreatedAt:    parseTimestamp(row.CreatedAt),
		UpdatedAt:    parseTimestamp(row.UpdatedAt),
	}, nil
}
