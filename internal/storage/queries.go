package storage

import (
	"context"
	"database/sql"
	"strings"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

// --- transactions ---

const transactionColumns = `id, date, amount_cents, description, note, children_flag, doc_flag, parent_id, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.Date,
		&t.AmountCents,
		&t.Description,
		&t.Note,
		&t.ChildrenFlag,
		&t.DocFlag,
		&t.ParentID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

const createTransaction = `INSERT INTO transactions (
    date, amount_cents, description, note, children_flag, doc_flag, parent_id, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	Date         string
	AmountCents  int64
	Description  sql.NullString
	Note         sql.NullString
	ChildrenFlag bool
	DocFlag      bool
	ParentID     sql.NullInt64
	CreatedAt    string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date,
		arg.AmountCents,
		arg.Description,
		arg.Note,
		arg.ChildrenFlag,
		arg.DocFlag,
		arg.ParentID,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date DESC, id ASC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransaction = `UPDATE transactions
SET date = ?, amount_cents = ?, description = ?, note = ?, children_flag = ?, doc_flag = ?, updated_at = ?
WHERE id = ?`

type UpdateTransactionParams struct {
	ID           int64
	Date         string
	AmountCents  int64
	Description  sql.NullString
	Note         sql.NullString
	ChildrenFlag bool
	DocFlag      bool
	UpdatedAt    string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Date,
		arg.AmountCents,
		arg.Description,
		arg.Note,
		arg.ChildrenFlag,
		arg.DocFlag,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countChildren = `SELECT COUNT(*) FROM transactions WHERE parent_id = ?`

func (q *Queries) CountChildren(ctx context.Context, parentID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countChildren, parentID).Scan(&n)
	return n, err
}

const refreshChildrenFlag = `UPDATE transactions
SET children_flag = EXISTS (SELECT 1 FROM transactions c WHERE c.parent_id = transactions.id),
    updated_at = ?
WHERE id = ?`

// RefreshChildrenFlag recomputes children_flag from the rows referencing id.
func (q *Queries) RefreshChildrenFlag(ctx context.Context, id int64, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, refreshChildrenFlag, updatedAt, id)
	return err
}

const refreshDocFlag = `UPDATE transactions
SET doc_flag = EXISTS (SELECT 1 FROM documents d WHERE d.transaction_id = transactions.id),
    updated_at = ?
WHERE id = ?`

// RefreshDocFlag recomputes doc_flag from the documents referencing id.
func (q *Queries) RefreshDocFlag(ctx context.Context, id int64, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, refreshDocFlag, updatedAt, id)
	return err
}

const findDuplicate = `SELECT EXISTS (
    SELECT 1 FROM transactions
    WHERE date = ? AND amount_cents = ? AND description IS ?
)`

// TransactionExists matches on date, amount and description; a NULL description matches NULL.
func (q *Queries) TransactionExists(ctx context.Context, date string, amountCents int64, description sql.NullString) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, findDuplicate, date, amountCents, description).Scan(&exists)
	return exists, err
}

// --- transaction tags ---

const tagRowColumns = `t.id, t.name, t.color, t.tag_group_id, g.name`

const listTransactionTags = `SELECT tt.transaction_id, ` + tagRowColumns + `
FROM transaction_tags tt
JOIN tags t ON t.id = tt.tag_id
JOIN tag_groups g ON g.id = t.tag_group_id
WHERE tt.transaction_id = ?
ORDER BY t.name ASC, t.id ASC`

const listAllTransactionTags = `SELECT tt.transaction_id, ` + tagRowColumns + `
FROM transaction_tags tt
JOIN tags t ON t.id = tt.tag_id
JOIN tag_groups g ON g.id = t.tag_group_id
ORDER BY tt.transaction_id ASC, t.name ASC, t.id ASC`

func (q *Queries) ListTransactionTags(ctx context.Context, transactionID int64) ([]TransactionTagRow, error) {
	return q.queryTransactionTags(ctx, listTransactionTags, transactionID)
}

func (q *Queries) ListAllTransactionTags(ctx context.Context) ([]TransactionTagRow, error) {
	return q.queryTransactionTags(ctx, listAllTransactionTags)
}

func (q *Queries) queryTransactionTags(ctx context.Context, query string, args ...any) ([]TransactionTagRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionTagRow
	for rows.Next() {
		var i TransactionTagRow
		if err := rows.Scan(
			&i.TransactionID,
			&i.ID,
			&i.Name,
			&i.Color,
			&i.TagGroupID,
			&i.GroupName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addTransactionTag = `INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`

// AddTransactionTag returns 0 when the association already existed.
func (q *Queries) AddTransactionTag(ctx context.Context, transactionID, tagID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, addTransactionTag, transactionID, tagID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const removeTransactionTag = `DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`

func (q *Queries) RemoveTransactionTag(ctx context.Context, transactionID, tagID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, removeTransactionTag, transactionID, tagID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const clearTransactionTags = `DELETE FROM transaction_tags WHERE transaction_id = ?`

func (q *Queries) ClearTransactionTags(ctx context.Context, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, clearTransactionTags, transactionID)
	return err
}

// --- tag groups ---

const createTagGroup = `INSERT INTO tag_groups (name) VALUES (?) RETURNING id, name`

func (q *Queries) CreateTagGroup(ctx context.Context, name string) (TagGroup, error) {
	var g TagGroup
	err := q.db.QueryRowContext(ctx, createTagGroup, name).Scan(&g.ID, &g.Name)
	return g, err
}

const getTagGroup = `SELECT id, name FROM tag_groups WHERE id = ?`

func (q *Queries) GetTagGroup(ctx context.Context, id int64) (TagGroup, error) {
	var g TagGroup
	err := q.db.QueryRowContext(ctx, getTagGroup, id).Scan(&g.ID, &g.Name)
	return g, err
}

const listTagGroups = `SELECT id, name FROM tag_groups ORDER BY name ASC, id ASC`

func (q *Queries) ListTagGroups(ctx context.Context) ([]TagGroup, error) {
	rows, err := q.db.QueryContext(ctx, listTagGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TagGroup
	for rows.Next() {
		var g TagGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTagGroup = `DELETE FROM tag_groups WHERE id = ?`

func (q *Queries) DeleteTagGroup(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTagGroup, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- tags ---

const createTag = `INSERT INTO tags (name, color, tag_group_id) VALUES (?, ?, ?)
RETURNING id, name, color, tag_group_id`

type CreateTagParams struct {
	Name       string
	Color      sql.NullString
	TagGroupID int64
}

func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) (Tag, error) {
	var t Tag
	err := q.db.QueryRowContext(ctx, createTag, arg.Name, arg.Color, arg.TagGroupID).Scan(
		&t.ID,
		&t.Name,
		&t.Color,
		&t.TagGroupID,
	)
	return t, err
}

const getTag = `SELECT ` + tagRowColumns + `
FROM tags t JOIN tag_groups g ON g.id = t.tag_group_id
WHERE t.id = ?`

func (q *Queries) GetTag(ctx context.Context, id int64) (TagRow, error) {
	var i TagRow
	err := q.db.QueryRowContext(ctx, getTag, id).Scan(
		&i.ID,
		&i.Name,
		&i.Color,
		&i.TagGroupID,
		&i.GroupName,
	)
	return i, err
}

const listTags = `SELECT ` + tagRowColumns + `
FROM tags t JOIN tag_groups g ON g.id = t.tag_group_id
ORDER BY t.name ASC, t.id ASC`

const listTagsByGroup = `SELECT ` + tagRowColumns + `
FROM tags t JOIN tag_groups g ON g.id = t.tag_group_id
WHERE t.tag_group_id = ?
ORDER BY t.name ASC, t.id ASC`

func (q *Queries) ListTags(ctx context.Context) ([]TagRow, error) {
	return q.queryTagRows(ctx, listTags)
}

func (q *Queries) ListTagsByGroup(ctx context.Context, groupID int64) ([]TagRow, error) {
	return q.queryTagRows(ctx, listTagsByGroup, groupID)
}

// ListTagsByIDs returns the subset of ids that exist, ordered by id.
func (q *Queries) ListTagsByIDs(ctx context.Context, ids []int64) ([]TagRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + tagRowColumns + `
FROM tags t JOIN tag_groups g ON g.id = t.tag_group_id
WHERE t.id IN (` + placeholders + `)
ORDER BY t.id ASC`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return q.queryTagRows(ctx, query, args...)
}

func (q *Queries) queryTagRows(ctx context.Context, query string, args ...any) ([]TagRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TagRow
	for rows.Next() {
		var i TagRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Color,
			&i.TagGroupID,
			&i.GroupName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTag = `DELETE FROM tags WHERE id = ?`

func (q *Queries) DeleteTag(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTag, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- settings ---

const getSetting = `SELECT id, key, value_cents FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	var s Setting
	err := q.db.QueryRowContext(ctx, getSetting, key).Scan(&s.ID, &s.Key, &s.ValueCents)
	return s, err
}

const listSettings = `SELECT id, key, value_cents FROM settings ORDER BY key ASC`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.ID, &s.Key, &s.ValueCents); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertSetting = `INSERT INTO settings (key, value_cents) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value_cents = excluded.value_cents
RETURNING id, key, value_cents`

func (q *Queries) UpsertSetting(ctx context.Context, key string, valueCents sql.NullInt64) (Setting, error) {
	var s Setting
	err := q.db.QueryRowContext(ctx, upsertSetting, key, valueCents).Scan(&s.ID, &s.Key, &s.ValueCents)
	return s, err
}

// --- documents ---

const documentColumns = `id, transaction_id, original_filename, stored_filename, mime_type, size_bytes, uploaded_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	err := row.Scan(
		&d.ID,
		&d.TransactionID,
		&d.OriginalFilename,
		&d.StoredFilename,
		&d.MimeType,
		&d.SizeBytes,
		&d.UploadedAt,
	)
	return d, err
}

const createDocument = `INSERT INTO documents (
    transaction_id, original_filename, stored_filename, mime_type, size_bytes, uploaded_at
) VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + documentColumns

type CreateDocumentParams struct {
	TransactionID    int64
	OriginalFilename string
	StoredFilename   string
	MimeType         string
	SizeBytes        int64
	UploadedAt       string
}

func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	row := q.db.QueryRowContext(ctx, createDocument,
		arg.TransactionID,
		arg.OriginalFilename,
		arg.StoredFilename,
		arg.MimeType,
		arg.SizeBytes,
		arg.UploadedAt,
	)
	return scanDocument(row)
}

const getDocument = `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

func (q *Queries) GetDocument(ctx context.Context, id int64) (Document, error) {
	return scanDocument(q.db.QueryRowContext(ctx, getDocument, id))
}

const listDocuments = `SELECT ` + documentColumns + ` FROM documents ORDER BY id ASC`

const listTransactionDocuments = `SELECT ` + documentColumns + `
FROM documents WHERE transaction_id = ? ORDER BY id ASC`

// Documents of a transaction and of all its children.
const listDocumentTree = `SELECT ` + documentColumns + `
FROM documents
WHERE transaction_id = ?
   OR transaction_id IN (SELECT id FROM transactions WHERE parent_id = ?)
ORDER BY id ASC`

func (q *Queries) ListDocuments(ctx context.Context) ([]Document, error) {
	return q.queryDocuments(ctx, listDocuments)
}

func (q *Queries) ListTransactionDocuments(ctx context.Context, transactionID int64) ([]Document, error) {
	return q.queryDocuments(ctx, listTransactionDocuments, transactionID)
}

func (q *Queries) ListDocumentTree(ctx context.Context, transactionID int64) ([]Document, error) {
	return q.queryDocuments(ctx, listDocumentTree, transactionID, transactionID)
}

func (q *Queries) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteDocument = `DELETE FROM documents WHERE id = ?`

func (q *Queries) DeleteDocument(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDocument, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteDocumentTree = `DELETE FROM documents
WHERE transaction_id = ?
   OR transaction_id IN (SELECT id FROM transactions WHERE parent_id = ?)`

func (q *Queries) DeleteDocumentTree(ctx context.Context, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, deleteDocumentTree, transactionID, transactionID)
	return err
}
