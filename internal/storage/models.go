package storage

import (
	"database/sql"
)

// Row types as stored in SQLite. Timestamps and dates are kept as TEXT.

type Transaction struct {
	ID           int64
	Date         string
	AmountCents  int64
	Description  sql.NullString
	Note         sql.NullString
	ChildrenFlag bool
	DocFlag      bool
	ParentID     sql.NullInt64
	CreatedAt    string
	UpdatedAt    string
}

type TagGroup struct {
	ID   int64
	Name string
}

type Tag struct {
	ID         int64
	Name       string
	Color      sql.NullString
	TagGroupID int64
}

// TagRow is a tag joined with the name of its group.
type TagRow struct {
	Tag
	GroupName string
}

// TransactionTagRow is a tag attached to a transaction.
type TransactionTagRow struct {
	TransactionID int64
	TagRow
}

type Setting struct {
	ID         int64
	Key        string
	ValueCents sql.NullInt64
}

type Document struct {
	ID               int64
	TransactionID    int64
	OriginalFilename string
	StoredFilename   string
	MimeType         string
	SizeBytes        int64
	UploadedAt       string
}
