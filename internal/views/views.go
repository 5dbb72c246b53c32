// Package views holds the JSON projections served by the API and written to
// backups. Each projection nests at most one level: a tag carries its group
// without the group's tags, and a group carries its tags without their group.
package views

import (
	"time"

	"categorizer/internal/core"
)

type TagGroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TagRef struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Color      *string `json:"color"`
	TagGroupID int64   `json:"tag_group_id"`
}

type TagView struct {
	TagRef
	TagGroup *TagGroupRef `json:"tag_group,omitempty"`
}

type TagGroupView struct {
	TagGroupRef
	Tags []TagRef `json:"tags"`
}

type DocumentView struct {
	ID               int64     `json:"id"`
	TransactionID    int64     `json:"transaction_id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

type TransactionView struct {
	ID           int64          `json:"id"`
	Date         string         `json:"date"`
	Amount       string         `json:"amount"`
	Description  *string        `json:"description"`
	Note         *string        `json:"note"`
	ChildrenFlag bool           `json:"children_flag"`
	DocFlag      bool           `json:"doc_flag"`
	ParentID     *int64         `json:"parent_id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Tags         []TagView      `json:"tags"`
	Documents    []DocumentView `json:"documents"`
}

type SplitView struct {
	Parent   TransactionView   `json:"parent"`
	Children []TransactionView `json:"children"`
}

// SettingView omits the id for recognized keys that were never stored.
type SettingView struct {
	ID    *int64  `json:"id,omitempty"`
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

func Tag(t core.Tag) TagView {
	v := TagView{TagRef: tagRef(t)}
	if t.Group != nil {
		v.TagGroup = &TagGroupRef{ID: t.Group.ID, Name: t.Group.Name}
	}
	return v
}

func Tags(tags []core.Tag) []TagView {
	out := make([]TagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, Tag(t))
	}
	return out
}

func tagRef(t core.Tag) TagRef {
	return TagRef{ID: t.ID, Name: t.Name, Color: t.Color, TagGroupID: t.TagGroupID}
}

func Group(g core.TagGroup) TagGroupView {
	v := TagGroupView{
		TagGroupRef: TagGroupRef{ID: g.ID, Name: g.Name},
		Tags:        make([]TagRef, 0, len(g.Tags)),
	}
	for _, t := range g.Tags {
		v.Tags = append(v.Tags, tagRef(t))
	}
	return v
}

func Groups(groups []core.TagGroup) []TagGroupView {
	out := make([]TagGroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, Group(g))
	}
	return out
}

func GroupRef(g core.TagGroup) TagGroupRef {
	return TagGroupRef{ID: g.ID, Name: g.Name}
}

func Document(d core.Document) DocumentView {
	return DocumentView{
		ID:               d.ID,
		TransactionID:    d.TransactionID,
		OriginalFilename: d.OriginalFilename,
		MimeType:         d.MimeType,
		SizeBytes:        d.SizeBytes,
		UploadedAt:       d.UploadedAt,
	}
}

func Transaction(t core.Transaction) TransactionView {
	v := TransactionView{
		ID:           t.ID,
		Date:         t.Date.String(),
		Amount:       core.FormatAmount(t.Amount),
		Description:  t.Description,
		Note:         t.Note,
		ChildrenFlag: t.ChildrenFlag,
		DocFlag:      t.DocFlag,
		ParentID:     t.ParentID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Tags:         Tags(t.Tags),
		Documents:    make([]DocumentView, 0, len(t.Documents)),
	}
	for _, d := range t.Documents {
		v.Documents = append(v.Documents, Document(d))
	}
	return v
}

func Transactions(txs []core.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, Transaction(t))
	}
	return out
}

func Split(parent core.Transaction, children []core.Transaction) SplitView {
	return SplitView{Parent: Transaction(parent), Children: Transactions(children)}
}

func Setting(s core.Setting) SettingView {
	v := SettingView{Key: s.Key}
	if s.ID != 0 {
		id := s.ID
		v.ID = &id
	}
	if s.Value != nil {
		val := core.FormatAmount(*s.Value)
		v.Value = &val
	}
	return v
}

func Settings(settings []core.Setting) []SettingView {
	out := make([]SettingView, 0, len(settings))
	for _, s := range settings {
		out = append(out, Setting(s))
	}
	return out
}
