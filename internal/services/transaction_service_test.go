package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"categorizer/internal/core"
	"categorizer/internal/docstore"
	"categorizer/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedChange struct {
	entity, action string
	id             int64
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []publishedChange
}

func (p *recordingPublisher) PublishChange(_ context.Context, entity, action string, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, publishedChange{entity, action, id})
	return nil
}

type fixture struct {
	repo         *storage.SQLiteRepository
	files        *docstore.Store
	publisher    *recordingPublisher
	transactions *TransactionService
	taxonomy     *TaxonomyService
	settings     *SettingsService
	documents    *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	files, err := docstore.New(filepath.Join(dir, "uploads"), 1<<20)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &fixture{
		repo:         repo,
		files:        files,
		publisher:    pub,
		transactions: NewTransactionService(repo, files, pub),
		taxonomy:     NewTaxonomyService(repo, pub),
		settings:     NewSettingsService(repo, pub),
		documents:    NewDocumentService(repo, files, pub),
	}
}

func strPtr(s string) *string { return &s }

func (f *fixture) tag(t *testing.T, group, name string) core.Tag {
	t.Helper()
	ctx := context.Background()
	groups, err := f.taxonomy.ListGroups(ctx)
	require.NoError(t, err)
	var groupID int64
	for _, g := range groups {
		if g.Name == group {
			groupID = g.ID
		}
	}
	if groupID == 0 {
		g, err := f.taxonomy.CreateGroup(ctx, group)
		require.NoError(t, err)
		groupID = g.ID
	}
	tag, err := f.taxonomy.CreateTag(ctx, CreateTagInput{Name: name, TagGroupID: &groupID})
	require.NoError(t, err)
	return tag
}

func (f *fixture) create(t *testing.T, amount string, tagIDs ...int64) core.Transaction {
	t.Helper()
	tx, err := f.transactions.Create(context.Background(), CreateTransactionInput{
		Date:        "2024-03-15",
		Amount:      amount,
		Description: strPtr("Groceries"),
		Note:        strPtr("weekly"),
		TagIDs:      tagIDs,
	})
	require.NoError(t, err)
	return tx
}

func tagIDSet(tags []core.Tag) map[int64]bool {
	set := make(map[int64]bool, len(tags))
	for _, t := range tags {
		set[t.ID] = true
	}
	return set
}

func TestCreateNormalizesInput(t *testing.T) {
	f := newFixture(t)

	tx := f.create(t, "12,5")
	assert.NotZero(t, tx.ID)
	assert.Equal(t, "2024-03-15", tx.Date.String())
	assert.Equal(t, "12.50", core.FormatAmount(tx.Amount))
	assert.False(t, tx.ChildrenFlag)
	assert.False(t, tx.DocFlag)

	require.Len(t, f.publisher.changes, 1)
	assert.Equal(t, publishedChange{"transaction", "created", tx.ID}, f.publisher.changes[0])
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []CreateTransactionInput{
		{Amount: "1"},
		{Date: "2024-01-01"},
		{Date: "2024-13-01", Amount: "1"},
		{Date: "2024-01-01", Amount: "1.2.3"},
		{Date: "2024-01-01", Amount: "1", Description: strPtr(strings.Repeat("x", 201))},
	}
	for _, in := range cases {
		_, err := f.transactions.Create(ctx, in)
		assert.ErrorIs(t, err, core.ErrValidation, "input %+v", in)
	}

	list, err := f.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateWithTagsRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.tag(t, "Food", "Bread")
	b := f.tag(t, "Food", "Milk")
	c := f.tag(t, "Home", "Rent")

	tx := f.create(t, "30", a.ID, b.ID, c.ID)

	got, err := f.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 3)
	assert.Equal(t, map[int64]bool{a.ID: true, b.ID: true, c.ID: true}, tagIDSet(got.Tags))
	for _, tag := range got.Tags {
		require.NotNil(t, tag.Group)
	}
}

func TestCreateWithMissingTagsWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.tag(t, "Food", "Bread")
	_, err := f.transactions.Create(ctx, CreateTransactionInput{
		Date:   "2024-03-15",
		Amount: "1",
		TagIDs: []int64{a.ID, 998, 999},
	})
	require.ErrorIs(t, err, core.ErrNotFound)
	msg, _ := core.PublicMessage(err)
	assert.Contains(t, msg, "998, 999")

	list, err := f.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdatePartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, "10")

	updated, err := f.transactions.Update(ctx, tx.ID, TransactionPatch{
		Amount:      strPtr("-4,25"),
		Description: OptionalString{Set: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "-4.25", core.FormatAmount(updated.Amount))
	assert.Nil(t, updated.Description)
	require.NotNil(t, updated.Note)
	assert.Equal(t, "weekly", *updated.Note)
	assert.Equal(t, "2024-03-15", updated.Date.String())

	flag := true
	updated, err = f.transactions.Update(ctx, tx.ID, TransactionPatch{DocFlag: &flag})
	require.NoError(t, err)
	assert.True(t, updated.DocFlag)

	_, err = f.transactions.Update(ctx, tx.ID, TransactionPatch{})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.transactions.Update(ctx, tx.ID, TransactionPatch{Date: strPtr("15/03/2024")})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.transactions.Update(ctx, 12345, TransactionPatch{Amount: strPtr("1")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.tag(t, "Food", "Bread")
	b := f.tag(t, "Food", "Milk")
	parent := f.create(t, "50", a.ID, b.ID)

	result, err := f.transactions.Split(ctx, parent.ID, 3)
	require.NoError(t, err)

	assert.True(t, result.Parent.ChildrenFlag)
	assert.Empty(t, result.Parent.Tags)
	assert.Equal(t, "50.00", core.FormatAmount(result.Parent.Amount))
	require.Len(t, result.Children, 3)
	for _, child := range result.Children {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)
		assert.Equal(t, "0.00", core.FormatAmount(child.Amount))
		assert.Equal(t, parent.Date.String(), child.Date.String())
		require.NotNil(t, child.Description)
		assert.Equal(t, "Sub-item: Groceries", *child.Description)
		require.NotNil(t, child.Note)
		assert.Equal(t, "weekly", *child.Note)
		assert.False(t, child.ChildrenFlag)
		assert.False(t, child.DocFlag)
		assert.Equal(t, map[int64]bool{a.ID: true, b.ID: true}, tagIDSet(child.Tags))
	}

	_, err = f.transactions.Split(ctx, result.Children[0].ID, 2)
	assert.ErrorIs(t, err, core.ErrValidation, "children cannot be split")

	for _, n := range []int{0, 21, -1} {
		_, err := f.transactions.Split(ctx, parent.ID, n)
		assert.ErrorIs(t, err, core.ErrValidation, "n=%d", n)
	}

	_, err = f.transactions.Split(ctx, 4242, 2)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSplitWithoutDescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.transactions.Create(ctx, CreateTransactionInput{Date: "2024-01-02", Amount: "9"})
	require.NoError(t, err)

	result, err := f.transactions.Split(ctx, parent.ID, 1)
	require.NoError(t, err)
	require.Len(t, result.Children, 1)
	require.NotNil(t, result.Children[0].Description)
	assert.Equal(t, "Sub-item: ", *result.Children[0].Description)
	assert.Nil(t, result.Children[0].Note)
}

func TestDeleteChildResetsParentFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.create(t, "20")
	result, err := f.transactions.Split(ctx, parent.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.transactions.Delete(ctx, result.Children[0].ID))
	got, err := f.transactions.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, got.ChildrenFlag, "one child left")

	require.NoError(t, f.transactions.Delete(ctx, result.Children[1].ID))
	got, err = f.transactions.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, got.ChildrenFlag, "last child removed")
}

func TestDeleteParentCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag := f.tag(t, "Food", "Bread")
	parent := f.create(t, "20", tag.ID)
	result, err := f.transactions.Split(ctx, parent.ID, 2)
	require.NoError(t, err)

	childDoc, err := f.documents.Upload(ctx, result.Children[0].ID, "receipt.txt", strings.NewReader("paid"))
	require.NoError(t, err)
	parentDoc, err := f.documents.Upload(ctx, parent.ID, "invoice.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	require.NoError(t, f.transactions.Delete(ctx, parent.ID))

	list, err := f.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	docs, err := f.repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	for _, d := range []core.Document{childDoc, parentDoc} {
		_, err := f.files.Open(d.StoredFilename)
		assert.Error(t, err, "stored file %s should be removed", d.StoredFilename)
	}

	_, err = f.taxonomy.GetTag(ctx, tag.ID)
	assert.NoError(t, err, "tags survive transaction deletion")

	assert.ErrorIs(t, f.transactions.Delete(ctx, parent.ID), core.ErrNotFound)
}

func TestCheckDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "12.50")
	_, err := f.transactions.Create(ctx, CreateTransactionInput{Date: "2024-03-16", Amount: "3"})
	require.NoError(t, err)

	got, err := f.transactions.CheckDuplicates(ctx, []DuplicateCandidate{
		{Date: "2024-03-15", Amount: "12,5", Description: strPtr("Groceries")},
		{Date: "2024-03-15", Amount: "12.50", Description: strPtr("Other")},
		{Date: "not a date", Amount: "1"},
		{Malformed: true},
		{Date: "2024-03-16", Amount: "3.00"},
		{Date: "2024-03-16", Amount: "abc"},
		{Date: "2024-03-16", Amount: "3", Description: strPtr("")},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false, true, false, false}, got)
}

func TestCheckDuplicatesStorageFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Close())

	got, err := f.transactions.CheckDuplicates(ctx, []DuplicateCandidate{
		{Date: "2024-03-15", Amount: "12.50"},
		{Date: "2024-03-16", Amount: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, got)
}

func TestAddAndRemoveTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag := f.tag(t, "Food", "Bread")
	tx := f.create(t, "5")

	got, err := f.transactions.AddTag(ctx, tx.ID, tag.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, 1)

	got, err = f.transactions.AddTag(ctx, tx.ID, tag.ID)
	require.NoError(t, err, "adding twice is a no-op")
	assert.Len(t, got.Tags, 1)

	_, err = f.transactions.AddTag(ctx, tx.ID, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.transactions.AddTag(ctx, 999, tag.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err = f.transactions.RemoveTag(ctx, tx.ID, tag.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	_, err = f.transactions.RemoveTag(ctx, tx.ID, tag.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
