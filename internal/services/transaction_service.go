package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"categorizer/internal/amqp"
	"categorizer/internal/core"
	"categorizer/internal/docstore"
	"categorizer/internal/log"
	"categorizer/internal/storage"

	"github.com/shopspring/decimal"
)

// TransactionService applies the transaction rules: creation with tags,
// partial updates, cascading deletes, splits and duplicate detection.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	documents *docstore.Store
	publisher ChangePublisher
}

func NewTransactionService(storage *storage.SQLiteRepository, documents *docstore.Store, publisher ChangePublisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		documents: documents,
		publisher: publisher,
	}
}

// CreateTransactionInput holds the raw create fields. Date and Amount are
// parsed by Create.
type CreateTransactionInput struct {
	Date        string
	Amount      string
	Description *string
	Note        *string
	TagIDs      []int64
}

// OptionalString distinguishes an absent field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// TransactionPatch holds the fields present in a partial update.
type TransactionPatch struct {
	Date         *string
	Amount       *string
	Description  OptionalString
	Note         OptionalString
	ChildrenFlag *bool
	DocFlag      *bool
}

func (p TransactionPatch) empty() bool {
	return p.Date == nil && p.Amount == nil && !p.Description.Set && !p.Note.Set &&
		p.ChildrenFlag == nil && p.DocFlag == nil
}

// DuplicateCandidate is one entry of a bulk duplicate check. Malformed
// entries always report false.
type DuplicateCandidate struct {
	Date        string
	Amount      string
	Description *string
	Malformed   bool
}

// SplitResult is the parent after a split together with the new children.
type SplitResult struct {
	Parent   core.Transaction
	Children []core.Transaction
}

func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Amount) == "" {
		return core.Transaction{}, core.Validationf("Missing 'date' or 'amount' in request body.")
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateTextField("description", in.Description, core.MaxDescriptionLength); err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateTextField("note", in.Note, core.MaxNoteLength); err != nil {
		return core.Transaction{}, err
	}
	tagIDs := uniqueIDs(in.TagIDs)

	var created core.Transaction
	err = s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		if len(tagIDs) > 0 {
			tags, err := repo.GetTagsByIDs(ctx, tagIDs)
			if err != nil {
				return err
			}
			if missing := missingIDs(tagIDs, tags); len(missing) > 0 {
				return core.NotFoundf("One or more tags not found: %s", joinIDs(missing))
			}
		}

		tx, err := repo.CreateTransaction(ctx, core.Transaction{
			Date:        date,
			Amount:      amount,
			Description: in.Description,
			Note:        in.Note,
		})
		if err != nil {
			return err
		}
		for _, tagID := range tagIDs {
			if _, err := repo.AddTransactionTag(ctx, tx.ID, tagID); err != nil {
				return err
			}
		}

		created, err = repo.GetTransaction(ctx, tx.ID)
		return err
	})
	if err != nil {
		return core.Transaction{}, withPersistenceMessage(err, "Could not create transaction.")
	}

	slog.InfoContext(ctx, "Transaction created",
		log.FieldTransactionID, created.ID,
		"date", created.Date.String(),
		log.FieldAmount, core.FormatAmount(created.Amount),
		"tags", len(created.Tags))
	notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionCreated, created.ID)
	return created, nil
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx)
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// Update applies the fields present in patch. parent_id is never touched.
func (s *TransactionService) Update(ctx context.Context, id int64, patch TransactionPatch) (core.Transaction, error) {
	if patch.empty() {
		return core.Transaction{}, core.Validationf("No fields to update.")
	}

	var (
		date   *core.Date
		amount *decimal.Decimal
	)
	if patch.Date != nil {
		d, err := core.ParseDate(*patch.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		date = &d
	}
	if patch.Amount != nil {
		a, err := core.ParseAmount(*patch.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		amount = &a
	}
	if patch.Description.Set {
		if err := core.ValidateTextField("description", patch.Description.Value, core.MaxDescriptionLength); err != nil {
			return core.Transaction{}, err
		}
	}
	if patch.Note.Set {
		if err := core.ValidateTextField("note", patch.Note.Value, core.MaxNoteLength); err != nil {
			return core.Transaction{}, err
		}
	}

	var updated core.Transaction
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		tx, err := repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if date != nil {
			tx.Date = *date
		}
		if amount != nil {
			tx.Amount = *amount
		}
		if patch.Description.Set {
			tx.Description = patch.Description.Value
		}
		if patch.Note.Set {
			tx.Note = patch.Note.Value
		}
		if patch.ChildrenFlag != nil {
			tx.ChildrenFlag = *patch.ChildrenFlag
		}
		if patch.DocFlag != nil {
			tx.DocFlag = *patch.DocFlag
		}
		if err := repo.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		updated, err = repo.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, withPersistenceMessage(err, "Could not update transaction.")
	}

	notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionUpdated, id)
	return updated, nil
}

// Delete removes the transaction, its children and every attached document.
// Stored files are removed after the commit; failures there are only logged.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	var (
		docs     []core.Document
		children int64
	)
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		tx, err := repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		docs, err = repo.ListDocumentTree(ctx, id)
		if err != nil {
			return err
		}
		if children, err = repo.CountChildren(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		if tx.ParentID != nil {
			// The parent keeps children_flag only while other children remain.
			if err := repo.RefreshChildrenFlag(ctx, *tx.ParentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return withPersistenceMessage(err, "Could not delete transaction.")
	}

	s.removeFiles(ctx, docs)
	slog.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id, log.FieldChildCount, children, "documents", len(docs))
	notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionDeleted, id)
	return nil
}

func (s *TransactionService) removeFiles(ctx context.Context, docs []core.Document) {
	if s.documents == nil {
		return
	}
	for _, d := range docs {
		if err := s.documents.Remove(d.StoredFilename); err != nil {
			slog.WarnContext(ctx, "Failed to remove stored document",
				log.FieldDocumentID, d.ID,
				"stored_filename", d.StoredFilename,
				log.FieldError, err)
		}
	}
}

// Split turns the transaction into a parent with n zero-amount children.
// The parent's tags move to every child.
func (s *TransactionService) Split(ctx context.Context, id int64, n int) (SplitResult, error) {
	if n < 1 || n > core.MaxSplitChildren {
		return SplitResult{}, core.Validationf("'num_children' must be an integer between 1 and %d.", core.MaxSplitChildren)
	}

	var result SplitResult
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		parent, err := repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if parent.IsChild() {
			return core.Validationf("Cannot split a transaction that is already a child.")
		}

		parent.ChildrenFlag = true
		if err := repo.UpdateTransaction(ctx, parent); err != nil {
			return err
		}

		childDesc := parent.ChildDescription()
		tagIDs := parent.TagIDs()
		childIDs := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			child, err := repo.CreateTransaction(ctx, core.Transaction{
				Date:        parent.Date,
				Description: &childDesc,
				Note:        parent.Note,
				ParentID:    &parent.ID,
			})
			if err != nil {
				return err
			}
			for _, tagID := range tagIDs {
				if _, err := repo.AddTransactionTag(ctx, child.ID, tagID); err != nil {
					return err
				}
			}
			childIDs = append(childIDs, child.ID)
		}

		if err := repo.ClearTransactionTags(ctx, parent.ID); err != nil {
			return err
		}

		if result.Parent, err = repo.GetTransaction(ctx, parent.ID); err != nil {
			return err
		}
		result.Children = make([]core.Transaction, 0, n)
		for _, childID := range childIDs {
			child, err := repo.GetTransaction(ctx, childID)
			if err != nil {
				return err
			}
			result.Children = append(result.Children, child)
		}
		return nil
	})
	if err != nil {
		return SplitResult{}, withPersistenceMessage(err, "Could not split transaction.")
	}

	slog.InfoContext(ctx, "Transaction split", log.FieldTransactionID, id, log.FieldChildCount, n)
	notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionSplit, id)
	return result, nil
}

// CheckDuplicates reports, per candidate, whether a transaction with the same
// date, amount and description already exists.
func (s *TransactionService) CheckDuplicates(ctx context.Context, candidates []DuplicateCandidate) ([]bool, error) {
	out := make([]bool, len(candidates))
	for i, c := range candidates {
		if c.Malformed {
			continue
		}
		date, err := core.ParseDate(c.Date)
		if err != nil {
			continue
		}
		amount, err := core.ParseAmount(c.Amount)
		if err != nil {
			continue
		}
		exists, err := s.storage.TransactionExists(ctx, date, amount, c.Description)
		if err != nil {
			slog.WarnContext(ctx, "Duplicate lookup failed", "index", i, log.FieldError, err)
			continue
		}
		out[i] = exists
	}
	return out, nil
}

// AddTag associates a tag with a transaction. Adding a tag that is already
// present succeeds without changes.
func (s *TransactionService) AddTag(ctx context.Context, transactionID, tagID int64) (core.Transaction, error) {
	var (
		tx    core.Transaction
		added bool
	)
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		if _, err := repo.GetTransaction(ctx, transactionID); err != nil {
			return err
		}
		if _, err := repo.GetTag(ctx, tagID); err != nil {
			return err
		}
		var err error
		if added, err = repo.AddTransactionTag(ctx, transactionID, tagID); err != nil {
			return err
		}
		tx, err = repo.GetTransaction(ctx, transactionID)
		return err
	})
	if err != nil {
		return core.Transaction{}, withPersistenceMessage(err, "Could not add tag to transaction.")
	}
	if added {
		notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionTagged, transactionID)
	}
	return tx, nil
}

// RemoveTag detaches a tag. It fails with not-found when the tag is not attached.
func (s *TransactionService) RemoveTag(ctx context.Context, transactionID, tagID int64) (core.Transaction, error) {
	var tx core.Transaction
	err := s.storage.WithinTx(ctx, func(repo *storage.SQLiteRepository) error {
		if _, err := repo.GetTransaction(ctx, transactionID); err != nil {
			return err
		}
		removed, err := repo.RemoveTransactionTag(ctx, transactionID, tagID)
		if err != nil {
			return err
		}
		if !removed {
			return core.NotFoundf("Tag with id %d is not associated with transaction %d.", tagID, transactionID)
		}
		tx, err = repo.GetTransaction(ctx, transactionID)
		return err
	})
	if err != nil {
		return core.Transaction{}, withPersistenceMessage(err, "Could not remove tag from transaction.")
	}
	notify(ctx, s.publisher, amqp.EntityTransaction, amqp.ActionUntagged, transactionID)
	return tx, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(want []int64, found []core.Tag) []int64 {
	have := make(map[int64]bool, len(found))
	for _, t := range found {
		have[t.ID] = true
	}
	var missing []int64
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
