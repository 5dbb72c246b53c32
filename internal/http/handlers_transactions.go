package http

import (
	"net/http"

	"categorizer/internal/core"
	"categorizer/internal/log"
	"categorizer/internal/services"
	"categorizer/internal/views"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	in, err := createInput(body)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	tx, err := s.svc.Transactions.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.structured.LogTransactionChange(r.Context(), log.OpCreate, tx.ID, core.FormatAmount(tx.Amount), tx.ParentID)
	NewJSONResponse().Created().Body(views.Transaction(tx)).Write(w)
}

func createInput(body fields) (services.CreateTransactionInput, error) {
	var in services.CreateTransactionInput

	date, err := body.date("date")
	if err != nil {
		return in, err
	}
	amount, err := body.amount("amount")
	if err != nil {
		return in, err
	}
	if date == nil || amount == nil {
		return in, core.Validationf("Missing 'date' or 'amount' in request body.")
	}
	in.Date, in.Amount = *date, *amount

	if in.Description, err = body.text("description"); err != nil {
		return in, err
	}
	if in.Note, err = body.text("note"); err != nil {
		return in, err
	}
	if in.TagIDs, err = body.idList("tag_ids"); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Transactions.List(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(views.Transactions(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	tx, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(views.Transaction(tx)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	patch, err := updatePatch(body)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	tx, err := s.svc.Transactions.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.structured.LogTransactionChange(r.Context(), log.OpUpdate, tx.ID, core.FormatAmount(tx.Amount), tx.ParentID)
	NewJSONResponse().Body(views.Transaction(tx)).Write(w)
}

// updatePatch reads the updatable fields; parent_id and unknown keys are ignored.
func updatePatch(body fields) (services.TransactionPatch, error) {
	var (
		patch services.TransactionPatch
		err   error
	)
	if patch.Date, err = body.date("date"); err != nil {
		return patch, err
	}
	if patch.Amount, err = body.amount("amount"); err != nil {
		return patch, err
	}
	if patch.Description, err = body.optionalText("description"); err != nil {
		return patch, err
	}
	if patch.Note, err = body.optionalText("note"); err != nil {
		return patch, err
	}
	if patch.ChildrenFlag, err = body.boolean("children_flag"); err != nil {
		return patch, err
	}
	if patch.DocFlag, err = body.boolean("doc_flag"); err != nil {
		return patch, err
	}
	return patch, nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Transaction deleted successfully").Write(w)
}

func (s *Server) handleSplitTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	n, err := core.ParseChildCount(body["num_children"])
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}

	result, err := s.svc.Transactions.Split(r.Context(), id, n)
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	for _, child := range result.Children {
		s.structured.LogTransactionChange(r.Context(), log.OpSplit, child.ID, core.FormatAmount(child.Amount), child.ParentID)
	}
	NewJSONResponse().Created().Body(views.Split(result.Parent, result.Children)).Write(w)
}

func (s *Server) handleCheckDuplicates(w http.ResponseWriter, r *http.Request) {
	body, err := decodeJSON(w, r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	candidates, err := duplicateCandidates(body)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	results, err := s.svc.Transactions.CheckDuplicates(r.Context(), candidates)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(results).Write(w)
}

func (s *Server) handleAddTransactionTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpTag, err)
		return
	}
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpTag, err)
		return
	}
	tagID, err := body.id("tag_id")
	if err == nil && tagID == nil {
		err = core.Validationf("Missing 'tag_id' in request body.")
	}
	if err != nil {
		s.writeError(w, r, log.OpTag, err)
		return
	}

	tx, err := s.svc.Transactions.AddTag(r.Context(), id, *tagID)
	if err != nil {
		s.writeError(w, r, log.OpTag, err)
		return
	}
	NewJSONResponse().Body(views.Transaction(tx)).Write(w)
}

func (s *Server) handleRemoveTransactionTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, log.OpUntag, err)
		return
	}
	tagID, err := pathID(r, "tagId")
	if err != nil {
		s.writeError(w, r, log.OpUntag, err)
		return
	}

	tx, err := s.svc.Transactions.RemoveTag(r.Context(), id, tagID)
	if err != nil {
		s.writeError(w, r, log.OpUntag, err)
		return
	}
	NewJSONResponse().Body(views.Transaction(tx)).Write(w)
}
