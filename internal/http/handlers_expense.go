package http

import (
	"context"
	"net/http"
	"strings"

	"eventfin/internal/attachments"
	"eventfin/internal/core"
	"eventfin/internal/services"
)

type createExpenseRequest struct {
	EventID       int64            `json:"event_id"`
	CategoryID    int64            `json:"category_id"`
	Concept       string           `json:"concept"`
	Provider      string           `json:"provider"`
	Amount        core.Money       `json:"amount"`
	Date          core.Date        `json:"date"`
	Type          core.ExpenseType `json:"type"`
	OCR           *core.OCRData    `json:"ocr,omitempty"`
	AttachmentRef string           `json:"attachment_ref,omitempty"`
}

// expenseFilter reads q, status, event, sort and dir.
func expenseFilter(r *http.Request) (services.ExpenseFilter, error) {
	f := services.ExpenseFilter{Query: queryText(r, "q")}
	if raw := queryText(r, "status"); raw != "" {
		f.Status = core.ExpenseStatus(raw)
		if !f.Status.Valid() {
			return f, core.Invalid("status", core.ErrInvalidStatus)
		}
	}
	var err error
	if f.EventID, err = queryID(r, "event"); err != nil {
		return f, err
	}
	if f.Sort, err = services.ParseExpenseSort(queryText(r, "sort")); err != nil {
		return f, err
	}
	switch strings.ToLower(queryText(r, "dir")) {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, badRequest("dir must be asc or desc")
	}
	return f, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) error {
	f, err := expenseFilter(r)
	if err != nil {
		return err
	}
	table, err := s.deps.Dashboard.Expenses(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, table)
	return nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) error {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.AttachmentRef != "" && !attachments.ValidRef(req.AttachmentRef) {
		return core.Invalid("attachment_ref", attachments.ErrInvalidRef)
	}
	created, err := s.deps.Expenses.Create(r.Context(), core.Expense{
		EventID:       req.EventID,
		CategoryID:    req.CategoryID,
		Concept:       sanitizeInput(req.Concept),
		Provider:      sanitizeInput(req.Provider),
		Amount:        req.Amount,
		Date:          req.Date,
		Type:          req.Type,
		OCR:           req.OCR,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	e, err := s.deps.Expenses.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, e)
	return nil
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.deps.Expenses.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleApproveExpense(w http.ResponseWriter, r *http.Request) error {
	return s.decide(w, r, s.deps.Expenses.Approve)
}

func (s *Server) handleRejectExpense(w http.ResponseWriter, r *http.Request) error {
	return s.decide(w, r, s.deps.Expenses.Reject)
}

// decisionFunc is Approve or Reject.
type decisionFunc func(ctx context.Context, id int64, comment string) (core.Expense, error)

func (s *Server) decide(w http.ResponseWriter, r *http.Request, fn decisionFunc) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		return err
	}
	comment := sanitizeInput(req.Comment)
	if len(comment) > maxCommentLength {
		return core.Invalid("comment", core.ErrTextTooLong)
	}
	e, err := fn(r.Context(), id, comment)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, e)
	return nil
}

// maxCommentLength bounds approval comments.
const maxCommentLength = 500

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) error {
	eventID, err := queryID(r, "event")
	if err != nil {
		return err
	}
	queue, err := s.deps.Dashboard.Approvals(r.Context(), services.ApprovalFilter{
		Query:   queryText(r, "q"),
		EventID: eventID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, queue)
	return nil
}
