package http

import (
	"net/http"

	"eventfin/internal/core"
	"eventfin/internal/services"
)

type createIncomeRequest struct {
	EventID     int64             `json:"event_id"`
	Source      core.IncomeSource `json:"source"`
	Amount      core.Money        `json:"amount"`
	Date        core.Date         `json:"date"`
	Description string            `json:"description"`
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) error {
	f := services.IncomeFilter{Query: queryText(r, "q")}
	var err error
	if f.EventID, err = queryID(r, "event"); err != nil {
		return err
	}
	if raw := queryText(r, "source"); raw != "" {
		f.Source = core.IncomeSource(raw)
		if !f.Source.Valid() {
			return core.Invalid("source", core.ErrInvalidIncomeSource)
		}
	}
	table, err := s.deps.Dashboard.Incomes(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, table)
	return nil
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) error {
	var req createIncomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	created, err := s.deps.Incomes.Create(r.Context(), core.Income{
		EventID:     req.EventID,
		Source:      req.Source,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	in, err := s.deps.Incomes.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, in)
	return nil
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var patch services.IncomePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	if patch.Description != nil {
		desc := sanitizeInput(*patch.Description)
		patch.Description = &desc
	}
	updated, err := s.deps.Incomes.Update(r.Context(), id, patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.deps.Incomes.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
