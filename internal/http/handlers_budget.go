package http

import (
	"net/http"

	"eventfin/internal/core"
	"eventfin/internal/services"
)

type createCategoryRequest struct {
	EventID  int64      `json:"event_id"`
	Name     string     `json:"name"`
	Assigned core.Money `json:"assigned"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) error {
	eventID, err := queryID(r, "event")
	if err != nil {
		return err
	}
	var cats []core.BudgetCategory
	if eventID > 0 {
		cats, err = s.deps.Budget.ListByEvent(r.Context(), eventID)
	} else {
		cats, err = s.deps.Budget.List(r.Context())
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newList(cats))
	return nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) error {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	created, err := s.deps.Budget.Create(r.Context(), core.BudgetCategory{
		EventID:  req.EventID,
		Name:     sanitizeInput(req.Name),
		Assigned: req.Assigned,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	cat, err := s.deps.Budget.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, cat)
	return nil
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var patch services.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	if patch.Name != nil {
		name := sanitizeInput(*patch.Name)
		patch.Name = &name
	}
	updated, err := s.deps.Budget.Update(r.Context(), id, patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.deps.Budget.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
