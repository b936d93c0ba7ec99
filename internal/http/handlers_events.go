package http

import (
	"net/http"

	"eventfin/internal/core"
	"eventfin/internal/services"
)

type createEventRequest struct {
	Name        string     `json:"name"`
	Date        core.Date  `json:"date"`
	Type        string     `json:"type"`
	Venue       string     `json:"venue"`
	TotalBudget core.Money `json:"total_budget"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) error {
	events, err := s.deps.Events.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newList(events))
	return nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) error {
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	created, err := s.deps.Events.Create(r.Context(), core.Event{
		Name:        sanitizeInput(req.Name),
		Date:        req.Date,
		Type:        sanitizeInput(req.Type),
		Venue:       sanitizeInput(req.Venue),
		TotalBudget: req.TotalBudget,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	ev, err := s.deps.Events.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, ev)
	return nil
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var patch services.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	if patch.Name != nil {
		name := sanitizeInput(*patch.Name)
		patch.Name = &name
	}
	updated, err := s.deps.Events.Update(r.Context(), id, patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.deps.Events.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleEventBudget(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	card, err := s.deps.Dashboard.EventBudget(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, card)
	return nil
}

func (s *Server) handleEventCategories(w http.ResponseWriter, r *http.Request) error {
	id, err := s.existingEvent(r)
	if err != nil {
		return err
	}
	cats, err := s.deps.Budget.ListByEvent(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newList(cats))
	return nil
}

func (s *Server) handleEventExpenses(w http.ResponseWriter, r *http.Request) error {
	id, err := s.existingEvent(r)
	if err != nil {
		return err
	}
	expenses, err := s.deps.Expenses.ListByEvent(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newList(expenses))
	return nil
}

func (s *Server) handleEventIncomes(w http.ResponseWriter, r *http.Request) error {
	id, err := s.existingEvent(r)
	if err != nil {
		return err
	}
	incomes, err := s.deps.Incomes.ListByEvent(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newList(incomes))
	return nil
}

// existingEvent resolves {id} and fails with not found for unknown events,
// so by-event lists do not return an empty list for a typo.
func (s *Server) existingEvent(r *http.Request) (int64, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, err
	}
	if _, err := s.deps.Events.Get(r.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}
