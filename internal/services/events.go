package services

import (
	"context"
	"fmt"

	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/store"
)

// EventPatch is a partial update; nil fields are left untouched.
type EventPatch struct {
	Name        *string           `json:"name"`
	Date        *core.Date        `json:"date"`
	Type        *string           `json:"type"`
	Venue       *string           `json:"venue"`
	TotalBudget *core.Money       `json:"total_budget"`
	Status      *core.EventStatus `json:"status"`
}

func (p EventPatch) apply(e *core.Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	if p.TotalBudget != nil {
		e.TotalBudget = *p.TotalBudget
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
}

// EventService manages events. Every call first waits out the configured
// latency for its operation kind.
type EventService struct {
	events  store.EventRepository
	latency Latency
	logger  *log.Logger
}

// NewEventService returns a service backed by events.
func NewEventService(events store.EventRepository, latency Latency, logger *log.Logger) *EventService {
	return &EventService{events: events, latency: latency, logger: logger.WithComponent(log.ComponentEvents)}
}

// List returns every event in id order.
func (s *EventService) List(ctx context.Context) ([]core.Event, error) {
	if err := sleep(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return s.events.List(ctx)
}

// Get returns the event with id or store.ErrNotFound.
func (s *EventService) Get(ctx context.Context, id int64) (core.Event, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return core.Event{}, err
	}
	return s.events.Get(ctx, id)
}

// Create stores a new event. New events always start planned.
func (s *EventService) Create(ctx context.Context, e core.Event) (core.Event, error) {
	if err := sleep(ctx, s.latency.Create); err != nil {
		return core.Event{}, err
	}
	e.ID = 0
	e.Status = core.EventPlanned
	if err := e.Validate(); err != nil {
		return core.Event{}, err
	}
	created, err := s.events.Insert(ctx, e)
	if err != nil {
		return core.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.logger.InfoContext(ctx, "Event created", log.FieldEventID, created.ID, "name", created.Name)
	return created, nil
}

// Update applies patch and revalidates the result. An invalid patch leaves
// the stored event unchanged.
func (s *EventService) Update(ctx context.Context, id int64, patch EventPatch) (core.Event, error) {
	if err := sleep(ctx, s.latency.Update); err != nil {
		return core.Event{}, err
	}
	return s.events.Update(ctx, id, func(e *core.Event) error {
		patch.apply(e)
		return e.Validate()
	})
}

// Delete removes the event only; its categories and records are kept.
func (s *EventService) Delete(ctx context.Context, id int64) error {
	if err := sleep(ctx, s.latency.Delete); err != nil {
		return err
	}
	if err := s.events.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Event deleted", log.FieldEventID, id)
	return nil
}
