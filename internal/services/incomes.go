package services

import (
	"context"
	"fmt"

	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/store"
)

// IncomePatch is a partial update; nil fields are left untouched.
type IncomePatch struct {
	EventID     *int64             `json:"event_id"`
	Source      *core.IncomeSource `json:"source"`
	Amount      *core.Money        `json:"amount"`
	Date        *core.Date         `json:"date"`
	Description *string            `json:"description"`
}

// IncomeService manages income records.
type IncomeService struct {
	incomes store.IncomeRepository
	events  store.EventRepository
	latency Latency
	logger  *log.Logger
}

// NewIncomeService returns a service over incomes and events.
func NewIncomeService(incomes store.IncomeRepository, events store.EventRepository, latency Latency, logger *log.Logger) *IncomeService {
	return &IncomeService{incomes: incomes, events: events, latency: latency, logger: logger.WithComponent(log.ComponentIncome)}
}

// List returns every income record.
func (s *IncomeService) List(ctx context.Context) ([]core.Income, error) {
	if err := sleep(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return s.incomes.List(ctx)
}

// Get returns the income with id or store.ErrNotFound.
func (s *IncomeService) Get(ctx context.Context, id int64) (core.Income, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return core.Income{}, err
	}
	return s.incomes.Get(ctx, id)
}

// ListByEvent returns the incomes recorded against eventID.
func (s *IncomeService) ListByEvent(ctx context.Context, eventID int64) ([]core.Income, error) {
	if err := sleep(ctx, s.latency.Get); err != nil {
		return nil, err
	}
	all, err := s.incomes.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(in core.Income) bool { return in.EventID == eventID }), nil
}

// Create stores a new income. The event must exist.
func (s *IncomeService) Create(ctx context.Context, in core.Income) (core.Income, error) {
	if err := sleep(ctx, s.latency.Create); err != nil {
		return core.Income{}, err
	}
	in.ID = 0
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	if _, err := s.events.Get(ctx, in.EventID); err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	created, err := s.incomes.Insert(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	s.logger.InfoContext(ctx, "Income recorded",
		log.FieldIncomeID, created.ID, log.FieldEventID, created.EventID, log.FieldAmountCents, created.Amount.Cents)
	return created, nil
}

// Update applies patch. Moving an income to another event requires that
// event to exist; the stored record is untouched on any error.
func (s *IncomeService) Update(ctx context.Context, id int64, patch IncomePatch) (core.Income, error) {
	if err := sleep(ctx, s.latency.Update); err != nil {
		return core.Income{}, err
	}
	if patch.EventID != nil {
		if _, err := s.events.Get(ctx, *patch.EventID); err != nil {
			return core.Income{}, fmt.Errorf("update income: %w", err)
		}
	}
	return s.incomes.Update(ctx, id, func(in *core.Income) error {
		if patch.EventID != nil {
			in.EventID = *patch.EventID
		}
		if patch.Source != nil {
			in.Source = *patch.Source
		}
		if patch.Amount != nil {
			in.Amount = *patch.Amount
		}
		if patch.Date != nil {
			in.Date = *patch.Date
		}
		if patch.Description != nil {
			in.Description = *patch.Description
		}
		return in.Validate()
	})
}

// Delete removes the income.
func (s *IncomeService) Delete(ctx context.Context, id int64) error {
	if err := sleep(ctx, s.latency.Delete); err != nil {
		return err
	}
	return s.incomes.Remove(ctx, id)
}
