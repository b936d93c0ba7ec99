// Package backend assembles a data backend and the services running on it.
package backend

import (
	"context"

	"eventfin/internal/amqp"
	"eventfin/internal/services"
	"eventfin/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Services is the service graph built on top of one backend.
type Services struct {
	Events     *services.EventService
	Budget     *services.BudgetService
	Expenses   *services.ExpenseService
	Incomes    *services.IncomeService
	Dashboard  *services.DashboardService
	Reconciler *services.Reconciler
}

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Type     BackendType
	Stores   store.Stores
	Services Services
	// AMQP is nil when decisions are not published.
	AMQP    *amqp.Client
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Seeding
	FixturesPath string
	SeedFixtures bool

	SimulatedLatency bool

	// Decision publishing, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
