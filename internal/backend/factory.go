package backend

import (
	"context"
	"errors"
	"fmt"

	"eventfin/internal/amqp"
	"eventfin/internal/log"
	"eventfin/internal/services"
	"eventfin/internal/storage"
	"eventfin/internal/store"
	"eventfin/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	var publisher services.DecisionPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without decision publishing",
				log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.AMQP = client
			publisher = client
			storeCleanup := result.Cleanup
			result.Cleanup = func() error {
				return errors.Join(client.Close(), storeCleanup())
			}
		}
	}

	result.Services = f.buildServices(result.Stores, publisher, config.SimulatedLatency)
	return result, nil
}

func (f *DefaultFactory) buildServices(stores store.Stores, publisher services.DecisionPublisher, simulated bool) Services {
	latency := services.Latency{}
	if simulated {
		latency = services.DefaultLatency()
	}
	logger := f.logger.WithComponent(log.ComponentApp)

	events := services.NewEventService(stores.Events, latency, logger)
	budget := services.NewBudgetService(stores.Categories, stores.Events, latency, logger)
	expenses := services.NewExpenseService(stores.Expenses, stores.Events, budget, publisher, latency, logger)
	incomes := services.NewIncomeService(stores.Incomes, stores.Events, latency, logger)
	return Services{
		Events:     events,
		Budget:     budget,
		Expenses:   expenses,
		Incomes:    incomes,
		Dashboard:  services.NewDashboardService(events, budget, expenses, incomes, logger),
		Reconciler: services.NewReconciler(expenses, budget, logger),
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	stores := repo.Stores()
	if config.SeedFixtures {
		seeded, err := f.seedSQLite(ctx, stores, config.FixturesPath)
		if err != nil {
			repo.Close()
			return nil, err
		}
		if seeded {
			f.logger.Info("Seeded empty database with fixtures", "db_path", config.SQLiteDBPath)
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Type:    SQLiteBackend,
		Stores:  stores,
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	mem := memory.New()
	if config.SeedFixtures {
		fixtures, err := memory.LoadFixtures(config.FixturesPath)
		if err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		mem.Load(fixtures)
	}

	f.logger.Info("Initialized memory backend", "seeded", config.SeedFixtures)

	return &BackendResult{
		Type:    MemoryBackend,
		Stores:  mem.Stores(),
		Ping:    func(context.Context) error { return nil },
		Cleanup: func() error { return nil },
	}, nil
}

// seedSQLite inserts the fixtures into an empty database. Ids are assigned by
// the database, so references are remapped as records go in.
func (f *DefaultFactory) seedSQLite(ctx context.Context, stores store.Stores, path string) (bool, error) {
	existing, err := stores.Events.List(ctx)
	if err != nil {
		return false, fmt.Errorf("check existing events: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	fixtures, err := memory.LoadFixtures(path)
	if err != nil {
		return false, fmt.Errorf("load fixtures: %w", err)
	}

	eventIDs := make(map[int64]int64, len(fixtures.Events))
	for _, ev := range fixtures.Events {
		created, err := stores.Events.Insert(ctx, ev)
		if err != nil {
			return false, fmt.Errorf("seed event %d: %w", ev.ID, err)
		}
		eventIDs[ev.ID] = created.ID
	}

	categoryIDs := make(map[int64]int64, len(fixtures.Categories))
	for _, c := range fixtures.Categories {
		c.EventID = eventIDs[c.EventID]
		created, err := stores.Categories.Insert(ctx, c)
		if err != nil {
			return false, fmt.Errorf("seed category %d: %w", c.ID, err)
		}
		categoryIDs[c.ID] = created.ID
	}

	for _, e := range fixtures.Expenses {
		e.EventID = eventIDs[e.EventID]
		e.CategoryID = categoryIDs[e.CategoryID]
		if _, err := stores.Expenses.Insert(ctx, e); err != nil {
			return false, fmt.Errorf("seed expense %d: %w", e.ID, err)
		}
	}

	for _, in := range fixtures.Incomes {
		in.EventID = eventIDs[in.EventID]
		if _, err := stores.Incomes.Insert(ctx, in); err != nil {
			return false, fmt.Errorf("seed income %d: %w", in.ID, err)
		}
	}
	return true, nil
}
