package backend

import (
	"context"
	"fmt"

	"tracker/internal/amqp"
	"tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// OpenStore opens the store selected by config without any service around it.
func OpenStore(config Config) (storage.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case CSV:
		return storage.NewCSVStore(config.CSVPath), nil
	case SQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateBackend opens the store, connects the optional AMQP publisher and
// loads the ledger.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	store, err := OpenStore(config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithInvestments(config.Investments),
		services.WithCacheTTL(config.CacheTTL),
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, services.WithPublisher(client))
		}
	}

	svc := services.NewLedgerService(store, opts...)
	if err := svc.Load(ctx); err != nil {
		svc.Close()
		return nil, err
	}

	f.logger.Info("Initialized ledger backend",
		log.FieldBackend, config.Type.String(),
		"revision", svc.Revision())

	return &Result{
		Ledger:  svc,
		Cleanup: svc.Close,
	}, nil
}
