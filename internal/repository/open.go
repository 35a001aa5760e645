package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
)

// Stores agrupa los repositorios del driver elegido por STORE_DRIVER.
type Stores struct {
	Driver   string
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	close    func(ctx context.Context) error
}

// Close libera la conexión subyacente.
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open conecta el almacén configurado y asegura esquema o índices.
func Open(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &Stores{
			Driver:   cfg.StoreDriver,
			Users:    NewPgUserRepository(pool),
			Products: NewPgProductRepository(pool),
			Orders:   NewPgOrderRepository(pool),
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StoreDriverMongo:
		client, err := db.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		database := client.Database(cfg.MongoDB)
		if err := db.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return &Stores{
			Driver:   cfg.StoreDriver,
			Users:    NewMongoUserRepository(database),
			Products: NewMongoProductRepository(database),
			Orders:   NewMongoOrderRepository(logger, database),
			close:    client.Disconnect,
		}, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		mem := NewMemoryStore()
		return &Stores{
			Driver:   cfg.StoreDriver,
			Users:    mem.Users(),
			Products: mem.Products(),
			Orders:   mem.Orders(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
