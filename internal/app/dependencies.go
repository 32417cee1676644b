package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/messaging/rabbit"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
	"github.com/vladislavdragonenkov/sales/internal/validation"
	"github.com/vladislavdragonenkov/sales/internal/version"
)

// Dependencies содержит собранные зависимости приложения.
type Dependencies struct {
	SaleRepo   domain.SaleRepository
	StockRepo  domain.StockRepository
	Publisher  *rabbit.Publisher
	Store      *postgres.Store
	Sales      *sales.Service
	Catalog    *catalog.Service
	Health     *health.Handler
	Logger     *log.Entry
}

// NewDependencies собирает зависимости по конфигурации: PostgreSQL при
// заданном DSN, иначе in-memory; RabbitMQ-паблишер при заданном URL,
// иначе события не публикуются.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Logger: logger,
		Health: health.NewHandler(version.GetVersion()),
	}

	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Store = store
		deps.SaleRepo = postgres.NewSaleRepository(store)
		deps.StockRepo = postgres.NewStockRepository(store)
		deps.Health.RegisterChecker("postgres", health.NewPingChecker("postgres", store.Ping))
		logger.Info("postgres storage initialized")
	} else {
		deps.SaleRepo = memory.NewSaleRepository()
		deps.StockRepo = memory.NewStockRepository()
		logger.Warn("DATABASE_URL is not set, using in-memory storage")
	}

	var publisher domain.EventPublisher
	if cfg.RabbitURL != "" {
		deps.Publisher = rabbit.NewPublisher(cfg.RabbitURL,
			rabbit.WithLogger(logger.WithField("component", "rabbit-publisher")))
		publisher = deps.Publisher
		deps.Health.RegisterChecker("rabbitmq", health.NewPingChecker("rabbitmq", deps.Publisher.Ping))
		logger.Info("rabbitmq publisher initialized")
	} else {
		logger.Warn("RABBITMQ_URL is not set, domain events will not be published")
	}

	salesMetrics := metrics.NewSalesMetrics()

	deps.Sales = sales.NewService(
		deps.SaleRepo,
		deps.StockRepo,
		validation.NewSaleValidator(),
		publisher,
		salesMetrics,
		logger.WithField("component", "sales-service"),
	)
	deps.Catalog = catalog.NewService(deps.StockRepo, logger.WithField("component", "catalog-service"))

	return deps, nil
}

// Close освобождает внешние ресурсы приложения.
func (d *Dependencies) Close() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close rabbitmq publisher")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
