package worker

import (
	"context"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Refreshable is the part of the catalog the refresher drives
type Refreshable interface {
	NeedsRefresh() bool
	RefreshRequests() <-chan struct{}
	RefreshFromRemote(ctx context.Context) (bool, error)
}

// CatalogRefresher re-fetches the catalog from the remote store when it goes
// stale or when the catalog asks for it
type CatalogRefresher struct {
	catalog  Refreshable
	interval time.Duration
	logger   *zap.Logger
}

// NewCatalogRefresher creates a new refresher ticking every interval
func NewCatalogRefresher(catalog Refreshable, interval time.Duration) *CatalogRefresher {
	return &CatalogRefresher{
		catalog:  catalog,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Run blocks until ctx is cancelled
func (r *CatalogRefresher) Run(ctx context.Context) {
	r.logger.Info("Starting catalog refresher", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping catalog refresher")
			return
		case <-r.catalog.RefreshRequests():
			r.refresh(ctx)
		case <-ticker.C:
			if r.catalog.NeedsRefresh() {
				r.refresh(ctx)
			}
		}
	}
}

func (r *CatalogRefresher) refresh(ctx context.Context) {
	changed, err := r.catalog.RefreshFromRemote(ctx)
	if err != nil {
		util.RemoteSyncFailures.WithLabelValues("products", "list").Inc()
		r.logger.Warn("Catalog refresh failed", zap.Error(err))
		return
	}
	if changed {
		r.logger.Debug("Catalog refreshed")
	}
}

// CatalogReloader re-reads the catalog written by another instance
type CatalogReloader interface {
	ReloadFromDurable(ctx context.Context) error
}

// LedgerLoader re-reads the order ledger written by another instance
type LedgerLoader interface {
	Load(ctx context.Context) error
}

// SyncWorker applies change notifications from the other instances
type SyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSyncWorker creates a new sync worker. instanceID filters out this instance's own events.
func NewSyncWorker(
	consumer *broker.Consumer,
	instanceID string,
	catalog CatalogReloader,
	ledger LedgerLoader,
) *SyncWorker {
	return &SyncWorker{
		consumer:     consumer,
		eventHandler: NewSyncHandler(instanceID, catalog, ledger),
		logger:       util.GetLogger(),
	}
}

// NewSyncHandler builds the envelope router used by SyncWorker
func NewSyncHandler(instanceID string, catalog CatalogReloader, ledger LedgerLoader) *broker.EventHandler {
	handler := broker.NewEventHandler(instanceID)
	handler.OnProductsUpdated(func(ctx context.Context, _ models.Envelope) error {
		return catalog.ReloadFromDurable(ctx)
	})
	handler.OnOrdersChanged(func(ctx context.Context, _ models.Envelope) error {
		return ledger.Load(ctx)
	})
	return handler
}

// Start starts the worker
func (w *SyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	w.logger.Info("Stopping sync worker")
	return w.consumer.Close()
}
