// Package registry holds the in-memory snapshot of the model table. Readers
// never block: the snapshot is an atomic pointer swapped wholesale on refresh,
// and a failed refresh keeps the previous snapshot in place.
package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/logger"
	"github.com/makehub/llm-gateway/model"
)

type snapshot struct {
	all []*model.Model
	// byId indexes both model_id and provider_model_id, so a lookup matches
	// either naming.
	byId     map[string][]*model.Model
	loadedAt time.Time
}

type Registry struct {
	current atomic.Pointer[snapshot]
	loader  func() ([]*model.Model, error)
}

// New builds a registry backed by the models table.
func New() *Registry {
	return NewWithLoader(model.GetActiveModels)
}

// NewWithLoader builds a registry with a custom row source. Tests inject fakes
// here.
func NewWithLoader(loader func() ([]*model.Model, error)) *Registry {
	r := &Registry{loader: loader}
	r.current.Store(&snapshot{byId: map[string][]*model.Model{}})
	return r
}

// Refresh reloads the snapshot. Idempotent; on failure the prior snapshot
// stays live and the error is returned for logging.
func (r *Registry) Refresh() error {
	rows, err := r.loader()
	if err != nil {
		return errors.Wrap(err, "refresh model registry")
	}

	next := &snapshot{
		all:      rows,
		byId:     make(map[string][]*model.Model, len(rows)),
		loadedAt: time.Now(),
	}
	for _, row := range rows {
		next.byId[row.ModelId] = append(next.byId[row.ModelId], row)
		if row.ProviderModelId != "" && row.ProviderModelId != row.ModelId {
			next.byId[row.ProviderModelId] = append(next.byId[row.ProviderModelId], row)
		}
	}
	r.current.Store(next)
	return nil
}

// LookupExact returns every active row whose model_id or provider_model_id
// equals requestedId, in registry order.
func (r *Registry) LookupExact(requestedId string) []*model.Model {
	return r.current.Load().byId[requestedId]
}

// ListActive returns all rows of the current snapshot. The slice is shared;
// callers must not mutate it.
func (r *Registry) ListActive() []*model.Model {
	return r.current.Load().all
}

// SnapshotAge reports how long ago the current snapshot was loaded. Zero time
// snapshots (never refreshed) report a very large age.
func (r *Registry) SnapshotAge() time.Duration {
	loadedAt := r.current.Load().loadedAt
	if loadedAt.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(loadedAt)
}

// StartRefresher refreshes on the configured TTL until ctx is cancelled.
func (r *Registry) StartRefresher(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.ModelCacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(); err != nil {
					logger.Logger.Error("model registry refresh failed, keeping previous snapshot",
						zap.Error(err))
				} else {
					logger.Logger.Debug("model registry refreshed",
						zap.Int("models", len(r.ListActive())))
				}
			}
		}
	}()
}

// Default is the process-wide registry used by the HTTP layer.
var Default = New()
