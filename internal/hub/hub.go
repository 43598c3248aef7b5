// Package hub is the administrative API surface: a single mutex around
// the resource tree (spec.md §5 places multi-writer concurrency inside
// the core itself out of scope — this is the boundary a real process
// puts around it), wired to structured logging, metrics, and the admin
// HTTP handlers.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/config"
	"github.com/flowmesh/datahub/internal/metrics"
	"github.com/flowmesh/datahub/internal/observation"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/tree"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// Hub is the top-level entry point a daemon or test harness talks to.
type Hub struct {
	mu      sync.Mutex
	tree    *tree.Tree
	store   *valuestore.Store
	obs     *observation.Facade
	metrics *metrics.Registry
	logger  *zap.Logger
}

// New builds a Hub from configuration, with a fresh empty tree.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Registry) *Hub {
	store := valuestore.NewStore(
		cfg.Pools.SampleCapacity,
		cfg.Pools.StringSmallCapacity,
		cfg.Pools.StringMediumCapacity,
		cfg.Pools.StringLargeCapacity,
	)
	t := tree.New(store, cfg.Pools.EntryCapacity, cfg.Limits.MaxNameBytes, cfg.Limits.MaxPathBytes)
	return &Hub{
		tree:    t,
		store:   store,
		obs:     observation.New(t, logger),
		metrics: m,
		logger:  logger,
	}
}

// Tree exposes the underlying tree for read-only traversal (HTTP
// handlers, metrics refresh). Mutating methods on it bypass the hub's
// mutex and must not be called directly from handler goroutines.
func (h *Hub) Tree() *tree.Tree { return h.tree }

// Store exposes the sample store so callers can construct samples to
// push.
func (h *Hub) Store() *valuestore.Store { return h.store }

func (h *Hub) CreateInput(path string, dt valuestore.DataType, units string) (resource.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.CreateInput(path, dt, units)
}

func (h *Hub) CreateOutput(path string, dt valuestore.DataType, units string) (resource.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.CreateOutput(path, dt, units)
}

func (h *Hub) GetObservation(path string) (resource.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.GetObservation(path)
}

func (h *Hub) DeleteIO(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.DeleteIO(path)
}

func (h *Hub) DeleteObservation(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.DeleteObservation(path)
}

func (h *Hub) SetSource(targetPath, sourcePath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.SetSource(targetPath, sourcePath)
}

func (h *Hub) GetSource(path string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.GetSource(path)
}

// Push resolves path and pushes sample against it, crediting the
// outcome to the rejected-push metric on failure. A push to a
// Namespace path drops the sample and returns BAD_PARAMETER rather
// than dereferencing the nil handle a Namespace entry carries
// (spec.md §7).
func (h *Hub) Push(path string, dt valuestore.DataType, sample *valuestore.Sample) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, err := h.tree.FindEntry(path)
	if err != nil {
		h.store.Release(sample)
		h.metrics.ObservePush(err)
		return err
	}
	if !entry.Kind().IsResource() {
		h.store.Release(sample)
		err := apierr.New(apierr.BadParameter, "push to non-resource path %q", path)
		h.metrics.ObservePush(err)
		return err
	}
	err = entry.Handle().Push(dt, resource.PushOpts{}, sample)
	h.metrics.ObservePush(err)
	return err
}

// Observation returns the administrative façade for Observation-only
// accessors.
func (h *Hub) Observation() *observation.Facade { return h.obs }

// RefreshMetrics recomputes the tree-shape gauges. Call this
// periodically, not on every mutation.
func (h *Hub) RefreshMetrics() {
	h.mu.Lock()
	defer h.mu.Unlock()
	metrics.RefreshTreeShape(h.metrics, h.tree)
}
