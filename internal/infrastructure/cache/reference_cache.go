// Package cache holds the in-process reference data snapshot and the Redis
// broadcast that tells every worker to reload it.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReferenceLoader reads the full reference data set
type ReferenceLoader interface {
	Load(ctx context.Context) (reference.Data, error)
}

// CatalogLoader reads the full identity graph
type CatalogLoader interface {
	Load(ctx context.Context) (catalog.GraphData, error)
}

// ReloadHook is called with every newly loaded snapshot
type ReloadHook func(refs *reference.Snapshot, graph *catalog.Graph)

type loaded struct {
	refs  *reference.Snapshot
	graph *catalog.Graph
}

// ReferenceCache keeps one immutable reference snapshot and identity graph.
// Readers always see a consistent pair. Entries never expire; the cache only
// changes on Invalidate or Reload.
type ReferenceCache struct {
	refs    ReferenceLoader
	catalog CatalogLoader
	hooks   []ReloadHook
	logger  *zap.Logger

	current atomic.Pointer[loaded]
	version atomic.Int64
	loadMu  sync.Mutex
}

// ReferenceCacheOption configures a ReferenceCache
type ReferenceCacheOption func(*ReferenceCache)

// WithCacheLogger sets the logger
func WithCacheLogger(logger *zap.Logger) ReferenceCacheOption {
	return func(c *ReferenceCache) {
		c.logger = logger
	}
}

// WithReloadHook registers a function run after every successful load
func WithReloadHook(hook ReloadHook) ReferenceCacheOption {
	return func(c *ReferenceCache) {
		c.hooks = append(c.hooks, hook)
	}
}

// NewReferenceCache creates an empty cache. Nothing is loaded until the
// first Current or Reload.
func NewReferenceCache(refs ReferenceLoader, cat CatalogLoader, opts ...ReferenceCacheOption) *ReferenceCache {
	c := &ReferenceCache{
		refs:    refs,
		catalog: cat,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the cached snapshot, loading it when the cache is empty
func (c *ReferenceCache) Current(ctx context.Context) (*reference.Snapshot, *catalog.Graph, error) {
	if l := c.current.Load(); l != nil {
		return l.refs, l.graph, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if l := c.current.Load(); l != nil {
		return l.refs, l.graph, nil
	}
	l, err := c.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return l.refs, l.graph, nil
}

// Reload loads a fresh snapshot and swaps it in. On failure the previous
// snapshot stays in place.
func (c *ReferenceCache) Reload(ctx context.Context) (*reference.Snapshot, *catalog.Graph, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	l, err := c.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return l.refs, l.graph, nil
}

// Invalidate drops the cached snapshot; the next Current reloads it
func (c *ReferenceCache) Invalidate() {
	c.current.Store(nil)
	c.logger.Info("reference cache invalidated")
}

// Version returns the version of the most recent load, 0 before any load
func (c *ReferenceCache) Version() int64 {
	return c.version.Load()
}

// HandleInvalidation returns a callback for InvalidationSubscriber that
// reloads the cache eagerly so reload hooks run right away
func (c *ReferenceCache) HandleInvalidation(ctx context.Context) func(InvalidationMessage) {
	return func(msg InvalidationMessage) {
		if _, _, err := c.Reload(ctx); err != nil {
			c.logger.Error("reference reload after invalidation failed",
				zap.String("reason", msg.Reason),
				zap.Error(err))
			return
		}
		c.logger.Info("reference data reloaded",
			zap.String("reason", msg.Reason),
			zap.Int64("version", c.Version()))
	}
}

// load must be called with loadMu held
func (c *ReferenceCache) load(ctx context.Context) (*loaded, error) {
	ctx, span := telemetry.StartSpan(ctx, "reference.load")
	defer span.End()

	data, err := c.refs.Load(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	graphData, err := c.catalog.Load(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load identity graph: %w", err)
	}

	version := c.version.Load() + 1
	l := &loaded{
		refs:  reference.NewSnapshot(data, version),
		graph: catalog.NewGraph(graphData),
	}
	for _, p := range l.refs.Problems() {
		c.logger.Warn("reference data problem", zap.Int64("version", version), zap.Error(p))
	}
	for _, p := range l.graph.Problems() {
		c.logger.Warn("identity graph problem", zap.Int64("version", version), zap.Error(p))
	}

	c.current.Store(l)
	c.version.Store(version)
	telemetry.SetAttributes(span, "reference.version", version)
	for _, hook := range c.hooks {
		hook(l.refs, l.graph)
	}
	return l, nil
}
