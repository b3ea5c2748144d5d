package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReferenceLoader struct {
	calls atomic.Int32
	err   error
	name  string
}

func (s *stubReferenceLoader) Load(ctx context.Context) (reference.Data, error) {
	s.calls.Add(1)
	if s.err != nil {
		return reference.Data{}, s.err
	}
	return reference.Data{
		Countries: []reference.Country{{Code: "DE", Name: s.name, Currency: valueobject.EUR}},
	}, nil
}

type stubCatalogLoader struct {
	calls atomic.Int32
}

func (s *stubCatalogLoader) Load(ctx context.Context) (catalog.GraphData, error) {
	s.calls.Add(1)
	return catalog.GraphData{
		Skus: []catalog.Sku{{Code: "SKU-A", Country: "DE"}},
	}, nil
}

func TestReferenceCache_LoadsOnce(t *testing.T) {
	refs, cat := &stubReferenceLoader{name: "Germany"}, &stubCatalogLoader{}
	c := NewReferenceCache(refs, cat)
	assert.Zero(t, c.Version())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, graph, err := c.Current(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, snap)
			assert.NotNil(t, graph)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refs.calls.Load())
	assert.Equal(t, int32(1), cat.calls.Load())
	assert.Equal(t, int64(1), c.Version())
}

func TestReferenceCache_InvalidateAndReload(t *testing.T) {
	refs, cat := &stubReferenceLoader{name: "Germany"}, &stubCatalogLoader{}
	var hooked []int64
	c := NewReferenceCache(refs, cat, WithReloadHook(func(s *reference.Snapshot, g *catalog.Graph) {
		hooked = append(hooked, s.Version())
	}))

	first, _, err := c.Current(context.Background())
	require.NoError(t, err)

	refs.name = "Deutschland"
	same, _, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, same, "cached snapshot is returned until invalidated")

	c.Invalidate()
	second, _, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	country, err := second.Country("DE")
	require.NoError(t, err)
	assert.Equal(t, "Deutschland", country.Name)

	_, _, err = c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, hooked)
	assert.Equal(t, int64(3), c.Version())
}

func TestReferenceCache_FailedReloadKeepsSnapshot(t *testing.T) {
	refs, cat := &stubReferenceLoader{name: "Germany"}, &stubCatalogLoader{}
	c := NewReferenceCache(refs, cat)

	first, _, err := c.Current(context.Background())
	require.NoError(t, err)

	refs.err = errors.New("connection refused")
	_, _, err = c.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load reference data")

	current, _, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
	assert.Equal(t, int64(1), c.Version())
}

func TestReferenceCache_HandleInvalidation(t *testing.T) {
	refs, cat := &stubReferenceLoader{name: "Germany"}, &stubCatalogLoader{}
	c := NewReferenceCache(refs, cat)

	c.HandleInvalidation(context.Background())(InvalidationMessage{Reason: "vat update"})
	assert.Equal(t, int64(1), c.Version())

	refs.err = errors.New("down")
	c.HandleInvalidation(context.Background())(InvalidationMessage{Reason: "retry"})
	assert.Equal(t, int64(1), c.Version())
}
