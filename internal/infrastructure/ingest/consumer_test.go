package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	appinventory "github.com/reseller/backend/internal/application/inventory"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type fakeList struct {
	mu     sync.Mutex
	queue  []string
	pushed map[string][]string
}

func newFakeList(msgs ...string) *fakeList {
	return &fakeList{queue: msgs, pushed: make(map[string][]string)}
}

func (f *fakeList) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return "", false
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, true
}

func (f *fakeList) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	if v, ok := f.pop(); ok {
		return redis.NewStringSliceResult([]string{keys[0], v}, nil)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeList) RPop(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.pop(); ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.pushed[key])), nil)
}

// RPush adds to the popping end, which is the front of queue.
func (f *fakeList) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.queue = append([]string{v.(string)}, f.queue...)
	}
	return redis.NewIntResult(int64(len(f.queue)), nil)
}

func (f *fakeList) rejections(t *testing.T, key string) []Rejection {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Rejection, len(f.pushed[key]))
	for i, p := range f.pushed[key] {
		require.NoError(t, json.Unmarshal([]byte(p), &out[i]))
	}
	return out
}

type fakeApplier struct {
	mu      sync.Mutex
	batches [][]inventory.Event
	failAt  map[int]error
}

func (f *fakeApplier) ApplyBatch(ctx context.Context, events []inventory.Event) *appinventory.BatchReport {
	f.mu.Lock()
	f.batches = append(f.batches, events)
	f.mu.Unlock()
	report := &appinventory.BatchReport{Results: make([]appinventory.BatchItemResult, len(events))}
	for i := range events {
		item := appinventory.BatchItemResult{Index: i, Result: &inventory.LedgerResult{}}
		if err, ok := f.failAt[i]; ok {
			item.Result = nil
			item.Err = err
			item.Code = shared.CodeOf(err)
		}
		report.Results[i] = item
	}
	return report
}

func message(t *testing.T, row int, rec Record) string {
	t.Helper()
	data, err := json.Marshal(Message{Source: "receipts.csv", Row: row, Record: rec})
	require.NoError(t, err)
	return string(data)
}

func TestConsumer_Process(t *testing.T) {
	list := newFakeList()
	applier := &fakeApplier{failAt: map[int]error{
		1: fmt.Errorf("%w: ean %s at DE-FRA1", shared.ErrInsufficientStock, validEan),
	}}
	c := newConsumer(list, NewDecoder(), applier, WithQueues("in", "dead"))

	result := c.Process(context.Background(), []string{
		message(t, 2, Record{"kind": KindStockReceipt, "ean": validEan, "quantity": "3", "warehouse": "DE-FRA1"}),
		message(t, 3, Record{"kind": KindStockReceipt, "ean": "bad", "quantity": "3", "warehouse": "DE-FRA1"}),
		"{not json",
		message(t, 5, Record{"kind": KindShipmentOut, "ean": validEan, "quantity": "9", "warehouse": "DE-FRA1"}),
	})

	assert.Equal(t, 4, result.Received)
	assert.Equal(t, 3, result.Rejected)
	require.Len(t, applier.batches, 1)
	assert.Len(t, applier.batches[0], 2)

	rejected := list.rejections(t, "dead")
	require.Len(t, rejected, 3)

	assert.Equal(t, ErrCodeIngestInvalidEAN, rejected[0].Errors[0].Code)
	assert.Equal(t, 3, rejected[0].Errors[0].Row)

	assert.Equal(t, ErrCodeIngestMalformed, rejected[1].Errors[0].Code)
	var raw string
	require.NoError(t, json.Unmarshal(rejected[1].Message, &raw))
	assert.Equal(t, "{not json", raw)

	assert.Equal(t, shared.ErrInsufficientStock.Code, rejected[2].LedgerCode)
	var original Message
	require.NoError(t, json.Unmarshal(rejected[2].Message, &original))
	assert.Equal(t, 5, original.Row)
}

func TestConsumer_ProcessRequeuesRowsInterruptedByShutdown(t *testing.T) {
	list := newFakeList()
	applier := &fakeApplier{failAt: map[int]error{
		0: context.Canceled,
		1: fmt.Errorf("%w: ean %s at DE-FRA1", shared.ErrInsufficientStock, validEan),
		2: context.Canceled,
	}}
	c := newConsumer(list, NewDecoder(), applier, WithQueues("in", "dead"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := message(t, 2, Record{"kind": KindStockReceipt, "ean": validEan, "quantity": "3", "warehouse": "DE-FRA1"})
	third := message(t, 4, Record{"kind": KindStockReceipt, "ean": validEan, "quantity": "1", "warehouse": "DE-FRA1"})
	result := c.Process(ctx, []string{
		first,
		message(t, 3, Record{"kind": KindShipmentOut, "ean": validEan, "quantity": "9", "warehouse": "DE-FRA1"}),
		third,
	})

	assert.Equal(t, 3, result.Received)
	assert.Equal(t, 2, result.Requeued)
	assert.Equal(t, 1, result.Rejected)

	rejected := list.rejections(t, "dead")
	require.Len(t, rejected, 1)
	assert.Equal(t, shared.ErrInsufficientStock.Code, rejected[0].LedgerCode)

	next, ok := list.pop()
	require.True(t, ok)
	assert.Equal(t, first, next)
	next, ok = list.pop()
	require.True(t, ok)
	assert.Equal(t, third, next)
}

func TestConsumer_ProcessRejectsCancellationFromLiveContext(t *testing.T) {
	list := newFakeList()
	applier := &fakeApplier{failAt: map[int]error{0: context.Canceled}}
	c := newConsumer(list, NewDecoder(), applier, WithQueues("in", "dead"))

	result := c.Process(context.Background(), []string{
		message(t, 2, Record{"kind": KindStockReceipt, "ean": validEan, "quantity": "3", "warehouse": "DE-FRA1"}),
	})

	assert.Equal(t, 0, result.Requeued)
	assert.Equal(t, 1, result.Rejected)
	assert.Len(t, list.rejections(t, "dead"), 1)
}

func TestConsumer_ProcessTracesBatchAndTagsRejections(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	list := newFakeList()
	c := newConsumer(list, NewDecoder(), &fakeApplier{}, WithQueues("in", "dead"))
	c.Process(context.Background(), []string{"{not json"})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ingest.process", spans[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind())

	rejected := list.rejections(t, "dead")
	require.Len(t, rejected, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), rejected[0].TraceID)
}

func TestConsumer_RunDrainsInBatches(t *testing.T) {
	msgs := make([]string, 5)
	for i := range msgs {
		msgs[i] = message(t, i+1, Record{"kind": KindStockReceipt, "ean": validEan, "quantity": "1", "warehouse": "DE-FRA1"})
	}
	list := newFakeList(msgs...)
	applier := &fakeApplier{}
	c := newConsumer(list, NewDecoder(), applier, WithMaxBatch(2), WithPollTimeout(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		applier.mu.Lock()
		defer applier.mu.Unlock()
		return len(applier.batches) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	applier.mu.Lock()
	defer applier.mu.Unlock()
	assert.Len(t, applier.batches[0], 2)
	assert.Len(t, applier.batches[2], 1)
}
