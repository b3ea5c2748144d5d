package inventory

import (
	"context"
	"time"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ApplyBatch applies events and reports a result per event; one failing
// event never stops the others.
//
// Events are partitioned into groups that share no EAN. Groups run
// concurrently and the events of one group run in input order, so events on
// the same EAN are applied in the order they were given.
func (s *LedgerService) ApplyBatch(ctx context.Context, events []inventory.Event) *BatchReport {
	report := &BatchReport{
		Results:   make([]BatchItemResult, len(events)),
		StartedAt: time.Now(),
	}
	groups := s.partition(events)
	report.Groups = len(groups)

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, group := range groups {
		g.Go(func() error {
			for _, idx := range group {
				item := BatchItemResult{Index: idx}
				if err := ctx.Err(); err != nil {
					item.Err = err
				} else {
					item.Result, item.Err = s.Apply(ctx, events[idx])
				}
				report.Results[idx] = item
			}
			return nil
		})
	}
	_ = g.Wait()

	report.tally()
	report.FinishedAt = time.Now()
	logger.L(logger.WithContext(ctx, s.logger)).Info("Ledger batch applied",
		zap.Int("events", len(events)),
		zap.Int("groups", report.Groups),
		zap.Int("applied", report.Applied),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report
}

// partition groups event indexes by connected EANs. An event whose keys
// cannot be resolved forms its own group; Apply reports its error.
func (s *LedgerService) partition(events []inventory.Event) [][]int {
	uf := newUnionFind(len(events))
	owner := make(map[string]int)
	for i, ev := range events {
		keys, err := s.ledger.Keys(ev)
		if err != nil {
			continue
		}
		for _, k := range keys {
			if j, ok := owner[k]; ok {
				uf.union(i, j)
			} else {
				owner[k] = i
			}
		}
	}

	index := make(map[int]int)
	var groups [][]int
	for i := range events {
		root := uf.find(i)
		gi, ok := index[root]
		if !ok {
			gi = len(groups)
			index[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], i)
	}
	return groups
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
