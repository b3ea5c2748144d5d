package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

// upsert inserts rows, replacing existing rows with the same primary key
func upsert[M any](ctx context.Context, db *gorm.DB, rows []M) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, upsertBatchSize).Error
}

// convert maps domain values onto persistence models
func convert[D, M any](in []D, fn func(D) *M) []M {
	out := make([]M, len(in))
	for i, v := range in {
		out[i] = *fn(v)
	}
	return out
}
