package storage

import "poolscope/internal/model"

// PoolSink defines a sink for aggregated pool records.
type PoolSink interface {
	PutPoolBatch(pools []model.PoolRecord) error
}

// RateSink defines a sink for pool rate estimates.
type RateSink interface {
	PutRateBatch(rates []model.PoolRate) error
}
