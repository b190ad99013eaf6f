package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/metrics"
)

// DefaultBatchSize is used when a batch is created with a non-positive size.
const DefaultBatchSize = 100

// FailureFunc records a failed bulk write. ids are the documents that were
// in the failed batch.
type FailureFunc func(index string, ids []string, err error)

// Batch buffers projections for one index and writes them in bulk when it
// fills up. Flush must be called once at the end of every run.
type Batch struct {
	indexer Indexer
	index   string
	size    int
	onFail  FailureFunc
	docs    []Doc
	writes  int
	failed  int
}

// NewBatch returns an empty batch for index.
func NewBatch(ix Indexer, index string, size int, onFail FailureFunc) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{indexer: ix, index: index, size: size, onFail: onFail, docs: make([]Doc, 0, size)}
}

// Enqueue appends a projection and writes the batch once it is full.
func (b *Batch) Enqueue(ctx context.Context, id string, projection map[string]any) {
	b.docs = append(b.docs, Doc{ID: id, Body: projection})
	if len(b.docs) >= b.size {
		b.write(ctx)
	}
}

// Flush writes whatever is buffered, even a partial batch.
func (b *Batch) Flush(ctx context.Context) {
	if len(b.docs) > 0 {
		b.write(ctx)
	}
}

// Pending returns the number of buffered projections.
func (b *Batch) Pending() int { return len(b.docs) }

// Writes returns the number of bulk writes attempted.
func (b *Batch) Writes() int { return b.writes }

// Failed returns the number of bulk writes that returned an error.
func (b *Batch) Failed() int { return b.failed }

// write sends the buffered docs and starts a fresh batch whether or not the
// write succeeded.
func (b *Batch) write(ctx context.Context) {
	docs := b.docs
	b.docs = make([]Doc, 0, b.size)
	b.writes++

	err := b.indexer.Bulk(ctx, b.index, docs)
	metrics.ObserveBulkWrite(b.index, err == nil)
	if err == nil {
		return
	}

	b.failed++
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	zap.L().Warn("bulk index failed",
		zap.String("component", "search.batch"),
		zap.String("index", b.index),
		zap.Int("docs", len(docs)),
		zap.Error(err),
	)
	if b.onFail != nil {
		b.onFail(b.index, ids, err)
	}
}
