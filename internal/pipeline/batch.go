package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Request Request
	Result  *Result
	Err     error
}

// GenerateMany runs requests concurrently, at most limit at a time. A failing request does not
// stop the others; items are returned in request order.
func (o *Orchestrator) GenerateMany(ctx context.Context, reqs []Request, limit int) []BatchItem {
	if limit < 1 {
		limit = 1
	}
	items := make([]BatchItem, len(reqs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, req := range reqs {
		eg.Go(func() error {
			res, err := o.Generate(gctx, req)
			items[i] = BatchItem{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return items
}
