package retrieval

import (
	"context"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/record"
)

// BatchQuery is one search in a batch.
type BatchQuery struct {
	Query      string          `json:"query"`
	Candidates []record.Record `json:"-"`
	Params     Params          `json:"params"`
}

// BatchResult holds the outcome of the query at the same index.
type BatchResult struct {
	Results []Result `json:"results"`
	Err     error    `json:"-"`
}

// BatchSearch runs queries on a fixed-width worker pool. Output slots are
// allocated up front, so results line up with queries regardless of which
// worker finishes first.
func (e *Engine) BatchSearch(ctx context.Context, queries []BatchQuery) []BatchResult {
	out := make([]BatchResult, len(queries))
	if len(queries) == 0 {
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(e.workers, len(queries)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				q := queries[i]
				res, err := e.Search(ctx, q.Query, q.Candidates, q.Params)
				out[i] = BatchResult{Results: res, Err: err}
			}
		}()
	}

	for i := range queries {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(queries); j++ {
				out[j] = BatchResult{Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return out
		}
	}
	close(jobs)
	wg.Wait()
	return out
}
