package codeintel

import (
	"context"
	"sort"

	"codeintel/internal/dom"
	"codeintel/internal/hosts"
	"codeintel/internal/views"

	"github.com/sourcegraph/conc/pool"
)

// ScanResult is the outcome for one code view of a static page.
type ScanResult struct {
	State CodeViewState
	Err   error
}

// Scan resolves every code view currently in doc once, in document order.
func (c *Controller) Scan(ctx context.Context, doc dom.Document, host hosts.Host) []ScanResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The tracker rescans the whole document on any batch.
	mutations := make(chan dom.MutationBatch, 1)
	mutations <- dom.MutationBatch{}
	close(mutations)
	tracked := views.Track(ctx, doc, mutations, host.CodeViewResolvers, c.logger.Named("scan"))

	type indexed struct {
		i int
		r ScanResult
	}
	p := pool.NewWithResults[indexed]().WithMaxGoroutines(8)
	i := 0
	for t := range tracked {
		n := i
		i++
		p.Go(func() indexed {
			state, err := c.resolve(t.Context(), t.View)
			state.ElementID = t.Element.ID()
			state.Host = host.Name
			return indexed{i: n, r: ScanResult{State: state, Err: err}}
		})
	}

	out := p.Wait()
	sort.Slice(out, func(a, b int) bool { return out[a].i < out[b].i })
	results := make([]ScanResult, len(out))
	for k, r := range out {
		results[k] = r.r
	}
	return results
}
