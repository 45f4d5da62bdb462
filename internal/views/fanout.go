package views

import (
	"context"

	"codeintel/internal/dom"
)

// Fanout delivers every batch from in to n subscribers, in order. A slow
// subscriber holds back the others.
func Fanout(ctx context.Context, in <-chan dom.MutationBatch, n int) []<-chan dom.MutationBatch {
	outs := make([]chan dom.MutationBatch, n)
	ro := make([]<-chan dom.MutationBatch, n)
	for i := range outs {
		outs[i] = make(chan dom.MutationBatch, 16)
		ro[i] = outs[i]
	}

	go func() {
		defer func() {
			for _, out := range outs {
				close(out)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-in:
				if !ok {
					return
				}
				for _, out := range outs {
					select {
					case out <- batch:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ro
}
