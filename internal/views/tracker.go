// Package views finds elements on a page that resolvers recognise and keeps
// track of them until they are removed.
package views

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"codeintel/internal/dom"

	"go.uber.org/zap"
)

// ErrSkip is returned by ResolveView for elements that match the selector
// but are not views. Skipped elements are not logged.
var ErrSkip = errors.New("not a view")

// Resolver pairs a selector with the function that turns a matching element
// into a view.
type Resolver[V any] struct {
	Selector    string
	ResolveView func(el dom.Element) (V, error)
}

// Tracked is a view found on the page. Its context is cancelled once the
// element is removed.
type Tracked[V any] struct {
	Element  dom.Element
	View     V
	Resolver int

	ctx    context.Context
	cancel context.CancelFunc
}

func (t *Tracked[V]) Context() context.Context { return t.ctx }

func (t *Tracked[V]) Done() <-chan struct{} { return t.ctx.Done() }

type claimKey struct {
	resolver int
	element  string
}

type claim[V any] struct {
	element dom.Element
	tracked *Tracked[V] // nil when the element was skipped or failed
}

// Tracker emits each (resolver, element) pair at most once while the
// element stays attached.
type Tracker[V any] struct {
	doc       dom.Document
	resolvers []Resolver[V]
	logger    *zap.Logger
	claimed   map[claimKey]claim[V]
	started   atomic.Bool
}

func NewTracker[V any](doc dom.Document, resolvers []Resolver[V], logger *zap.Logger) *Tracker[V] {
	return &Tracker[V]{
		doc:       doc,
		resolvers: resolvers,
		logger:    logger,
		claimed:   make(map[claimKey]claim[V]),
	}
}

// Track is shorthand for NewTracker(...).Run(ctx, mutations).
func Track[V any](ctx context.Context, doc dom.Document, mutations <-chan dom.MutationBatch, resolvers []Resolver[V], logger *zap.Logger) <-chan *Tracked[V] {
	return NewTracker(doc, resolvers, logger).Run(ctx, mutations)
}

// Run consumes mutation batches until the channel closes or ctx is done.
// The returned channel closes at the same time. A tracker runs once.
func (t *Tracker[V]) Run(ctx context.Context, mutations <-chan dom.MutationBatch) <-chan *Tracked[V] {
	out := make(chan *Tracked[V])
	if !t.started.CompareAndSwap(false, true) {
		t.logger.Error("tracker already running")
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-mutations:
				if !ok {
					return
				}
				if !t.handleBatch(ctx, batch, out) {
					return
				}
			}
		}
	}()

	return out
}

// handleBatch returns false when ctx ended while emitting.
func (t *Tracker[V]) handleBatch(ctx context.Context, batch dom.MutationBatch, out chan<- *Tracked[V]) bool {
	t.release(batch)

	for i, r := range t.resolvers {
		els, err := t.doc.QuerySelectorAll(r.Selector)
		if err != nil {
			t.logger.Warn("querying resolver selector", zap.String("selector", r.Selector), zap.Error(err))
			continue
		}

		for _, el := range els {
			key := claimKey{resolver: i, element: el.ID()}
			if _, ok := t.claimed[key]; ok {
				continue
			}

			view, err := resolve(r, el)
			if err != nil {
				t.claimed[key] = claim[V]{element: el}
				if !errors.Is(err, ErrSkip) {
					t.logger.Warn("resolving view",
						zap.String("selector", r.Selector),
						zap.String("element", el.ID()),
						zap.Error(err),
					)
				}
				continue
			}

			vctx, cancel := context.WithCancel(ctx)
			tracked := &Tracked[V]{Element: el, View: view, Resolver: i, ctx: vctx, cancel: cancel}
			t.claimed[key] = claim[V]{element: el, tracked: tracked}

			select {
			case out <- tracked:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

// release retires every claim on a removed element or one of its
// descendants, so a later re-insertion counts as a new occurrence.
func (t *Tracker[V]) release(batch dom.MutationBatch) {
	if len(batch.Removed) == 0 {
		return
	}
	ids := make(map[string]struct{}, len(batch.Removed))
	for _, r := range batch.Removed {
		ids[r.ID()] = struct{}{}
	}

	for key, c := range t.claimed {
		if _, ok := ids[c.element.ID()]; !ok && (batch.DescendantsListed || !containedIn(batch.Removed, c.element)) {
			continue
		}
		if c.tracked != nil {
			c.tracked.cancel()
		}
		delete(t.claimed, key)
	}
}

func containedIn(roots []dom.Element, el dom.Element) bool {
	for _, r := range roots {
		if r.Contains(el) {
			return true
		}
	}
	return false
}

func resolve[V any](r Resolver[V], el dom.Element) (view V, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resolver panicked: %v", rec)
		}
	}()
	return r.ResolveView(el)
}
