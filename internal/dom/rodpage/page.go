// Package rodpage drives a live browser page over the DevTools protocol and
// exposes it as a dom.Document with a mutation stream.
package rodpage

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"codeintel/internal/dom"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

//go:embed bridge.js
var bridgeJS string

const (
	mutationBinding = "__codeintelMutations"
	eventBinding    = "__codeintelEvent"
)

// Connect attaches to controlURL, or launches a local browser when it is empty.
func Connect(ctx context.Context, controlURL string, headless bool) (*rod.Browser, error) {
	if controlURL == "" {
		u, err := launcher.New().Headless(headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return browser, nil
}

type mutationMessage struct {
	Added   bool     `json:"added"`
	Removed []string `json:"removed"`
}

type eventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Page is a dom.Document backed by a browser tab.
type Page struct {
	page   *rod.Page
	logger *zap.Logger

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	inflight  sync.WaitGroup
	mutations chan dom.MutationBatch
	listeners map[string]map[int]func(dom.Event)
	nextID    int
	stops     []func() error
}

// Open navigates a new tab to url and starts observing it. The first batch
// on Mutations covers the initial page content.
func Open(ctx context.Context, browser *rod.Browser, url string, logger *zap.Logger) (*Page, error) {
	rp, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", url, err)
	}
	rp = rp.Context(ctx)
	if err := rp.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", url, err)
	}

	p := &Page{
		page:      rp,
		logger:    logger,
		mutations: make(chan dom.MutationBatch, 64),
		done:      make(chan struct{}),
		listeners: make(map[string]map[int]func(dom.Event)),
	}

	stop, err := rp.Expose(mutationBinding, p.onMutations)
	if err != nil {
		return nil, fmt.Errorf("exposing mutation binding: %w", err)
	}
	p.stops = append(p.stops, stop)

	stop, err = rp.Expose(eventBinding, p.onEvent)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("exposing event binding: %w", err)
	}
	p.stops = append(p.stops, stop)

	if _, err := rp.Eval(strings.TrimSpace(bridgeJS)); err != nil {
		p.Close()
		return nil, fmt.Errorf("installing page bridge: %w", err)
	}

	body, err := p.QuerySelectorAll("body")
	if err != nil {
		p.Close()
		return nil, err
	}
	p.send(dom.MutationBatch{Added: body})

	return p, nil
}

// Mutations is closed by Close.
func (p *Page) Mutations() <-chan dom.MutationBatch {
	return p.mutations
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	stops := p.stops
	p.mu.Unlock()

	p.inflight.Wait()
	close(p.mutations)

	for _, stop := range stops {
		if err := stop(); err != nil {
			p.logger.Debug("removing page binding", zap.Error(err))
		}
	}
	return p.page.Close()
}

func (p *Page) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return p.query("", selector)
}

func (p *Page) query(scopeID, selector string) ([]dom.Element, error) {
	res, err := p.page.Eval(`(scope, sel) => window.__codeintel.query(scope, sel)`, scopeID, selector)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}

	var ids []string
	if err := decode(res.Value, &ids); err != nil {
		return nil, fmt.Errorf("decoding query result: %w", err)
	}

	els := make([]dom.Element, 0, len(ids))
	for _, id := range ids {
		els = append(els, p.element(id))
	}
	return els, nil
}

func (p *Page) element(id string) dom.Element {
	return &element{page: p, id: id}
}

func (p *Page) eval(js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (p *Page) onMutations(arg gson.JSON) (interface{}, error) {
	var msg mutationMessage
	if err := json.Unmarshal([]byte(arg.Str()), &msg); err != nil {
		p.logger.Warn("malformed mutation message", zap.Error(err))
		return nil, nil
	}

	// The page script reports each known descendant of a removed node.
	batch := dom.MutationBatch{DescendantsListed: true}
	if msg.Added {
		body, err := p.QuerySelectorAll("body")
		if err != nil {
			p.logger.Warn("querying body after mutation", zap.Error(err))
		}
		batch.Added = body
	}
	for _, id := range msg.Removed {
		batch.Removed = append(batch.Removed, p.element(id))
	}
	p.send(batch)
	return nil, nil
}

func (p *Page) onEvent(arg gson.JSON) (interface{}, error) {
	var msg eventMessage
	if err := json.Unmarshal([]byte(arg.Str()), &msg); err != nil {
		p.logger.Warn("malformed event message", zap.Error(err))
		return nil, nil
	}

	ev := dom.Event{Type: dom.EventSelect}
	if msg.Type == string(dom.EventInput) {
		ev.Type = dom.EventInput
	}

	p.mu.Lock()
	var fns []func(dom.Event)
	for _, fn := range p.listeners[msg.ID] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil, nil
}

func (p *Page) send(batch dom.MutationBatch) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	select {
	case p.mutations <- batch:
	case <-p.done:
	}
}

func (p *Page) listen(id string, fn func(dom.Event)) func() {
	p.mu.Lock()
	if p.listeners[id] == nil {
		p.listeners[id] = make(map[int]func(dom.Event))
	}
	key := p.nextID
	p.nextID++
	p.listeners[id][key] = fn
	first := len(p.listeners[id]) == 1
	p.mu.Unlock()

	if first {
		if _, err := p.eval(`(id) => window.__codeintel.listen(id)`, id); err != nil {
			p.logger.Warn("attaching listeners", zap.String("element", id), zap.Error(err))
		}
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners[id], key)
		last := len(p.listeners[id]) == 0
		if last {
			delete(p.listeners, id)
		}
		p.mu.Unlock()

		if last {
			if _, err := p.eval(`(id) => window.__codeintel.unlisten(id)`, id); err != nil {
				p.logger.Debug("detaching listeners", zap.String("element", id), zap.Error(err))
			}
		}
	}
}

func decode(v gson.JSON, out interface{}) error {
	return json.Unmarshal([]byte(v.JSON("", "")), out)
}
