// Package htmldom is an in-process DOM parsed from HTML markup. It backs
// static page scans and the tests of every pipeline stage.
package htmldom

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf16"

	"codeintel/internal/dom"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type textState struct {
	value     string
	start     int
	end       int
	dir       dom.Direction
	listeners map[int]func(dom.Event)
	nextID    int
}

// Document is safe for concurrent use.
type Document struct {
	mu        sync.RWMutex
	root      *html.Node
	ids       map[*html.Node]string
	texts     map[*html.Node]*textState
	selectors map[string]cascadia.Selector
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{
		root:      root,
		ids:       make(map[*html.Node]string),
		texts:     make(map[*html.Node]*textState),
		selectors: make(map[string]cascadia.Selector),
	}, nil
}

func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Body returns the <body> element.
func (d *Document) Body() dom.Element {
	els, err := d.QuerySelectorAll("body")
	if err != nil || len(els) == 0 {
		return d.wrap(d.root)
	}
	return els[0]
}

// Initial is the batch a freshly loaded page produces.
func (d *Document) Initial() dom.MutationBatch {
	return dom.MutationBatch{Added: []dom.Element{d.Body()}}
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return d.queryAll(d.root, selector, true)
}

// AppendHTML parses markup and appends the resulting nodes to parent.
func (d *Document) AppendHTML(parent dom.Element, markup string) (dom.MutationBatch, error) {
	p, err := d.node(parent)
	if err != nil {
		return dom.MutationBatch{}, err
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), p)
	if err != nil {
		return dom.MutationBatch{}, fmt.Errorf("parsing fragment: %w", err)
	}

	d.mu.Lock()
	var added []*html.Node
	for _, n := range nodes {
		p.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, n)
		}
	}
	d.mu.Unlock()

	batch := dom.MutationBatch{}
	for _, n := range added {
		batch.Added = append(batch.Added, d.wrap(n))
	}
	return batch, nil
}

// Remove detaches el from the page.
func (d *Document) Remove(el dom.Element) (dom.MutationBatch, error) {
	n, err := d.node(el)
	if err != nil {
		return dom.MutationBatch{}, err
	}

	d.mu.Lock()
	if n.Parent == nil {
		d.mu.Unlock()
		return dom.MutationBatch{}, fmt.Errorf("element %s is not attached", el.ID())
	}
	n.Parent.RemoveChild(n)
	d.mu.Unlock()

	return dom.MutationBatch{Removed: []dom.Element{el}}, nil
}

// Reattach appends a previously removed element to parent again.
func (d *Document) Reattach(parent, el dom.Element) (dom.MutationBatch, error) {
	p, err := d.node(parent)
	if err != nil {
		return dom.MutationBatch{}, err
	}
	n, err := d.node(el)
	if err != nil {
		return dom.MutationBatch{}, err
	}

	d.mu.Lock()
	if n.Parent != nil {
		d.mu.Unlock()
		return dom.MutationBatch{}, fmt.Errorf("element %s is still attached", el.ID())
	}
	p.AppendChild(n)
	d.mu.Unlock()

	return dom.MutationBatch{Added: []dom.Element{el}}, nil
}

// UserInput replaces the value of a text control the way typing does: the
// caret moves to the end and an input event fires.
func (d *Document) UserInput(el dom.Element, value string) error {
	n, err := d.node(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	st := d.textStateLocked(n)
	st.value = value
	st.start = utf16Len(value)
	st.end = st.start
	st.dir = dom.DirectionNone
	d.mu.Unlock()

	d.dispatch(n, dom.Event{Type: dom.EventInput})
	return nil
}

// UserSelect changes the selection and fires a select event.
func (d *Document) UserSelect(el dom.Element, start, end int, dir dom.Direction) error {
	n, err := d.node(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.setSelectionLocked(d.textStateLocked(n), start, end, dir)
	d.mu.Unlock()

	d.dispatch(n, dom.Event{Type: dom.EventSelect})
	return nil
}

func (d *Document) dispatch(n *html.Node, ev dom.Event) {
	d.mu.RLock()
	var fns []func(dom.Event)
	if st, ok := d.texts[n]; ok {
		for _, fn := range st.listeners {
			fns = append(fns, fn)
		}
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (d *Document) queryAll(scope *html.Node, selector string, includeScope bool) ([]dom.Element, error) {
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	matches := sel.MatchAll(scope)
	d.mu.RUnlock()

	els := make([]dom.Element, 0, len(matches))
	for _, n := range matches {
		if n == scope && !includeScope {
			continue
		}
		els = append(els, d.wrap(n))
	}
	return els, nil
}

func (d *Document) compile(selector string) (cascadia.Selector, error) {
	d.mu.RLock()
	sel, ok := d.selectors[selector]
	d.mu.RUnlock()
	if ok {
		return sel, nil
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compiling selector %q: %w", selector, err)
	}
	d.mu.Lock()
	d.selectors[selector] = sel
	d.mu.Unlock()
	return sel, nil
}

func (d *Document) idFor(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.ids[n]
	if !ok {
		id = uuid.New().String()
		d.ids[n] = id
	}
	return id
}

func (d *Document) wrap(n *html.Node) dom.Element {
	el := &element{doc: d, node: n, id: d.idFor(n)}
	if n.Type == html.ElementNode && n.DataAtom == atom.Textarea {
		return &textArea{element: el}
	}
	return el
}

func (d *Document) node(el dom.Element) (*html.Node, error) {
	switch e := el.(type) {
	case *element:
		if e.doc == d {
			return e.node, nil
		}
	case *textArea:
		if e.doc == d {
			return e.node, nil
		}
	}
	return nil, fmt.Errorf("element %s does not belong to this document", el.ID())
}

// textStateLocked lazily seeds a control's state from its markup.
func (d *Document) textStateLocked(n *html.Node) *textState {
	st, ok := d.texts[n]
	if !ok {
		st = &textState{value: textContent(n), listeners: make(map[int]func(dom.Event))}
		d.texts[n] = st
	}
	return st
}

func (d *Document) setSelectionLocked(st *textState, start, end int, dir dom.Direction) {
	n := utf16Len(st.value)
	start = clamp(start, 0, n)
	end = clamp(end, 0, n)
	// Same as HTMLTextAreaElement.setSelectionRange.
	if start > end {
		start = end
	}
	st.start, st.end, st.dir = start, end, dir
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
