package htmldom

import (
	"strings"

	"codeintel/internal/dom"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type element struct {
	doc  *Document
	node *html.Node
	id   string
}

func (e *element) ID() string { return e.id }

func (e *element) String() string {
	return "<" + e.node.Data + " " + e.id + ">"
}

func (e *element) Contains(other dom.Element) bool {
	n, err := e.doc.node(other)
	if err != nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for ; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

func (e *element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return e.doc.queryAll(e.node, selector, false)
}

func (e *element) Attribute(name string) (string, bool, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *element) Text() (string, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return textContent(e.node), nil
}

func (e *element) HasClass(class string) (bool, error) {
	v, _, _ := e.Attribute("class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

func (e *element) AddClass(class string) error {
	if ok, _ := e.HasClass(class); ok {
		return nil
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == "class" {
			e.node.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
			return nil
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: "class", Val: class})
	return nil
}

func (e *element) AppendChild(tag string, classes ...string) (dom.Element, error) {
	child := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if len(classes) > 0 {
		child.Attr = []html.Attribute{{Key: "class", Val: strings.Join(classes, " ")}}
	}

	e.doc.mu.Lock()
	e.node.AppendChild(child)
	e.doc.mu.Unlock()

	return e.doc.wrap(child), nil
}

// textArea is a <textarea>; its value starts as the markup's text content.
type textArea struct {
	*element
}

func (t *textArea) Value() (string, error) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	return t.doc.textStateLocked(t.node).value, nil
}

func (t *textArea) SetValue(value string) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	st := t.doc.textStateLocked(t.node)
	st.value = value
	n := utf16Len(value)
	st.start, st.end, st.dir = n, n, dom.DirectionNone
	return nil
}

func (t *textArea) SelectionRange() (int, int, dom.Direction, error) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	st := t.doc.textStateLocked(t.node)
	return st.start, st.end, st.dir, nil
}

func (t *textArea) SetSelectionRange(start, end int, dir dom.Direction) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	t.doc.setSelectionLocked(t.doc.textStateLocked(t.node), start, end, dir)
	return nil
}

func (t *textArea) Listen(fn func(dom.Event)) func() {
	t.doc.mu.Lock()
	st := t.doc.textStateLocked(t.node)
	id := st.nextID
	st.nextID++
	st.listeners[id] = fn
	t.doc.mu.Unlock()

	return func() {
		t.doc.mu.Lock()
		delete(st.listeners, id)
		t.doc.mu.Unlock()
	}
}

// ListenerCount reports how many listeners are attached to a text control.
func (d *Document) ListenerCount(el dom.Element) int {
	n, err := d.node(el)
	if err != nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if st, ok := d.texts[n]; ok {
		return len(st.listeners)
	}
	return 0
}
