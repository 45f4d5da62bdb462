package rodpage

import (
	"fmt"

	"codeintel/internal/dom"

	"go.uber.org/zap"
)

// element is addressed by its page-side id; every call is a round trip.
type element struct {
	page *Page
	id   string
}

const lookup = `window.__codeintel.get(id)`

func (e *element) ID() string { return e.id }

func (e *element) Contains(other dom.Element) bool {
	if other.ID() == e.id {
		return true
	}
	v, err := e.page.eval(`(a, b) => {
		const x = window.__codeintel.get(a), y = window.__codeintel.get(b);
		return !!(x && y && x.contains(y));
	}`, e.id, other.ID())
	if err != nil {
		e.page.logger.Debug("checking containment", zap.String("element", e.id), zap.Error(err))
		return false
	}
	return v.Bool()
}

func (e *element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return e.page.query(e.id, selector)
}

func (e *element) Attribute(name string) (string, bool, error) {
	v, err := e.page.eval(`(id, name) => {
		const el = `+lookup+`;
		return el && el.hasAttribute(name) ? el.getAttribute(name) : null;
	}`, e.id, name)
	if err != nil {
		return "", false, fmt.Errorf("reading attribute %q: %w", name, err)
	}
	if v.Nil() {
		return "", false, nil
	}
	return v.Str(), true, nil
}

func (e *element) Text() (string, error) {
	v, err := e.page.eval(`(id) => { const el = `+lookup+`; return el ? el.textContent : ""; }`, e.id)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return v.Str(), nil
}

func (e *element) HasClass(class string) (bool, error) {
	v, err := e.page.eval(`(id, c) => { const el = `+lookup+`; return !!el && el.classList.contains(c); }`, e.id, class)
	if err != nil {
		return false, fmt.Errorf("reading class list: %w", err)
	}
	return v.Bool(), nil
}

func (e *element) AddClass(class string) error {
	if _, err := e.page.eval(`(id, c) => { const el = `+lookup+`; if (el) el.classList.add(c); }`, e.id, class); err != nil {
		return fmt.Errorf("adding class %q: %w", class, err)
	}
	return nil
}

func (e *element) AppendChild(tag string, classes ...string) (dom.Element, error) {
	v, err := e.page.eval(`(id, tag, classes) => {
		const el = `+lookup+`;
		if (!el) return null;
		const child = document.createElement(tag);
		classes.forEach((c) => child.classList.add(c));
		el.appendChild(child);
		return window.__codeintel.idOf(child);
	}`, e.id, tag, classes)
	if err != nil {
		return nil, fmt.Errorf("appending <%s>: %w", tag, err)
	}
	if v.Nil() {
		return nil, fmt.Errorf("element %s is gone", e.id)
	}
	return e.page.element(v.Str()), nil
}

func (e *element) Value() (string, error) {
	v, err := e.page.eval(`(id) => { const el = `+lookup+`; return el ? el.value : ""; }`, e.id)
	if err != nil {
		return "", fmt.Errorf("reading value: %w", err)
	}
	return v.Str(), nil
}

func (e *element) SetValue(value string) error {
	if _, err := e.page.eval(`(id, v) => { const el = `+lookup+`; if (el) el.value = v; }`, e.id, value); err != nil {
		return fmt.Errorf("setting value: %w", err)
	}
	return nil
}

type selectionRange struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Direction string `json:"direction"`
}

func (e *element) SelectionRange() (int, int, dom.Direction, error) {
	v, err := e.page.eval(`(id) => {
		const el = `+lookup+`;
		if (!el) return { start: 0, end: 0, direction: "none" };
		return { start: el.selectionStart, end: el.selectionEnd, direction: el.selectionDirection };
	}`, e.id)
	if err != nil {
		return 0, 0, dom.DirectionNone, fmt.Errorf("reading selection: %w", err)
	}

	var sel selectionRange
	if err := decode(v, &sel); err != nil {
		return 0, 0, dom.DirectionNone, fmt.Errorf("decoding selection: %w", err)
	}
	return sel.Start, sel.End, parseDirection(sel.Direction), nil
}

func (e *element) SetSelectionRange(start, end int, dir dom.Direction) error {
	_, err := e.page.eval(`(id, s, e, d) => { const el = `+lookup+`; if (el) el.setSelectionRange(s, e, d); }`,
		e.id, start, end, formatDirection(dir))
	if err != nil {
		return fmt.Errorf("setting selection: %w", err)
	}
	return nil
}

func (e *element) Listen(fn func(dom.Event)) func() {
	return e.page.listen(e.id, fn)
}

func parseDirection(s string) dom.Direction {
	switch s {
	case "forward":
		return dom.DirectionForward
	case "backward":
		return dom.DirectionBackward
	}
	return dom.DirectionNone
}

func formatDirection(d dom.Direction) string {
	switch d {
	case dom.DirectionForward:
		return "forward"
	case dom.DirectionBackward:
		return "backward"
	}
	return "none"
}
