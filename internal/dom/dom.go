// Package dom describes the page elements the rest of the module works
// against. Handles are opaque; identity is ID().
package dom

// Element is a handle to a node attached to (or removed from) a page.
type Element interface {
	// ID is stable for the lifetime of the underlying node.
	ID() string
	// Contains reports whether other is e or one of its descendants.
	Contains(other Element) bool
	QuerySelectorAll(selector string) ([]Element, error)
	Attribute(name string) (value string, ok bool, err error)
	Text() (string, error)
	HasClass(class string) (bool, error)
	AddClass(class string) error
	AppendChild(tag string, classes ...string) (Element, error)
}

// Document is the page root that resolvers are matched against.
type Document interface {
	QuerySelectorAll(selector string) ([]Element, error)
}

// MutationBatch is one delivery of DOM changes.
type MutationBatch struct {
	Added   []Element
	Removed []Element
	// DescendantsListed is set when Removed already names every removed
	// element that was ever returned by a query, so no containment checks
	// are needed.
	DescendantsListed bool
}

// Direction of a text selection.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
)

type EventType string

const (
	EventInput  EventType = "input"
	EventSelect EventType = "select"
)

type Event struct {
	Type EventType
}

// TextControl is a plain-text editing surface such as a <textarea>.
// Offsets are in UTF-16 code units, as the browser reports them.
type TextControl interface {
	Element
	Value() (string, error)
	SetValue(value string) error
	SelectionRange() (start, end int, dir Direction, err error)
	SetSelectionRange(start, end int, dir Direction) error
	// Listen registers fn for input and selection events. fn may be called
	// from any goroutine.
	Listen(fn func(Event)) (cancel func())
}

// AsTextControl returns el as a TextControl when it supports text editing.
func AsTextControl(el Element) (TextControl, bool) {
	tc, ok := el.(TextControl)
	return tc, ok
}
