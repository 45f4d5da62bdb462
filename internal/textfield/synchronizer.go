// Package textfield mirrors plain-text editing surfaces, such as comment
// boxes, into the editor store and keeps both sides in sync.
package textfield

import (
	"context"
	"fmt"
	"sync"

	"codeintel/internal/dom"
	"codeintel/internal/editor"
	"codeintel/internal/views"

	"go.uber.org/zap"
)

const (
	// Origin tags store writes made by the synchronizer.
	Origin editor.Origin = "textfield"

	// MountedClass marks elements that are bound to an editor.
	MountedClass = "sg-mounted"

	languageID = "plaintext"
)

// View is a text field found on the page.
type View struct {
	Element dom.TextControl
}

// ResolverFor matches text controls by selector. Matching elements that
// are not text controls are skipped.
func ResolverFor(selector string) views.Resolver[*View] {
	return views.Resolver[*View]{
		Selector: selector,
		ResolveView: func(el dom.Element) (*View, error) {
			tc, ok := dom.AsTextControl(el)
			if !ok {
				return nil, views.ErrSkip
			}
			return &View{Element: tc}, nil
		},
	}
}

// fieldState is what the element and its record agree on.
type fieldState struct {
	text      string
	selection editor.Selection
}

type binding struct {
	elementID string
	editorID  string
	el        dom.TextControl
	last      fieldState
	unlisten  func()
	// done closes when the tracked occurrence is removed from the page.
	done <-chan struct{}
}

// Synchronizer binds text fields to editor records. All bindings are owned
// by the goroutine running Run.
type Synchronizer struct {
	editors *editor.Service
	logger  *zap.Logger

	bindings  map[string]*binding // by element id
	byEditor  map[string]*binding
	resources int

	pending   *pending
	disposals chan *binding
}

func New(editors *editor.Service, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		editors:   editors,
		logger:    logger,
		bindings:  make(map[string]*binding),
		byEditor:  make(map[string]*binding),
		pending:   newPending(),
		disposals: make(chan *binding),
	}
}

// Run binds every view received on tracked and syncs it until its element
// is removed. It returns when ctx is done, after disposing every binding.
func (s *Synchronizer) Run(ctx context.Context, tracked <-chan *views.Tracked[*View]) {
	changes, unsubscribe := s.editors.Subscribe()
	defer unsubscribe()
	defer s.disposeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-tracked:
			if !ok {
				// Bound fields live on until they are removed.
				tracked = nil
				continue
			}
			s.bind(ctx, t)

		case <-s.pending.notify:
			for _, id := range s.pending.take() {
				if b, ok := s.bindings[id]; ok {
					s.pushToModel(b)
				}
			}

		case c, ok := <-changes:
			if !ok {
				return
			}
			s.applyToDOM(c)

		case b := <-s.disposals:
			s.dispose(b)
		}
	}
}

func (s *Synchronizer) bind(ctx context.Context, t *views.Tracked[*View]) {
	el := t.View.Element
	logger := s.logger.With(zap.String("element", el.ID()))
	if old, ok := s.bindings[el.ID()]; ok {
		select {
		case <-old.done:
			// Removed and re-inserted before the old disposal arrived.
			s.dispose(old)
		default:
			logger.Debug("text field already bound")
			return
		}
	}

	state, err := readState(el)
	if err != nil {
		logger.Warn("reading text field", zap.Error(err))
		return
	}

	resource := fmt.Sprintf("comment://%d", s.resources)
	s.resources++
	editorID, err := s.editors.CreateOrUpdateEditor(editor.Record{
		Type:     editor.EditorType,
		Resource: resource,
		Model: editor.Model{
			URI:        resource,
			Text:       state.text,
			LanguageID: languageID,
		},
		Selections: []editor.Selection{state.selection},
		IsActive:   true,
	}, Origin)
	if err != nil {
		logger.Error("creating editor", zap.Error(err))
		return
	}

	if err := el.AddClass(MountedClass); err != nil {
		logger.Warn("marking text field", zap.Error(err))
	}

	b := &binding{elementID: el.ID(), editorID: editorID, el: el, last: state, done: t.Done()}
	b.unlisten = el.Listen(func(dom.Event) {
		s.pending.mark(b.elementID)
	})
	s.bindings[b.elementID] = b
	s.byEditor[editorID] = b
	logger.Debug("text field bound", zap.String("editor", editorID))

	go func() {
		select {
		case <-t.Done():
			select {
			case s.disposals <- b:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

func (s *Synchronizer) pushToModel(b *binding) {
	state, err := readState(b.el)
	if err != nil {
		s.logger.Warn("reading text field", zap.String("element", b.elementID), zap.Error(err))
		return
	}
	if state == b.last {
		return
	}

	if state.text != b.last.text {
		if err := s.editors.UpdateText(b.editorID, state.text, Origin); err != nil {
			s.logger.Warn("updating editor text", zap.String("editor", b.editorID), zap.Error(err))
			return
		}
	}
	if state.selection != b.last.selection {
		if err := s.editors.UpdateSelections(b.editorID, []editor.Selection{state.selection}, Origin); err != nil {
			s.logger.Warn("updating editor selections", zap.String("editor", b.editorID), zap.Error(err))
			return
		}
	}
	b.last = state
}

func (s *Synchronizer) applyToDOM(c editor.Change) {
	if c.Origin == Origin {
		return
	}
	b, ok := s.byEditor[c.EditorID]
	if !ok {
		return
	}

	switch c.Kind {
	case editor.ChangeRemoved:
		s.logger.Info("editor removed elsewhere, unbinding text field",
			zap.String("editor", c.EditorID),
			zap.String("origin", string(c.Origin)),
		)
		s.unbind(b)
		return
	case editor.ChangeAdded:
		return
	}

	rec := c.Record
	if s.pending.drop(b.elementID) {
		// Input not yet sent to the model is newer than c.
		s.pushToModel(b)
		latest, err := s.editors.Editor(b.editorID)
		if err != nil {
			s.logger.Warn("reading editor", zap.String("editor", b.editorID), zap.Error(err))
			return
		}
		rec = latest
	}

	want := fieldState{text: rec.Model.Text, selection: b.last.selection}
	if len(rec.Selections) > 0 {
		want.selection = rec.Selections[0]
	}
	if want == b.last {
		return
	}

	if err := writeState(b.el, want); err != nil {
		s.logger.Warn("writing text field", zap.String("element", b.elementID), zap.Error(err))
		return
	}
	// Remember what the element actually holds so its echo events are no-ops.
	state, err := readState(b.el)
	if err != nil {
		s.logger.Warn("reading text field", zap.String("element", b.elementID), zap.Error(err))
		return
	}
	b.last = state
}

// dispose removes b's editor. A binding that was already replaced or
// unbound is left alone.
func (s *Synchronizer) dispose(b *binding) {
	if s.bindings[b.elementID] != b {
		return
	}
	s.unbind(b)
	if err := s.editors.RemoveEditor(b.editorID, Origin); err != nil {
		s.logger.Warn("removing editor", zap.String("editor", b.editorID), zap.Error(err))
	}
	s.logger.Debug("text field disposed", zap.String("editor", b.editorID))
}

func (s *Synchronizer) unbind(b *binding) {
	b.unlisten()
	delete(s.bindings, b.elementID)
	delete(s.byEditor, b.editorID)
}

func (s *Synchronizer) disposeAll() {
	for _, b := range s.bindings {
		s.dispose(b)
	}
}

func readState(el dom.TextControl) (fieldState, error) {
	text, err := el.Value()
	if err != nil {
		return fieldState{}, err
	}
	start, end, dir, err := el.SelectionRange()
	if err != nil {
		return fieldState{}, err
	}

	anchor, active := start, end
	if dir == dom.DirectionBackward {
		anchor, active = end, start
	}
	return fieldState{text: text, selection: editor.SelectionFromOffsets(text, anchor, active)}, nil
}

func writeState(el dom.TextControl, st fieldState) error {
	value, err := el.Value()
	if err != nil {
		return err
	}
	if value != st.text {
		if err := el.SetValue(st.text); err != nil {
			return err
		}
	}

	start := editor.OffsetAt(st.text, st.selection.Start)
	end := editor.OffsetAt(st.text, st.selection.End)
	dir := dom.DirectionForward
	if st.selection.IsReversed {
		dir = dom.DirectionBackward
	}
	return el.SetSelectionRange(start, end, dir)
}

// pending collects elements with unprocessed DOM events. Marking never
// blocks, so listeners may fire from any goroutine, including Run's own.
type pending struct {
	mu     sync.Mutex
	ids    map[string]struct{}
	notify chan struct{}
}

func newPending() *pending {
	return &pending{
		ids:    make(map[string]struct{}),
		notify: make(chan struct{}, 1),
	}
}

func (p *pending) mark(id string) {
	p.mu.Lock()
	p.ids[id] = struct{}{}
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// drop clears id and reports whether it was pending.
func (p *pending) drop(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	delete(p.ids, id)
	return ok
}

func (p *pending) take() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	clear(p.ids)
	return ids
}
