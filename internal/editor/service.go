package editor

import (
	"fmt"
	"sync"

	"codeintel/internal/errors"

	"go.uber.org/zap"
)

// Service holds every editor record. Mutations go through id-scoped
// operations only.
type Service struct {
	mu      sync.Mutex
	editors map[string]Record
	order   []string
	nextID  int
	subs    map[int]*subscriber
	nextSub int
	box     Box
	logger  *zap.Logger
}

// NewService creates an empty store. box may be nil; when set, records are
// written through to it and stale records from an earlier run are cleared.
func NewService(box Box, logger *zap.Logger) (*Service, error) {
	if box != nil {
		if err := box.Clear(); err != nil {
			return nil, fmt.Errorf("clearing stale editors: %w", err)
		}
	}
	return &Service{
		editors: make(map[string]Record),
		subs:    make(map[int]*subscriber),
		box:     box,
		logger:  logger,
	}, nil
}

// CreateOrUpdateEditor stores rec and returns its id. An empty EditorID
// allocates a new "editor#N" id.
func (s *Service) CreateOrUpdateEditor(rec Record, origin Origin) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := ChangeUpdated
	if rec.EditorID == "" {
		rec.EditorID = fmt.Sprintf("editor#%d", s.nextID)
		s.nextID++
	}
	if _, ok := s.editors[rec.EditorID]; !ok {
		kind = ChangeAdded
	}
	if rec.Type == "" {
		rec.Type = EditorType
	}
	if rec.Model.URI == "" {
		rec.Model.URI = rec.Resource
	}
	rec = rec.clone()

	if err := s.persistLocked(rec); err != nil {
		return "", err
	}
	if kind == ChangeAdded {
		s.order = append(s.order, rec.EditorID)
	}
	s.editors[rec.EditorID] = rec
	s.publishLocked(Change{Kind: kind, EditorID: rec.EditorID, Origin: origin, Record: rec.clone()})
	return rec.EditorID, nil
}

func (s *Service) UpdateText(id, text string, origin Origin) error {
	return s.update(id, origin, func(rec *Record) bool {
		if rec.Model.Text == text {
			return false
		}
		rec.Model.Text = text
		return true
	})
}

func (s *Service) UpdateSelections(id string, sels []Selection, origin Origin) error {
	return s.update(id, origin, func(rec *Record) bool {
		if equalSelections(rec.Selections, sels) {
			return false
		}
		rec.Selections = append([]Selection(nil), sels...)
		return true
	})
}

func (s *Service) RemoveEditor(id string, origin Origin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.editors[id]
	if !ok {
		return errors.NotFound(fmt.Sprintf("editor not found: %s", id))
	}
	if s.box != nil {
		if err := s.box.Delete(id); err != nil {
			return fmt.Errorf("deleting editor %s: %w", id, err)
		}
	}

	delete(s.editors, id)
	for i, eid := range s.order {
		if eid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.publishLocked(Change{Kind: ChangeRemoved, EditorID: id, Origin: origin, Record: rec})
	return nil
}

func (s *Service) Editor(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.editors[id]
	if !ok {
		return Record{}, errors.NotFound(fmt.Sprintf("editor not found: %s", id))
	}
	return rec.clone(), nil
}

// Editors returns a snapshot in creation order.
func (s *Service) Editors() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.editors[id].clone())
	}
	return out
}

// Subscribe streams every change from now on, preceded by an "added" change
// for each existing editor. Delivery never blocks writers.
func (s *Service) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := newSubscriber()
	for _, id := range s.order {
		rec := s.editors[id]
		sub.push(Change{Kind: ChangeAdded, EditorID: id, Record: rec.clone()})
	}
	key := s.nextSub
	s.nextSub++
	s.subs[key] = sub
	go sub.pump()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
			sub.stop()
		})
	}
}

func (s *Service) update(id string, origin Origin, apply func(*Record) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.editors[id]
	if !ok {
		return errors.NotFound(fmt.Sprintf("editor not found: %s", id))
	}
	rec = rec.clone()
	if !apply(&rec) {
		return nil
	}
	if err := s.persistLocked(rec); err != nil {
		return err
	}
	s.editors[id] = rec
	s.publishLocked(Change{Kind: ChangeUpdated, EditorID: id, Origin: origin, Record: rec.clone()})
	return nil
}

func (s *Service) persistLocked(rec Record) error {
	if s.box == nil {
		return nil
	}
	if err := s.box.Put(rec); err != nil {
		return fmt.Errorf("persisting editor %s: %w", rec.EditorID, err)
	}
	return nil
}

func (s *Service) publishLocked(c Change) {
	s.logger.Debug("editor change",
		zap.String("kind", string(c.Kind)),
		zap.String("editor", c.EditorID),
		zap.String("origin", string(c.Origin)),
	)
	for _, sub := range s.subs {
		sub.push(c)
	}
}

func equalSelections(a, b []Selection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// subscriber buffers changes without bound so publishing never waits on a
// slow reader.
type subscriber struct {
	mu     sync.Mutex
	queue  []Change
	notify chan struct{}
	done   chan struct{}
	out    chan Change
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Change),
	}
}

func (s *subscriber) push(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- c:
		case <-s.done:
			return
		}
	}
}

func (s *subscriber) stop() {
	close(s.done)
}
