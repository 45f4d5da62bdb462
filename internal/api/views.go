package api

import (
	"net/http"
	"sort"
	"sync"

	"codeintel/internal/codeintel"
	"codeintel/internal/codeview"
	"codeintel/internal/errors"
)

type ViewStatus string

const (
	ViewResolved ViewStatus = "resolved"
	ViewFailed   ViewStatus = "failed"
)

// ViewSummary is the API form of a code view.
type ViewSummary struct {
	ElementID string                         `json:"elementId"`
	Host      string                         `json:"host,omitempty"`
	Status    ViewStatus                     `json:"status"`
	Info      *codeview.FileInfoWithContents `json:"info,omitempty"`
	EditorID  string                         `json:"editorId,omitempty"`
	Error     string                         `json:"error,omitempty"`
}

// ViewIndex tracks live code views. It is a codeintel.Consumer.
type ViewIndex struct {
	mu    sync.RWMutex
	views map[string]ViewSummary
}

var _ codeintel.Consumer = (*ViewIndex)(nil)

func NewViewIndex() *ViewIndex {
	return &ViewIndex{views: make(map[string]ViewSummary)}
}

func (x *ViewIndex) CodeViewResolved(s codeintel.CodeViewState) {
	info := s.Info
	x.mu.Lock()
	defer x.mu.Unlock()
	x.views[s.ElementID] = ViewSummary{
		ElementID: s.ElementID,
		Host:      s.Host,
		Status:    ViewResolved,
		Info:      &info,
		EditorID:  s.EditorID,
	}
}

func (x *ViewIndex) CodeViewFailed(elementID string, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.views[elementID] = ViewSummary{
		ElementID: elementID,
		Status:    ViewFailed,
		Error:     err.Error(),
	}
}

func (x *ViewIndex) CodeViewRemoved(elementID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.views, elementID)
}

// List returns every view ordered by element id.
func (x *ViewIndex) List() []ViewSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]ViewSummary, 0, len(x.views))
	for _, v := range x.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

func (x *ViewIndex) Get(elementID string) (ViewSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	v, ok := x.views[elementID]
	return v, ok
}

type ViewHandler struct {
	index *ViewIndex
}

func NewViewHandler(index *ViewIndex) *ViewHandler {
	return &ViewHandler{index: index}
}

func (h *ViewHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.index.List())
}

func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, ok := h.index.Get(id)
	if !ok {
		writeError(w, errors.NotFound("view not found: "+id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
