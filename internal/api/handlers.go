// internal/api/handlers.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"codeintel/internal/editor"
	"codeintel/internal/errors"
)

// EditorSource is the read side of the editor store.
type EditorSource interface {
	Editors() []editor.Record
	Editor(id string) (editor.Record, error)
}

type EditorHandler struct {
	editors EditorSource
}

func NewEditorHandler(editors EditorSource) *EditorHandler {
	return &EditorHandler{editors: editors}
}

func (h *EditorHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.editors.Editors())
}

func (h *EditorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, errors.ValidationError("missing id", nil))
		return
	}

	rec, err := h.editors.Editor(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Health reports that the server is up.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter mounts every handler on a mux.
func NewRouter(editors *EditorHandler, views *ViewHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("GET /api/editors", editors.List)
	mux.HandleFunc("GET /api/editors/{id}", editors.Get)
	mux.HandleFunc("GET /api/views", views.List)
	mux.HandleFunc("GET /api/views/{id}", views.Get)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.Internal(err.Error())
	}
	writeJSON(w, errors.StatusCode(e), e)
}
