// Package editor is the editor-model store: the process-wide set of text
// buffers and selections that code intelligence features read.
package editor

// EditorType is the only kind of editor the store holds.
const EditorType = "CodeEditor"

type Model struct {
	URI        string `json:"uri"`
	Text       string `json:"text"`
	LanguageID string `json:"languageId"`
}

type Record struct {
	EditorID   string      `json:"editorId"`
	Type       string      `json:"type"`
	Resource   string      `json:"resource"`
	Model      Model       `json:"model"`
	Selections []Selection `json:"selections"`
	IsActive   bool        `json:"isActive"`
}

// GetID implements storage.Entity.
func (r Record) GetID() string {
	return r.EditorID
}

func (r Record) clone() Record {
	if r.Selections != nil {
		r.Selections = append([]Selection(nil), r.Selections...)
	}
	return r
}

// Origin tags who made a change so writers can ignore their own echoes.
type Origin string

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change is one store mutation. Record is the state after the change; for
// removals it is the last state.
type Change struct {
	Kind     ChangeKind
	EditorID string
	Origin   Origin
	Record   Record
}

// Box persists records outside the process.
type Box interface {
	Put(rec Record) error
	Delete(id string) error
	List() ([]Record, error)
	Clear() error
}
