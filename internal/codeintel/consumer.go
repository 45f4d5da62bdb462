package codeintel

import (
	"codeintel/internal/codeview"
	"codeintel/internal/dom"
)

// CodeViewState is a resolved code view as consumers see it.
type CodeViewState struct {
	ElementID string                        `json:"elementId"`
	Host      string                        `json:"host"`
	Info      codeview.FileInfoWithContents `json:"info"`
	// EditorID is set when the content was registered as an editor.
	EditorID string `json:"editorId,omitempty"`

	View  *codeview.ResolvedCodeView `json:"-"`
	Mount dom.Element                `json:"-"`
}

// Consumer receives code view lifecycle events. Calls for different views
// may arrive concurrently.
type Consumer interface {
	CodeViewResolved(state CodeViewState)
	CodeViewFailed(elementID string, err error)
	CodeViewRemoved(elementID string)
}

// Consumers fans events out to each consumer in order.
type Consumers []Consumer

func (cs Consumers) CodeViewResolved(state CodeViewState) {
	for _, c := range cs {
		c.CodeViewResolved(state)
	}
}

func (cs Consumers) CodeViewFailed(elementID string, err error) {
	for _, c := range cs {
		c.CodeViewFailed(elementID, err)
	}
}

func (cs Consumers) CodeViewRemoved(elementID string) {
	for _, c := range cs {
		c.CodeViewRemoved(elementID)
	}
}
