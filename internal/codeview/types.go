// Package codeview resolves code views on a page to the file they show and
// fetches that file's contents.
package codeview

import (
	"context"

	"codeintel/internal/dom"
	"codeintel/internal/views"
)

// FileIdentity names a blob, or a head/base pair of blobs for diff views.
type FileIdentity struct {
	RepoName           string `json:"repoName"`
	RevisionSpec       string `json:"revisionSpec"`
	ResolvedRevisionID string `json:"resolvedRevisionID"`
	FilePath           string `json:"filePath"`
	BaseFilePath       string `json:"baseFilePath,omitempty"`
	BaseCommitID       string `json:"baseCommitID,omitempty"`
	BaseRevisionSpec   string `json:"baseRevisionSpec,omitempty"`
}

// IsDiff reports whether the identity carries a base side.
func (id FileIdentity) IsDiff() bool {
	return id.BaseCommitID != "" || id.BaseRevisionSpec != ""
}

// FileInfoWithContents is a FileIdentity plus whatever content could be
// fetched. Nil fields mean the content is unavailable.
type FileInfoWithContents struct {
	FileIdentity
	Content             *string `json:"content,omitempty"`
	BaseContent         *string `json:"baseContent,omitempty"`
	HeadHasFileContents *bool   `json:"headHasFileContents,omitempty"`
	BaseHasFileContents *bool   `json:"baseHasFileContents,omitempty"`
}

// HasContent reports whether head content was fetched.
func (f FileInfoWithContents) HasContent() bool {
	return f.Content != nil
}

// BlobSpec addresses a single file at a commit.
type BlobSpec struct {
	RepoName string `json:"repoName"`
	FilePath string `json:"filePath"`
	CommitID string `json:"commitID"`
}

// ContentFetcher returns the lines of a blob. A missing blob yields no lines.
type ContentFetcher interface {
	FetchBlobContentLines(ctx context.Context, blob BlobSpec) ([]string, error)
}

// RevisionResolver fills in the concrete commit ids for an identity.
type RevisionResolver interface {
	EnsureRevisionsAreCloned(ctx context.Context, id FileIdentity) (FileIdentity, error)
}

// DiffPart selects a side of a diff view. Non-diff views use DiffPartNone.
type DiffPart string

const (
	DiffPartNone DiffPart = ""
	DiffPartHead DiffPart = "head"
	DiffPartBase DiffPart = "base"
)

// DOMFunctions reads line geometry out of a code view's markup. Lines are
// 1-based.
type DOMFunctions interface {
	CodeElementFromLineNumber(codeView dom.Element, line int, part DiffPart) (dom.Element, error)
	LineNumberFromCodeElement(el dom.Element) (int, error)
	LineText(codeView dom.Element, line int, part DiffPart) (string, error)
}

// Position is a 1-based line and a 0-based character within it.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type AdjustDirection int

const (
	// ActualToModel maps what the page shows onto the fetched source.
	ActualToModel AdjustDirection = iota
	ModelToActual
)

func (d AdjustDirection) String() string {
	if d == ModelToActual {
		return "model-to-actual"
	}
	return "actual-to-model"
}

type AdjustRequest struct {
	CodeView  dom.Element
	Position  Position
	Direction AdjustDirection
	Part      DiffPart
	// Info is the fetched file, when available.
	Info *FileInfoWithContents
}

// PositionAdjuster compensates for hosts whose rendering moves characters,
// such as tab expansion.
type PositionAdjuster interface {
	AdjustPosition(ctx context.Context, req AdjustRequest) (Position, error)
}

// AdjusterFunc adapts a function to PositionAdjuster.
type AdjusterFunc func(ctx context.Context, req AdjustRequest) (Position, error)

func (f AdjusterFunc) AdjustPosition(ctx context.Context, req AdjustRequest) (Position, error) {
	return f(ctx, req)
}

// CodeView is what a host knows about one kind of code view.
type CodeView struct {
	DOM DOMFunctions
	// ResolveFileInfo produces exactly one identity for the element.
	ResolveFileInfo func(ctx context.Context, el dom.Element) (FileIdentity, error)
	// Adjuster is optional; nil leaves positions untouched.
	Adjuster PositionAdjuster
	// ToolbarMount is optional and must return the same mount on every call.
	ToolbarMount func(el dom.Element) (dom.Element, error)
}

// AdjustPosition runs the view's adjuster, or returns the position as is.
func (c *CodeView) AdjustPosition(ctx context.Context, req AdjustRequest) (Position, error) {
	if c.Adjuster == nil {
		return req.Position, nil
	}
	return c.Adjuster.AdjustPosition(ctx, req)
}

// ResolvedCodeView is a code view found on the page.
type ResolvedCodeView struct {
	Element dom.Element
	*CodeView
}

// CodeViewWithSelector registers a CodeView for every element matching
// Selector.
type CodeViewWithSelector struct {
	Selector string
	CodeView
}

func (c CodeViewWithSelector) ToResolver() views.Resolver[*ResolvedCodeView] {
	cv := c.CodeView
	return views.Resolver[*ResolvedCodeView]{
		Selector: c.Selector,
		ResolveView: func(el dom.Element) (*ResolvedCodeView, error) {
			return &ResolvedCodeView{Element: el, CodeView: &cv}, nil
		},
	}
}
