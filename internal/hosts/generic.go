package hosts

import (
	"context"
	"fmt"
	"strconv"

	"codeintel/internal/codeview"
	"codeintel/internal/dom"
	"codeintel/internal/errors"
	"codeintel/internal/textfield"
	"codeintel/internal/views"
)

// Markup understood by the generic hosts:
//
//	<div data-code-view data-repo="github.com/foo/bar" data-rev="main"
//	     data-commit="<40 hex>" data-path="a.go"
//	     data-base-rev="v1" data-base-commit="<40 hex>" data-base-path="old.go">
//	  <span data-line="1" data-part="head">package a</span>
//	</div>
const (
	CodeViewSelector  = "[data-code-view]"
	TextFieldSelector = "textarea"
	ToolbarMountClass = "code-view-toolbar-mount"
)

// Generic resolves code views described by data attributes.
func Generic() Host {
	return Host{
		Name:               "generic",
		CodeViewResolvers:  []views.Resolver[*codeview.ResolvedCodeView]{genericCodeView(nil).ToResolver()},
		TextFieldResolvers: []views.Resolver[*textfield.View]{textfield.ResolverFor(TextFieldSelector)},
	}
}

// GenericTabs is Generic for pages that expand leading tabs to spaces.
func GenericTabs(tabWidth int) Host {
	h := Generic()
	h.Name = "generic-tabs"
	h.CodeViewResolvers = []views.Resolver[*codeview.ResolvedCodeView]{
		genericCodeView(codeview.TabAdjuster{TabWidth: tabWidth}).ToResolver(),
	}
	return h
}

func genericCodeView(adjuster codeview.PositionAdjuster) codeview.CodeViewWithSelector {
	return codeview.CodeViewWithSelector{
		Selector: CodeViewSelector,
		CodeView: codeview.CodeView{
			DOM:             dataLineDOM{},
			ResolveFileInfo: resolveDataAttributes,
			Adjuster:        adjuster,
			ToolbarMount:    toolbarMount,
		},
	}
}

func attr(el dom.Element, name string) (string, error) {
	v, _, err := el.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return v, nil
}

func resolveDataAttributes(_ context.Context, el dom.Element) (codeview.FileIdentity, error) {
	var id codeview.FileIdentity
	fields := []struct {
		name string
		dst  *string
	}{
		{"data-repo", &id.RepoName},
		{"data-rev", &id.RevisionSpec},
		{"data-commit", &id.ResolvedRevisionID},
		{"data-path", &id.FilePath},
		{"data-base-path", &id.BaseFilePath},
		{"data-base-commit", &id.BaseCommitID},
		{"data-base-rev", &id.BaseRevisionSpec},
	}
	for _, f := range fields {
		v, err := attr(el, f.name)
		if err != nil {
			return codeview.FileIdentity{}, err
		}
		*f.dst = v
	}

	switch {
	case id.RepoName == "":
		return codeview.FileIdentity{}, errors.ValidationError("code view has no data-repo", el.ID())
	case id.FilePath == "":
		return codeview.FileIdentity{}, errors.ValidationError("code view has no data-path", el.ID())
	case id.RevisionSpec == "" && id.ResolvedRevisionID == "":
		return codeview.FileIdentity{}, errors.ValidationError("code view has neither data-rev nor data-commit", el.ID())
	}
	if id.RevisionSpec == "" {
		id.RevisionSpec = id.ResolvedRevisionID
	}
	return id, nil
}

// dataLineDOM finds lines by their data-line attribute.
type dataLineDOM struct{}

func (dataLineDOM) CodeElementFromLineNumber(codeView dom.Element, line int, part codeview.DiffPart) (dom.Element, error) {
	selector := fmt.Sprintf(`[data-line="%d"]`, line)
	if part != codeview.DiffPartNone {
		selector += fmt.Sprintf(`[data-part="%s"]`, part)
	}
	els, err := codeView.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("line %d not found", line))
	}
	return els[0], nil
}

func (dataLineDOM) LineNumberFromCodeElement(el dom.Element) (int, error) {
	v, ok, err := el.Attribute("data-line")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.ValidationError("element has no data-line", el.ID())
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.ValidationError(fmt.Sprintf("invalid data-line %q", v), el.ID())
	}
	return n, nil
}

func (d dataLineDOM) LineText(codeView dom.Element, line int, part codeview.DiffPart) (string, error) {
	el, err := d.CodeElementFromLineNumber(codeView, line, part)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func toolbarMount(el dom.Element) (dom.Element, error) {
	existing, err := el.QuerySelectorAll("." + ToolbarMountClass)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return el.AppendChild("div", ToolbarMountClass)
}
