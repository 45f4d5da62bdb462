package codeview

import (
	"context"
	"testing"

	"codeintel/internal/dom"
	"codeintel/internal/dom/htmldom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabAdjuster(t *testing.T) {
	head := "func main() {\n\t\treturn\n}"
	base := "\tx"
	info := &FileInfoWithContents{FileIdentity: testIdentity, Content: &head, BaseContent: &base}
	adj := TabAdjuster{TabWidth: 4}

	tests := []struct {
		name string
		req  AdjustRequest
		want Position
	}{
		{"no tabs", AdjustRequest{Position: Position{1, 5}, Info: info}, Position{1, 5}},
		{"actual to model", AdjustRequest{Position: Position{2, 10}, Info: info}, Position{2, 4}},
		{"model to actual", AdjustRequest{Position: Position{2, 4}, Direction: ModelToActual, Info: info}, Position{2, 10}},
		{"clamped", AdjustRequest{Position: Position{2, 3}, Info: info}, Position{2, 0}},
		{"base part", AdjustRequest{Position: Position{1, 5}, Part: DiffPartBase, Info: info}, Position{1, 2}},
		{"line out of range", AdjustRequest{Position: Position{9, 5}, Info: info}, Position{9, 5}},
		{"no content", AdjustRequest{Position: Position{2, 10}}, Position{2, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := adj.AdjustPosition(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodeViewAdjustPositionDefaultsToIdentity(t *testing.T) {
	cv := &CodeView{}
	got, err := cv.AdjustPosition(context.Background(), AdjustRequest{Position: Position{3, 7}})
	require.NoError(t, err)
	assert.Equal(t, Position{3, 7}, got)

	cv.Adjuster = AdjusterFunc(func(_ context.Context, req AdjustRequest) (Position, error) {
		return Position{req.Position.Line, req.Position.Character + 1}, nil
	})
	got, err = cv.AdjustPosition(context.Background(), AdjustRequest{Position: Position{3, 7}})
	require.NoError(t, err)
	assert.Equal(t, Position{3, 8}, got)
}

func TestToResolver(t *testing.T) {
	doc, err := htmldom.ParseString(`<pre class="code"></pre>`)
	require.NoError(t, err)
	els, err := doc.QuerySelectorAll(".code")
	require.NoError(t, err)

	resolveCalled := false
	r := CodeViewWithSelector{
		Selector: ".code",
		CodeView: CodeView{
			ResolveFileInfo: func(context.Context, dom.Element) (FileIdentity, error) {
				resolveCalled = true
				return testIdentity, nil
			},
		},
	}.ToResolver()
	assert.Equal(t, ".code", r.Selector)

	view, err := r.ResolveView(els[0])
	require.NoError(t, err)
	assert.Equal(t, els[0].ID(), view.Element.ID())

	id, err := view.ResolveFileInfo(context.Background(), view.Element)
	require.NoError(t, err)
	assert.True(t, resolveCalled)
	assert.Equal(t, testIdentity, id)
}
