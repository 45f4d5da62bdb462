package htmldom

import (
	"testing"

	"codeintel/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div class="file" data-path="a.go"><pre><span data-line="1">package a</span></pre></div>
<textarea id="comment">hi</textarea>
</body></html>`

func TestQueryAndIdentity(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	first, err := doc.QuerySelectorAll(".file")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := doc.QuerySelectorAll("div[data-path]")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID(), second[0].ID(), "same node keeps its id across queries")

	path, ok, err := first[0].Attribute("data-path")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.go", path)

	lines, err := first[0].QuerySelectorAll("[data-line]")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, first[0].Contains(lines[0]))
	assert.False(t, lines[0].Contains(first[0]))

	text, err := lines[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "package a", text)
}

func TestQueryExcludesScope(t *testing.T) {
	doc, err := ParseString(`<div class="x"><div class="x"></div></div>`)
	require.NoError(t, err)

	outer, err := doc.QuerySelectorAll(".x")
	require.NoError(t, err)
	require.Len(t, outer, 2)

	inner, err := outer[0].QuerySelectorAll(".x")
	require.NoError(t, err)
	assert.Len(t, inner, 1)
}

func TestInvalidSelector(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	_, err = doc.QuerySelectorAll("div[")
	assert.Error(t, err)
}

func TestClassesAndChildren(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)
	file := mustOne(t, doc, ".file")

	require.NoError(t, file.AddClass("sg-mounted"))
	require.NoError(t, file.AddClass("sg-mounted"))
	v, _, _ := file.Attribute("class")
	assert.Equal(t, "file sg-mounted", v)

	mount, err := file.AppendChild("div", "toolbar")
	require.NoError(t, err)
	found := mustOne(t, doc, ".file > .toolbar")
	assert.Equal(t, mount.ID(), found.ID())
}

func TestMutations(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	batch, err := doc.AppendHTML(doc.Body(), `<div class="late"></div>text`)
	require.NoError(t, err)
	require.Len(t, batch.Added, 1)
	late := mustOne(t, doc, ".late")
	assert.Equal(t, late.ID(), batch.Added[0].ID())

	removed, err := doc.Remove(late)
	require.NoError(t, err)
	assert.Equal(t, []dom.Element{late}, removed.Removed)

	els, err := doc.QuerySelectorAll(".late")
	require.NoError(t, err)
	assert.Empty(t, els)

	_, err = doc.Remove(late)
	assert.Error(t, err)

	back, err := doc.Reattach(doc.Body(), late)
	require.NoError(t, err)
	assert.Equal(t, late.ID(), back.Added[0].ID())
	assert.Equal(t, late.ID(), mustOne(t, doc, ".late").ID())
}

func TestTextArea(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	tc, ok := dom.AsTextControl(mustOne(t, doc, "#comment"))
	require.True(t, ok)
	_, ok = dom.AsTextControl(mustOne(t, doc, ".file"))
	assert.False(t, ok)

	value, err := tc.Value()
	require.NoError(t, err)
	assert.Equal(t, "hi", value)

	var events []dom.Event
	cancel := tc.Listen(func(ev dom.Event) { events = append(events, ev) })
	assert.Equal(t, 1, doc.ListenerCount(tc))

	require.NoError(t, doc.UserInput(tc, "h€llo"))
	start, end, _, err := tc.SelectionRange()
	require.NoError(t, err)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)

	require.NoError(t, doc.UserSelect(tc, 4, 1, dom.DirectionBackward))
	start, end, dir, err := tc.SelectionRange()
	require.NoError(t, err)
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, end)
	assert.Equal(t, dom.DirectionBackward, dir)

	require.NoError(t, tc.SetSelectionRange(0, 99, dom.DirectionForward))
	start, end, _, _ = tc.SelectionRange()
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	assert.Equal(t, []dom.Event{{Type: dom.EventInput}, {Type: dom.EventSelect}}, events)

	cancel()
	assert.Equal(t, 0, doc.ListenerCount(tc))
	require.NoError(t, doc.UserInput(tc, "x"))
	assert.Len(t, events, 2)
}

func mustOne(t *testing.T, doc *Document, selector string) dom.Element {
	t.Helper()
	els, err := doc.QuerySelectorAll(selector)
	require.NoError(t, err)
	require.Len(t, els, 1, selector)
	return els[0]
}
