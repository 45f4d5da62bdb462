package storage

import (
	"testing"

	"codeintel/internal/editor"
	"codeintel/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *badger.DB {
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id, text string) editor.Record {
	return editor.Record{
		EditorID: id,
		Type:     editor.EditorType,
		Resource: "comment://0",
		Model:    editor.Model{URI: "comment://0", Text: text, LanguageID: "plaintext"},
		Selections: []editor.Selection{
			editor.SelectionFromOffsets(text, 0, 1),
		},
		IsActive: true,
	}
}

func TestEditorStore(t *testing.T) {
	store := NewStore(setupTestDB(t))

	t.Run("Put and Get", func(t *testing.T) {
		rec := record("editor#0", "abc")
		require.NoError(t, store.Put(rec))

		got, err := store.Get("editor#0")
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("Put replaces", func(t *testing.T) {
		require.NoError(t, store.Put(record("editor#0", "xyz")))
		got, err := store.Get("editor#0")
		require.NoError(t, err)
		assert.Equal(t, "xyz", got.Model.Text)
	})

	t.Run("Validation", func(t *testing.T) {
		assert.Error(t, store.Put(editor.Record{Type: editor.EditorType}))
		assert.Error(t, store.Put(editor.Record{EditorID: "editor#9", Type: "DiffEditor"}))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.Get("does-not-exist")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("List and Clear", func(t *testing.T) {
		require.NoError(t, store.Put(record("editor#1", "def")))
		list, err := store.List()
		require.NoError(t, err)
		assert.Len(t, list, 2)

		require.NoError(t, store.Delete("editor#1"))
		list, err = store.List()
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, store.Clear())
		list, err = store.List()
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestServiceWritesThrough(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.Put(record("editor#7", "stale")))

	svc, err := editor.NewService(store, zap.NewNop())
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list, "stale records are cleared on startup")

	id, err := svc.CreateOrUpdateEditor(record("", "abc"), "test")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateText(id, "abcd", "test"))

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "abcd", got.Model.Text)

	require.NoError(t, svc.RemoveEditor(id, "test"))
	_, err = store.Get(id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
