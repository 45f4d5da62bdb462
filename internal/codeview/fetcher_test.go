package codeview

import (
	"context"
	"sync"
	"testing"

	"codeintel/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockContent serves blob lines from a map keyed by commit and path.
type MockContent struct {
	mu    sync.Mutex
	blobs map[BlobSpec][]string
	errs  map[BlobSpec]error
	calls []BlobSpec
}

func NewMockContent() *MockContent {
	return &MockContent{
		blobs: make(map[BlobSpec][]string),
		errs:  make(map[BlobSpec]error),
	}
}

func (m *MockContent) FetchBlobContentLines(_ context.Context, blob BlobSpec) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, blob)
	if err := m.errs[blob]; err != nil {
		return nil, err
	}
	return m.blobs[blob], nil
}

// MockRevisions resolves by returning the identity it was given, or err.
type MockRevisions struct {
	err     error
	resolve func(FileIdentity) FileIdentity
}

func (m *MockRevisions) EnsureRevisionsAreCloned(_ context.Context, id FileIdentity) (FileIdentity, error) {
	if m.err != nil {
		return FileIdentity{}, m.err
	}
	if m.resolve != nil {
		return m.resolve(id), nil
	}
	return id, nil
}

var testIdentity = FileIdentity{
	RepoName:           "github.com/foo/bar",
	RevisionSpec:       "main",
	ResolvedRevisionID: "1111111111111111111111111111111111111111",
	FilePath:           "cmd/main.go",
}

func headBlob(id FileIdentity) BlobSpec {
	return BlobSpec{RepoName: id.RepoName, FilePath: id.FilePath, CommitID: id.ResolvedRevisionID}
}

func TestFetchFileContentsJoinsHead(t *testing.T) {
	content := NewMockContent()
	content.blobs[headBlob(testIdentity)] = []string{"a", "b"}
	f := NewFetcher(content, &MockRevisions{}, zap.NewNop())

	info, err := f.FetchFileContents(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, testIdentity, info.FileIdentity)
	require.NotNil(t, info.Content)
	assert.Equal(t, "a\nb", *info.Content)
	require.NotNil(t, info.HeadHasFileContents)
	assert.True(t, *info.HeadHasFileContents)
	assert.Nil(t, info.BaseContent)
	assert.Nil(t, info.BaseHasFileContents)
	assert.Len(t, content.calls, 1, "no base fetch without a base commit")
}

func TestFetchFileContentsEmptyHead(t *testing.T) {
	f := NewFetcher(NewMockContent(), &MockRevisions{}, zap.NewNop())

	info, err := f.FetchFileContents(context.Background(), testIdentity)
	require.NoError(t, err)
	require.NotNil(t, info.Content)
	assert.Equal(t, "", *info.Content)
	assert.False(t, *info.HeadHasFileContents)
}

func TestFetchFileContentsDiff(t *testing.T) {
	tests := []struct {
		name         string
		baseFilePath string
		wantBasePath string
		baseLines    []string
		wantBase     string
		wantHasBase  bool
	}{
		{
			name:         "renamed file",
			baseFilePath: "main.go",
			wantBasePath: "main.go",
			baseLines:    []string{"x", "", "y"},
			wantBase:     "x\n\ny",
			wantHasBase:  true,
		},
		{
			name:         "base path falls back to head path",
			wantBasePath: "cmd/main.go",
			baseLines:    []string{"x"},
			wantBase:     "x",
			wantHasBase:  true,
		},
		{
			name:         "file added in head",
			wantBasePath: "cmd/main.go",
			wantBase:     "",
			wantHasBase:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := testIdentity
			id.BaseCommitID = "2222222222222222222222222222222222222222"
			id.BaseFilePath = tt.baseFilePath

			content := NewMockContent()
			content.blobs[headBlob(id)] = []string{"a"}
			if tt.baseLines != nil {
				content.blobs[BlobSpec{RepoName: id.RepoName, FilePath: tt.wantBasePath, CommitID: id.BaseCommitID}] = tt.baseLines
			}

			info, err := NewFetcher(content, &MockRevisions{}, zap.NewNop()).FetchFileContents(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, "a", *info.Content)
			require.NotNil(t, info.BaseContent)
			assert.Equal(t, tt.wantBase, *info.BaseContent)
			assert.Equal(t, tt.wantHasBase, *info.BaseHasFileContents)
			assert.Contains(t, content.calls, BlobSpec{RepoName: id.RepoName, FilePath: tt.wantBasePath, CommitID: id.BaseCommitID})
		})
	}
}

func TestFetchFileContentsDegrades(t *testing.T) {
	diff := testIdentity
	diff.BaseCommitID = "2222222222222222222222222222222222222222"
	baseBlob := BlobSpec{RepoName: diff.RepoName, FilePath: diff.FilePath, CommitID: diff.BaseCommitID}

	tests := []struct {
		name      string
		id        FileIdentity
		revisions *MockRevisions
		errs      map[BlobSpec]error
	}{
		{
			name:      "head fetch fails",
			id:        testIdentity,
			revisions: &MockRevisions{},
			errs:      map[BlobSpec]error{headBlob(testIdentity): assert.AnError},
		},
		{
			name:      "base fetch fails",
			id:        diff,
			revisions: &MockRevisions{},
			errs:      map[BlobSpec]error{baseBlob: assert.AnError},
		},
		{
			name:      "content fetch hits private repository",
			id:        testIdentity,
			revisions: &MockRevisions{},
			errs:      map[BlobSpec]error{headBlob(testIdentity): errors.PrivateRepoPublicInstance("blob")},
		},
		{
			name:      "revision resolution hits private repository",
			id:        diff,
			revisions: &MockRevisions{err: errors.PrivateRepoPublicInstance("resolveRev")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := NewMockContent()
			content.blobs[headBlob(tt.id)] = []string{"a"}
			for k, v := range tt.errs {
				content.errs[k] = v
			}

			info, err := NewFetcher(content, tt.revisions, zap.NewNop()).FetchFileContents(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.id, info.FileIdentity)
			assert.Nil(t, info.Content)
			assert.Nil(t, info.HeadHasFileContents)
			assert.Nil(t, info.BaseContent)
			assert.Nil(t, info.BaseHasFileContents)
		})
	}
}

func TestFetchFileContentsDegradesToResolvedIdentity(t *testing.T) {
	unresolved := testIdentity
	unresolved.ResolvedRevisionID = ""
	revisions := &MockRevisions{resolve: func(id FileIdentity) FileIdentity {
		id.ResolvedRevisionID = testIdentity.ResolvedRevisionID
		return id
	}}
	content := NewMockContent()
	content.errs[headBlob(testIdentity)] = assert.AnError

	info, err := NewFetcher(content, revisions, zap.NewNop()).FetchFileContents(context.Background(), unresolved)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, info.FileIdentity)
	assert.Nil(t, info.Content)
}

func TestFetchFileContentsPropagatesResolutionFailure(t *testing.T) {
	for _, cause := range []error{
		errors.RevNotFound(testIdentity.RepoName, "nope"),
		errors.RepoNotFound(testIdentity.RepoName),
		assert.AnError,
	} {
		f := NewFetcher(NewMockContent(), &MockRevisions{err: cause}, zap.NewNop())
		_, err := f.FetchFileContents(context.Background(), testIdentity)
		assert.ErrorIs(t, err, cause)
	}
}

func TestFetchFileContentsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content := NewMockContent()
	content.errs[headBlob(testIdentity)] = context.Canceled
	_, err := NewFetcher(content, &MockRevisions{}, zap.NewNop()).FetchFileContents(ctx, testIdentity)
	assert.ErrorIs(t, err, context.Canceled)
}
