package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeintel/internal/codeview"
	"codeintel/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInstance answers GraphQL queries from in-memory repositories.
type fakeInstance struct {
	mu      sync.Mutex
	repos   map[string]*fakeRepo
	clones  map[string]int // remaining clone-in-progress answers per repo
	auth    []string
	queries int
}

type fakeRepo struct {
	revs  map[string]string            // rev -> oid
	files map[string]map[string]string // oid -> path -> content
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{
		repos:  make(map[string]*fakeRepo),
		clones: make(map[string]int),
	}
}

func (f *fakeInstance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	repoName, _ := req.Variables["repoName"].(string)
	repo := f.repos[repoName]

	var data any
	switch r.URL.RawQuery {
	case "ResolveRev":
		rev, _ := req.Variables["rev"].(string)
		switch {
		case repo == nil:
			data = map[string]any{"repository": nil}
		case f.clones[repoName] > 0:
			f.clones[repoName]--
			data = map[string]any{"repository": map[string]any{
				"mirrorInfo": map[string]any{"cloneInProgress": true},
				"commit":     nil,
			}}
		default:
			var commit any
			if oid, ok := repo.revs[rev]; ok {
				commit = map[string]any{"oid": oid}
			}
			data = map[string]any{"repository": map[string]any{
				"mirrorInfo": map[string]any{"cloneInProgress": false},
				"commit":     commit,
			}}
		}
	case "BlobContent":
		commitID, _ := req.Variables["commitID"].(string)
		path, _ := req.Variables["filePath"].(string)
		switch {
		case repo == nil:
			data = map[string]any{"repository": nil}
		case repo.files[commitID] == nil:
			data = map[string]any{"repository": map[string]any{"commit": nil}}
		default:
			var file any
			if content, ok := repo.files[commitID][path]; ok {
				file = map[string]any{"content": content}
			}
			data = map[string]any{"repository": map[string]any{"commit": map[string]any{"file": file}}}
		}
	case "Broken":
		json.NewEncoder(w).Encode(map[string]any{"errors": []map[string]string{{"message": "boom"}}})
		return
	default:
		http.Error(w, "unknown query", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

const (
	headOID = "1111111111111111111111111111111111111111"
	baseOID = "2222222222222222222222222222222222222222"
)

func setup(t *testing.T, opts Options) (*Client, *fakeInstance) {
	fake := newFakeInstance()
	fake.repos["github.com/foo/bar"] = &fakeRepo{
		revs: map[string]string{"main": headOID, headOID: headOID, "v1": baseOID, baseOID: baseOID},
		files: map[string]map[string]string{
			headOID: {"a.go": "package a\n\nfunc A() {}\n"},
			baseOID: {"a.go": "package a\n"},
		},
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	opts.URL = srv.URL + "/"
	if opts.CloneBackoff == 0 {
		opts.CloneBackoff = time.Millisecond
	}
	return New(opts, zap.NewNop()), fake
}

func TestFetchBlobContentLines(t *testing.T) {
	c, fake := setup(t, Options{AccessToken: "secret"})
	ctx := context.Background()

	lines, err := c.FetchBlobContentLines(ctx, codeview.BlobSpec{RepoName: "github.com/foo/bar", FilePath: "a.go", CommitID: headOID})
	require.NoError(t, err)
	assert.Equal(t, []string{"package a", "", "func A() {}", ""}, lines)
	assert.Equal(t, "token secret", fake.auth[0])

	for name, blob := range map[string]codeview.BlobSpec{
		"missing repo":   {RepoName: "github.com/nope/nope", FilePath: "a.go", CommitID: headOID},
		"missing commit": {RepoName: "github.com/foo/bar", FilePath: "a.go", CommitID: "deadbeef"},
		"missing file":   {RepoName: "github.com/foo/bar", FilePath: "b.go", CommitID: headOID},
	} {
		t.Run(name, func(t *testing.T) {
			lines, err := c.FetchBlobContentLines(ctx, blob)
			require.NoError(t, err)
			assert.Empty(t, lines)
		})
	}
}

func TestResolveRev(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		repo     string
		rev      string
		want     string
		wantType errors.ErrorType
	}{
		{name: "branch", repo: "github.com/foo/bar", rev: "main", want: headOID},
		{name: "missing rev", repo: "github.com/foo/bar", rev: "nope", wantType: errors.ErrorTypeRevNotFound},
		{name: "missing repo", repo: "github.com/x/y", rev: "main", wantType: errors.ErrorTypeRepoNotFound},
		{name: "missing repo on public instance", opts: Options{PublicOnly: true}, repo: "github.com/x/y", rev: "main", wantType: errors.ErrorTypePrivateRepoPublicInstance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, tt.opts)
			oid, err := c.ResolveRev(context.Background(), tt.repo, tt.rev)
			if tt.wantType != "" {
				assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, oid)
		})
	}
}

func TestEnsureRevisionsAreCloned(t *testing.T) {
	c, fake := setup(t, Options{})
	fake.clones["github.com/foo/bar"] = 2

	id, err := c.EnsureRevisionsAreCloned(context.Background(), codeview.FileIdentity{
		RepoName:         "github.com/foo/bar",
		RevisionSpec:     "main",
		FilePath:         "a.go",
		BaseRevisionSpec: "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, headOID, id.ResolvedRevisionID)
	assert.Equal(t, baseOID, id.BaseCommitID)
	assert.Equal(t, "main", id.RevisionSpec)
	assert.Equal(t, "a.go", id.FilePath)
}

func TestEnsureRevisionsAreClonedGivesUp(t *testing.T) {
	c, fake := setup(t, Options{CloneRetries: 2})
	fake.clones["github.com/foo/bar"] = 100

	_, err := c.EnsureRevisionsAreCloned(context.Background(), codeview.FileIdentity{
		RepoName:     "github.com/foo/bar",
		RevisionSpec: "main",
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCloneInProgress))
	assert.Equal(t, 3, fake.queries)
}

func TestEnsureRevisionsAreClonedFailsOnMissingRev(t *testing.T) {
	c, _ := setup(t, Options{})
	_, err := c.EnsureRevisionsAreCloned(context.Background(), codeview.FileIdentity{
		RepoName:         "github.com/foo/bar",
		RevisionSpec:     "main",
		BaseRevisionSpec: "gone",
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeRevNotFound))
}

func TestGraphQLErrors(t *testing.T) {
	c, _ := setup(t, Options{})
	var out struct{}
	err := c.query(context.Background(), "Broken", "query Broken { x }", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFetcherAgainstBackend(t *testing.T) {
	c, _ := setup(t, Options{PublicOnly: true})
	f := codeview.NewFetcher(c, c, zap.NewNop())

	info, err := f.FetchFileContents(context.Background(), codeview.FileIdentity{
		RepoName:         "github.com/foo/bar",
		RevisionSpec:     "main",
		FilePath:         "a.go",
		BaseRevisionSpec: "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "package a\n\nfunc A() {}\n", *info.Content)
	assert.Equal(t, "package a\n", *info.BaseContent)

	private := codeview.FileIdentity{RepoName: "github.com/private/repo", RevisionSpec: "main", FilePath: "a.go"}
	info, err = f.FetchFileContents(context.Background(), private)
	require.NoError(t, err)
	assert.Equal(t, private, info.FileIdentity)
	assert.Nil(t, info.Content)
}
