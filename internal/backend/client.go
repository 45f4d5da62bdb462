// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codeintel/internal/codeview"
	"codeintel/internal/errors"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	URL         string
	AccessToken string
	// PublicOnly marks an instance that only mirrors public repositories.
	// Missing repositories are then reported as private.
	PublicOnly bool
	Timeout    time.Duration
	// CloneRetries bounds how often a clone-in-progress revision is retried.
	CloneRetries int
	CloneBackoff time.Duration
}

// Client talks to a code search instance's GraphQL API.
type Client struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ codeview.ContentFetcher   = (*Client)(nil)
	_ codeview.RevisionResolver = (*Client)(nil)
)

func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 10
	}
	if opts.CloneRetries == 0 {
		opts.CloneRetries = 5
	}
	if opts.CloneBackoff == 0 {
		opts.CloneBackoff = time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.URL, "/"),
		opts:    opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) query(ctx context.Context, name, query string, vars map[string]any, result any) error {
	data, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/.api/graphql?%s", c.baseURL, name),
		bytes.NewBuffer(data),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.AccessToken != "" {
		req.Header.Set("Authorization", "token "+c.opts.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Unauthorized(fmt.Sprintf("%s: %s", name, resp.Status))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: unexpected status: %s", name, resp.Status)
	}

	var body graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%s: decoding response: %w", name, err)
	}
	if len(body.Errors) > 0 {
		msgs := make([]string, len(body.Errors))
		for i, e := range body.Errors {
			msgs[i] = e.Message
		}
		return &errors.Error{
			Type:    errors.ErrorTypeInternal,
			Message: fmt.Sprintf("%s: %s", name, strings.Join(msgs, "; ")),
			Code:    http.StatusBadGateway,
			Details: msgs,
		}
	}
	if err := json.Unmarshal(body.Data, result); err != nil {
		return fmt.Errorf("%s: decoding data: %w", name, err)
	}
	return nil
}

const blobQuery = `query BlobContent($repoName: String!, $commitID: String!, $filePath: String!) {
	repository(name: $repoName) {
		commit(rev: $commitID) {
			file(path: $filePath) {
				content
			}
		}
	}
}`

// FetchBlobContentLines returns the file's lines. A missing repository,
// commit or file yields no lines.
func (c *Client) FetchBlobContentLines(ctx context.Context, blob codeview.BlobSpec) ([]string, error) {
	var result struct {
		Repository *struct {
			Commit *struct {
				File *struct {
					Content string `json:"content"`
				} `json:"file"`
			} `json:"commit"`
		} `json:"repository"`
	}

	err := c.query(ctx, "BlobContent", blobQuery, map[string]any{
		"repoName": blob.RepoName,
		"commitID": blob.CommitID,
		"filePath": blob.FilePath,
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.Repository == nil || result.Repository.Commit == nil || result.Repository.Commit.File == nil {
		return []string{}, nil
	}
	return strings.Split(result.Repository.Commit.File.Content, "\n"), nil
}

const resolveRevQuery = `query ResolveRev($repoName: String!, $rev: String!) {
	repository(name: $repoName) {
		mirrorInfo {
			cloneInProgress
		}
		commit(rev: $rev) {
			oid
		}
	}
}`

// ResolveRev resolves rev in repoName to a commit id.
func (c *Client) ResolveRev(ctx context.Context, repoName, rev string) (string, error) {
	var result struct {
		Repository *struct {
			MirrorInfo struct {
				CloneInProgress bool `json:"cloneInProgress"`
			} `json:"mirrorInfo"`
			Commit *struct {
				OID string `json:"oid"`
			} `json:"commit"`
		} `json:"repository"`
	}

	err := c.query(ctx, "ResolveRev", resolveRevQuery, map[string]any{
		"repoName": repoName,
		"rev":      rev,
	}, &result)
	if err != nil {
		return "", err
	}

	switch {
	case result.Repository == nil && c.opts.PublicOnly:
		return "", errors.PrivateRepoPublicInstance("resolveRev")
	case result.Repository == nil:
		return "", errors.RepoNotFound(repoName)
	case result.Repository.MirrorInfo.CloneInProgress:
		return "", errors.CloneInProgress(repoName)
	case result.Repository.Commit == nil:
		return "", errors.RevNotFound(repoName, rev)
	}
	return result.Repository.Commit.OID, nil
}

// EnsureRevisionsAreCloned resolves the head and, for diffs, the base
// revision of id, waiting out repositories that are still being cloned.
func (c *Client) EnsureRevisionsAreCloned(ctx context.Context, id codeview.FileIdentity) (codeview.FileIdentity, error) {
	headRev := id.ResolvedRevisionID
	if headRev == "" {
		headRev = id.RevisionSpec
	}
	baseRev := id.BaseCommitID
	if baseRev == "" {
		baseRev = id.BaseRevisionSpec
	}

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		oid, err := c.resolveWithRetry(ctx, id.RepoName, headRev)
		if err != nil {
			return err
		}
		id.ResolvedRevisionID = oid
		return nil
	})
	if baseRev != "" {
		p.Go(func(ctx context.Context) error {
			oid, err := c.resolveWithRetry(ctx, id.RepoName, baseRev)
			if err != nil {
				return err
			}
			id.BaseCommitID = oid
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return codeview.FileIdentity{}, err
	}
	return id, nil
}

func (c *Client) resolveWithRetry(ctx context.Context, repoName, rev string) (string, error) {
	backoff := c.opts.CloneBackoff
	for attempt := 0; ; attempt++ {
		oid, err := c.ResolveRev(ctx, repoName, rev)
		if err == nil || !errors.IsType(err, errors.ErrorTypeCloneInProgress) || attempt >= c.opts.CloneRetries {
			return oid, err
		}

		c.logger.Debug("waiting for clone",
			zap.String("repo", repoName),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
