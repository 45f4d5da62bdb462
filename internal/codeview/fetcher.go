package codeview

import (
	"context"
	"fmt"
	"strings"

	"codeintel/internal/errors"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Fetcher augments file identities with their head and base contents.
type Fetcher struct {
	content   ContentFetcher
	revisions RevisionResolver
	logger    *zap.Logger
}

func NewFetcher(content ContentFetcher, revisions RevisionResolver, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		content:   content,
		revisions: revisions,
		logger:    logger,
	}
}

// FetchFileContents resolves id's revisions and fetches its contents.
//
// Content failures never fail the call: the identity is returned without
// content instead. The same applies when the repository is private and the
// instance only serves public code. Any other revision resolution failure is
// returned to the caller.
func (f *Fetcher) FetchFileContents(ctx context.Context, id FileIdentity) (FileInfoWithContents, error) {
	resolved, err := f.revisions.EnsureRevisionsAreCloned(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return FileInfoWithContents{}, ctx.Err()
		}
		if errors.IsType(err, errors.ErrorTypePrivateRepoPublicInstance) {
			f.logger.Debug("repository not available on this instance",
				zap.String("repo", id.RepoName),
				zap.Error(err),
			)
			return FileInfoWithContents{FileIdentity: id}, nil
		}
		return FileInfoWithContents{}, fmt.Errorf("resolving revisions of %s: %w", id.RepoName, err)
	}

	info, err := f.fetchContents(ctx, resolved)
	if err != nil {
		if ctx.Err() != nil {
			return FileInfoWithContents{}, ctx.Err()
		}
		f.logger.Warn("fetching file contents",
			zap.String("repo", resolved.RepoName),
			zap.String("path", resolved.FilePath),
			zap.Error(err),
		)
		return FileInfoWithContents{FileIdentity: resolved}, nil
	}
	return info, nil
}

func (f *Fetcher) fetchContents(ctx context.Context, id FileIdentity) (FileInfoWithContents, error) {
	var head, base []string
	hasBase := id.BaseCommitID != ""

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		lines, err := f.content.FetchBlobContentLines(ctx, BlobSpec{
			RepoName: id.RepoName,
			FilePath: id.FilePath,
			CommitID: id.ResolvedRevisionID,
		})
		if err != nil {
			return fmt.Errorf("head: %w", err)
		}
		head = lines
		return nil
	})
	if hasBase {
		p.Go(func(ctx context.Context) error {
			path := id.BaseFilePath
			if path == "" {
				path = id.FilePath
			}
			lines, err := f.content.FetchBlobContentLines(ctx, BlobSpec{
				RepoName: id.RepoName,
				FilePath: path,
				CommitID: id.BaseCommitID,
			})
			if err != nil {
				return fmt.Errorf("base: %w", err)
			}
			base = lines
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return FileInfoWithContents{}, err
	}

	info := FileInfoWithContents{
		FileIdentity:        id,
		Content:             ptr(strings.Join(head, "\n")),
		HeadHasFileContents: ptr(len(head) > 0),
	}
	if hasBase {
		info.BaseContent = ptr(strings.Join(base, "\n"))
		info.BaseHasFileContents = ptr(len(base) > 0)
	}
	return info, nil
}

func ptr[T any](v T) *T {
	return &v
}
