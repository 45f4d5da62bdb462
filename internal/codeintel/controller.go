// Package codeintel wires views found on a page to content fetching and
// the editor store.
package codeintel

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"codeintel/internal/codeview"
	"codeintel/internal/dom"
	"codeintel/internal/editor"
	"codeintel/internal/hosts"
	"codeintel/internal/textfield"
	"codeintel/internal/views"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Origin tags editor records registered for code views.
const Origin editor.Origin = "codeview"

// FileInfoFetcher is implemented by *codeview.Fetcher.
type FileInfoFetcher interface {
	FetchFileContents(ctx context.Context, id codeview.FileIdentity) (codeview.FileInfoWithContents, error)
}

type Controller struct {
	fetcher  FileInfoFetcher
	editors  *editor.Service
	consumer Consumer
	logger   *zap.Logger
}

func NewController(fetcher FileInfoFetcher, editors *editor.Service, consumer Consumer, logger *zap.Logger) *Controller {
	if consumer == nil {
		consumer = Consumers(nil)
	}
	return &Controller{
		fetcher:  fetcher,
		editors:  editors,
		consumer: consumer,
		logger:   logger,
	}
}

// Handle runs host's resolvers against doc until ctx is done. Views stay
// live after mutations closes; ending ctx retires all of them.
func (c *Controller) Handle(ctx context.Context, doc dom.Document, mutations <-chan dom.MutationBatch, host hosts.Host) {
	logger := c.logger.With(zap.String("host", host.Name))
	streams := views.Fanout(ctx, mutations, 2)
	codeViews := views.Track(ctx, doc, streams[0], host.CodeViewResolvers, logger.Named("codeviews"))
	textFields := views.Track(ctx, doc, streams[1], host.TextFieldResolvers, logger.Named("textfields"))

	var wg conc.WaitGroup
	wg.Go(func() {
		textfield.New(c.editors, logger.Named("textfield")).Run(ctx, textFields)
	})
	wg.Go(func() {
		// Occurrences of one element report in order, so a re-inserted
		// view is never removed by its predecessor's late removal event.
		var mu sync.Mutex
		last := make(map[string]chan struct{})
		for t := range codeViews {
			id := t.Element.ID()
			done := make(chan struct{})
			mu.Lock()
			prev := last[id]
			last[id] = done
			mu.Unlock()

			wg.Go(func() {
				defer func() {
					mu.Lock()
					if last[id] == done {
						delete(last, id)
					}
					mu.Unlock()
					close(done)
				}()
				if prev != nil {
					<-prev
				}
				c.handleCodeView(t, host.Name, logger)
			})
		}
	})

	if r := wg.WaitAndRecover(); r != nil {
		logger.Error("code view handler panicked", zap.String("panic", r.String()))
	}
}

func (c *Controller) handleCodeView(t *views.Tracked[*codeview.ResolvedCodeView], hostName string, logger *zap.Logger) {
	ctx := t.Context()
	elementID := t.Element.ID()
	logger = logger.With(zap.String("element", elementID))

	state, err := c.resolve(ctx, t.View)
	if ctx.Err() != nil {
		// Removed while in flight; the result belongs to nothing.
		if state.EditorID != "" {
			c.removeEditor(state.EditorID, logger)
		}
		return
	}
	if err != nil {
		logger.Warn("code view failed", zap.Error(err))
		c.consumer.CodeViewFailed(elementID, err)
		<-ctx.Done()
		c.consumer.CodeViewRemoved(elementID)
		return
	}

	state.ElementID = elementID
	state.Host = hostName
	logger.Debug("code view resolved",
		zap.String("repo", state.Info.RepoName),
		zap.String("path", state.Info.FilePath),
		zap.Bool("content", state.Info.HasContent()),
	)
	c.consumer.CodeViewResolved(state)

	<-ctx.Done()
	if state.EditorID != "" {
		c.removeEditor(state.EditorID, logger)
	}
	c.consumer.CodeViewRemoved(elementID)
}

func (c *Controller) resolve(ctx context.Context, view *codeview.ResolvedCodeView) (CodeViewState, error) {
	state := CodeViewState{View: view}

	id, err := view.ResolveFileInfo(ctx, view.Element)
	if err != nil {
		return state, fmt.Errorf("resolving file info: %w", err)
	}
	info, err := c.fetcher.FetchFileContents(ctx, id)
	if err != nil {
		return state, fmt.Errorf("fetching file contents: %w", err)
	}
	state.Info = info

	if view.ToolbarMount != nil {
		mount, err := view.ToolbarMount(view.Element)
		if err != nil {
			c.logger.Warn("finding toolbar mount", zap.String("element", view.Element.ID()), zap.Error(err))
		} else {
			state.Mount = mount
		}
	}

	if info.HasContent() {
		resource := Resource(info.FileIdentity)
		state.EditorID, err = c.editors.CreateOrUpdateEditor(editor.Record{
			Type:     editor.EditorType,
			Resource: resource,
			Model: editor.Model{
				URI:        resource,
				Text:       *info.Content,
				LanguageID: LanguageID(info.FilePath),
			},
			IsActive: true,
		}, Origin)
		if err != nil {
			return state, fmt.Errorf("registering editor: %w", err)
		}
	}
	return state, nil
}

func (c *Controller) removeEditor(id string, logger *zap.Logger) {
	if err := c.editors.RemoveEditor(id, Origin); err != nil {
		logger.Warn("removing code view editor", zap.String("editor", id), zap.Error(err))
	}
}

// Resource is the URI of a file at a commit: git://repo?commit#path.
func Resource(id codeview.FileIdentity) string {
	rev := id.ResolvedRevisionID
	if rev == "" {
		rev = id.RevisionSpec
	}
	return fmt.Sprintf("git://%s?%s#%s", id.RepoName, rev, id.FilePath)
}

// LanguageID guesses a language from a file name, falling back to
// plaintext.
func LanguageID(filePath string) string {
	lexer := lexers.Match(path.Base(filePath))
	if lexer == nil {
		return "plaintext"
	}
	cfg := lexer.Config()
	if cfg.Name == "plaintext" {
		return cfg.Name
	}
	if len(cfg.Aliases) > 0 {
		return cfg.Aliases[0]
	}
	return strings.ToLower(cfg.Name)
}
