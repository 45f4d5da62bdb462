package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"codeintel/internal/codeintel"
	"codeintel/internal/codeview"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.FgHiBlack).SprintFunc()
)

// printer reports code view events as they happen.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ codeintel.Consumer = (*printer)(nil)

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) CodeViewResolved(s codeintel.CodeViewState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s %s\n", green("+"), faint(s.ElementID), describe(s.Info))
}

func (p *printer) CodeViewFailed(elementID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s %v\n", red("!"), faint(elementID), err)
}

func (p *printer) CodeViewRemoved(elementID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", yellow("-"), faint(elementID))
}

func describe(info codeview.FileInfoWithContents) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s %s", info.RepoName, shortRev(info), info.FilePath)
	if info.IsDiff() {
		base := info.BaseFilePath
		if base == "" {
			base = info.FilePath
		}
		fmt.Fprintf(&b, " (base %s@%s)", base, short(info.BaseCommitID, info.BaseRevisionSpec))
	}
	switch {
	case info.HasContent():
		fmt.Fprintf(&b, " %s", faint(fmt.Sprintf("[%d lines]", strings.Count(*info.Content, "\n")+1)))
	default:
		fmt.Fprintf(&b, " %s", yellow("[no content]"))
	}
	return b.String()
}

func shortRev(info codeview.FileInfoWithContents) string {
	return short(info.ResolvedRevisionID, info.RevisionSpec)
}

// short prefers an abbreviated commit id over the symbolic revision.
func short(commit, rev string) string {
	if len(commit) >= 12 {
		return commit[:12]
	}
	if commit != "" {
		return commit
	}
	return rev
}

// highlight writes content with terminal colors, plain when the language is
// unknown to the highlighter.
func highlight(w io.Writer, content, language string) error {
	if color.NoColor {
		_, err := io.WriteString(w, content)
		return err
	}
	if err := quick.Highlight(w, content, language, "terminal256", "monokai"); err != nil {
		return fmt.Errorf("highlighting: %w", err)
	}
	return nil
}
