package codeview

import (
	"context"
	"strings"
)

// TabAdjuster maps positions for hosts that render each leading tab as
// TabWidth spaces.
type TabAdjuster struct {
	TabWidth int
}

func (a TabAdjuster) AdjustPosition(_ context.Context, req AdjustRequest) (Position, error) {
	pos := req.Position
	if a.TabWidth <= 1 || req.Info == nil {
		return pos, nil
	}

	line, ok := sourceLine(req.Info, req.Part, pos.Line)
	if !ok {
		return pos, nil
	}
	delta := leadingTabs(line) * (a.TabWidth - 1)

	switch req.Direction {
	case ActualToModel:
		pos.Character -= delta
		if pos.Character < 0 {
			pos.Character = 0
		}
	case ModelToActual:
		pos.Character += delta
	}
	return pos, nil
}

func sourceLine(info *FileInfoWithContents, part DiffPart, line int) (string, bool) {
	content := info.Content
	if part == DiffPartBase {
		content = info.BaseContent
	}
	if content == nil || line < 1 {
		return "", false
	}

	lines := strings.Split(*content, "\n")
	if line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

func leadingTabs(s string) int {
	n := 0
	for n < len(s) && s[n] == '\t' {
		n++
	}
	return n
}
