package editor

import "unicode/utf16"

// Position is a zero-based line and character. Characters count UTF-16 code
// units, the unit text controls report selection offsets in.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Selection keeps both the directional (anchor/active) and the ordered
// (start/end) form.
type Selection struct {
	Anchor     Position `json:"anchor"`
	Active     Position `json:"active"`
	Start      Position `json:"start"`
	End        Position `json:"end"`
	IsReversed bool     `json:"isReversed"`
}

func comparePos(a, b Position) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Character < b.Character:
		return -1
	case a.Character > b.Character:
		return 1
	}
	return 0
}

// NewSelection builds a selection from anchor to active.
func NewSelection(anchor, active Position) Selection {
	s := Selection{Anchor: anchor, Active: active, Start: anchor, End: active}
	if comparePos(anchor, active) > 0 {
		s.Start, s.End = active, anchor
		s.IsReversed = true
	}
	return s
}

// SelectionFromOffsets decomposes a linear selection against the line
// breaks in text. Offsets are clamped to the text.
func SelectionFromOffsets(text string, anchor, active int) Selection {
	s := NewSelection(PositionAt(text, anchor), PositionAt(text, active))
	// Clamping can collapse distinct offsets; direction follows the input.
	s.IsReversed = anchor > active
	return s
}

// PositionAt converts a UTF-16 offset into a position. An offset inside a
// surrogate pair resolves to the start of that pair.
func PositionAt(text string, offset int) Position {
	var pos Position
	n := 0
	for _, r := range text {
		w := runeLen(r)
		if n+w > offset {
			break
		}
		n += w
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character += w
		}
	}
	return pos
}

// OffsetAt is the inverse of PositionAt. Positions past the end of a line
// clamp to the line end; lines past the end clamp to the text end.
func OffsetAt(text string, pos Position) int {
	if pos.Line < 0 || (pos.Line == 0 && pos.Character <= 0) {
		return 0
	}

	line, char, n := 0, 0, 0
	for _, r := range text {
		if line == pos.Line && (char >= pos.Character || r == '\n') {
			return n
		}
		w := runeLen(r)
		if line == pos.Line && char+w > pos.Character {
			return n
		}
		n += w
		if r == '\n' {
			line++
			char = 0
		} else if line == pos.Line {
			char += w
		}
	}
	return n
}

// UTF16Len is the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeLen(r)
	}
	return n
}

func runeLen(r rune) int {
	if w := utf16.RuneLen(r); w > 0 {
		return w
	}
	return 1
}
