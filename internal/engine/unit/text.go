package unit

// LineColumn maps a byte offset in text to a 0-based line and column. Both
// "\n" and "\r\n" end a line; a lone "\r" is an ordinary character. Offsets
// past the end clamp to the end of text.
func LineColumn(text string, offset int) (line, column int) {
	if offset > len(text) {
		offset = len(text)
	}
	for i := 0; i < offset; i++ {
		switch {
		case text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n':
			// the '\n' that follows closes the line
		case text[i] == '\n':
			line++
			column = 0
		default:
			column++
		}
	}
	return line, column
}

// ChangeRange describes an edit as a span of the old text that was replaced
// by NewLength bytes.
type ChangeRange struct {
	Start     int
	OldLength int
	NewLength int
}

func (r ChangeRange) OldEnd() int { return r.Start + r.OldLength }
func (r ChangeRange) NewEnd() int { return r.Start + r.NewLength }

func (r ChangeRange) Empty() bool {
	return r.OldLength == 0 && r.NewLength == 0
}

// ComputeChangeRange finds the smallest single span covering every difference
// between oldText and newText, using their common prefix and suffix.
func ComputeChangeRange(oldText, newText string) ChangeRange {
	limit := min(len(oldText), len(newText))
	start := 0
	for start < limit && oldText[start] == newText[start] {
		start++
	}
	suffix := 0
	for suffix < limit-start && oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}
	return ChangeRange{
		Start:     start,
		OldLength: len(oldText) - start - suffix,
		NewLength: len(newText) - start - suffix,
	}
}
