package unit

import (
	"fmt"
	"regexp"
	"strings"
)

type State int

const (
	StateAdded State = iota
	StateUpdated
	StateSame
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateUpdated:
		return "updated"
	case StateSame:
		return "same"
	case StateDeleted:
		return "deleted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Changed reports whether the engine has to see this unit again.
func (s State) Changed() bool {
	return s == StateAdded || s == StateUpdated
}

// SourceUnit is a unit as read from disk or the network, carrying the
// cache-diff state for the current cycle.
type SourceUnit struct {
	Unit
	Remote        bool
	State         State
	SyntaxChecked bool
	TypeChecked   bool

	previous string
}

func NewSourceUnit(path, content string, remote bool) *SourceUnit {
	return &SourceUnit{Unit: newUnit(path, content, true), Remote: remote}
}

// NewFailedUnit records a unit whose text could not be read.
func NewFailedUnit(path string, remote bool, message string) *SourceUnit {
	u := &SourceUnit{Unit: newUnit(path, "", false), Remote: remote}
	u.AddDiagnostic(Diagnostic{Message: message, Category: CategoryError, Code: 6053})
	return u
}

// SetContent replaces the text in place and invalidates the engine checks.
func (u *SourceUnit) SetContent(content string, loaded bool) {
	u.previous = u.Content
	u.Content = content
	u.loaded = loaded
	u.SyntaxChecked = false
	u.TypeChecked = false
}

// PreviousContent is the text before the last SetContent.
func (u *SourceUnit) PreviousContent() string {
	return u.previous
}

// SameContent compares loaded-ness, then length, then text.
func (u *SourceUnit) SameContent(other *SourceUnit) bool {
	if u.loaded != other.loaded {
		return false
	}
	if len(u.Content) != len(other.Content) {
		return false
	}
	return u.Content == other.Content
}

// References lists the reference directive paths in the unit's text.
func (u *SourceUnit) References() []string {
	return ParseReferences(u.Content)
}

var referencePattern = regexp.MustCompile(`^\s*///\s*<reference\s+path\s*=\s*(?:"([^"]*)"|'([^']*)')\s*/>`)

// Reference is one reference directive and the byte offset of its path.
type Reference struct {
	Path   string
	Offset int
}

// ParseReferences returns the `/// <reference path="..." />` targets of text
// in top-to-bottom order.
func ParseReferences(text string) []string {
	refs := ScanReferences(text)
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Path
	}
	return out
}

// ScanReferences is ParseReferences with positions.
func ScanReferences(text string) []Reference {
	var refs []Reference
	for offset := 0; offset < len(text); {
		end := strings.IndexByte(text[offset:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += offset
		}
		line := strings.TrimSuffix(text[offset:end], "\r")
		if m := referencePattern.FindStringSubmatchIndex(line); m != nil {
			start, stop := m[2], m[3]
			if start < 0 {
				start, stop = m[4], m[5]
			}
			if stop > start {
				refs = append(refs, Reference{Path: line[start:stop], Offset: offset + start})
			}
		}
		offset = end + 1
	}
	return refs
}
