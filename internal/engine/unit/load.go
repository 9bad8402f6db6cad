package unit

import "weave/internal/engine/paths"

// LoadParameter is one pending read. Filename is resolved against Parent at
// construction; Parent is kept for diagnostics only.
type LoadParameter struct {
	Parent   string
	Filename string
}

func NewLoadParameter(parent, path string) LoadParameter {
	return LoadParameter{
		Parent:   parent,
		Filename: paths.Normalize(paths.RelativeToAbsolute(parent, path)),
	}
}
