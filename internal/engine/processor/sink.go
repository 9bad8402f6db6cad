package processor

import (
	"strings"
	"sync"

	"weave/internal/engine/paths"
)

// output is what the engine wrote for one source stem.
type output struct {
	js          string
	sourceMap   string
	declaration string
	written     bool
}

// recordingSink keeps emitted files in memory. Names pass through unchanged,
// so outputs can be mapped back to sources by suffix.
type recordingSink struct {
	mu    sync.Mutex
	files map[string]string
	order []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{files: make(map[string]string)}
}

func (s *recordingSink) WriteFile(name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = paths.Normalize(name)
	if _, ok := s.files[name]; !ok {
		s.order = append(s.order, name)
	}
	s.files[name] = content
	return nil
}

func (s *recordingSink) FileExists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[paths.Normalize(name)]
	return ok
}

func (s *recordingSink) DirectoryExists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := strings.TrimSuffix(paths.Normalize(name), "/") + "/"
	for file := range s.files {
		if strings.HasPrefix(file, dir) {
			return true
		}
	}
	return false
}

func (s *recordingSink) ResolvePath(name string) string {
	return paths.Normalize(name)
}

// outputs groups the recorded files by the stem they were emitted for:
// "a.js", "a.js.map" and "a.d.ts" all belong to "a".
func (s *recordingSink) outputs() map[string]*output {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStem := make(map[string]*output)
	get := func(stem string) *output {
		o, ok := byStem[stem]
		if !ok {
			o = &output{}
			byStem[stem] = o
		}
		return o
	}
	for _, name := range s.order {
		content := s.files[name]
		switch {
		case strings.HasSuffix(name, ".js.map"):
			get(strings.TrimSuffix(name, ".js.map")).sourceMap = content
		case strings.HasSuffix(name, ".d.ts"):
			get(strings.TrimSuffix(name, ".d.ts")).declaration = content
		case strings.HasSuffix(name, ".js"):
			o := get(strings.TrimSuffix(name, ".js"))
			o.js = content
			o.written = true
		}
	}
	return byStem
}
