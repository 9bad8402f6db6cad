package tsengine

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var (
	languageOnce sync.Once
	language     *sitter.Language
)

func typescript() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	})
	return language
}

// parserPool recycles tree-sitter parsers so reparsing a unit does not
// allocate a parser per call.
type parserPool struct {
	lang *sitter.Language
	pool sync.Pool

	mu     sync.Mutex
	leased int
}

func newParserPool(lang *sitter.Language) *parserPool {
	p := &parserPool{lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			_ = sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

func (p *parserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	// Reset may have cleared the language.
	_ = sp.SetLanguage(p.lang)

	p.mu.Lock()
	p.leased++
	p.mu.Unlock()
	return sp
}

// Put resets sp and returns it to the pool. sp must not be used afterwards.
func (p *parserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.mu.Lock()
	p.leased--
	p.mu.Unlock()

	sp.Reset()
	p.pool.Put(sp)
}

// Leased is the number of parsers currently handed out.
func (p *parserPool) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leased
}
