// Package reflection converts unit syntax trees into a flat declaration
// model of modules, classes, interfaces, methods and variables.
package reflection

import sitter "github.com/tree-sitter/go-tree-sitter"

// Document is a parsed unit as exposed by an engine.
type Document interface {
	Path() string
	Source() []byte
	// Root returns nil once the document has been superseded.
	Root() *sitter.Node
}

// Type is a type reference. Generic instantiations carry their arguments in
// order; arrays are represented as Array<T>.
type Type struct {
	Name      string  `json:"name"`
	Arguments []*Type `json:"arguments,omitempty"`
	// Resolved is the qualified name of the class or interface Name refers
	// to, when one is declared in the same build.
	Resolved string `json:"resolved,omitempty"`
}

func (t *Type) String() string {
	if t == nil {
		return ""
	}
	if len(t.Arguments) == 0 {
		return t.Name
	}
	s := t.Name + "<"
	for i, arg := range t.Arguments {
		if i > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s + ">"
}

type Parameter struct {
	Name     string `json:"name"`
	Type     *Type  `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Rest     bool   `json:"rest,omitempty"`
}

type Method struct {
	Name           string       `json:"name"`
	Comment        string       `json:"comment,omitempty"`
	Exported       bool         `json:"exported,omitempty"`
	Static         bool         `json:"static,omitempty"`
	Abstract       bool         `json:"abstract,omitempty"`
	Optional       bool         `json:"optional,omitempty"`
	Access         string       `json:"access,omitempty"`
	TypeParameters []string     `json:"type_parameters,omitempty"`
	Parameters     []*Parameter `json:"parameters"`
	Returns        *Type        `json:"returns,omitempty"`
}

type Variable struct {
	Name     string `json:"name"`
	Comment  string `json:"comment,omitempty"`
	Type     *Type  `json:"type,omitempty"`
	Exported bool   `json:"exported,omitempty"`
	Static   bool   `json:"static,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	ReadOnly bool   `json:"readonly,omitempty"`
	Access   string `json:"access,omitempty"`
}

type Import struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Exported bool   `json:"exported,omitempty"`
}

type Interface struct {
	Name           string      `json:"name"`
	Comment        string      `json:"comment,omitempty"`
	Exported       bool        `json:"exported,omitempty"`
	TypeParameters []string    `json:"type_parameters,omitempty"`
	Extends        []*Type     `json:"extends,omitempty"`
	Methods        []*Method   `json:"methods"`
	Variables      []*Variable `json:"variables"`
}

type Class struct {
	Name           string      `json:"name"`
	Comment        string      `json:"comment,omitempty"`
	Exported       bool        `json:"exported,omitempty"`
	Abstract       bool        `json:"abstract,omitempty"`
	TypeParameters []string    `json:"type_parameters,omitempty"`
	Extends        []*Type     `json:"extends,omitempty"`
	Implements     []*Type     `json:"implements,omitempty"`
	Constructors   []*Method   `json:"constructors,omitempty"`
	Methods        []*Method   `json:"methods"`
	Variables      []*Variable `json:"variables"`
}

// Scope holds the declarations of a script or module body.
type Scope struct {
	Modules    []*Module    `json:"modules"`
	Interfaces []*Interface `json:"interfaces"`
	Classes    []*Class     `json:"classes"`
	Methods    []*Method    `json:"methods"`
	Variables  []*Variable  `json:"variables"`
	Imports    []*Import    `json:"imports,omitempty"`
}

type Module struct {
	Name     string `json:"name"`
	Comment  string `json:"comment,omitempty"`
	Exported bool   `json:"exported,omitempty"`
	Scope
}

// module returns the child module called name, creating it when absent, so
// that repeated namespace blocks merge into one record.
func (s *Scope) module(name string) *Module {
	for _, m := range s.Modules {
		if m.Name == name {
			return m
		}
	}
	m := &Module{Name: name}
	s.Modules = append(s.Modules, m)
	return m
}

// Script is the declaration model of one unit.
type Script struct {
	Path string `json:"path"`
	Scope
}

// Reflection aggregates the scripts of one build.
type Reflection struct {
	Scripts []*Script `json:"scripts"`
}

func NewReflection(scripts []*Script) *Reflection {
	if scripts == nil {
		scripts = []*Script{}
	}
	return &Reflection{Scripts: scripts}
}

// Script returns the script built for path.
func (r *Reflection) Script(path string) (*Script, bool) {
	for _, s := range r.Scripts {
		if s.Path == path {
			return s, true
		}
	}
	return nil, false
}
