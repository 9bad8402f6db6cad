package reflection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type testDoc struct {
	path string
	src  []byte
	tree *sitter.Tree
}

func (d *testDoc) Path() string       { return d.path }
func (d *testDoc) Source() []byte     { return d.src }
func (d *testDoc) Root() *sitter.Node { return d.tree.RootNode() }

func parse(t *testing.T, path, src string) Document {
	t.Helper()
	parser := sitter.NewParser()
	defer parser.Close()
	require.NoError(t, parser.SetLanguage(sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())))
	tree := parser.Parse([]byte(src), nil)
	require.NotNil(t, tree)
	t.Cleanup(tree.Close)
	return &testDoc{path: path, src: []byte(src), tree: tree}
}

func TestCreate_NamespaceClass(t *testing.T) {
	src := `namespace Shapes {
    /** A drawable shape. */
    export abstract class Shape<T> extends Base<number> implements Named {
        static count: number = 0;
        private label?: string;
        constructor(public readonly id: string, size: number) {
            super();
        }
        abstract area(): number;
        static create<U>(kind: string, ...args: U[]): Shape<U> {
            return null;
        }
    }
}
`
	scripts := Create([]Document{parse(t, "/src/shapes.ts", src)})
	require.Len(t, scripts, 1)
	script := scripts[0]
	assert.Equal(t, "/src/shapes.ts", script.Path)
	require.Len(t, script.Modules, 1)

	mod := script.Modules[0]
	assert.Equal(t, "Shapes", mod.Name)
	require.Len(t, mod.Classes, 1)

	c := mod.Classes[0]
	assert.Equal(t, "Shape", c.Name)
	assert.Equal(t, "A drawable shape.", c.Comment)
	assert.True(t, c.Exported)
	assert.True(t, c.Abstract)
	assert.Equal(t, []string{"T"}, c.TypeParameters)
	require.Len(t, c.Extends, 1)
	assert.Equal(t, "Base<number>", c.Extends[0].String())
	require.Len(t, c.Implements, 1)
	assert.Equal(t, "Named", c.Implements[0].Name)

	require.Len(t, c.Constructors, 1)
	assert.Len(t, c.Constructors[0].Parameters, 2)

	vars := map[string]*Variable{}
	for _, v := range c.Variables {
		vars[v.Name] = v
	}
	require.Contains(t, vars, "count")
	assert.True(t, vars["count"].Static)
	require.Contains(t, vars, "label")
	assert.Equal(t, "private", vars["label"].Access)
	assert.True(t, vars["label"].Optional)
	require.Contains(t, vars, "id")
	assert.Equal(t, "public", vars["id"].Access)
	assert.True(t, vars["id"].ReadOnly)

	require.Len(t, c.Methods, 2)
	area := c.Methods[0]
	assert.Equal(t, "area", area.Name)
	assert.True(t, area.Abstract)
	assert.Equal(t, "number", area.Returns.Name)

	create := c.Methods[1]
	assert.Equal(t, "create", create.Name)
	assert.True(t, create.Static)
	assert.Equal(t, []string{"U"}, create.TypeParameters)
	require.Len(t, create.Parameters, 2)
	assert.True(t, create.Parameters[1].Rest)
	assert.Equal(t, "args", create.Parameters[1].Name)
	assert.Equal(t, "Array<U>", create.Parameters[1].Type.String())
	assert.Equal(t, "Shape<U>", create.Returns.String())
	assert.Equal(t, "Shapes.Shape", create.Returns.Resolved)
}

func TestCreate_Interface(t *testing.T) {
	src := `interface Repository<T> extends Reader<T>, Closer {
    readonly name: string;
    size?: number;
    find(id: string, limit?: number): Promise<T[]>;
}
`
	scripts := Create([]Document{parse(t, "/src/repo.ts", src)})
	require.Len(t, scripts[0].Interfaces, 1)

	iface := scripts[0].Interfaces[0]
	assert.Equal(t, "Repository", iface.Name)
	assert.Equal(t, []string{"T"}, iface.TypeParameters)
	require.Len(t, iface.Extends, 2)
	assert.Equal(t, "Reader<T>", iface.Extends[0].String())
	assert.Equal(t, "Closer", iface.Extends[1].Name)

	require.Len(t, iface.Variables, 2)
	assert.True(t, iface.Variables[0].ReadOnly)
	assert.True(t, iface.Variables[1].Optional)

	require.Len(t, iface.Methods, 1)
	find := iface.Methods[0]
	require.Len(t, find.Parameters, 2)
	assert.False(t, find.Parameters[0].Optional)
	assert.True(t, find.Parameters[1].Optional)
	assert.Equal(t, "Promise<Array<T>>", find.Returns.String())
}

func TestCreate_ResolvesAcrossUnits(t *testing.T) {
	a := parse(t, "/src/a.ts", `namespace App.Model {
    export interface Entity { id: string; }
}
`)
	b := parse(t, "/src/b.ts", `/// <reference path="a.ts" />
namespace App {
    export class Store {
        items: Model.Entity[];
        get(id: string): Model.Entity { return null; }
        other(): Missing { return null; }
    }
}
`)
	scripts := Create([]Document{a, b})
	require.Len(t, scripts, 2)

	require.Len(t, scripts[0].Modules, 1)
	app := scripts[0].Modules[0]
	assert.Equal(t, "App", app.Name)
	require.Len(t, app.Modules, 1)
	assert.Equal(t, "Model", app.Modules[0].Name)
	assert.True(t, app.Modules[0].Exported)
	require.Len(t, app.Modules[0].Interfaces, 1)

	store := scripts[1].Modules[0].Classes[0]
	require.Len(t, store.Variables, 1)
	items := store.Variables[0].Type
	assert.Equal(t, "Array", items.Name)
	assert.Equal(t, "App.Model.Entity", items.Arguments[0].Resolved)

	require.Len(t, store.Methods, 2)
	assert.Equal(t, "App.Model.Entity", store.Methods[0].Returns.Resolved)
	assert.Empty(t, store.Methods[1].Returns.Resolved)
}

func TestCreate_VariablesFunctionsImports(t *testing.T) {
	src := `import fs = require("fs");
const names: Array<string> = [];
let count = 0, total: number;
/** Adds. */
function add(a: number, b = 2): number { return a + b; }
`
	scripts := Create([]Document{parse(t, "/src/util.ts", src)})
	script := scripts[0]

	require.Len(t, script.Imports, 1)
	assert.Equal(t, "fs", script.Imports[0].Name)
	assert.Equal(t, "fs", script.Imports[0].Path)

	require.Len(t, script.Variables, 3)
	assert.Equal(t, "names", script.Variables[0].Name)
	assert.True(t, script.Variables[0].ReadOnly)
	assert.Equal(t, "Array<string>", script.Variables[0].Type.String())
	assert.Nil(t, script.Variables[1].Type)
	assert.False(t, script.Variables[1].ReadOnly)
	assert.Equal(t, "total", script.Variables[2].Name)

	require.Len(t, script.Methods, 1)
	add := script.Methods[0]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "Adds.", add.Comment)
	require.Len(t, add.Parameters, 2)
	assert.True(t, add.Parameters[1].Optional)
	assert.Nil(t, add.Parameters[1].Type)
}

func TestCreate_MergesRepeatedNamespaces(t *testing.T) {
	src := `namespace N { export var a = 1; }
namespace N { export var b = 2; }
`
	scripts := Create([]Document{parse(t, "/src/n.ts", src)})
	require.Len(t, scripts[0].Modules, 1)
	assert.Len(t, scripts[0].Modules[0].Variables, 2)
}

func TestNewReflection_JSON(t *testing.T) {
	scripts := Create([]Document{parse(t, "/src/x.ts", "interface X { y: Y; }\ninterface Y {}\n")})
	data, err := json.Marshal(NewReflection(scripts))
	require.NoError(t, err)

	var decoded Reflection
	require.NoError(t, json.Unmarshal(data, &decoded))
	script, ok := decoded.Script("/src/x.ts")
	require.True(t, ok)
	require.Len(t, script.Interfaces, 2)
	assert.Equal(t, "Y", script.Interfaces[0].Variables[0].Type.Resolved)
}

func TestCleanDocComment(t *testing.T) {
	got := cleanDocComment("/**\n * First line.\n *\n * Second.\n */")
	assert.Equal(t, "First line.\n\nSecond.", got)
}
