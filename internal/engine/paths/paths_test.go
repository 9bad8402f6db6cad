package paths

import "testing"

func TestClassification(t *testing.T) {
	tests := []struct {
		path         string
		url          bool
		urn          bool
		rootRelative bool
		relative     bool
	}{
		{path: "http://example.com/a.ts", url: true},
		{path: "HTTPS://example.com/a.ts", url: true},
		{path: "ftp://example.com/a.ts", url: true},
		{path: "www.example.com/a.ts", url: true},
		{path: `C:\src\a.ts`, urn: true},
		{path: "d:/src/a.ts", urn: true},
		{path: "file:///src/a.ts", urn: true},
		{path: "/src/a.ts", rootRelative: true},
		{path: `\src\a.ts`, rootRelative: true},
		{path: "a.ts", relative: true},
		{path: "../lib/a.ts", relative: true},
		{path: "./a.ts", relative: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsAbsoluteURL(tt.path); got != tt.url {
				t.Errorf("IsAbsoluteURL = %v, want %v", got, tt.url)
			}
			if got := IsAbsoluteURN(tt.path); got != tt.urn {
				t.Errorf("IsAbsoluteURN = %v, want %v", got, tt.urn)
			}
			if got := IsRootRelative(tt.path); got != tt.rootRelative {
				t.Errorf("IsRootRelative = %v, want %v", got, tt.rootRelative)
			}
			if got := IsRelative(tt.path); got != tt.relative {
				t.Errorf("IsRelative = %v, want %v", got, tt.relative)
			}
		})
	}
}

func TestRelativeToAbsolute(t *testing.T) {
	tests := []struct {
		parent    string
		candidate string
		want      string
	}{
		{parent: "/src/main.ts", candidate: "util.ts", want: "/src/util.ts"},
		{parent: "/src/app/main.ts", candidate: "../lib/util.ts", want: "/src/lib/util.ts"},
		{parent: "/src/main.ts", candidate: "./nested/./a.ts", want: "/src/nested/a.ts"},
		{parent: `C:\src\main.ts`, candidate: `lib\a.ts`, want: "C:/src/lib/a.ts"},
		{parent: "http://cdn.example.com/lib/main.ts", candidate: "../core.ts", want: "http://cdn.example.com/core.ts"},
		{parent: "http://cdn.example.com/main.ts", candidate: "core.ts", want: "http://cdn.example.com/core.ts"},
		{parent: "file:///home/dev/main.ts", candidate: "b.ts", want: "file:///home/dev/b.ts"},
		{parent: "main.ts", candidate: "b.ts", want: "b.ts"},
		{parent: "/src/main.ts", candidate: "/abs/b.ts", want: "/abs/b.ts"},
		{parent: "/src/main.ts", candidate: "http://x.org/b.ts", want: "http://x.org/b.ts"},
	}

	for _, tt := range tests {
		if got := RelativeToAbsolute(tt.parent, tt.candidate); got != tt.want {
			t.Errorf("RelativeToAbsolute(%q, %q) = %q, want %q", tt.parent, tt.candidate, got, tt.want)
		}
	}
}

func TestDirname(t *testing.T) {
	tests := map[string]string{
		"/src/a.ts":   "/src",
		"/a.ts":       "/",
		"a.ts":        "",
		`C:\src\a.ts`: "C:/src",
	}
	for in, want := range tests {
		if got := Dirname(in); got != want {
			t.Errorf("Dirname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStemAndReplaceExt(t *testing.T) {
	if got := Stem("/src/a.ts"); got != "/src/a" {
		t.Errorf("Stem = %q", got)
	}
	if got := ReplaceExt("/src/a.ts", ".js.map"); got != "/src/a.js.map" {
		t.Errorf("ReplaceExt = %q", got)
	}
	if got := ReplaceExt(`src\lib.d.ts`, ".js"); got != "src/lib.d.js" {
		t.Errorf("ReplaceExt on declaration = %q", got)
	}
	if got := Base(`out\dist\app.js`); got != "app.js" {
		t.Errorf("Base = %q", got)
	}
}
