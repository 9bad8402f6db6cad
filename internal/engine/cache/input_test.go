package cache

import (
	"testing"

	"weave/internal/engine/unit"
)

func fresh(path, content string) *unit.SourceUnit {
	return unit.NewSourceUnit(path, content, false)
}

func TestMerge_Classification(t *testing.T) {
	in := NewInput()

	first := in.Merge([]*unit.SourceUnit{fresh("x", "1")})
	if first[0].State != unit.StateAdded {
		t.Fatalf("expected added, got %s", first[0].State)
	}
	original := first[0]
	original.SyntaxChecked = true
	original.TypeChecked = true

	second := in.Merge([]*unit.SourceUnit{fresh("x", "2")})
	if second[0].State != unit.StateUpdated {
		t.Fatalf("expected updated, got %s", second[0].State)
	}
	if second[0] != original {
		t.Error("expected updated unit to keep its identity")
	}
	if original.Content != "2" || original.PreviousContent() != "1" {
		t.Errorf("expected content 2 with previous 1, got %q / %q", original.Content, original.PreviousContent())
	}
	if original.SyntaxChecked || original.TypeChecked {
		t.Error("expected check flags to reset on update")
	}

	third := in.Merge([]*unit.SourceUnit{fresh("x", "2")})
	if third[0].State != unit.StateSame {
		t.Fatalf("expected same, got %s", third[0].State)
	}

	fourth := in.Merge(nil)
	if len(fourth) != 0 || in.Len() != 0 {
		t.Fatalf("expected x to be removed, got %d units", in.Len())
	}
	deleted := in.Deleted()
	if len(deleted) != 1 || deleted[0].State != unit.StateDeleted {
		t.Fatalf("expected x reported deleted, got %v", deleted)
	}
	if _, ok := in.Lookup("x"); ok {
		t.Error("expected lookup of deleted unit to fail")
	}
}

func TestMerge_IdenticalInputIsSame(t *testing.T) {
	in := NewInput()
	in.Merge([]*unit.SourceUnit{fresh("/a.ts", "a"), fresh("/b.ts", "b")})
	units := in.Merge([]*unit.SourceUnit{fresh("/a.ts", "a"), fresh("/b.ts", "b")})
	for _, u := range units {
		if u.State != unit.StateSame {
			t.Errorf("expected %s to be same, got %s", u.Path, u.State)
		}
	}
	counts := in.Counts()
	if counts[unit.StateSame] != 2 || counts[unit.StateAdded] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestMerge_FollowsFreshOrder(t *testing.T) {
	in := NewInput()
	in.Merge([]*unit.SourceUnit{fresh("/a.ts", "a"), fresh("/b.ts", "b")})
	units := in.Merge([]*unit.SourceUnit{fresh("/c.ts", "c"), fresh("/b.ts", "b"), fresh("/a.ts", "a")})

	want := []string{"/c.ts", "/b.ts", "/a.ts"}
	for i, u := range units {
		if u.Path != want[i] {
			t.Fatalf("expected order %v, got %s at %d", want, u.Path, i)
		}
	}
	if units[0].State != unit.StateAdded {
		t.Errorf("expected /c.ts added, got %s", units[0].State)
	}
}

func TestMerge_UnloadedDiffersFromEmpty(t *testing.T) {
	in := NewInput()
	in.Merge([]*unit.SourceUnit{fresh("/a.ts", "")})
	failed := unit.NewFailedUnit("/a.ts", false, "gone")

	units := in.Merge([]*unit.SourceUnit{failed})
	if units[0].State != unit.StateUpdated {
		t.Fatalf("expected updated, got %s", units[0].State)
	}
	if units[0].Loaded() {
		t.Error("expected cached unit to become unloaded")
	}
	if len(units[0].Diagnostics) != 1 {
		t.Errorf("expected diagnostics to be overwritten, got %v", units[0].Diagnostics)
	}
}
