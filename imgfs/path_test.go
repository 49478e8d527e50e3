package imgfs

import (
	"errors"
	"testing"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", nil},
		{"/a", []string{"a"}},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"/a//b", []string{"a", "b"}},
		{"/a/b/", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got, err := splitPath(tt.path)
		if err != nil {
			t.Fatalf("splitPath(%q) error = %v", tt.path, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}
	}
}

func TestSplitPathRejectsOverlongComponent(t *testing.T) {
	long := make([]byte, MaxNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := splitPath("/" + string(long)); err == nil {
		t.Fatalf("splitPath() with overlong component succeeded, want error")
	}
}

func TestResolveRoot(t *testing.T) {
	h := mountTestHandle(t, 16*1024)
	off, err := h.resolve("/")
	if err != nil {
		t.Fatalf("resolve(\"/\") error = %v", err)
	}
	if off != h.rootOffset() {
		t.Fatalf("resolve(\"/\") = %d, want %d", off, h.rootOffset())
	}
}

func TestResolveNestedPath(t *testing.T) {
	h := mountTestHandle(t, 16*1024)
	aOff, err := h.appendChild(h.rootOffset(), "a", true)
	if err != nil {
		t.Fatalf("appendChild(a) error = %v", err)
	}
	bOff, err := h.appendChild(aOff, "b", false)
	if err != nil {
		t.Fatalf("appendChild(b) error = %v", err)
	}

	off, err := h.resolve("/a/b")
	if err != nil {
		t.Fatalf("resolve(/a/b) error = %v", err)
	}
	if off != bOff {
		t.Fatalf("resolve(/a/b) = %d, want %d", off, bOff)
	}
}

func TestResolveMissingComponent(t *testing.T) {
	h := mountTestHandle(t, 16*1024)
	if _, err := h.resolve("/missing"); !errors.Is(err, KindNotFound) {
		t.Fatalf("resolve(/missing) error = %v, want KindNotFound", err)
	}
}

func TestResolveThroughAFileIsNotADirectory(t *testing.T) {
	h := mountTestHandle(t, 16*1024)
	if _, err := h.appendChild(h.rootOffset(), "f", false); err != nil {
		t.Fatalf("appendChild(f) error = %v", err)
	}
	if _, err := h.resolve("/f/x"); !errors.Is(err, KindNotADirectory) {
		t.Fatalf("resolve(/f/x) error = %v, want KindNotADirectory", err)
	}
}

func TestResolveParentForNewEntry(t *testing.T) {
	h := mountTestHandle(t, 16*1024)
	aOff, err := h.appendChild(h.rootOffset(), "a", true)
	if err != nil {
		t.Fatalf("appendChild(a) error = %v", err)
	}

	parent, name, err := h.resolveParent("/a/new")
	if err != nil {
		t.Fatalf("resolveParent(/a/new) error = %v", err)
	}
	if parent != aOff || name != "new" {
		t.Fatalf("resolveParent(/a/new) = (%d, %q), want (%d, \"new\")", parent, name, aOff)
	}
}
