package imgfs

import (
	"testing"

	"github.com/go-test/deep"
)

func newTestRegion(t *testing.T, size int) []byte {
	t.Helper()
	return make([]byte, size)
}

func TestMountFormatsFreshRegion(t *testing.T) {
	mem := newTestRegion(t, 64*1024)
	h, err := Mount(mem)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if got := h.rootOffset(); got == 0 {
		t.Fatalf("rootOffset() = 0, want a valid offset")
	}
	root := h.slicePanic(h.rootOffset(), inodeSize)
	if !inodeIsDir(root) {
		t.Fatalf("root inode is not a directory")
	}
	if inodeName(root) != "/" {
		t.Fatalf("root name = %q, want \"/\"", inodeName(root))
	}
}

func TestMountOfAlreadyInitializedRegionIsNoOp(t *testing.T) {
	mem := newTestRegion(t, 64*1024)
	h1, err := Mount(mem)
	if err != nil {
		t.Fatalf("first Mount() error = %v", err)
	}
	if err := h1.Mkdir("/a"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	id := h1.VolumeID()
	root := h1.rootOffset()

	h2, err := Mount(mem)
	if err != nil {
		t.Fatalf("second Mount() error = %v", err)
	}
	if h2.rootOffset() != root {
		t.Fatalf("rootOffset() changed across remount: %d != %d", h2.rootOffset(), root)
	}
	if h2.VolumeID() != id {
		t.Fatalf("VolumeID() changed across remount")
	}
	entries, err := h2.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a" {
		t.Fatalf("Readdir() = %v, want one entry named \"a\"", entries)
	}
}

func TestMountSurvivesRelocationToANewBaseAddress(t *testing.T) {
	mem := newTestRegion(t, 64*1024)
	h1, err := Mount(mem)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if err := h1.Mkdir("/a"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if err := h1.Mknod("/a/b"); err != nil {
		t.Fatalf("Mknod() error = %v", err)
	}
	if _, err := h1.Write("/a/b", []byte("hello"), 0); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	before, err := h1.Getattr("/a/b")
	if err != nil {
		t.Fatalf("Getattr() error = %v", err)
	}

	// Simulate relocation: copy the whole region into a freshly allocated
	// slice at a different backing array.
	relocated := make([]byte, len(mem))
	copy(relocated, mem)
	mem = nil

	h2, err := Mount(relocated)
	if err != nil {
		t.Fatalf("Mount() after relocation error = %v", err)
	}
	after, err := h2.Getattr("/a/b")
	if err != nil {
		t.Fatalf("Getattr() after relocation error = %v", err)
	}
	if diff := deep.Equal(before, after); diff != nil {
		t.Errorf("attrs differ after relocation: %v", diff)
	}
	buf := make([]byte, 5)
	n, err := h2.Read("/a/b", buf, 0)
	if err != nil {
		t.Fatalf("Read() after relocation error = %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read() after relocation = %q, want %q", buf[:n], "hello")
	}
}

func TestMountRejectsUndersizedRegion(t *testing.T) {
	if _, err := Mount(make([]byte, 4)); err == nil {
		t.Fatalf("Mount() of undersized region succeeded, want error")
	}
}

func TestLabelRoundTrip(t *testing.T) {
	mem := newTestRegion(t, 16*1024)
	h, err := Mount(mem)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if got := h.Label(); got != DefaultLabel {
		t.Fatalf("Label() = %q, want %q", got, DefaultLabel)
	}
	h.SetLabel("myvolume")
	if got := h.Label(); got != "myvolume" {
		t.Fatalf("Label() = %q, want %q", got, "myvolume")
	}
}
