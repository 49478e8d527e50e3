package imgfs

import "testing"

func mountTestHandle(t *testing.T, size int) *Handle {
	t.Helper()
	h, err := Mount(make([]byte, size))
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return h
}

func TestAppendAndLookupChild(t *testing.T) {
	h := mountTestHandle(t, 64*1024)
	root := h.rootOffset()

	if _, err := h.appendChild(root, "a", false); err != nil {
		t.Fatalf("appendChild(a) error = %v", err)
	}
	bOff, err := h.appendChild(root, "b", true)
	if err != nil {
		t.Fatalf("appendChild(b) error = %v", err)
	}
	// Appending "b" reallocated the children array, so "a" now sits in slot 0
	// of the new array rather than at the offset its own appendChild returned.
	aOff := childAt(inodeChildrenOffset(h.slicePanic(root, inodeSize)), 0)

	off, _, ok, err := h.lookupChild(root, "a")
	if err != nil || !ok || off != aOff {
		t.Fatalf("lookupChild(a) = (%d, ok=%v, err=%v), want (%d, true, nil)", off, ok, err, aOff)
	}
	off, _, ok, err = h.lookupChild(root, "b")
	if err != nil || !ok || off != bOff {
		t.Fatalf("lookupChild(b) = (%d, ok=%v, err=%v), want (%d, true, nil)", off, ok, err, bOff)
	}
	if _, _, ok, err := h.lookupChild(root, "c"); err != nil || ok {
		t.Fatalf("lookupChild(c) = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	dir := h.slicePanic(root, inodeSize)
	if inodeChildCount(dir) != 2 {
		t.Fatalf("child count = %d, want 2", inodeChildCount(dir))
	}
}

func TestRemoveChildCompactsWithLastSlot(t *testing.T) {
	h := mountTestHandle(t, 64*1024)
	root := h.rootOffset()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := h.appendChild(root, name, false); err != nil {
			t.Fatalf("appendChild(%s) error = %v", name, err)
		}
	}

	// Remove the first entry; "c" (the last) should be moved into its slot.
	_, idx, ok, err := h.lookupChild(root, "a")
	if err != nil || !ok {
		t.Fatalf("lookupChild(a) error = %v, ok = %v", err, ok)
	}
	if err := h.removeChildAt(root, idx); err != nil {
		t.Fatalf("removeChildAt() error = %v", err)
	}

	dir := h.slicePanic(root, inodeSize)
	if inodeChildCount(dir) != 2 {
		t.Fatalf("child count after removal = %d, want 2", inodeChildCount(dir))
	}
	if _, _, ok, _ := h.lookupChild(root, "a"); ok {
		t.Fatalf("lookupChild(a) still found after removal")
	}
	if _, _, ok, _ := h.lookupChild(root, "b"); !ok {
		t.Fatalf("lookupChild(b) not found after removal")
	}
	if _, _, ok, _ := h.lookupChild(root, "c"); !ok {
		t.Fatalf("lookupChild(c) not found after removal")
	}
}

func TestRemoveLastChildFreesArray(t *testing.T) {
	h := mountTestHandle(t, 64*1024)
	root := h.rootOffset()

	if _, err := h.appendChild(root, "only", false); err != nil {
		t.Fatalf("appendChild() error = %v", err)
	}
	_, idx, ok, err := h.lookupChild(root, "only")
	if err != nil || !ok {
		t.Fatalf("lookupChild() error = %v, ok = %v", err, ok)
	}
	if err := h.removeChildAt(root, idx); err != nil {
		t.Fatalf("removeChildAt() error = %v", err)
	}

	dir := h.slicePanic(root, inodeSize)
	if inodeChildCount(dir) != 0 {
		t.Fatalf("child count = %d, want 0", inodeChildCount(dir))
	}
	if inodeChildrenOffset(dir) != 0 {
		t.Fatalf("children_offset = %d, want 0", inodeChildrenOffset(dir))
	}
}

func TestInodeNameTooLongRejected(t *testing.T) {
	h := mountTestHandle(t, 64*1024)
	long := make([]byte, MaxNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	inode := h.slicePanic(h.rootOffset(), inodeSize)
	if err := setInodeName(inode, string(long)); err == nil {
		t.Fatalf("setInodeName() with overlong name succeeded, want error")
	}
}
