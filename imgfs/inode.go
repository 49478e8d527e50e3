package imgfs

import (
	"encoding/binary"
	"time"

	"github.com/go-imgfs/imgfs/util/timestamp"
)

// On-image inode layout. An inode is fixed-size so a directory's children
// can be stored inline, one after another, in a single contiguous
// allocation rather than one allocation per child.
const (
	inodeNameOff      = 0
	inodeNameLen      = MaxNameLen + 1 // NUL-terminated
	inodeTypeOff      = inodeNameOff + inodeNameLen
	inodeAtimeSecOff  = inodeTypeOff + 1
	inodeAtimeNsecOff = inodeAtimeSecOff + 8
	inodeMtimeSecOff  = inodeAtimeNsecOff + 4
	inodeMtimeNsecOff = inodeMtimeSecOff + 8
	// variantA is child_count for a directory, size for a regular file.
	inodeVariantAOff = inodeMtimeNsecOff + 4
	// variantB is children_offset for a directory, first_block_offset for a
	// regular file.
	inodeVariantBOff = inodeVariantAOff + 8
	inodeSize        = inodeVariantBOff + 8
)

const (
	typeDirectory byte = 0
	typeFile      byte = 1
)

// initInode formats a freshly allocated inode in place: name, type, and
// atime/mtime set to now. Variant fields are left zeroed, which is exactly
// "empty directory" (child_count 0, no children array) or "empty file"
// (size 0, no block chain) depending on isDir.
func initInode(b []byte, name string, isDir bool) {
	for i := range b {
		b[i] = 0
	}
	copy(b[inodeNameOff:inodeNameOff+inodeNameLen-1], name)
	if isDir {
		b[inodeTypeOff] = typeDirectory
	} else {
		b[inodeTypeOff] = typeFile
	}
	now := timestamp.GetTime()
	setInodeAtime(b, now)
	setInodeMtime(b, now)
}

func inodeName(b []byte) string {
	raw := b[inodeNameOff : inodeNameOff+inodeNameLen]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func setInodeName(b []byte, name string) error {
	if len(name) > MaxNameLen {
		return newErr("rename", name, KindNameTooLong, nil)
	}
	raw := b[inodeNameOff : inodeNameOff+inodeNameLen]
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, name)
	return nil
}

func inodeIsDir(b []byte) bool { return b[inodeTypeOff] == typeDirectory }

func inodeAtime(b []byte) (sec int64, nsec uint32) {
	sec = int64(binary.LittleEndian.Uint64(b[inodeAtimeSecOff:]))
	nsec = binary.LittleEndian.Uint32(b[inodeAtimeNsecOff:])
	return
}

func inodeMtime(b []byte) (sec int64, nsec uint32) {
	sec = int64(binary.LittleEndian.Uint64(b[inodeMtimeSecOff:]))
	nsec = binary.LittleEndian.Uint32(b[inodeMtimeNsecOff:])
	return
}

func setInodeAtime(b []byte, t time.Time) {
	binary.LittleEndian.PutUint64(b[inodeAtimeSecOff:], uint64(t.Unix()))
	binary.LittleEndian.PutUint32(b[inodeAtimeNsecOff:], uint32(t.Nanosecond()))
}

func setInodeMtime(b []byte, t time.Time) {
	binary.LittleEndian.PutUint64(b[inodeMtimeSecOff:], uint64(t.Unix()))
	binary.LittleEndian.PutUint32(b[inodeMtimeNsecOff:], uint32(t.Nanosecond()))
}

// touchInode updates atime only.
func touchInode(b []byte, t time.Time) { setInodeAtime(b, t) }

func inodeChildCount(b []byte) uint64     { return binary.LittleEndian.Uint64(b[inodeVariantAOff:]) }
func setInodeChildCount(b []byte, n uint64) {
	binary.LittleEndian.PutUint64(b[inodeVariantAOff:], n)
}

func inodeChildrenOffset(b []byte) uint64 { return binary.LittleEndian.Uint64(b[inodeVariantBOff:]) }
func setInodeChildrenOffset(b []byte, off uint64) {
	binary.LittleEndian.PutUint64(b[inodeVariantBOff:], off)
}

func inodeFileSize(b []byte) uint64 { return binary.LittleEndian.Uint64(b[inodeVariantAOff:]) }
func setInodeFileSize(b []byte, n uint64) {
	binary.LittleEndian.PutUint64(b[inodeVariantAOff:], n)
}

func inodeFirstBlock(b []byte) uint64 { return binary.LittleEndian.Uint64(b[inodeVariantBOff:]) }
func setInodeFirstBlock(b []byte, off uint64) {
	binary.LittleEndian.PutUint64(b[inodeVariantBOff:], off)
}

// allocateInode reserves space for exactly one inode.
func (h *Handle) allocateInode() (uint64, error) {
	return h.allocate(uint64(inodeSize))
}

// childAt returns the offset of the idx'th inode in a directory's children
// array.
func childAt(childrenOff uint64, idx int) uint64 {
	return childrenOff + uint64(idx)*uint64(inodeSize)
}

// lookupChild scans a directory's children array linearly for name.
// Directories are not expected to be enormous, and no side index could
// survive a remount without becoming another piece of state to keep
// consistent, so a linear scan is the whole strategy.
func (h *Handle) lookupChild(dirOff uint64, name string) (childOff uint64, idx int, ok bool, err error) {
	dir, err := h.slice(dirOff, inodeSize)
	if err != nil {
		return 0, 0, false, err
	}
	count := int(inodeChildCount(dir))
	childrenOff := inodeChildrenOffset(dir)
	for i := 0; i < count; i++ {
		off := childAt(childrenOff, i)
		c, err := h.slice(off, inodeSize)
		if err != nil {
			return 0, 0, false, err
		}
		if inodeName(c) == name {
			return off, i, true, nil
		}
	}
	return 0, 0, false, nil
}

// appendChild grows dir's children array by one inode, formats it as a
// fresh empty file or directory named name, and returns its offset.
// The first child of a directory is a fresh allocation; every subsequent
// child grows the array via reallocate.
func (h *Handle) appendChild(dirOff uint64, name string, isDir bool) (uint64, error) {
	dir, err := h.slice(dirOff, inodeSize)
	if err != nil {
		return 0, err
	}
	count := inodeChildCount(dir)
	oldChildrenOff := inodeChildrenOffset(dir)
	newSize := (count + 1) * uint64(inodeSize)

	var newChildrenOff uint64
	if oldChildrenOff == nullOffset {
		newChildrenOff, err = h.allocate(newSize)
	} else {
		newChildrenOff, err = h.reallocate(oldChildrenOff, newSize)
	}
	if err != nil {
		return 0, err
	}

	// Re-slice dir: the allocate/reallocate call above may have walked and
	// mutated the free list, but dirOff itself is untouched, so this is
	// just re-deriving the view per the no-pointers-across-calls rule.
	dir = h.slicePanic(dirOff, inodeSize)
	setInodeChildrenOffset(dir, newChildrenOff)
	setInodeChildCount(dir, count+1)
	setInodeMtime(dir, timestamp.GetTime())

	childOff := childAt(newChildrenOff, int(count))
	initInode(h.slicePanic(childOff, inodeSize), name, isDir)
	return childOff, nil
}

// removeChildAt removes the child at idx from dir's children array using
// the compact-with-last-slot technique: the last slot is copied over the
// removed one (unless it is already the last), then the array is shrunk by
// one inode, freeing it entirely once the count reaches zero. Any index or
// offset a caller held into the array before this call is invalidated by
// it.
func (h *Handle) removeChildAt(dirOff uint64, idx int) error {
	dir, err := h.slice(dirOff, inodeSize)
	if err != nil {
		return err
	}
	count := inodeChildCount(dir)
	childrenOff := inodeChildrenOffset(dir)

	lastIdx := int(count) - 1
	if idx != lastIdx {
		last := h.slicePanic(childAt(childrenOff, lastIdx), inodeSize)
		target := h.slicePanic(childAt(childrenOff, idx), inodeSize)
		copy(target, last)
	}

	newCount := count - 1
	if newCount == 0 {
		if err := h.free(childrenOff); err != nil {
			return err
		}
		childrenOff = 0
	} else {
		childrenOff, err = h.reallocate(childrenOff, newCount*uint64(inodeSize))
		if err != nil {
			return err
		}
	}

	dir = h.slicePanic(dirOff, inodeSize)
	setInodeChildCount(dir, newCount)
	setInodeChildrenOffset(dir, childrenOff)
	setInodeMtime(dir, timestamp.GetTime())
	return nil
}
