package imgfs

import (
	"time"

	"github.com/go-imgfs/imgfs/util/timestamp"
)

// Attr is the host-facing result of Getattr: everything a stat(2) call
// would want, with Size meaningful only for regular files.
type Attr struct {
	Name  string
	IsDir bool
	Size  uint64
	Atime time.Time
	Mtime time.Time
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name  string
	IsDir bool
}

func attrOf(b []byte) Attr {
	asec, ansec := inodeAtime(b)
	msec, mnsec := inodeMtime(b)
	isDir := inodeIsDir(b)
	a := Attr{
		Name:  inodeName(b),
		IsDir: isDir,
		Atime: time.Unix(asec, int64(ansec)),
		Mtime: time.Unix(msec, int64(mnsec)),
	}
	if !isDir {
		a.Size = inodeFileSize(b)
	}
	return a
}

// Getattr resolves path and returns its inode metadata.
func (h *Handle) Getattr(path string) (Attr, error) {
	logOp("getattr", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return Attr{}, err
	}
	return attrOf(h.slicePanic(off, inodeSize)), nil
}

// Readdir lists the children of the directory at path, in their on-image
// order (the order appendChild/removeChildAt happen to leave them in — not
// sorted, and not stable across mutations, matching a plain directory
// scan).
func (h *Handle) Readdir(path string) ([]DirEntry, error) {
	logOp("readdir", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return nil, err
	}
	dir := h.slicePanic(off, inodeSize)
	if !inodeIsDir(dir) {
		return nil, newErr("readdir", path, KindNotADirectory, nil)
	}
	count := int(inodeChildCount(dir))
	childrenOff := inodeChildrenOffset(dir)
	entries := make([]DirEntry, 0, count)
	for i := 0; i < count; i++ {
		c := h.slicePanic(childAt(childrenOff, i), inodeSize)
		entries = append(entries, DirEntry{Name: inodeName(c), IsDir: inodeIsDir(c)})
	}
	return entries, nil
}

func (h *Handle) mknodOrMkdir(op, path string, isDir bool) error {
	logOp(op, path).Debug("enter")
	parentOff, name, err := h.resolveParent(path)
	if err != nil {
		return err
	}
	_, _, exists, err := h.lookupChild(parentOff, name)
	if err != nil {
		return err
	}
	if exists {
		return newErr(op, path, KindExists, nil)
	}
	_, err = h.appendChild(parentOff, name, isDir)
	return err
}

// Mknod creates a new, empty regular file at path. The parent directory
// must already exist; path's last component must not.
func (h *Handle) Mknod(path string) error { return h.mknodOrMkdir("mknod", path, false) }

// Mkdir creates a new, empty directory at path.
func (h *Handle) Mkdir(path string) error { return h.mknodOrMkdir("mkdir", path, true) }

// Unlink removes a regular file, freeing its block chain. It refuses to
// remove a directory.
func (h *Handle) Unlink(path string) error {
	logOp("unlink", path).Debug("enter")
	parentOff, name, err := h.resolveParent(path)
	if err != nil {
		return err
	}
	off, idx, ok, err := h.lookupChild(parentOff, name)
	if err != nil {
		return err
	}
	if !ok {
		return newErr("unlink", path, KindNotFound, nil)
	}
	inode := h.slicePanic(off, inodeSize)
	if inodeIsDir(inode) {
		return newErr("unlink", path, KindIsADirectory, nil)
	}
	if err := h.freeChainFrom(inodeFirstBlock(inode)); err != nil {
		return err
	}
	return h.removeChildAt(parentOff, idx)
}

// Rmdir removes an empty directory. A non-empty directory is refused with
// KindNotEmpty.
func (h *Handle) Rmdir(path string) error {
	logOp("rmdir", path).Debug("enter")
	parentOff, name, err := h.resolveParent(path)
	if err != nil {
		return err
	}
	off, idx, ok, err := h.lookupChild(parentOff, name)
	if err != nil {
		return err
	}
	if !ok {
		return newErr("rmdir", path, KindNotFound, nil)
	}
	inode := h.slicePanic(off, inodeSize)
	if !inodeIsDir(inode) {
		return newErr("rmdir", path, KindNotADirectory, nil)
	}
	if inodeChildCount(inode) != 0 {
		return newErr("rmdir", path, KindNotEmpty, nil)
	}
	return h.removeChildAt(parentOff, idx)
}

// Rename moves or renames the entry at oldPath to newPath, replacing an
// existing file or empty directory at newPath (POSIX rename(2) semantics):
// a file replaces a file, a non-empty directory target is rejected with
// KindNotEmpty, and mismatched types (file onto directory or vice versa)
// are rejected. Renaming a path onto itself is a no-op.
func (h *Handle) Rename(oldPath, newPath string) error {
	logOp("rename", oldPath).WithField("to", newPath).Debug("enter")

	oldParent, oldName, err := h.resolveParent(oldPath)
	if err != nil {
		return err
	}
	oldOff, oldIdx, ok, err := h.lookupChild(oldParent, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return newErr("rename", oldPath, KindNotFound, nil)
	}

	newParent, newName, err := h.resolveParent(newPath)
	if err != nil {
		return err
	}

	existingOff, existingIdx, exists, err := h.lookupChild(newParent, newName)
	if err != nil {
		return err
	}
	if exists && existingOff == oldOff {
		return nil
	}

	oldInode := h.slicePanic(oldOff, inodeSize)
	oldIsDir := inodeIsDir(oldInode)

	if exists {
		existingInode := h.slicePanic(existingOff, inodeSize)
		if inodeIsDir(existingInode) {
			if !oldIsDir {
				return newErr("rename", newPath, KindIsADirectory, nil)
			}
			if inodeChildCount(existingInode) != 0 {
				return newErr("rename", newPath, KindNotEmpty, nil)
			}
		} else {
			if oldIsDir {
				return newErr("rename", newPath, KindNotADirectory, nil)
			}
			if err := h.freeChainFrom(inodeFirstBlock(existingInode)); err != nil {
				return err
			}
		}
		if err := h.removeChildAt(newParent, existingIdx); err != nil {
			return err
		}
		if oldParent == newParent {
			oldOff, oldIdx, ok, err = h.lookupChild(oldParent, oldName)
			if err != nil {
				return err
			}
			if !ok {
				return newErr("rename", oldPath, KindBadState, nil)
			}
		}
	}

	if oldParent == newParent {
		inode := h.slicePanic(oldOff, inodeSize)
		return setInodeName(inode, newName)
	}

	newOff, err := h.appendChild(newParent, newName, oldIsDir)
	if err != nil {
		return err
	}
	// Growing (or shrinking) newParent's children array moves every inode in
	// it, which includes oldParent when oldParent is a child of newParent, so
	// the source is looked up again by path.
	oldParent, _, err = h.resolveParent(oldPath)
	if err != nil {
		return err
	}
	oldOff, oldIdx, ok, err = h.lookupChild(oldParent, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return newErr("rename", oldPath, KindBadState, nil)
	}
	oldInode = h.slicePanic(oldOff, inodeSize)
	newInode := h.slicePanic(newOff, inodeSize)
	copy(newInode[inodeAtimeSecOff:inodeSize], oldInode[inodeAtimeSecOff:inodeSize])

	return h.removeChildAt(oldParent, oldIdx)
}

// Truncate resizes a regular file to exactly size bytes: shrinking frees
// the tail of its block chain, growing zero-fills the new region. A
// truncate to the file's current size is a no-op other than bumping mtime.
func (h *Handle) Truncate(path string, size uint64) error {
	logOp("truncate", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return err
	}
	inode := h.slicePanic(off, inodeSize)
	if inodeIsDir(inode) {
		return newErr("truncate", path, KindIsADirectory, nil)
	}
	cur := inodeFileSize(inode)

	switch {
	case size == cur:
		// no-op fast path; still counts as a modification.
	case size > cur:
		if err := h.ensureFileSize(off, size); err != nil {
			return err
		}
	default:
		if err := h.truncateFileSize(off, size); err != nil {
			return err
		}
	}

	setInodeMtime(h.slicePanic(off, inodeSize), timestamp.GetTime())
	return nil
}

// Open validates that path names an existing regular file, suitable to
// precede Read/Write calls. There is no file-descriptor table: every
// operation is addressed by path and offset, so Open exists purely as a
// validation step for hosts that want one.
func (h *Handle) Open(path string) error {
	off, err := h.resolve(path)
	if err != nil {
		return err
	}
	if inodeIsDir(h.slicePanic(off, inodeSize)) {
		return newErr("open", path, KindIsADirectory, nil)
	}
	return nil
}

// Read copies up to len(buf) bytes from path starting at offset, returning
// the number of bytes actually read (0 at or past end of file).
func (h *Handle) Read(path string, buf []byte, offset uint64) (int, error) {
	logOp("read", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return 0, err
	}
	inode := h.slicePanic(off, inodeSize)
	if inodeIsDir(inode) {
		return 0, newErr("read", path, KindIsADirectory, nil)
	}
	n, err := h.readChain(inodeFirstBlock(inode), inodeFileSize(inode), buf, offset)
	if err != nil {
		return n, err
	}
	setInodeAtime(h.slicePanic(off, inodeSize), timestamp.GetTime())
	return n, nil
}

// Write copies buf into path at offset, extending the file (zero-filling
// any gap between its current end and offset, per POSIX sparse-write
// semantics) as needed.
func (h *Handle) Write(path string, buf []byte, offset uint64) (int, error) {
	logOp("write", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return 0, err
	}
	inode := h.slicePanic(off, inodeSize)
	if inodeIsDir(inode) {
		return 0, newErr("write", path, KindIsADirectory, nil)
	}

	target := offset + uint64(len(buf))
	if err := h.ensureFileSize(off, target); err != nil {
		return 0, err
	}

	inode = h.slicePanic(off, inodeSize)
	if err := h.writeChain(inodeFirstBlock(inode), buf, offset); err != nil {
		return 0, err
	}

	setInodeMtime(h.slicePanic(off, inodeSize), timestamp.GetTime())
	return len(buf), nil
}

// Utimens sets an inode's atime and mtime directly, without otherwise
// touching it.
func (h *Handle) Utimens(path string, atime, mtime time.Time) error {
	logOp("utimens", path).Debug("enter")
	off, err := h.resolve(path)
	if err != nil {
		return err
	}
	inode := h.slicePanic(off, inodeSize)
	setInodeAtime(inode, atime)
	setInodeMtime(inode, mtime)
	return nil
}
