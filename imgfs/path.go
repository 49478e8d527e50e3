package imgfs

import "strings"

// splitPath breaks an absolute path into its non-empty components,
// collapsing repeated slashes and ignoring a trailing one. "/" itself
// splits to an empty slice (the root).
func splitPath(path string) ([]string, error) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p == "" {
			continue
		}
		if len(p) > MaxNameLen {
			return nil, newErr("resolve", path, KindNameTooLong, nil)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// resolve walks from the root inode through every component of path and
// returns the offset of the inode it names. It never mutates the image.
func (h *Handle) resolve(path string) (uint64, error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, err
	}

	cur := h.rootOffset()
	for _, name := range parts {
		dir := h.slicePanic(cur, inodeSize)
		if !inodeIsDir(dir) {
			return 0, newErr("resolve", path, KindNotADirectory, nil)
		}
		childOff, _, ok, err := h.lookupChild(cur, name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, newErr("resolve", path, KindNotFound, nil)
		}
		cur = childOff
	}
	return cur, nil
}

// resolveParent splits path into the directory holding its last component
// and that component's name, resolving only the directory part. It is used
// by operations (mknod, mkdir, unlink, rmdir, rename) that need a place to
// add or remove an entry rather than an existing inode. The final
// component need not exist; everything before it must, and must be a
// directory.
func (h *Handle) resolveParent(path string) (parentOff uint64, name string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	if len(parts) == 0 {
		return 0, "", newErr("resolve", path, KindBadState, nil)
	}

	name = parts[len(parts)-1]
	cur := h.rootOffset()
	for _, p := range parts[:len(parts)-1] {
		dir := h.slicePanic(cur, inodeSize)
		if !inodeIsDir(dir) {
			return 0, "", newErr("resolve", path, KindNotADirectory, nil)
		}
		childOff, _, ok, err := h.lookupChild(cur, p)
		if err != nil {
			return 0, "", err
		}
		if !ok {
			return 0, "", newErr("resolve", path, KindNotFound, nil)
		}
		cur = childOff
	}

	dir := h.slicePanic(cur, inodeSize)
	if !inodeIsDir(dir) {
		return 0, "", newErr("resolve", path, KindNotADirectory, nil)
	}
	return cur, name, nil
}
