package imgfs

import "encoding/binary"

// On-image file-block layout: a node in the singly-linked chain that holds
// a file's contents. size and data_offset describe a separately allocated
// data payload that this block exclusively owns; next_offset continues the
// chain, or is 0 at the tail.
const (
	fblkSizeOff = 0
	fblkDataOff = 8
	fblkNextOff = 16
	fblkSize    = fblkNextOff + 8
)

func fblkGetSize(b []byte) uint64   { return binary.LittleEndian.Uint64(b[fblkSizeOff:]) }
func fblkGetData(b []byte) uint64   { return binary.LittleEndian.Uint64(b[fblkDataOff:]) }
func fblkGetNext(b []byte) uint64   { return binary.LittleEndian.Uint64(b[fblkNextOff:]) }
func fblkSetSize(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[fblkSizeOff:], v) }
func fblkSetData(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[fblkDataOff:], v) }
func fblkSetNext(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[fblkNextOff:], v) }

// newFileBlock allocates a single file block with a zero-filled payload of
// the given size (size may be 0, in which case data_offset stays 0).
func (h *Handle) newFileBlock(size uint64) (uint64, error) {
	var dataOff uint64
	if size > 0 {
		off, err := h.allocate(size)
		if err != nil {
			return 0, err
		}
		data := h.slicePanic(off, int(size))
		for i := range data {
			data[i] = 0
		}
		dataOff = off
	}

	blockOff, err := h.allocate(fblkSize)
	if err != nil {
		if dataOff != 0 {
			_ = h.free(dataOff)
		}
		return 0, err
	}
	b := h.slicePanic(blockOff, fblkSize)
	fblkSetSize(b, size)
	fblkSetData(b, dataOff)
	fblkSetNext(b, 0)
	return blockOff, nil
}

// freeChainFrom frees every block from off to the end of its chain,
// including each block's data payload.
func (h *Handle) freeChainFrom(off uint64) error {
	for off != nullOffset {
		b, err := h.slice(off, fblkSize)
		if err != nil {
			return err
		}
		data := fblkGetData(b)
		next := fblkGetNext(b)
		if data != nullOffset {
			if err := h.free(data); err != nil {
				return err
			}
		}
		if err := h.free(off); err != nil {
			return err
		}
		off = next
	}
	return nil
}

// ensureFileSize grows a file's block chain, zero-filling the new region,
// so that its logical size is at least target. It is a no-op if the file
// is already at least that large. On failure the file is left exactly as
// it was: the new tail block is either fully allocated or not allocated at
// all before any inode or chain pointer changes.
func (h *Handle) ensureFileSize(inodeOff, target uint64) error {
	inode := h.slicePanic(inodeOff, inodeSize)
	size := inodeFileSize(inode)
	if target <= size {
		return nil
	}
	delta := target - size
	first := inodeFirstBlock(inode)

	if first == nullOffset {
		blockOff, err := h.newFileBlock(target)
		if err != nil {
			return err
		}
		inode = h.slicePanic(inodeOff, inodeSize)
		setInodeFirstBlock(inode, blockOff)
		setInodeFileSize(inode, target)
		return nil
	}

	blockOff, err := h.newFileBlock(delta)
	if err != nil {
		return err
	}
	last := h.lastBlock(first)
	fblkSetNext(h.slicePanic(last, fblkSize), blockOff)

	inode = h.slicePanic(inodeOff, inodeSize)
	setInodeFileSize(inode, target)
	return nil
}

// truncateFileSize shrinks a file's block chain to exactly target bytes:
// walk to the block containing offset target, shrink its payload to fit,
// and free everything after it.
func (h *Handle) truncateFileSize(inodeOff, target uint64) error {
	inode := h.slicePanic(inodeOff, inodeSize)
	first := inodeFirstBlock(inode)

	if target == 0 {
		if err := h.freeChainFrom(first); err != nil {
			return err
		}
		inode = h.slicePanic(inodeOff, inodeSize)
		setInodeFirstBlock(inode, 0)
		setInodeFileSize(inode, 0)
		return nil
	}

	var prev uint64
	running := uint64(0)
	cur := first
	for {
		b := h.slicePanic(cur, fblkSize)
		size := fblkGetSize(b)
		if running+size <= target {
			running += size
			prev = cur
			cur = fblkGetNext(b)
			continue
		}

		newLen := target - running
		if newLen == 0 {
			if err := h.freeChainFrom(cur); err != nil {
				return err
			}
			if prev == nullOffset {
				inode = h.slicePanic(inodeOff, inodeSize)
				setInodeFirstBlock(inode, 0)
			} else {
				fblkSetNext(h.slicePanic(prev, fblkSize), 0)
			}
			break
		}

		data := fblkGetData(b)
		newData, err := h.reallocate(data, newLen)
		if err != nil {
			return err
		}
		b = h.slicePanic(cur, fblkSize)
		next := fblkGetNext(b)
		fblkSetData(b, newData)
		fblkSetSize(b, newLen)
		fblkSetNext(b, 0)
		if err := h.freeChainFrom(next); err != nil {
			return err
		}
		break
	}

	inode = h.slicePanic(inodeOff, inodeSize)
	setInodeFileSize(inode, target)
	return nil
}

func (h *Handle) lastBlock(first uint64) uint64 {
	cur := first
	for {
		b := h.slicePanic(cur, fblkSize)
		next := fblkGetNext(b)
		if next == nullOffset {
			return cur
		}
		cur = next
	}
}

// readChain copies up to len(buf) bytes starting at offset from a file's
// block chain into buf, returning the number of bytes actually delivered.
func (h *Handle) readChain(first uint64, fileSize uint64, buf []byte, offset uint64) (int, error) {
	if offset >= fileSize || len(buf) == 0 {
		return 0, nil
	}

	running := uint64(0)
	delivered := 0
	cur := first
	for cur != nullOffset && delivered < len(buf) {
		b, err := h.slice(cur, fblkSize)
		if err != nil {
			return delivered, err
		}
		size := fblkGetSize(b)
		if running+size <= offset {
			running += size
			cur = fblkGetNext(b)
			continue
		}

		start := 0
		if offset > running {
			start = int(offset - running)
		}
		data, err := h.slice(fblkGetData(b), int(size))
		if err != nil {
			return delivered, err
		}
		avail := int(size) - start
		toCopy := avail
		if remaining := len(buf) - delivered; toCopy > remaining {
			toCopy = remaining
		}
		copy(buf[delivered:delivered+toCopy], data[start:start+toCopy])
		delivered += toCopy
		running += size
		cur = fblkGetNext(b)
	}
	return delivered, nil
}

// writeChain copies buf into a file's block chain starting at offset. The
// caller must have already grown the chain (via ensureFileSize) so that
// every byte in [offset, offset+len(buf)) already has backing storage.
func (h *Handle) writeChain(first uint64, buf []byte, offset uint64) error {
	running := uint64(0)
	written := 0
	cur := first
	for cur != nullOffset && written < len(buf) {
		b, err := h.slice(cur, fblkSize)
		if err != nil {
			return err
		}
		size := fblkGetSize(b)
		if running+size <= offset {
			running += size
			cur = fblkGetNext(b)
			continue
		}

		start := 0
		if offset > running {
			start = int(offset - running)
		}
		data, err := h.slice(fblkGetData(b), int(size))
		if err != nil {
			return err
		}
		avail := int(size) - start
		toCopy := avail
		if remaining := len(buf) - written; toCopy > remaining {
			toCopy = remaining
		}
		copy(data[start:start+toCopy], buf[written:written+toCopy])
		written += toCopy
		running += size
		cur = fblkGetNext(b)
	}
	return nil
}
