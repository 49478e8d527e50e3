package imgfs

import "encoding/binary"

// blockHeaderSize is the shape shared by every block on the image,
// allocated or free: an 8-byte size (header-inclusive, so free() can
// reconstruct a block from nothing but the offset allocate() handed back)
// followed by an 8-byte next-pointer that is only meaningful while the
// block sits on the free list. Reserving the same 16 bytes either way
// means free() never needs to grow a block to link it in.
const blockHeaderSize = 16

func blockSizeAt(b []byte) uint64     { return binary.LittleEndian.Uint64(b[0:8]) }
func blockNextAt(b []byte) uint64     { return binary.LittleEndian.Uint64(b[8:16]) }
func setBlockSize(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[0:8], v) }
func setBlockNext(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[8:16], v) }

// installFreeBlock writes a free-block header at off.
func (h *Handle) installFreeBlock(off, size, next uint64) {
	b := h.slicePanic(off, blockHeaderSize)
	setBlockSize(b, size)
	setBlockNext(b, next)
}

// allocate reserves at least n user bytes and returns an offset pointing
// past the block's header, or an error if no free block is large enough.
// Policy: first-fit over the address-ordered free list; if the residue
// left behind by a split would itself fit a free-block header it is
// reinserted in place, otherwise the whole block is handed over (slack is
// accepted rather than chasing an unsplittable remainder).
func (h *Handle) allocate(n uint64) (uint64, error) {
	required := n + blockHeaderSize
	if required < n { // overflow
		return 0, newErr("allocate", "", KindOutOfSpace, nil)
	}

	var prevOff uint64 // 0 means "no previous node", i.e. candidate is the head
	cur := h.freeHead()

	for cur != nullOffset {
		b, err := h.slice(cur, blockHeaderSize)
		if err != nil {
			return 0, newErr("allocate", "", KindBadState, err)
		}
		size := blockSizeAt(b)
		next := blockNextAt(b)

		if size >= required {
			remainder := size - required
			if remainder >= blockHeaderSize {
				tailOff := cur + required
				h.installFreeBlock(tailOff, remainder, next)
				h.spliceFreeList(prevOff, cur, tailOff)
				setBlockSize(h.slicePanic(cur, blockHeaderSize), required)
			} else {
				h.spliceFreeList(prevOff, cur, next)
				// size field already correct (whole block consumed).
			}
			setBlockNext(h.slicePanic(cur, blockHeaderSize), 0)
			return cur + blockHeaderSize, nil
		}

		prevOff = cur
		cur = next
	}

	return 0, newErr("allocate", "", KindOutOfSpace, nil)
}

// spliceFreeList removes the node at "at" from the list (whose predecessor
// is prevOff, or 0 if "at" was the head) and puts "replacement" in its
// place — 0 means "nothing", i.e. simply unlink "at".
func (h *Handle) spliceFreeList(prevOff, at, replacement uint64) {
	if prevOff == nullOffset {
		h.setFreeHead(replacement)
		return
	}
	setBlockNext(h.slicePanic(prevOff, blockHeaderSize), replacement)
}

// free releases a previously allocated block (the offset allocate
// returned), reinserting it into the free list at its address-sorted
// position and coalescing with either physically adjacent neighbour.
func (h *Handle) free(off uint64) error {
	blockOff := off - blockHeaderSize
	hdr, err := h.slice(blockOff, blockHeaderSize)
	if err != nil {
		return newErr("free", "", KindBadState, err)
	}
	size := blockSizeAt(hdr)

	var prevOff uint64
	cur := h.freeHead()
	for cur != nullOffset && cur < blockOff {
		prevOff = cur
		cur = blockNextAt(h.slicePanic(cur, blockHeaderSize))
	}
	// cur is now the first free block at or past blockOff (0 if none); prevOff precedes it.

	setBlockNext(hdr, cur)
	if prevOff == nullOffset {
		h.setFreeHead(blockOff)
	} else {
		setBlockNext(h.slicePanic(prevOff, blockHeaderSize), blockOff)
	}

	// Coalesce with the right neighbour first so prevOff/blockOff math below
	// doesn't have to account for a just-grown block.
	if cur != nullOffset && blockOff+size == cur {
		curHdr := h.slicePanic(cur, blockHeaderSize)
		size += blockSizeAt(curHdr)
		setBlockSize(hdr, size)
		setBlockNext(hdr, blockNextAt(curHdr))
	}

	if prevOff != nullOffset {
		prevHdr := h.slicePanic(prevOff, blockHeaderSize)
		prevSize := blockSizeAt(prevHdr)
		if prevOff+prevSize == blockOff {
			prevSize += size
			setBlockSize(prevHdr, prevSize)
			setBlockNext(prevHdr, blockNextAt(hdr))
		}
	}

	return nil
}

// reallocate grows or shrinks a previously allocated block, preserving up
// to min(old user size, n) bytes of its content. n == 0 is equivalent to
// free and always returns 0. A failed reallocate leaves the original
// allocation untouched — it is not freed until the new one has succeeded.
func (h *Handle) reallocate(off, n uint64) (uint64, error) {
	if n == 0 {
		return 0, h.free(off)
	}

	oldHdr, err := h.slice(off-blockHeaderSize, blockHeaderSize)
	if err != nil {
		return 0, newErr("reallocate", "", KindBadState, err)
	}
	oldUserSize := blockSizeAt(oldHdr) - blockHeaderSize

	newOff, err := h.allocate(n)
	if err != nil {
		return 0, err
	}

	toCopy := oldUserSize
	if n < toCopy {
		toCopy = n
	}
	if toCopy > 0 {
		src := h.slicePanic(off, int(toCopy))
		dst := h.slicePanic(newOff, int(toCopy))
		copy(dst, src)
	}

	if err := h.free(off); err != nil {
		return 0, err
	}
	return newOff, nil
}

// largestFreeRun returns the largest single allocation (n as understood
// by allocate) the free list could currently satisfy.
func (h *Handle) largestFreeRun() uint64 {
	var best uint64
	cur := h.freeHead()
	for cur != nullOffset {
		b := h.slicePanic(cur, blockHeaderSize)
		if avail := blockSizeAt(b) - blockHeaderSize; avail > best {
			best = avail
		}
		cur = blockNextAt(b)
	}
	return best
}

// totalFree returns the sum of free-list block sizes, header inclusive.
// Paired with the sum of allocated-block sizes, this should always equal
// the image's usable size.
func (h *Handle) totalFree() uint64 {
	var total uint64
	cur := h.freeHead()
	for cur != nullOffset {
		b := h.slicePanic(cur, blockHeaderSize)
		total += blockSizeAt(b)
		cur = blockNextAt(b)
	}
	return total
}

// FreeSpan is a read-only diagnostic view of one free-list entry, used
// only by tests — never by a mutating code path.
type FreeSpan struct {
	Offset uint64
	Size   uint64
}

// DebugFreeList walks the free list and returns it as a slice of spans,
// in address order.
func (h *Handle) DebugFreeList() []FreeSpan {
	var spans []FreeSpan
	cur := h.freeHead()
	for cur != nullOffset {
		b := h.slicePanic(cur, blockHeaderSize)
		spans = append(spans, FreeSpan{Offset: cur, Size: blockSizeAt(b)})
		cur = blockNextAt(b)
	}
	return spans
}
