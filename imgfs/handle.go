package imgfs

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Header field offsets, in bytes, from the start of the image. This is the
// authoritative on-image binary layout: little-endian, fixed-width,
// version-agnostic (a single implementation only needs to agree with
// itself across a remount).
const (
	offMagic      = 0
	offReserved   = 4
	offSize       = 8
	offFreeHead   = 16
	offRootOffset = 24
	offUUID       = 32
	offLabel      = 48
	headerSize    = 80 // offLabel + maxLabelLen, rounded; see init below
)

func init() {
	if headerSize < offLabel+maxLabelLen {
		panic(fmt.Sprintf("imgfs: headerSize %d too small for label field at %d+%d", headerSize, offLabel, maxLabelLen))
	}
}

// Handle is a transient, per-call bundle of a byte region and a derived
// view of its header. It must never be retained past the call that
// acquired it: the host may remap the same logical image to a different
// base address between calls (that's the whole point of storing offsets
// instead of pointers), so every operation calls Mount fresh.
//
// Handle is not safe for concurrent use. The contract is that the host
// serializes calls into a mount; if a caller needs to share one across
// goroutines, put a mutex at that boundary, not inside Handle.
type Handle struct {
	mem []byte
}

// Mount derives a Handle from a caller-owned byte region. If the region
// does not already look like an initialized image (wrong or absent magic),
// it is reformatted in place: a single free block is installed covering
// all usable bytes, a fresh volume identity is stamped, and the root
// directory inode is created immediately rather than on first path lookup.
//
// Mounting an already-initialized region is a no-op beyond validating it:
// header.size, free_head and root_offset are trusted as-is.
func Mount(mem []byte) (*Handle, error) {
	if len(mem) < headerSize {
		return nil, newErr("mount", "", KindBadState, fmt.Errorf("region of %d bytes too small for %d-byte header", len(mem), headerSize))
	}

	h := &Handle{mem: mem}

	if binary.LittleEndian.Uint32(mem[offMagic:]) == Magic {
		return h, nil
	}

	return h, h.format()
}

// format reinitializes the region as a fresh, empty image. It is only
// called by Mount when the magic number does not already match — it must
// never run against a region that merely looks unfamiliar but is in fact
// a live image the caller forgot to pass correctly, which is why Mount
// checks the magic rather than some heuristic like "all zero".
func (h *Handle) format() error {
	usable := uint64(len(h.mem) - headerSize)

	for i := range h.mem[headerSize:] {
		h.mem[headerSize+i] = 0
	}

	binary.LittleEndian.PutUint64(h.mem[offSize:], usable)
	binary.LittleEndian.PutUint64(h.mem[offFreeHead:], 0)
	binary.LittleEndian.PutUint64(h.mem[offRootOffset:], 0)

	id, err := uuid.NewRandom()
	if err != nil {
		return newErr("mount", "", KindHostOutOfMemory, err)
	}
	copy(h.mem[offUUID:offUUID+16], id[:])
	h.setLabelBytes(DefaultLabel)

	if usable >= blockHeaderSize {
		h.installFreeBlock(uint64(headerSize), usable, 0)
		binary.LittleEndian.PutUint64(h.mem[offFreeHead:], uint64(headerSize))
	}

	root, err := h.allocateInode()
	if err != nil {
		return newErr("mount", "", KindOutOfSpace, err)
	}
	initInode(h.slicePanic(root, inodeSize), "/", true)
	binary.LittleEndian.PutUint64(h.mem[offRootOffset:], root)

	// Magic goes in last, so a region whose root inode could not be created
	// is never mistaken for an initialized image by a later Mount.
	binary.LittleEndian.PutUint32(h.mem[offMagic:], Magic)

	return nil
}

func (h *Handle) usableSize() uint64 {
	return binary.LittleEndian.Uint64(h.mem[offSize:])
}

func (h *Handle) freeHead() uint64 {
	return binary.LittleEndian.Uint64(h.mem[offFreeHead:])
}

func (h *Handle) setFreeHead(off uint64) {
	binary.LittleEndian.PutUint64(h.mem[offFreeHead:], off)
}

func (h *Handle) rootOffset() uint64 {
	return binary.LittleEndian.Uint64(h.mem[offRootOffset:])
}

// VolumeID returns the UUID stamped into the header at first
// initialization. It is stable across unmount/remount and across
// relocation to a new base address — only the header's bytes matter.
func (h *Handle) VolumeID() uuid.UUID {
	id, _ := uuid.FromBytes(h.mem[offUUID : offUUID+16])
	return id
}

func (h *Handle) labelBytes() string {
	raw := h.mem[offLabel : offLabel+maxLabelLen]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func (h *Handle) setLabelBytes(label string) {
	raw := h.mem[offLabel : offLabel+maxLabelLen]
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, label)
}
