package imgfs

import "github.com/google/uuid"

// Label returns the volume's mutable ASCII label (distinct from its UUID,
// which is fixed at first format).
func (h *Handle) Label() string { return h.labelBytes() }

// SetLabel replaces the volume's label, truncating to maxLabelLen bytes.
func (h *Handle) SetLabel(label string) {
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	h.setLabelBytes(label)
}

// StatfsResult reports aggregate information about the mounted image, in
// the spirit of a POSIX statfs(2) call: block-granular counts derived from
// the allocator's byte-granular bookkeeping, plus the volume identity.
type StatfsResult struct {
	BlockSize   uint64
	TotalBlocks uint64
	FreeBlocks  uint64
	NameMax     uint64
	VolumeID    uuid.UUID
	Label       string
}

// Statfs reports aggregate usage for the whole image. Free space is the
// allocator's actual free-list total, not an estimate: since the free list
// is the only bookkeeping structure that survives unmount, this call and
// the allocator agree by construction.
func (h *Handle) Statfs() StatfsResult {
	return StatfsResult{
		BlockSize:   BlockSize,
		TotalBlocks: h.usableSize() / BlockSize,
		FreeBlocks:  h.totalFree() / BlockSize,
		NameMax:     MaxNameLen,
		VolumeID:    h.VolumeID(),
		Label:       h.Label(),
	}
}
