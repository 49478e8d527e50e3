package imgfs

import "fmt"

// slice returns the n bytes of the image starting at off: this is the one
// place that turns an offset into a real Go slice. Everywhere else in this
// package derives a view of the image from (handle, offset) rather than
// holding on to a slice or pointer across calls, so that a remount at a
// different base address never invalidates anything we've kept around.
//
// Offset 0 is reserved for the header and is never a valid target for this
// call; every live entity lives at a strictly positive offset.
func (h *Handle) slice(off uint64, n int) ([]byte, error) {
	if off == nullOffset {
		return nil, fmt.Errorf("offset 0 is null")
	}
	end := off + uint64(n)
	if n < 0 || end < off || end > uint64(len(h.mem)) {
		return nil, fmt.Errorf("offset %d length %d out of bounds (region size %d)", off, n, len(h.mem))
	}
	return h.mem[off:end], nil
}

// slicePanic is slice without the error return, for use in the small
// number of places (immediately after an allocation this handle itself
// just performed) where the offset is known good by construction. Any
// panic here indicates an allocator bug, not caller-supplied bad input.
func (h *Handle) slicePanic(off uint64, n int) []byte {
	b, err := h.slice(off, n)
	if err != nil {
		panic(fmt.Sprintf("imgfs: internal offset error: %v", err))
	}
	return b
}
