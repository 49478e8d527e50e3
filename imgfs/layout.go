// Package imgfs implements a POSIX-style filesystem that lives entirely
// inside a single contiguous byte region supplied by a host: no process-wide
// state, no side tables, nothing but the bytes. A Handle derives everything
// it needs — the free list, the inode tree, the file contents — from the
// region each time it is asked, so the region can be unmounted and remounted
// at a different base address without losing anything.
package imgfs

import "unsafe"

// Magic identifies an initialized image. An image whose header does not
// start with Magic is treated as uninitialized and is reformatted in place.
const Magic uint32 = 0xCAFEBABE

// MaxNameLen is the longest name (in bytes, excluding the NUL terminator)
// permitted for a path component.
const MaxNameLen = 255

// BlockSize is the nominal allocation unit reported through Statfs. It does
// not constrain actual allocation granularity, which is byte-precise.
const BlockSize = 1024

// DefaultLabel is the volume label assigned to a freshly initialized image.
const DefaultLabel = "imgfs"

// maxLabelLen bounds the ASCII volume label stored in the header.
const maxLabelLen = 32

// wordSize is the width of an on-image offset. Offsets are stored as
// uint64 regardless of host pointer width so that a 32-bit host and a
// 64-bit host agree on layout.
const wordSize = int(unsafe.Sizeof(uint64(0)))

// nullOffset is the sentinel meaning "absent". Offset 0 is always the
// header, so no live entity can ever legitimately sit there.
const nullOffset uint64 = 0
