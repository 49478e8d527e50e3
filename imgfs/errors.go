package imgfs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies the way an operation failed. Every Kind maps to exactly
// one POSIX errno, returned by Error.Errno() so a host driver can answer
// the syscall it is translating on our behalf.
type Kind int

const (
	// KindBadState means the image is not initialized or its header is
	// internally inconsistent (fssize too small, an offset pointing outside
	// the region, and the like).
	KindBadState Kind = iota
	// KindNotFound means a path component does not exist.
	KindNotFound
	// KindExists means a create-like operation's target name is already in
	// use in its parent directory.
	KindExists
	// KindIsADirectory means a file-only operation was given a directory.
	KindIsADirectory
	// KindNotADirectory means a directory-only operation, or a path
	// traversal through a non-last component, was given a regular file.
	KindNotADirectory
	// KindNotEmpty means rmdir (or a directory-replacing rename) was asked
	// to remove a directory that still has children.
	KindNotEmpty
	// KindNameTooLong means a path component exceeds MaxNameLen bytes.
	KindNameTooLong
	// KindOutOfSpace means the allocator could not satisfy a request
	// against the image's free list.
	KindOutOfSpace
	// KindHostOutOfMemory means allocating host-side scratch memory (for
	// example the slice Readdir returns) failed; never caused by the image
	// itself.
	KindHostOutOfMemory
)

// Error is the error type returned by every Handle operation that fails.
// It satisfies the standard errors.Is/As protocol against the Kind
// constants above (via Is) and against itself (via As).
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "mkdir", for log correlation.
	Op string
	// Path is the operation's primary path argument, if any.
	Path string
	// Err is the underlying cause, if the failure originated below this
	// package (for example an allocation failure surfaced as KindOutOfSpace).
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("imgfs: %s %q: %s", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, imgfs.KindNotFound) without reaching into Error directly.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Error lets a bare Kind itself satisfy the error interface, which is what
// makes errors.Is(err, imgfs.KindNotFound) read naturally at call sites.
func (k Kind) Error() string {
	switch k {
	case KindBadState:
		return "bad state"
	case KindNotFound:
		return "not found"
	case KindExists:
		return "exists"
	case KindIsADirectory:
		return "is a directory"
	case KindNotADirectory:
		return "not a directory"
	case KindNotEmpty:
		return "not empty"
	case KindNameTooLong:
		return "name too long"
	case KindOutOfSpace:
		return "out of space"
	case KindHostOutOfMemory:
		return "host out of memory"
	default:
		return "unknown error"
	}
}

// Errno returns the POSIX errno a host driver should surface for this
// failure.
func (e *Error) Errno() unix.Errno {
	return e.Kind.errno()
}

func (k Kind) errno() unix.Errno {
	switch k {
	case KindBadState:
		return unix.EFAULT
	case KindNotFound:
		return unix.ENOENT
	case KindExists:
		return unix.EEXIST
	case KindIsADirectory:
		return unix.EISDIR
	case KindNotADirectory:
		return unix.ENOTDIR
	case KindNotEmpty:
		return unix.ENOTEMPTY
	case KindNameTooLong:
		return unix.ENAMETOOLONG
	case KindOutOfSpace, KindHostOutOfMemory:
		return unix.ENOMEM
	default:
		return unix.EFAULT
	}
}

// newErr builds an *Error, the common constructor used by every op.
func newErr(op, path string, kind Kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}
