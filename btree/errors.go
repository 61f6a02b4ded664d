package btree

import "github.com/pkg/errors"

// The error taxonomy. Success is a nil error. Cache and device failures are
// wrapped with their block number and propagate as-is.
var (
	// ErrNonexistent: the key is not in the tree. Expected prelude to
	// Insert; terminal for Lookup and Update.
	ErrNonexistent = errors.New("btree: key does not exist")

	// ErrConflict: Insert was called for a key that is already present.
	ErrConflict = errors.New("btree: key already exists")

	// ErrNoSpace: the free list is empty and an allocation was required.
	ErrNoSpace = errors.New("btree: no free blocks")

	// ErrSize: a slot index or a key/value width is out of range.
	ErrSize = errors.New("btree: size out of range")

	// ErrInsane: a structural invariant does not hold.
	ErrInsane = errors.New("btree: tree structure is insane")

	// ErrUnimplemented: the operation is not supported.
	ErrUnimplemented = errors.New("btree: operation not implemented")
)
