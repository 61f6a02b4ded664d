// Structure of the on-disk B-tree
/*
Device
 ├── Block 0: superblock (root block number + free-list head)
 ├── Root Node (separator keys + child block pointers)
 │      └── Interior Nodes ...
 │             └── Leaf Nodes (keys + values)
 └── Free blocks, singly linked through their freelist field

- keys: sorted ascending order, fixed width
- interior nodes: children count == numkeys+1
- leaf nodes: one value per key, fixed width
- every block carries the same self-describing header, so any block can be
  unserialized without external metadata
*/
package btree

import (
	"TreeDB/buffercache"
)

type NodeType uint32

const (
	// The zero value, so a freshly zeroed block reads back as free.
	UnallocatedBlock NodeType = iota
	SuperblockNode
	RootNode
	InteriorNode
	LeafNode
)

const (
	// nodetype, keysize, valuesize, blocksize, rootnode, freelist, numkeys
	// as little-endian uint32 each.
	headerSize = 28
	// Child block pointers are uint32.
	ptrSize = 4
)

// BTreeNode is one block's worth of tree: the fixed header plus the raw
// payload bytes the slot accessors carve up.
type BTreeNode struct {
	nodetype  NodeType
	keysize   uint32
	valuesize uint32
	blocksize uint32
	rootnode  uint32
	freelist  uint32
	numkeys   uint32

	payload []byte
}

// BTreeIndex is the index manager: it owns the buffer cache reference and
// the in-memory superblock copy, and performs all reads and mutations.
// Single logical owner; no internal locking.
type BTreeIndex struct {
	cache           buffercache.BufferCache
	superblockIndex uint32
	superblock      *BTreeNode

	keysize   uint32
	valuesize uint32
}

// New builds an index manager over cache. keysize and valuesize only matter
// for Attach with create; attaching to an existing device adopts the sizes
// recorded in its superblock. unique is accepted and ignored: keys are
// always unique.
func New(keysize, valuesize uint32, cache buffercache.BufferCache, unique bool) *BTreeIndex {
	return &BTreeIndex{
		cache:     cache,
		keysize:   keysize,
		valuesize: valuesize,
	}
}
