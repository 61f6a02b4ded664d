package btree

import (
	"bytes"

	"github.com/pkg/errors"
)

type btreeOp int

const (
	opLookup btreeOp = iota
	opUpdate
)

// lookupOrUpdate is the shared recursive descent. On an interior node it
// follows the first child whose separator is >= key, or the last child when
// every separator is smaller. On a leaf it scans for an exact match and
// either returns the value (lookup) or overwrites it in place (update).
func (t *BTreeIndex) lookupOrUpdate(blocknum uint32, op btreeOp, key, value []byte) ([]byte, error) {
	var node BTreeNode
	if err := node.Unserialize(t.cache, blocknum); err != nil {
		return nil, err
	}

	switch node.nodetype {
	case RootNode, InteriorNode:
		for i := uint32(0); i < node.numkeys; i++ {
			testkey, err := node.GetKey(i)
			if err != nil {
				return nil, err
			}
			if bytes.Compare(key, testkey) <= 0 {
				ptr, err := node.GetPtr(i)
				if err != nil {
					return nil, err
				}
				return t.lookupOrUpdate(ptr, op, key, value)
			}
		}
		if node.numkeys > 0 {
			ptr, err := node.GetPtr(node.numkeys)
			if err != nil {
				return nil, err
			}
			return t.lookupOrUpdate(ptr, op, key, value)
		}
		// No keys at all on this node, so nowhere to go.
		return nil, ErrNonexistent
	case LeafNode:
		for i := uint32(0); i < node.numkeys; i++ {
			testkey, err := node.GetKey(i)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(testkey, key) {
				if op == opLookup {
					return node.GetVal(i)
				}
				if err := node.SetVal(i, value); err != nil {
					return nil, err
				}
				return nil, node.Serialize(t.cache, blocknum)
			}
		}
		return nil, ErrNonexistent
	default:
		return nil, errors.Wrapf(ErrInsane, "descended into block %d of type %d", blocknum, node.nodetype)
	}
}

// Lookup returns the value stored under key.
func (t *BTreeIndex) Lookup(key []byte) ([]byte, error) {
	if uint32(len(key)) != t.superblock.keysize {
		return nil, errors.Wrapf(ErrSize, "key is %d bytes, keysize is %d", len(key), t.superblock.keysize)
	}
	return t.lookupOrUpdate(t.superblock.rootnode, opLookup, key, nil)
}

// Update overwrites the value stored under key in place. The tree shape
// does not change.
func (t *BTreeIndex) Update(key, value []byte) error {
	if uint32(len(key)) != t.superblock.keysize {
		return errors.Wrapf(ErrSize, "key is %d bytes, keysize is %d", len(key), t.superblock.keysize)
	}
	if uint32(len(value)) != t.superblock.valuesize {
		return errors.Wrapf(ErrSize, "value is %d bytes, valuesize is %d", len(value), t.superblock.valuesize)
	}
	_, err := t.lookupOrUpdate(t.superblock.rootnode, opUpdate, key, value)
	return err
}
