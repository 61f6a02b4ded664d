package btree

import (
	"bytes"

	"github.com/pkg/errors"
)

// Insert stores (key, value). It fails with ErrConflict if the key is
// already present and ErrNoSpace if the free list runs dry mid-way; in the
// latter case the tree stays valid but may keep a full leaf until blocks
// are freed.
func (t *BTreeIndex) Insert(key, value []byte) error {
	if uint32(len(key)) != t.superblock.keysize {
		return errors.Wrapf(ErrSize, "key is %d bytes, keysize is %d", len(key), t.superblock.keysize)
	}
	if uint32(len(value)) != t.superblock.valuesize {
		return errors.Wrapf(ErrSize, "value is %d bytes, valuesize is %d", len(value), t.superblock.valuesize)
	}

	// Absence is the green light: anything but ErrNonexistent stops the
	// insert before it mutates the tree.
	if _, err := t.Lookup(key); err == nil {
		return ErrConflict
	} else if !errors.Is(err, ErrNonexistent) {
		return err
	}

	var root BTreeNode
	if err := root.Unserialize(t.cache, t.superblock.rootnode); err != nil {
		return err
	}

	// First-ever insert: give the empty root one separator and two fresh
	// empty leaves. The value itself is placed by the descent below.
	if root.numkeys == 0 {
		leftBlock, err := t.AllocateNode()
		if err != nil {
			return err
		}
		rightBlock, err := t.AllocateNode()
		if err != nil {
			return err
		}
		leaf := NewBTreeNode(LeafNode, t.superblock.keysize, t.superblock.valuesize, t.superblock.blocksize)
		leaf.rootnode = t.superblock.rootnode
		if err := leaf.Serialize(t.cache, leftBlock); err != nil {
			return err
		}
		if err := leaf.Serialize(t.cache, rightBlock); err != nil {
			return err
		}
		root.numkeys = 1
		if err := root.SetKey(0, key); err != nil {
			return err
		}
		if err := root.SetPtr(0, leftBlock); err != nil {
			return err
		}
		if err := root.SetPtr(1, rightBlock); err != nil {
			return err
		}
		if err := root.Serialize(t.cache, t.superblock.rootnode); err != nil {
			return err
		}
	}

	if err := t.splitInsert(t.superblock.rootnode, key, value); err != nil {
		return err
	}

	// The descent splits full children on the way back up, but nobody is
	// above the root to do that for it.
	if err := root.Unserialize(t.cache, t.superblock.rootnode); err != nil {
		return err
	}
	if root.full() {
		return t.growRoot()
	}
	return nil
}

// growRoot splits the root and grows the tree by one level: the two halves
// are demoted to interior nodes and a new one-key root is written above
// them. The new root is written before the superblock switches over, so a
// failure part-way leaves the superblock naming the old root block. By then
// that block has already been split in place and retyped as an interior
// node, so it no longer holds the keys moved to the new sibling.
func (t *BTreeIndex) growRoot() error {
	oldRoot := t.superblock.rootnode

	// Take the new root's block before touching the tree, so running out
	// of space here cannot strand half the keys in an unreferenced
	// sibling.
	newRoot, err := t.AllocateNode()
	if err != nil {
		return err
	}

	newSibling, median, err := t.splitNode(oldRoot)
	if err != nil {
		return err
	}

	for _, blocknum := range []uint32{oldRoot, newSibling} {
		var half BTreeNode
		if err := half.Unserialize(t.cache, blocknum); err != nil {
			return err
		}
		half.nodetype = InteriorNode
		if err := half.Serialize(t.cache, blocknum); err != nil {
			return err
		}
	}
	root := NewBTreeNode(RootNode, t.superblock.keysize, t.superblock.valuesize, t.superblock.blocksize)
	root.rootnode = newRoot
	root.numkeys = 1
	if err := root.SetKey(0, median); err != nil {
		return err
	}
	if err := root.SetPtr(0, oldRoot); err != nil {
		return err
	}
	if err := root.SetPtr(1, newSibling); err != nil {
		return err
	}
	if err := root.Serialize(t.cache, newRoot); err != nil {
		return err
	}

	t.superblock.rootnode = newRoot
	return t.superblock.Serialize(t.cache, t.superblockIndex)
}

// splitInsert descends to the leaf that owns key, inserts there, and on the
// way back up splits any child that came back full, promoting the median
// into the current node.
func (t *BTreeIndex) splitInsert(blocknum uint32, key, value []byte) error {
	var node BTreeNode
	if err := node.Unserialize(t.cache, blocknum); err != nil {
		return err
	}

	switch node.nodetype {
	case RootNode, InteriorNode:
		if node.numkeys == 0 {
			return errors.Wrapf(ErrInsane, "interior block %d has no keys", blocknum)
		}
		ptr, err := node.GetPtr(node.numkeys)
		if err != nil {
			return err
		}
		for i := uint32(0); i < node.numkeys; i++ {
			testkey, err := node.GetKey(i)
			if err != nil {
				return err
			}
			if bytes.Compare(key, testkey) <= 0 {
				if ptr, err = node.GetPtr(i); err != nil {
					return err
				}
				break
			}
		}
		if err := t.splitInsert(ptr, key, value); err != nil {
			return err
		}

		var child BTreeNode
		if err := child.Unserialize(t.cache, ptr); err != nil {
			return err
		}
		if child.full() {
			newSibling, median, err := t.splitNode(ptr)
			if err != nil {
				return err
			}
			return t.insertOneNode(blocknum, median, nil, newSibling)
		}
		return nil
	case LeafNode:
		return t.insertOneNode(blocknum, key, value, 0)
	default:
		return errors.Wrapf(ErrInsane, "descended into block %d of type %d", blocknum, node.nodetype)
	}
}

// insertOneNode places key in sorted position within one node, shifting the
// upper slots right by one record. On a leaf the paired payload is value;
// on an interior node it is newChildPtr, which becomes the right child of
// the inserted key (value is ignored there).
func (t *BTreeIndex) insertOneNode(blocknum uint32, key, value []byte, newChildPtr uint32) error {
	var node BTreeNode
	if err := node.Unserialize(t.cache, blocknum); err != nil {
		return err
	}
	isLeaf := node.nodetype == LeafNode

	old := node.numkeys
	node.numkeys++

	if node.numkeys == 1 {
		if err := node.SetKey(0, key); err != nil {
			return err
		}
		if isLeaf {
			if err := node.SetVal(0, value); err != nil {
				return err
			}
		} else {
			if err := node.SetPtr(1, newChildPtr); err != nil {
				return err
			}
		}
		return node.Serialize(t.cache, blocknum)
	}

	pos := old
	for i := uint32(0); i < old; i++ {
		testkey, err := node.GetKey(i)
		if err != nil {
			return err
		}
		if bytes.Compare(key, testkey) < 0 {
			pos = i
			break
		}
	}

	if pos < old {
		if isLeaf {
			src, err := node.ResolveKeyVal(pos)
			if err != nil {
				return err
			}
			dst, err := node.ResolveKeyVal(pos + 1)
			if err != nil {
				return err
			}
			span := int((old - pos) * (node.keysize + node.valuesize))
			copy(node.payload[dst:dst+span], node.payload[src:src+span])
		} else {
			// A key moves together with its right pointer.
			src, err := node.ResolveKey(pos)
			if err != nil {
				return err
			}
			dst, err := node.ResolveKey(pos + 1)
			if err != nil {
				return err
			}
			span := int((old - pos) * (node.keysize + ptrSize))
			copy(node.payload[dst:dst+span], node.payload[src:src+span])
		}
	}

	if err := node.SetKey(pos, key); err != nil {
		return err
	}
	if isLeaf {
		if err := node.SetVal(pos, value); err != nil {
			return err
		}
	} else {
		if err := node.SetPtr(pos+1, newChildPtr); err != nil {
			return err
		}
	}
	return node.Serialize(t.cache, blocknum)
}
