package btree

import (
	"bytes"

	"github.com/pkg/errors"
)

// Iterator is a forward-only in-order scan over the tree. Every key lives
// in a leaf, so the scan is a left-to-right walk of the leaves driven by an
// explicit descent stack; nothing is held between operations except block
// numbers and decoded copies.
type Iterator struct {
	tree  *BTreeIndex
	stack []iterFrame
	leaf  *BTreeNode
	index uint32
	key   []byte
	value []byte
	valid bool
	err   error
}

type iterFrame struct {
	node *BTreeNode
	pos  uint32 // child index currently being visited
}

// SeekFirst positions the iterator at the smallest key.
func (t *BTreeIndex) SeekFirst() *Iterator {
	it := &Iterator{tree: t}
	it.descendLeftmost(t.superblock.rootnode)
	it.settle()
	return it
}

// SeekGE positions the iterator at the first key >= target.
func (t *BTreeIndex) SeekGE(target []byte) *Iterator {
	it := &Iterator{tree: t}
	blocknum := t.superblock.rootnode
	for {
		node := &BTreeNode{}
		if err := node.Unserialize(t.cache, blocknum); err != nil {
			it.fail(err)
			return it
		}
		switch node.nodetype {
		case RootNode, InteriorNode:
			if node.numkeys == 0 {
				return it // empty tree
			}
			pos := node.numkeys
			for i := uint32(0); i < node.numkeys; i++ {
				key, err := node.GetKey(i)
				if err != nil {
					it.fail(err)
					return it
				}
				if bytes.Compare(target, key) <= 0 {
					pos = i
					break
				}
			}
			ptr, err := node.GetPtr(pos)
			if err != nil {
				it.fail(err)
				return it
			}
			it.stack = append(it.stack, iterFrame{node: node, pos: pos})
			blocknum = ptr
		case LeafNode:
			it.leaf = node
			it.index = node.numkeys
			for i := uint32(0); i < node.numkeys; i++ {
				key, err := node.GetKey(i)
				if err != nil {
					it.fail(err)
					return it
				}
				if bytes.Compare(key, target) >= 0 {
					it.index = i
					break
				}
			}
			it.valid = true
			it.settle()
			return it
		default:
			it.fail(errors.Wrapf(ErrInsane, "scan reached block %d of type %d", blocknum, node.nodetype))
			return it
		}
	}
}

// Valid reports whether the iterator points at an entry.
func (it *Iterator) Valid() bool { return it.valid }

// Next advances the iterator. Returns false when exhausted.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	it.index++
	it.settle()
	return it.valid
}

// Key returns the current key.
func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.key
}

// Value returns the current value.
func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.value
}

// Err returns the error that stopped the scan, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) fail(err error) {
	it.err = err
	it.valid = false
}

// descendLeftmost walks down the leftmost spine from blocknum and lands on
// its first leaf.
func (it *Iterator) descendLeftmost(blocknum uint32) {
	for {
		node := &BTreeNode{}
		if err := node.Unserialize(it.tree.cache, blocknum); err != nil {
			it.fail(err)
			return
		}
		switch node.nodetype {
		case RootNode, InteriorNode:
			if node.numkeys == 0 {
				return // empty tree, iterator stays invalid
			}
			ptr, err := node.GetPtr(0)
			if err != nil {
				it.fail(err)
				return
			}
			it.stack = append(it.stack, iterFrame{node: node, pos: 0})
			blocknum = ptr
		case LeafNode:
			it.leaf = node
			it.index = 0
			it.valid = true
			return
		default:
			it.fail(errors.Wrapf(ErrInsane, "scan reached block %d of type %d", blocknum, node.nodetype))
			return
		}
	}
}

// settle skips exhausted (or empty) leaves until the iterator rests on a
// real entry or runs out of tree, and loads the entry.
func (it *Iterator) settle() {
	for it.valid && it.index >= it.leaf.numkeys {
		it.nextLeaf()
	}
	if !it.valid {
		return
	}
	key, err := it.leaf.GetKey(it.index)
	if err != nil {
		it.fail(err)
		return
	}
	val, err := it.leaf.GetVal(it.index)
	if err != nil {
		it.fail(err)
		return
	}
	it.key = key
	it.value = val
}

// nextLeaf pops back up to the nearest ancestor with an unvisited child and
// dives down its leftmost path.
func (it *Iterator) nextLeaf() {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		top.pos++
		if top.pos <= top.node.numkeys {
			ptr, err := top.node.GetPtr(top.pos)
			if err != nil {
				it.fail(err)
				return
			}
			it.descendLeftmost(ptr)
			return
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
	it.valid = false
}
