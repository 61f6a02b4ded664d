package btree

import (
	"bytes"

	"github.com/pkg/errors"
)

// SanityCheck verifies the ordering and separation invariants over the
// whole tree: keys strictly increase within every node, every key in a
// separator's left child is <= the separator, and every key in its right
// child is > the separator. Each node's keys are checked against the
// separator directly above it only, not against separators further up.
// Capacity overruns below the root also count as insane; the root's own
// key count is not checked against its capacity.
func (t *BTreeIndex) SanityCheck() error {
	var root BTreeNode
	if err := root.Unserialize(t.cache, t.superblock.rootnode); err != nil {
		return err
	}
	if root.nodetype != RootNode {
		return errors.Wrapf(ErrInsane, "block %d is not a root (type %d)", t.superblock.rootnode, root.nodetype)
	}

	var prev []byte
	for i := uint32(0); i < root.numkeys; i++ {
		cur, err := root.GetKey(i)
		if err != nil {
			return err
		}
		if i > 0 && bytes.Compare(cur, prev) <= 0 {
			return errors.Wrapf(ErrInsane, "root keys out of order at slot %d", i)
		}
		left, err := root.GetPtr(i)
		if err != nil {
			return err
		}
		right, err := root.GetPtr(i + 1)
		if err != nil {
			return err
		}
		if err := t.sanitySubtree(left, cur, true); err != nil {
			return err
		}
		if err := t.sanitySubtree(right, cur, false); err != nil {
			return err
		}
		prev = cur
	}
	return nil
}

// sanitySubtree checks the subtree at blocknum against the enclosing
// separator: on the left side every key must be <= bound, on the right
// side strictly greater.
func (t *BTreeIndex) sanitySubtree(blocknum uint32, bound []byte, isLeft bool) error {
	var node BTreeNode
	if err := node.Unserialize(t.cache, blocknum); err != nil {
		return err
	}
	switch node.nodetype {
	case InteriorNode, LeafNode:
	default:
		return errors.Wrapf(ErrInsane, "block %d in subtree has type %d", blocknum, node.nodetype)
	}
	if node.numkeys > node.slots() {
		return errors.Wrapf(ErrInsane, "block %d holds %d keys, capacity %d", blocknum, node.numkeys, node.slots())
	}

	var prev []byte
	for i := uint32(0); i < node.numkeys; i++ {
		cur, err := node.GetKey(i)
		if err != nil {
			return err
		}
		if i > 0 && bytes.Compare(cur, prev) <= 0 {
			return errors.Wrapf(ErrInsane, "block %d keys out of order at slot %d", blocknum, i)
		}
		if isLeft {
			if bytes.Compare(bound, cur) < 0 {
				return errors.Wrapf(ErrInsane, "block %d key %d above its left bound", blocknum, i)
			}
		} else {
			if bytes.Compare(cur, bound) <= 0 {
				return errors.Wrapf(ErrInsane, "block %d key %d not above its right bound", blocknum, i)
			}
		}
		if node.nodetype != LeafNode {
			left, err := node.GetPtr(i)
			if err != nil {
				return err
			}
			right, err := node.GetPtr(i + 1)
			if err != nil {
				return err
			}
			if err := t.sanitySubtree(left, cur, true); err != nil {
				return err
			}
			if err := t.sanitySubtree(right, cur, false); err != nil {
				return err
			}
		}
		prev = cur
	}
	return nil
}
