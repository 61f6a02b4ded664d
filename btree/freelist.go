package btree

import "github.com/pkg/errors"

// AllocateNode pops the head of the free-block chain and returns its block
// number. The block still reads as UnallocatedBlock; the caller rewrites it
// with its final type. The superblock is persisted before the new block is
// handed out so the free-list head on disk never points at a block in use.
func (t *BTreeIndex) AllocateNode() (uint32, error) {
	n := t.superblock.freelist
	if n == 0 {
		return 0, ErrNoSpace
	}

	var node BTreeNode
	if err := node.Unserialize(t.cache, n); err != nil {
		return 0, err
	}
	if node.nodetype != UnallocatedBlock {
		return 0, errors.Wrapf(ErrInsane, "block %d is on the free list but has type %d", n, node.nodetype)
	}
	t.superblock.freelist = node.freelist
	if err := t.superblock.Serialize(t.cache, t.superblockIndex); err != nil {
		return 0, err
	}
	t.cache.NotifyAllocateBlock(n)
	return n, nil
}

// DeallocateNode pushes block n back onto the free-block chain.
func (t *BTreeIndex) DeallocateNode(n uint32) error {
	var node BTreeNode
	if err := node.Unserialize(t.cache, n); err != nil {
		return err
	}
	if node.nodetype == UnallocatedBlock {
		return errors.Wrapf(ErrInsane, "block %d is already unallocated", n)
	}
	node.nodetype = UnallocatedBlock
	node.freelist = t.superblock.freelist
	if err := node.Serialize(t.cache, n); err != nil {
		return err
	}
	t.superblock.freelist = n
	if err := t.superblock.Serialize(t.cache, t.superblockIndex); err != nil {
		return err
	}
	t.cache.NotifyDeallocateBlock(n)
	return nil
}
