package btree

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Attach mounts the index at initblock, which must be 0. With create set it
// first formats the device: superblock at block 0, an empty root at block 1,
// and every remaining block threaded onto the free chain. Attaching without
// create adopts keysize and valuesize from the on-device superblock.
func (t *BTreeIndex) Attach(initblock uint32, create bool) error {
	if initblock != 0 {
		return errors.Wrapf(ErrInsane, "superblock must live at block 0, not %d", initblock)
	}
	t.superblockIndex = initblock

	blocksize := t.cache.GetBlockSize()
	numblocks := t.cache.GetNumBlocks()

	if create {
		if numblocks < 2 {
			return errors.Wrapf(ErrNoSpace, "device has %d blocks, need at least 2", numblocks)
		}

		freehead := uint32(0)
		if numblocks > 2 {
			freehead = 2
		}

		super := NewBTreeNode(SuperblockNode, t.keysize, t.valuesize, blocksize)
		super.rootnode = 1
		super.freelist = freehead
		super.numkeys = 0
		t.cache.NotifyAllocateBlock(t.superblockIndex)
		if err := super.Serialize(t.cache, t.superblockIndex); err != nil {
			return err
		}

		root := NewBTreeNode(RootNode, t.keysize, t.valuesize, blocksize)
		root.rootnode = 1
		root.freelist = freehead
		root.numkeys = 0
		t.cache.NotifyAllocateBlock(1)
		if err := root.Serialize(t.cache, 1); err != nil {
			return err
		}

		for i := uint32(2); i < numblocks; i++ {
			free := NewBTreeNode(UnallocatedBlock, t.keysize, t.valuesize, blocksize)
			free.rootnode = 1
			if i+1 < numblocks {
				free.freelist = i + 1
			}
			if err := free.Serialize(t.cache, i); err != nil {
				return err
			}
		}

		log.WithFields(log.Fields{
			"keysize":   t.keysize,
			"valuesize": t.valuesize,
			"blocksize": blocksize,
			"blocks":    numblocks,
		}).Info("btree: formatted device")
	}

	// Mounting is now just a matter of reading the superblock.
	super := &BTreeNode{}
	if err := super.Unserialize(t.cache, initblock); err != nil {
		return err
	}
	if super.nodetype != SuperblockNode {
		return errors.Wrapf(ErrInsane, "block %d is not a superblock (type %d)", initblock, super.nodetype)
	}
	if super.blocksize != blocksize {
		return errors.Wrapf(ErrInsane, "superblock says block size %d, cache says %d", super.blocksize, blocksize)
	}
	t.superblock = super
	t.keysize = super.keysize
	t.valuesize = super.valuesize
	return nil
}

// Detach persists the superblock and returns the block it lives at.
func (t *BTreeIndex) Detach() (uint32, error) {
	if err := t.superblock.Serialize(t.cache, t.superblockIndex); err != nil {
		return 0, err
	}
	return t.superblockIndex, nil
}
