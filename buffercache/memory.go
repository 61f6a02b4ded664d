package buffercache

import "github.com/pkg/errors"

// MemoryCache is a map-free, slice-backed BufferCache for tests and
// throwaway indexes. Same contract as DiskCache, nothing persists.
type MemoryCache struct {
	blockSize uint32
	blocks    [][]byte

	allocated   uint64
	deallocated uint64
}

func NewMemoryCache(blockSize, numBlocks uint32) *MemoryCache {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemoryCache{blockSize: blockSize, blocks: blocks}
}

func (c *MemoryCache) GetBlockSize() uint32 { return c.blockSize }

func (c *MemoryCache) GetNumBlocks() uint32 { return uint32(len(c.blocks)) }

func (c *MemoryCache) ReadBlock(n uint32, buf []byte) error {
	if n >= uint32(len(c.blocks)) {
		return errors.Errorf("buffercache: block %d out of range (%d blocks)", n, len(c.blocks))
	}
	if uint32(len(buf)) != c.blockSize {
		return errors.Errorf("buffercache: buffer is %d bytes, block size is %d", len(buf), c.blockSize)
	}
	copy(buf, c.blocks[n])
	return nil
}

func (c *MemoryCache) WriteBlock(n uint32, buf []byte) error {
	if n >= uint32(len(c.blocks)) {
		return errors.Errorf("buffercache: block %d out of range (%d blocks)", n, len(c.blocks))
	}
	if uint32(len(buf)) != c.blockSize {
		return errors.Errorf("buffercache: buffer is %d bytes, block size is %d", len(buf), c.blockSize)
	}
	copy(c.blocks[n], buf)
	return nil
}

func (c *MemoryCache) NotifyAllocateBlock(n uint32) { c.allocated++ }

func (c *MemoryCache) NotifyDeallocateBlock(n uint32) { c.deallocated++ }

func (c *MemoryCache) Stats() (allocated, deallocated uint64) {
	return c.allocated, c.deallocated
}
