package buffercache

import (
	"os"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options represents the options that can be set when opening a disk cache.
type Options struct {
	// BlockSize is the fixed block size in bytes. It sizes a new backing
	// file and also divides an existing one into blocks, so reopening a
	// file takes the block size it was created with.
	BlockSize uint32

	// NumBlocks is the total number of blocks carved out of the backing
	// file on creation.
	NumBlocks uint32

	// CacheBytes is how much memory the in-process block cache may hold.
	CacheBytes int64

	// ReadOnly opens the backing file read-only; WriteBlock fails.
	ReadOnly bool
}

var DefaultOptions = &Options{
	BlockSize:  4096,
	NumBlocks:  1024,
	CacheBytes: 4 << 20,
}

var ErrReadOnly = errors.New("buffercache: cache is read-only")

// DiskCache is a BufferCache backed by a single file, with a ristretto
// read cache of block frames in front of it. Writes go through to the file
// first and then refresh the frame, so a read after a write always observes
// the written bytes.
type DiskCache struct {
	file      *os.File
	path      string
	blockSize uint32
	numBlocks uint32
	readOnly  bool

	frames *ristretto.Cache[uint64, []byte]

	allocated   uint64
	deallocated uint64
}

// NewDiskCache opens (or creates) the backing file at path. A fresh file is
// sized to options.NumBlocks blocks of options.BlockSize bytes each; an
// existing file keeps its block count, derived from its length.
func NewDiskCache(path string, mode os.FileMode, options *Options) (*DiskCache, error) {
	if options == nil {
		options = DefaultOptions
	}
	if options.BlockSize == 0 {
		return nil, errors.New("buffercache: zero block size")
	}

	flag := os.O_RDWR
	if options.ReadOnly {
		flag = os.O_RDONLY
	} else {
		flag |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flag, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "buffercache: open %s", path)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "buffercache: stat")
	}

	numBlocks := uint32(stat.Size() / int64(options.BlockSize))
	if stat.Size() == 0 {
		if options.ReadOnly {
			_ = file.Close()
			return nil, errors.Errorf("buffercache: %s is empty", path)
		}
		numBlocks = options.NumBlocks
		if err := file.Truncate(int64(numBlocks) * int64(options.BlockSize)); err != nil {
			_ = file.Close()
			return nil, errors.Wrap(err, "buffercache: size backing file")
		}
		log.WithFields(log.Fields{
			"path":      path,
			"blocksize": options.BlockSize,
			"blocks":    numBlocks,
		}).Info("buffercache: created backing file")
	}

	cacheBytes := options.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = DefaultOptions.CacheBytes
	}
	counters := 10 * (cacheBytes / int64(options.BlockSize))
	if counters < 64 {
		counters = 64
	}
	frames, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: counters,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "buffercache: frame cache")
	}

	return &DiskCache{
		file:      file,
		path:      path,
		blockSize: options.BlockSize,
		numBlocks: numBlocks,
		readOnly:  options.ReadOnly,
		frames:    frames,
	}, nil
}

func (c *DiskCache) GetBlockSize() uint32 { return c.blockSize }

func (c *DiskCache) GetNumBlocks() uint32 { return c.numBlocks }

func (c *DiskCache) checkAccess(n uint32, buf []byte) error {
	if n >= c.numBlocks {
		return errors.Errorf("buffercache: block %d out of range (%d blocks)", n, c.numBlocks)
	}
	if uint32(len(buf)) != c.blockSize {
		return errors.Errorf("buffercache: buffer is %d bytes, block size is %d", len(buf), c.blockSize)
	}
	return nil
}

func (c *DiskCache) ReadBlock(n uint32, buf []byte) error {
	if err := c.checkAccess(n, buf); err != nil {
		return err
	}
	if frame, ok := c.frames.Get(uint64(n)); ok {
		copy(buf, frame)
		return nil
	}
	if _, err := c.file.ReadAt(buf, int64(n)*int64(c.blockSize)); err != nil {
		return errors.Wrapf(err, "buffercache: read block %d", n)
	}
	frame := make([]byte, c.blockSize)
	copy(frame, buf)
	c.frames.Set(uint64(n), frame, int64(c.blockSize))
	return nil
}

func (c *DiskCache) WriteBlock(n uint32, buf []byte) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.checkAccess(n, buf); err != nil {
		return err
	}
	if _, err := c.file.WriteAt(buf, int64(n)*int64(c.blockSize)); err != nil {
		return errors.Wrapf(err, "buffercache: write block %d", n)
	}
	frame := make([]byte, c.blockSize)
	copy(frame, buf)
	c.frames.Del(uint64(n))
	c.frames.Set(uint64(n), frame, int64(c.blockSize))
	// Set is buffered; drain it so a subsequent read cannot observe a
	// stale frame.
	c.frames.Wait()
	return nil
}

func (c *DiskCache) NotifyAllocateBlock(n uint32) {
	c.allocated++
}

func (c *DiskCache) NotifyDeallocateBlock(n uint32) {
	c.deallocated++
	c.frames.Del(uint64(n))
}

// Stats reports how many allocate/deallocate notifications the cache has
// seen since it was opened.
func (c *DiskCache) Stats() (allocated, deallocated uint64) {
	return c.allocated, c.deallocated
}

func (c *DiskCache) Path() string { return c.path }

// Sync flushes the backing file to stable storage.
func (c *DiskCache) Sync() error {
	if c.readOnly {
		return nil
	}
	return errors.Wrap(c.file.Sync(), "buffercache: sync")
}

func (c *DiskCache) Close() error {
	if c.file == nil {
		return nil
	}
	c.frames.Close()
	if !c.readOnly {
		if err := c.file.Sync(); err != nil {
			_ = c.file.Close()
			return errors.Wrap(err, "buffercache: sync before close")
		}
	}
	err := c.file.Close()
	c.file = nil
	return errors.Wrap(err, "buffercache: close")
}
