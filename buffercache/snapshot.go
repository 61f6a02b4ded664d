package buffercache

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// snapMagic = "BSNP" in littleEndian
const snapMagic uint32 = 0x504e5342

// Snapshot streams every block of cache through the compressor into w.
// The result is an offline copy, not a crash-consistent backup: the caller
// owns the cache exclusively while the snapshot runs.
//
// Layout: magic, algorithm, block size, block count (all little-endian),
// then one length-prefixed compressed frame per block.
func Snapshot(cache BufferCache, w io.Writer, algo CompressAlgorithm) error {
	compress, _ := CompressorFor(algo)

	var header [14]byte
	binary.LittleEndian.PutUint32(header[0:4], snapMagic)
	binary.LittleEndian.PutUint16(header[4:6], uint16(algo))
	binary.LittleEndian.PutUint32(header[6:10], cache.GetBlockSize())
	binary.LittleEndian.PutUint32(header[10:14], cache.GetNumBlocks())
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "buffercache: snapshot header")
	}

	buf := make([]byte, cache.GetBlockSize())
	var lenbuf [4]byte
	for n := uint32(0); n < cache.GetNumBlocks(); n++ {
		if err := cache.ReadBlock(n, buf); err != nil {
			return err
		}
		frame := compress(buf)
		binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(frame)))
		if _, err := w.Write(lenbuf[:]); err != nil {
			return errors.Wrapf(err, "buffercache: snapshot block %d", n)
		}
		if _, err := w.Write(frame); err != nil {
			return errors.Wrapf(err, "buffercache: snapshot block %d", n)
		}
	}
	log.WithField("blocks", cache.GetNumBlocks()).Debug("buffercache: snapshot written")
	return nil
}

// Restore reads a snapshot produced by Snapshot from r and writes every
// block back through cache. The cache must have the same block size and at
// least as many blocks as the snapshot.
func Restore(cache BufferCache, r io.Reader) error {
	var header [14]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.Wrap(err, "buffercache: snapshot header")
	}
	if binary.LittleEndian.Uint32(header[0:4]) != snapMagic {
		return errors.New("buffercache: bad snapshot magic")
	}
	algo := CompressAlgorithm(binary.LittleEndian.Uint16(header[4:6]))
	blockSize := binary.LittleEndian.Uint32(header[6:10])
	numBlocks := binary.LittleEndian.Uint32(header[10:14])

	if blockSize != cache.GetBlockSize() {
		return errors.Errorf("buffercache: snapshot block size %d, cache block size %d",
			blockSize, cache.GetBlockSize())
	}
	if numBlocks > cache.GetNumBlocks() {
		return errors.Errorf("buffercache: snapshot has %d blocks, cache has %d",
			numBlocks, cache.GetNumBlocks())
	}

	_, decompress := CompressorFor(algo)
	var lenbuf [4]byte
	for n := uint32(0); n < numBlocks; n++ {
		if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
			return errors.Wrapf(err, "buffercache: restore block %d", n)
		}
		frame := make([]byte, binary.LittleEndian.Uint32(lenbuf[:]))
		if _, err := io.ReadFull(r, frame); err != nil {
			return errors.Wrapf(err, "buffercache: restore block %d", n)
		}
		block, err := decompress(frame)
		if err != nil {
			return errors.Wrapf(err, "buffercache: restore block %d", n)
		}
		if uint32(len(block)) != blockSize {
			return errors.Errorf("buffercache: restore block %d: decompressed to %d bytes, want %d",
				n, len(block), blockSize)
		}
		if err := cache.WriteBlock(n, block); err != nil {
			return err
		}
	}
	return nil
}
