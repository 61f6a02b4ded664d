package btree

import (
	"encoding/binary"

	"TreeDB/buffercache"
	"github.com/pkg/errors"
)

// NewBTreeNode builds an empty in-memory node for a device with the given
// block size. The payload is zeroed; the caller fills slots and serializes.
func NewBTreeNode(nodetype NodeType, keysize, valuesize, blocksize uint32) *BTreeNode {
	return &BTreeNode{
		nodetype:  nodetype,
		keysize:   keysize,
		valuesize: valuesize,
		blocksize: blocksize,
		payload:   make([]byte, blocksize-headerSize),
	}
}

// clone deep-copies the node, payload included. Used by splits, where the
// right sibling starts as a byte copy of the left node.
func (n *BTreeNode) clone() *BTreeNode {
	c := *n
	c.payload = make([]byte, len(n.payload))
	copy(c.payload, n.payload)
	return &c
}

// Unserialize reads block blocknum from the cache and decodes it in place.
func (n *BTreeNode) Unserialize(cache buffercache.BufferCache, blocknum uint32) error {
	buf := make([]byte, cache.GetBlockSize())
	if err := cache.ReadBlock(blocknum, buf); err != nil {
		return errors.Wrapf(err, "unserialize block %d", blocknum)
	}
	n.nodetype = NodeType(binary.LittleEndian.Uint32(buf[0:4]))
	n.keysize = binary.LittleEndian.Uint32(buf[4:8])
	n.valuesize = binary.LittleEndian.Uint32(buf[8:12])
	n.blocksize = binary.LittleEndian.Uint32(buf[12:16])
	n.rootnode = binary.LittleEndian.Uint32(buf[16:20])
	n.freelist = binary.LittleEndian.Uint32(buf[20:24])
	n.numkeys = binary.LittleEndian.Uint32(buf[24:28])
	n.payload = buf[headerSize:]
	return nil
}

// Serialize encodes the node and writes it to block blocknum through the cache.
func (n *BTreeNode) Serialize(cache buffercache.BufferCache, blocknum uint32) error {
	blockSize := cache.GetBlockSize()
	if uint32(len(n.payload))+headerSize != blockSize {
		return errors.Wrapf(ErrSize, "serialize block %d: node block size %d, cache block size %d",
			blocknum, len(n.payload)+headerSize, blockSize)
	}
	buf := make([]byte, blockSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n.nodetype))
	binary.LittleEndian.PutUint32(buf[4:8], n.keysize)
	binary.LittleEndian.PutUint32(buf[8:12], n.valuesize)
	binary.LittleEndian.PutUint32(buf[12:16], n.blocksize)
	binary.LittleEndian.PutUint32(buf[16:20], n.rootnode)
	binary.LittleEndian.PutUint32(buf[20:24], n.freelist)
	binary.LittleEndian.PutUint32(buf[24:28], n.numkeys)
	copy(buf[headerSize:], n.payload)
	if err := cache.WriteBlock(blocknum, buf); err != nil {
		return errors.Wrapf(err, "serialize block %d", blocknum)
	}
	return nil
}

// GetNumSlotsAsLeaf is the key capacity of this block interpreted as a
// leaf: a leading pointer slot, then (key, value) records.
func (n *BTreeNode) GetNumSlotsAsLeaf() uint32 {
	return (n.blocksize - headerSize - ptrSize) / (n.keysize + n.valuesize)
}

// GetNumSlotsAsInterior is the key capacity of this block interpreted as an
// interior node: alternating pointers and keys with one trailing pointer.
func (n *BTreeNode) GetNumSlotsAsInterior() uint32 {
	return (n.blocksize - headerSize - ptrSize) / (n.keysize + ptrSize)
}

// slots returns this node's capacity under its own type.
func (n *BTreeNode) slots() uint32 {
	if n.nodetype == LeafNode {
		return n.GetNumSlotsAsLeaf()
	}
	return n.GetNumSlotsAsInterior()
}

// full reports whether the node is at capacity for its type.
func (n *BTreeNode) full() bool {
	switch n.nodetype {
	case LeafNode:
		return n.numkeys == n.GetNumSlotsAsLeaf()
	case RootNode, InteriorNode:
		return n.numkeys == n.GetNumSlotsAsInterior()
	}
	return false
}

// checked bounds an offset/width pair against the payload.
func (n *BTreeNode) checked(off int, width uint32) (int, error) {
	if off < 0 || off+int(width) > len(n.payload) {
		return 0, errors.Wrapf(ErrSize, "payload offset %d width %d of %d", off, width, len(n.payload))
	}
	return off, nil
}

// ResolveKey returns the payload offset of key slot i.
func (n *BTreeNode) ResolveKey(i uint32) (int, error) {
	switch n.nodetype {
	case LeafNode:
		return n.checked(int(ptrSize+i*(n.keysize+n.valuesize)), n.keysize)
	case RootNode, InteriorNode:
		return n.checked(int(i*(n.keysize+ptrSize)+ptrSize), n.keysize)
	}
	return 0, errors.Wrapf(ErrSize, "key slot on node type %d", n.nodetype)
}

// ResolveVal returns the payload offset of value slot i. Leaves only.
func (n *BTreeNode) ResolveVal(i uint32) (int, error) {
	if n.nodetype != LeafNode {
		return 0, errors.Wrapf(ErrSize, "value slot on node type %d", n.nodetype)
	}
	return n.checked(int(ptrSize+i*(n.keysize+n.valuesize)+n.keysize), n.valuesize)
}

// ResolveKeyVal returns the payload offset of record slot i on a leaf.
func (n *BTreeNode) ResolveKeyVal(i uint32) (int, error) {
	if n.nodetype != LeafNode {
		return 0, errors.Wrapf(ErrSize, "key/value slot on node type %d", n.nodetype)
	}
	return n.checked(int(ptrSize+i*(n.keysize+n.valuesize)), n.keysize+n.valuesize)
}

// ResolvePtr returns the payload offset of pointer slot i. On a leaf only
// slot 0 exists, the reserved leading pointer.
func (n *BTreeNode) ResolvePtr(i uint32) (int, error) {
	switch n.nodetype {
	case LeafNode:
		if i != 0 {
			return 0, errors.Wrapf(ErrSize, "pointer slot %d on leaf", i)
		}
		return 0, nil
	case RootNode, InteriorNode:
		return n.checked(int(i*(n.keysize+ptrSize)), ptrSize)
	}
	return 0, errors.Wrapf(ErrSize, "pointer slot on node type %d", n.nodetype)
}

// GetKey copies out key i. Valid for 0 <= i < numkeys.
func (n *BTreeNode) GetKey(i uint32) ([]byte, error) {
	if i >= n.numkeys {
		return nil, errors.Wrapf(ErrSize, "key %d of %d", i, n.numkeys)
	}
	off, err := n.ResolveKey(i)
	if err != nil {
		return nil, err
	}
	key := make([]byte, n.keysize)
	copy(key, n.payload[off:])
	return key, nil
}

// SetKey writes key i. Valid for 0 <= i < numkeys.
func (n *BTreeNode) SetKey(i uint32, key []byte) error {
	if i >= n.numkeys {
		return errors.Wrapf(ErrSize, "key %d of %d", i, n.numkeys)
	}
	if uint32(len(key)) != n.keysize {
		return errors.Wrapf(ErrSize, "key is %d bytes, keysize is %d", len(key), n.keysize)
	}
	off, err := n.ResolveKey(i)
	if err != nil {
		return err
	}
	copy(n.payload[off:], key)
	return nil
}

// GetVal copies out value i of a leaf. Valid for 0 <= i < numkeys.
func (n *BTreeNode) GetVal(i uint32) ([]byte, error) {
	if i >= n.numkeys {
		return nil, errors.Wrapf(ErrSize, "value %d of %d", i, n.numkeys)
	}
	off, err := n.ResolveVal(i)
	if err != nil {
		return nil, err
	}
	val := make([]byte, n.valuesize)
	copy(val, n.payload[off:])
	return val, nil
}

// SetVal writes value i of a leaf. Valid for 0 <= i < numkeys.
func (n *BTreeNode) SetVal(i uint32, val []byte) error {
	if i >= n.numkeys {
		return errors.Wrapf(ErrSize, "value %d of %d", i, n.numkeys)
	}
	if uint32(len(val)) != n.valuesize {
		return errors.Wrapf(ErrSize, "value is %d bytes, valuesize is %d", len(val), n.valuesize)
	}
	off, err := n.ResolveVal(i)
	if err != nil {
		return err
	}
	copy(n.payload[off:], val)
	return nil
}

// GetPtr reads child pointer i. Valid for 0 <= i <= numkeys.
func (n *BTreeNode) GetPtr(i uint32) (uint32, error) {
	if i > n.numkeys {
		return 0, errors.Wrapf(ErrSize, "pointer %d of %d", i, n.numkeys)
	}
	off, err := n.ResolvePtr(i)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(n.payload[off:]), nil
}

// SetPtr writes child pointer i. Valid for 0 <= i <= numkeys.
func (n *BTreeNode) SetPtr(i uint32, ptr uint32) error {
	if i > n.numkeys {
		return errors.Wrapf(ErrSize, "pointer %d of %d", i, n.numkeys)
	}
	off, err := n.ResolvePtr(i)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(n.payload[off:], ptr)
	return nil
}
