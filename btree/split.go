package btree

// splitNode halves a full node. The right sibling starts life as a byte
// copy of the left node, gets the upper half of the slots moved into it,
// and lands on a freshly allocated block.
//
// Leaf split: the boundary key stays in the left leaf and a copy of it is
// promoted, matching the descent rule that <= goes left. Interior split:
// the median is lifted out and kept on neither side.
func (t *BTreeIndex) splitNode(blocknum uint32) (newblock uint32, median []byte, err error) {
	var left BTreeNode
	if err = left.Unserialize(t.cache, blocknum); err != nil {
		return 0, nil, err
	}
	right := left.clone()

	if newblock, err = t.AllocateNode(); err != nil {
		return 0, nil, err
	}

	n := left.numkeys
	if left.nodetype == LeafNode {
		leftKeyNum := n/2 + 1
		rightKeyNum := n - leftKeyNum
		if median, err = left.GetKey(leftKeyNum - 1); err != nil {
			return 0, nil, err
		}
		src, err := left.ResolveKeyVal(leftKeyNum)
		if err != nil {
			return 0, nil, err
		}
		dst, err := right.ResolveKeyVal(0)
		if err != nil {
			return 0, nil, err
		}
		span := int(rightKeyNum * (left.keysize + left.valuesize))
		copy(right.payload[dst:dst+span], left.payload[src:src+span])
		left.numkeys = leftKeyNum
		right.numkeys = rightKeyNum
	} else {
		leftKeyNum := n / 2
		rightKeyNum := n - leftKeyNum - 1
		if median, err = left.GetKey(leftKeyNum); err != nil {
			return 0, nil, err
		}
		src, err := left.ResolvePtr(leftKeyNum + 1)
		if err != nil {
			return 0, nil, err
		}
		dst, err := right.ResolvePtr(0)
		if err != nil {
			return 0, nil, err
		}
		// rightKeyNum (pointer, key) pairs plus the trailing pointer.
		span := int(rightKeyNum*(left.keysize+ptrSize) + ptrSize)
		copy(right.payload[dst:dst+span], left.payload[src:src+span])
		left.numkeys = leftKeyNum
		right.numkeys = rightKeyNum
	}

	if err = left.Serialize(t.cache, blocknum); err != nil {
		return 0, nil, err
	}
	if err = right.Serialize(t.cache, newblock); err != nil {
		return 0, nil, err
	}
	return newblock, median, nil
}
