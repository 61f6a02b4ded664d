package btree

// Delete is not supported; merge-on-underflow may land later.
// TODO: deallocate emptied leaves back onto the free list once it does.
func (t *BTreeIndex) Delete(key []byte) error {
	return ErrUnimplemented
}
