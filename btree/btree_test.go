package btree

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"TreeDB/buffercache"
	"github.com/pkg/errors"
)

func newTestIndex(t *testing.T, numBlocks, blockSize uint32) (*BTreeIndex, *buffercache.MemoryCache) {
	t.Helper()
	cache := buffercache.NewMemoryCache(blockSize, numBlocks)
	tree := New(testKeySize, testValSize, cache, true)
	if err := tree.Attach(0, true); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return tree, cache
}

func sortedKeyVal(t *testing.T, tree *BTreeIndex) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tree.Display(&buf, DisplaySortedKeyVal); err != nil {
		t.Fatalf("Display: %v", err)
	}
	return buf.String()
}

func TestInsertAndSortedTraversal(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)

	pairs := []struct{ key, val string }{
		{"aaaa", "0001"},
		{"cccc", "0003"},
		{"bbbb", "0002"},
	}
	for _, p := range pairs {
		if err := tree.Insert([]byte(p.key), []byte(p.val)); err != nil {
			t.Fatalf("Insert %s: %v", p.key, err)
		}
	}

	want := "(aaaa,0001)\n(bbbb,0002)\n(cccc,0003)\n"
	if got := sortedKeyVal(t, tree); got != want {
		t.Errorf("sorted traversal = %q, want %q", got, want)
	}
	if err := tree.SanityCheck(); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}
}

func TestInsertConflict(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)

	if err := tree.Insert([]byte("bbbb"), []byte("0002")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert([]byte("bbbb"), []byte("xxxx")); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate Insert: %v, want ErrConflict", err)
	}
	val, err := tree.Lookup([]byte("bbbb"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(val, []byte("0002")) {
		t.Errorf("value after failed duplicate insert = %q, want 0002", val)
	}
}

func TestLeafSplit(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)

	keys := []string{"aaaa", "cccc", "bbbb", "dddd"}
	for i, k := range keys {
		if err := tree.Insert([]byte(k), []byte(fmt.Sprintf("%04d", i+1))); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}
	if err := tree.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck after split: %v", err)
	}
	for i, k := range keys {
		val, err := tree.Lookup([]byte(k))
		if err != nil {
			t.Fatalf("Lookup %s: %v", k, err)
		}
		if want := fmt.Sprintf("%04d", i+1); string(val) != want {
			t.Errorf("Lookup %s = %q, want %q", k, val, want)
		}
	}
}

func TestRandomInsertHundredKeys(t *testing.T) {
	tree, _ := newTestIndex(t, 256, 64)

	keys := make([]int, 100)
	for i := range keys {
		keys[i] = i
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, k := range keys {
		key := []byte(fmt.Sprintf("k%03d", k))
		val := []byte(fmt.Sprintf("v%03d", k))
		if err := tree.Insert(key, val); err != nil {
			t.Fatalf("Insert %s: %v", key, err)
		}
	}

	if err := tree.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}

	var want strings.Builder
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Fprintf(&want, "(k%03d,v%03d)\n", k, k)
	}
	if got := sortedKeyVal(t, tree); got != want.String() {
		t.Errorf("sorted traversal mismatch:\ngot  %q\nwant %q", got, want.String())
	}

	for _, k := range keys {
		val, err := tree.Lookup([]byte(fmt.Sprintf("k%03d", k)))
		if err != nil {
			t.Fatalf("Lookup k%03d: %v", k, err)
		}
		if want := fmt.Sprintf("v%03d", k); string(val) != want {
			t.Errorf("Lookup k%03d = %q, want %q", k, val, want)
		}
	}
}

func TestInsertUntilNoSpace(t *testing.T) {
	// 5 blocks: superblock, root, and a 3-block free chain.
	tree, _ := newTestIndex(t, 5, testBlockSize)

	var inserted []string
	var lastErr error
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k%03d", i)
		if err := tree.Insert([]byte(key), []byte("vvvv")); err != nil {
			lastErr = err
			break
		}
		inserted = append(inserted, key)
	}
	if !errors.Is(lastErr, ErrNoSpace) {
		t.Fatalf("expected ErrNoSpace, got %v", lastErr)
	}
	if len(inserted) == 0 {
		t.Fatal("no insert succeeded before the device filled up")
	}
	for _, key := range inserted {
		val, err := tree.Lookup([]byte(key))
		if err != nil {
			t.Errorf("Lookup %s after NOSPACE: %v", key, err)
		}
		if !bytes.Equal(val, []byte("vvvv")) {
			t.Errorf("Lookup %s = %q after NOSPACE", key, val)
		}
	}
}

func TestUpdate(t *testing.T) {
	tree, _ := newTestIndex(t, 256, 64)

	for i := 0; i < 60; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		val := []byte(fmt.Sprintf("v%03d", i))
		if err := tree.Insert(key, val); err != nil {
			t.Fatalf("Insert %s: %v", key, err)
		}
	}

	if err := tree.Update([]byte("k042"), []byte("ZZZZ")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	val, err := tree.Lookup([]byte("k042"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(val, []byte("ZZZZ")) {
		t.Errorf("Lookup after Update = %q, want ZZZZ", val)
	}

	// Nothing else moved.
	for i := 0; i < 60; i++ {
		if i == 42 {
			continue
		}
		val, err := tree.Lookup([]byte(fmt.Sprintf("k%03d", i)))
		if err != nil {
			t.Fatalf("Lookup k%03d: %v", i, err)
		}
		if want := fmt.Sprintf("v%03d", i); string(val) != want {
			t.Errorf("Lookup k%03d = %q, want %q", i, val, want)
		}
	}

	if err := tree.Update([]byte("nope"), []byte("0000")); !errors.Is(err, ErrNonexistent) {
		t.Errorf("Update of missing key: %v", err)
	}
}

func TestLookupMissing(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)
	if _, err := tree.Lookup([]byte("aaaa")); !errors.Is(err, ErrNonexistent) {
		t.Errorf("Lookup on empty tree: %v", err)
	}
	if err := tree.Insert([]byte("aaaa"), []byte("0001")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tree.Lookup([]byte("zzzz")); !errors.Is(err, ErrNonexistent) {
		t.Errorf("Lookup of missing key: %v", err)
	}
}

func TestKeyAndValueWidthChecks(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)
	if err := tree.Insert([]byte("short"), []byte("0001")); !errors.Is(err, ErrSize) {
		t.Errorf("Insert with 5-byte key: %v", err)
	}
	if err := tree.Insert([]byte("aaaa"), []byte("xl")); !errors.Is(err, ErrSize) {
		t.Errorf("Insert with 2-byte value: %v", err)
	}
	if _, err := tree.Lookup([]byte("bad")); !errors.Is(err, ErrSize) {
		t.Errorf("Lookup with 3-byte key: %v", err)
	}
}

func TestDeleteUnimplemented(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)
	if err := tree.Delete([]byte("aaaa")); !errors.Is(err, ErrUnimplemented) {
		t.Errorf("Delete: %v", err)
	}
}

func TestDetachAttachRoundTrip(t *testing.T) {
	tree, cache := newTestIndex(t, 256, 64)

	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if err := tree.Insert(key, []byte(fmt.Sprintf("v%03d", i))); err != nil {
			t.Fatalf("Insert %s: %v", key, err)
		}
	}
	initblock, err := tree.Detach()
	if err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if initblock != 0 {
		t.Errorf("Detach returned block %d, want 0", initblock)
	}

	// Remount; key and value widths come from the superblock.
	remounted := New(0, 0, cache, true)
	if err := remounted.Attach(0, false); err != nil {
		t.Fatalf("re-Attach: %v", err)
	}
	if remounted.superblock.keysize != testKeySize || remounted.superblock.valuesize != testValSize {
		t.Errorf("adopted sizes %d/%d", remounted.superblock.keysize, remounted.superblock.valuesize)
	}
	if remounted.superblock.rootnode != tree.superblock.rootnode ||
		remounted.superblock.freelist != tree.superblock.freelist {
		t.Errorf("superblock state differs after remount")
	}
	for i := 0; i < 30; i++ {
		val, err := remounted.Lookup([]byte(fmt.Sprintf("k%03d", i)))
		if err != nil {
			t.Fatalf("Lookup after remount: %v", err)
		}
		if want := fmt.Sprintf("v%03d", i); string(val) != want {
			t.Errorf("Lookup k%03d = %q after remount", i, val)
		}
	}
}

func TestAttachRejectsNonZeroInitblock(t *testing.T) {
	cache := buffercache.NewMemoryCache(testBlockSize, 8)
	tree := New(testKeySize, testValSize, cache, true)
	if err := tree.Attach(1, true); !errors.Is(err, ErrInsane) {
		t.Errorf("Attach(1, true): %v", err)
	}
}

func TestFreelistWellFormed(t *testing.T) {
	tree, cache := newTestIndex(t, 64, testBlockSize)

	for i := 0; i < 25; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if err := tree.Insert(key, []byte("vvvv")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// Walk the chain: it must terminate at 0 with no revisits, and every
	// block on it must read as unallocated.
	seen := make(map[uint32]bool)
	for n := tree.superblock.freelist; n != 0; {
		if seen[n] {
			t.Fatalf("freelist revisits block %d", n)
		}
		seen[n] = true
		var node BTreeNode
		if err := node.Unserialize(cache, n); err != nil {
			t.Fatalf("Unserialize freelist block %d: %v", n, err)
		}
		if node.nodetype != UnallocatedBlock {
			t.Fatalf("freelist block %d has type %d", n, node.nodetype)
		}
		n = node.freelist
	}
}

func TestAllocateDeallocate(t *testing.T) {
	tree, cache := newTestIndex(t, 8, testBlockSize)

	blocknum, err := tree.AllocateNode()
	if err != nil {
		t.Fatalf("AllocateNode: %v", err)
	}
	if blocknum != 2 {
		t.Errorf("first allocation = block %d, want 2", blocknum)
	}
	if tree.superblock.freelist != 3 {
		t.Errorf("freelist head = %d after allocation, want 3", tree.superblock.freelist)
	}

	// Deallocating a block that was never rewritten is insane.
	if err := tree.DeallocateNode(blocknum); !errors.Is(err, ErrInsane) {
		t.Errorf("DeallocateNode of unallocated block: %v", err)
	}

	leaf := NewBTreeNode(LeafNode, testKeySize, testValSize, testBlockSize)
	if err := leaf.Serialize(cache, blocknum); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := tree.DeallocateNode(blocknum); err != nil {
		t.Fatalf("DeallocateNode: %v", err)
	}
	if tree.superblock.freelist != blocknum {
		t.Errorf("freelist head = %d after deallocation, want %d", tree.superblock.freelist, blocknum)
	}
}

func TestDisplayDepthAndDot(t *testing.T) {
	tree, _ := newTestIndex(t, 64, testBlockSize)
	for _, k := range []string{"aaaa", "bbbb", "cccc", "dddd"} {
		if err := tree.Insert([]byte(k), []byte("0000")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	var dot bytes.Buffer
	if err := tree.Display(&dot, DisplayDepthDot); err != nil {
		t.Fatalf("Display dot: %v", err)
	}
	out := dot.String()
	if !strings.HasPrefix(out, "digraph tree { \n") || !strings.HasSuffix(out, "}\n") {
		t.Errorf("dot output not wrapped in digraph: %q", out)
	}
	if !strings.Contains(out, "->") {
		t.Errorf("dot output has no edges: %q", out)
	}

	var depth bytes.Buffer
	if err := tree.Display(&depth, DisplayDepth); err != nil {
		t.Fatalf("Display depth: %v", err)
	}
	if !strings.Contains(depth.String(), "Leaf: ") || !strings.Contains(depth.String(), "Interior: ") {
		t.Errorf("depth output missing node labels: %q", depth.String())
	}
}

func TestSanityCheckCatchesCorruption(t *testing.T) {
	tree, cache := newTestIndex(t, 256, 64)
	for i := 0; i < 40; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if err := tree.Insert(key, []byte("vvvv")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := tree.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck on healthy tree: %v", err)
	}

	// Smash the leftmost leaf's first key above every separator.
	blocknum := tree.superblock.rootnode
	for {
		var node BTreeNode
		if err := node.Unserialize(cache, blocknum); err != nil {
			t.Fatalf("Unserialize: %v", err)
		}
		if node.nodetype == LeafNode {
			if err := node.SetKey(0, []byte("zzzz")); err != nil {
				t.Fatalf("SetKey: %v", err)
			}
			if err := node.Serialize(cache, blocknum); err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			break
		}
		ptr, err := node.GetPtr(0)
		if err != nil {
			t.Fatalf("GetPtr: %v", err)
		}
		blocknum = ptr
	}

	if err := tree.SanityCheck(); !errors.Is(err, ErrInsane) {
		t.Errorf("SanityCheck on corrupted tree: %v", err)
	}
}

func TestIterator(t *testing.T) {
	tree, _ := newTestIndex(t, 256, 64)

	keys := make([]int, 80)
	for i := range keys {
		keys[i] = i
	}
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		if err := tree.Insert([]byte(fmt.Sprintf("k%03d", k)), []byte(fmt.Sprintf("v%03d", k))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	var got []string
	for it := tree.SeekFirst(); it.Valid(); it.Next() {
		got = append(got, string(it.Key())+"="+string(it.Value()))
	}
	if len(got) != 80 {
		t.Fatalf("iterator yielded %d entries, want 80", len(got))
	}
	for i, kv := range got {
		if want := fmt.Sprintf("k%03d=v%03d", i, i); kv != want {
			t.Fatalf("entry %d = %q, want %q", i, kv, want)
		}
	}

	it := tree.SeekGE([]byte("k050"))
	if !it.Valid() || string(it.Key()) != "k050" {
		t.Errorf("SeekGE(k050) landed on %q", it.Key())
	}

	// Between two stored keys: land on the next one up.
	it = tree.SeekGE([]byte("k04x"))
	if !it.Valid() || string(it.Key()) != "k050" {
		t.Errorf("SeekGE(k04x) landed on %q", it.Key())
	}

	it = tree.SeekGE([]byte("zzzz"))
	if it.Valid() {
		t.Errorf("SeekGE past the end is still valid at %q", it.Key())
	}
	if it.Err() != nil {
		t.Errorf("SeekGE past the end: %v", it.Err())
	}

	empty, _ := newTestIndex(t, 16, testBlockSize)
	if it := empty.SeekFirst(); it.Valid() {
		t.Errorf("SeekFirst on empty tree is valid")
	}
}
