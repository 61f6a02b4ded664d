package btree

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// DisplayType selects the traversal output format.
type DisplayType int

const (
	// DisplayDepth: one node per line, prefixed by block number.
	DisplayDepth DisplayType = iota
	// DisplayDepthDot: Graphviz DOT with per-node labels and edges.
	DisplayDepthDot
	// DisplaySortedKeyVal: one (key,value) pair per line, in order.
	DisplaySortedKeyVal
)

// Display walks the tree depth-first from the root and writes it to w in
// the requested format.
func (t *BTreeIndex) Display(w io.Writer, dt DisplayType) error {
	if dt == DisplayDepthDot {
		if _, err := fmt.Fprintf(w, "digraph tree { \n"); err != nil {
			return err
		}
	}
	if err := t.displayInternal(t.superblock.rootnode, w, dt); err != nil {
		return err
	}
	if dt == DisplayDepthDot {
		if _, err := fmt.Fprintf(w, "}\n"); err != nil {
			return err
		}
	}
	return nil
}

func (t *BTreeIndex) displayInternal(blocknum uint32, w io.Writer, dt DisplayType) error {
	var node BTreeNode
	if err := node.Unserialize(t.cache, blocknum); err != nil {
		return err
	}

	if err := printNode(w, blocknum, &node, dt); err != nil {
		return err
	}
	if dt == DisplayDepthDot {
		if _, err := fmt.Fprintf(w, ";"); err != nil {
			return err
		}
	}
	if dt != DisplaySortedKeyVal {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	switch node.nodetype {
	case RootNode, InteriorNode:
		for i := uint32(0); i <= node.numkeys && node.numkeys > 0; i++ {
			ptr, err := node.GetPtr(i)
			if err != nil {
				return err
			}
			if dt == DisplayDepthDot {
				if _, err := fmt.Fprintf(w, "%d -> %d;\n", blocknum, ptr); err != nil {
					return err
				}
			}
			if err := t.displayInternal(ptr, w, dt); err != nil {
				return err
			}
		}
		return nil
	case LeafNode:
		return nil
	default:
		return errors.Wrapf(ErrInsane, "display reached block %d of type %d", blocknum, node.nodetype)
	}
}

func printNode(w io.Writer, blocknum uint32, node *BTreeNode, dt DisplayType) error {
	switch dt {
	case DisplayDepthDot:
		if _, err := fmt.Fprintf(w, "%d [ label=\"%d: ", blocknum, blocknum); err != nil {
			return err
		}
	case DisplayDepth:
		if _, err := fmt.Fprintf(w, "%d: ", blocknum); err != nil {
			return err
		}
	}

	switch node.nodetype {
	case RootNode, InteriorNode:
		if dt != DisplaySortedKeyVal {
			if dt == DisplayDepth {
				if _, err := fmt.Fprintf(w, "Interior: "); err != nil {
					return err
				}
			}
			for i := uint32(0); i <= node.numkeys && node.numkeys > 0; i++ {
				ptr, err := node.GetPtr(i)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "*%d ", ptr); err != nil {
					return err
				}
				if i == node.numkeys {
					break
				}
				key, err := node.GetKey(i)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s ", key); err != nil {
					return err
				}
			}
		}
	case LeafNode:
		if dt == DisplayDepth {
			if _, err := fmt.Fprintf(w, "Leaf: "); err != nil {
				return err
			}
		}
		for i := uint32(0); i < node.numkeys; i++ {
			if i == 0 && dt == DisplayDepth {
				// the reserved leading pointer slot
				ptr, err := node.GetPtr(0)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "*%d ", ptr); err != nil {
					return err
				}
			}
			key, err := node.GetKey(i)
			if err != nil {
				return err
			}
			val, err := node.GetVal(i)
			if err != nil {
				return err
			}
			switch dt {
			case DisplaySortedKeyVal:
				if _, err := fmt.Fprintf(w, "(%s,%s)\n", key, val); err != nil {
					return err
				}
			default:
				if _, err := fmt.Fprintf(w, "%s %s ", key, val); err != nil {
					return err
				}
			}
		}
	default:
		if _, err := fmt.Fprintf(w, "Unknown(%d)", node.nodetype); err != nil {
			return err
		}
	}

	if dt == DisplayDepthDot {
		if _, err := fmt.Fprintf(w, "\" ]"); err != nil {
			return err
		}
	}
	return nil
}
