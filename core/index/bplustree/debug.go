package bplustree

import (
	"fmt"
	"io"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// DumpTo writes a human-readable rendering of the tree structure, one node
// per line, indented by depth. It is an offline inspection aid and takes no
// latches; do not run it concurrently with writers.
func (t *BPlusTree) DumpTo(w io.Writer) error {
	rootID := t.RootPageID()
	if !rootID.IsValid() {
		_, err := fmt.Fprintln(w, "(empty tree)")
		return err
	}
	return t.dumpNode(w, rootID, 0)
}

func (t *BPlusTree) dumpNode(w io.Writer, id page.PageID, depth int) error {
	pg, err := t.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(id, false)

	node := View(pg.Data(), t.keySize)
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if node.IsLeaf() {
		leaf := node.AsLeaf()
		if _, err := fmt.Fprintf(w, "%sleaf %d size=%d next=%d parent=%d\n",
			indent, leaf.PageID(), leaf.Size(), leaf.NextPageID(), leaf.ParentPageID()); err != nil {
			return err
		}
		return nil
	}
	internal := node.AsInternal()
	if _, err := fmt.Fprintf(w, "%sinternal %d size=%d parent=%d\n",
		indent, internal.PageID(), internal.Size(), internal.ParentPageID()); err != nil {
		return err
	}
	for i := 0; i < internal.Size(); i++ {
		if err := t.dumpNode(w, internal.ValueAt(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}
