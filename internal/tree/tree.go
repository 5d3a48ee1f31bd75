// Package tree reconstructs a directory tree from a lexed transcript, rolls
// file sizes up into directories and answers size queries over the result.
//
// Nodes live in a flat arena and refer to each other by inode number, so the
// builder cursor is a plain stack of numbers rather than a chain of pointers.
package tree

import (
	"errors"
	"strings"

	"github.com/S1riyS/dirsize/internal/models"
)

const (
	RootIno  int64 = 0
	RootName       = "/"
)

var (
	ErrDuplicateChild    = errors.New("duplicate child")
	ErrNavigateAboveRoot = errors.New("navigate above root")
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrNotADirectory     = errors.New("not a directory")
	ErrNoCandidate       = errors.New("no directory meets the threshold")
	ErrNotAggregated     = errors.New("tree sizes are not aggregated")
	ErrSizeOverflow      = errors.New("size exceeds 64 bits")
)

// Tree owns every node. The root directory always exists.
type Tree struct {
	nodes []models.Node
}

func New() *Tree {
	return &Tree{
		nodes: []models.Node{{
			Ino:       RootIno,
			ParentIno: RootIno,
			Name:      RootName,
			Type:      models.NodeTypeDir,
		}},
	}
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Root() *models.Node {
	return &t.nodes[RootIno]
}

// Node returns nil for an unknown inode number.
func (t *Tree) Node(ino int64) *models.Node {
	if ino < 0 || ino >= int64(len(t.nodes)) {
		return nil
	}
	return &t.nodes[ino]
}

// Lookup finds a direct child of parentIno by name.
func (t *Tree) Lookup(parentIno int64, name string) (int64, bool) {
	parent := t.Node(parentIno)
	if parent == nil {
		return 0, false
	}
	for _, ino := range parent.Children {
		if t.nodes[ino].Name == name {
			return ino, true
		}
	}
	return 0, false
}

func (t *Tree) Children(ino int64) []models.Dirent {
	n := t.Node(ino)
	if n == nil {
		return nil
	}
	entries := make([]models.Dirent, 0, len(n.Children))
	for _, c := range n.Children {
		child := &t.nodes[c]
		entries = append(entries, models.Dirent{Name: child.Name, Ino: child.Ino, Type: child.Type})
	}
	return entries
}

// AddChild appends a new node under parentIno and returns its inode number.
// The tree is left untouched when the name is already taken.
func (t *Tree) AddChild(parentIno int64, name string, typ models.NodeType, size uint64) (int64, error) {
	parent := t.Node(parentIno)
	if parent == nil || !parent.IsDir() {
		return 0, ErrNotADirectory
	}
	if _, exists := t.Lookup(parentIno, name); exists {
		return 0, ErrDuplicateChild
	}

	ino := int64(len(t.nodes))
	node := models.Node{
		Ino:       ino,
		ParentIno: parentIno,
		Name:      name,
		Type:      typ,
	}
	if typ == models.NodeTypeFile {
		node.Size = size
		node.Sized = true
	}

	t.nodes = append(t.nodes, node)
	// parent may point into the old backing array after append
	t.nodes[parentIno].Children = append(t.nodes[parentIno].Children, ino)
	t.invalidate(parentIno)

	return ino, nil
}

// invalidate drops cached sizes from ino up to the root. A sized directory
// only ever has sized descendants, so the walk stops at the first unsized one.
func (t *Tree) invalidate(ino int64) {
	for {
		n := &t.nodes[ino]
		if !n.Sized {
			return
		}
		n.Sized = false
		n.Size = 0
		if ino == RootIno {
			return
		}
		ino = n.ParentIno
	}
}

// Path returns the absolute path of ino.
func (t *Tree) Path(ino int64) string {
	if ino == RootIno {
		return RootName
	}
	var parts []string
	for ino != RootIno {
		n := t.Node(ino)
		if n == nil {
			return ""
		}
		parts = append(parts, n.Name)
		ino = n.ParentIno
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return RootName + strings.Join(parts, "/")
}

// Walk visits every node in pre-order, children in insertion order.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n *models.Node, depth int) bool) {
	t.walk(RootIno, 0, fn)
}

func (t *Tree) walk(ino int64, depth int, fn func(n *models.Node, depth int) bool) {
	n := &t.nodes[ino]
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		t.walk(c, depth+1, fn)
	}
}

// Aggregated reports whether every directory carries a cached size.
func (t *Tree) Aggregated() bool {
	return t.nodes[RootIno].Sized
}
