package tree

import (
	"fmt"

	"github.com/S1riyS/dirsize/internal/transcript"
)

// Builder replays transcript entries against a tree. The cursor holds the
// inode numbers from the root down to the directory currently open.
type Builder struct {
	tree   *Tree
	cursor []int64
}

func NewBuilder() *Builder {
	return &Builder{
		tree:   New(),
		cursor: []int64{RootIno},
	}
}

// Cwd returns the inode number of the directory on top of the cursor.
func (b *Builder) Cwd() int64 {
	return b.cursor[len(b.cursor)-1]
}

// Depth is the number of directories on the cursor, root included.
func (b *Builder) Depth() int {
	return len(b.cursor)
}

// Apply processes one entry. On failure neither the cursor nor the tree change.
func (b *Builder) Apply(e transcript.Entry) error {
	switch e.Kind {
	case transcript.KindList:
		return nil
	case transcript.KindDeclare:
		if _, err := b.tree.AddChild(b.Cwd(), e.Name, e.Type, e.Size); err != nil {
			return fmt.Errorf("%w: %q in %s", err, e.Name, b.tree.Path(b.Cwd()))
		}
		return nil
	case transcript.KindNavigate:
		return b.navigate(e.Target)
	default:
		return fmt.Errorf("unknown entry kind %v", e.Kind)
	}
}

func (b *Builder) navigate(target string) error {
	switch target {
	case transcript.TargetRoot:
		b.cursor = b.cursor[:1]
		return nil
	case transcript.TargetParent:
		if len(b.cursor) == 1 {
			return ErrNavigateAboveRoot
		}
		b.cursor = b.cursor[:len(b.cursor)-1]
		return nil
	}

	ino, ok := b.tree.Lookup(b.Cwd(), target)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrDirectoryNotFound, target, b.tree.Path(b.Cwd()))
	}
	if !b.tree.Node(ino).IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, b.tree.Path(ino))
	}
	b.cursor = append(b.cursor, ino)
	return nil
}

// Tree hands over the tree built so far.
func (b *Builder) Tree() *Tree {
	return b.tree
}

// Build replays every line in order and returns the finished tree.
// The first failure is returned as *transcript.LineError and no tree is produced.
func Build(lines []transcript.Line) (*Tree, error) {
	b := NewBuilder()
	for _, l := range lines {
		if err := b.Apply(l.Entry); err != nil {
			return nil, &transcript.LineError{Line: l.Number, Content: l.Content, Err: err}
		}
	}
	return b.Tree(), nil
}
