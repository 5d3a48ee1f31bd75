package tree

import (
	"context"
	"fmt"
	"math/bits"

	"golang.org/x/sync/errgroup"
)

// Aggregate sizes every directory bottom-up and caches the result on the
// node. Running it again on an unchanged tree yields the same sizes.
// It returns the root size, or ErrSizeOverflow when a directory total does
// not fit in 64 bits. The root is left unsized in that case.
func Aggregate(t *Tree) (uint64, error) {
	return t.size(RootIno)
}

func (t *Tree) size(ino int64) (uint64, error) {
	n := &t.nodes[ino]
	if !n.IsDir() {
		return n.Size, nil
	}

	var total uint64
	for _, c := range n.Children {
		s, err := t.size(c)
		if err != nil {
			return 0, err
		}
		if total, err = t.add(ino, total, s); err != nil {
			return 0, err
		}
	}
	n.Size = total
	n.Sized = true
	return total, nil
}

// add sums two sizes that belong to directory ino.
func (t *Tree) add(ino int64, a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %s", ErrSizeOverflow, t.Path(ino))
	}
	return sum, nil
}

// AggregateConcurrent computes the same sizes as Aggregate, sizing the
// subtrees of directories shallower than parallelDepth in parallel. Every
// directory's cell is written once, by the goroutine owning it, after all of
// its children have joined.
func AggregateConcurrent(ctx context.Context, t *Tree, parallelDepth int) (uint64, error) {
	return t.sizeConcurrent(ctx, RootIno, parallelDepth)
}

func (t *Tree) sizeConcurrent(ctx context.Context, ino int64, parallelDepth int) (uint64, error) {
	if parallelDepth <= 0 {
		return t.size(ino)
	}

	n := &t.nodes[ino]
	if !n.IsDir() {
		return n.Size, nil
	}

	sizes := make([]uint64, len(n.Children))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range n.Children {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := t.sizeConcurrent(gctx, c, parallelDepth-1)
			if err != nil {
				return err
			}
			sizes[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total uint64
	for _, s := range sizes {
		var err error
		if total, err = t.add(ino, total, s); err != nil {
			return 0, err
		}
	}
	n.Size = total
	n.Sized = true
	return total, nil
}
