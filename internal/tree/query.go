package tree

import (
	"fmt"
	"math/bits"

	"github.com/S1riyS/dirsize/internal/models"
)

// BoundedSum adds up the sizes of all directories, root included, whose size
// is at most threshold. Nested directories are counted once per level, so the
// sum can outgrow the root size and fail with ErrSizeOverflow.
func BoundedSum(t *Tree, threshold uint64) (uint64, error) {
	if !t.Aggregated() {
		return 0, ErrNotAggregated
	}

	var sum uint64
	overflow := false
	t.Walk(func(n *models.Node, _ int) bool {
		if overflow {
			return false
		}
		if n.IsDir() && n.Size <= threshold {
			var carry uint64
			sum, carry = bits.Add64(sum, n.Size, 0)
			overflow = carry != 0
		}
		return !overflow
	})
	if overflow {
		return 0, fmt.Errorf("%w: sum of directories up to %d", ErrSizeOverflow, threshold)
	}
	return sum, nil
}

// MinimalDeletion finds the smallest directory whose size is at least
// threshold. Ties go to the first directory in pre-order.
func MinimalDeletion(t *Tree, threshold uint64) (models.DirSize, error) {
	if !t.Aggregated() {
		return models.DirSize{}, ErrNotAggregated
	}

	var best *models.Node
	t.Walk(func(n *models.Node, _ int) bool {
		if !n.IsDir() || n.Size < threshold {
			// nothing below a directory can be larger than the directory
			return false
		}
		if best == nil || n.Size < best.Size {
			best = n
		}
		return true
	})
	if best == nil {
		return models.DirSize{}, ErrNoCandidate
	}

	return models.DirSize{Ino: best.Ino, Path: t.Path(best.Ino), Size: best.Size}, nil
}

// Directories lists every directory with its size in pre-order.
func Directories(t *Tree) ([]models.DirSize, error) {
	if !t.Aggregated() {
		return nil, ErrNotAggregated
	}

	var dirs []models.DirSize
	t.Walk(func(n *models.Node, _ int) bool {
		if n.IsDir() {
			dirs = append(dirs, models.DirSize{Ino: n.Ino, Path: t.Path(n.Ino), Size: n.Size})
		}
		return true
	})
	return dirs, nil
}

// DeletionThreshold returns how much space must still be freed so that
// required bytes are available on a disk of the given capacity. Usage above
// capacity counts as a full disk.
func DeletionThreshold(used, capacity, required uint64) uint64 {
	var free uint64
	if capacity > used {
		free = capacity - used
	}
	if free >= required {
		return 0
	}
	return required - free
}
