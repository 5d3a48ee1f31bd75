package tree

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/S1riyS/dirsize/internal/models"
	"github.com/S1riyS/dirsize/internal/transcript"
)

const sampleTranscript = `$ cd /
$ ls
dir a
100 f.txt
$ cd a
$ ls
200 g.txt
`

// puzzleTranscript is the larger worked example of the directory puzzle.
const puzzleTranscript = `$ cd /
$ ls
dir a
14848514 b.txt
8504156 c.dat
dir d
$ cd a
$ ls
dir e
29116 f
2557 g
62596 h.lst
$ cd e
$ ls
584 i
$ cd ..
$ cd ..
$ cd d
$ ls
4060174 j
8033020 d.log
5626152 d.ext
7214296 k
`

func mustBuild(t *testing.T, input string) *Tree {
	t.Helper()
	lines, err := transcript.Lex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	tr, err := Build(lines)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tr
}

func mustAggregate(t *testing.T, tr *Tree) uint64 {
	t.Helper()
	total, err := Aggregate(tr)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return total
}

func sizeOf(t *testing.T, tr *Tree, path string) uint64 {
	t.Helper()
	var found *models.Node
	tr.Walk(func(n *models.Node, _ int) bool {
		if tr.Path(n.Ino) == path {
			found = n
		}
		return found == nil
	})
	if found == nil {
		t.Fatalf("path %q not found", path)
	}
	return found.Size
}

func TestEmptyTranscriptHasRoot(t *testing.T) {
	tr := mustBuild(t, "")

	root := tr.Root()
	if root.Name != "/" || !root.IsDir() {
		t.Errorf("root = %+v, want directory named /", root)
	}
	if got := mustAggregate(t, tr); got != 0 {
		t.Errorf("root size of empty tree = %d, want 0", got)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
}

func TestEndToEnd(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)

	if got := mustAggregate(t, tr); got != 300 {
		t.Errorf("root size = %d, want 300", got)
	}
	if got := sizeOf(t, tr, "/a"); got != 200 {
		t.Errorf("size(/a) = %d, want 200", got)
	}

	sum, err := BoundedSum(tr, 250)
	if err != nil {
		t.Fatalf("BoundedSum: %v", err)
	}
	if sum != 200 {
		t.Errorf("BoundedSum(250) = %d, want 200", sum)
	}

	cand, err := MinimalDeletion(tr, 150)
	if err != nil {
		t.Fatalf("MinimalDeletion: %v", err)
	}
	if cand.Path != "/a" || cand.Size != 200 {
		t.Errorf("MinimalDeletion(150) = %+v, want /a 200", cand)
	}
}

func TestPuzzleExample(t *testing.T) {
	tr := mustBuild(t, puzzleTranscript)
	total := mustAggregate(t, tr)

	sizes := map[string]uint64{
		"/":    48381165,
		"/a":   94853,
		"/a/e": 584,
		"/d":   24933642,
	}
	for path, want := range sizes {
		if got := sizeOf(t, tr, path); got != want {
			t.Errorf("size(%s) = %d, want %d", path, got, want)
		}
	}

	sum, err := BoundedSum(tr, 100000)
	if err != nil {
		t.Fatalf("BoundedSum: %v", err)
	}
	if sum != 95437 {
		t.Errorf("BoundedSum(100000) = %d, want 95437", sum)
	}

	need := DeletionThreshold(total, 70000000, 30000000)
	if need != 8381165 {
		t.Errorf("DeletionThreshold = %d, want 8381165", need)
	}
	cand, err := MinimalDeletion(tr, need)
	if err != nil {
		t.Fatalf("MinimalDeletion: %v", err)
	}
	if cand.Path != "/d" || cand.Size != 24933642 {
		t.Errorf("MinimalDeletion = %+v, want /d 24933642", cand)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	tr := mustBuild(t, puzzleTranscript)

	first, err := Directories(withAggregate(t, tr))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Directories(withAggregate(t, tr))
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("directory count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func withAggregate(t *testing.T, tr *Tree) *Tree {
	t.Helper()
	mustAggregate(t, tr)
	return tr
}

func TestDirectorySizeIsSumOfChildren(t *testing.T) {
	tr := mustBuild(t, puzzleTranscript)
	mustAggregate(t, tr)

	tr.Walk(func(n *models.Node, _ int) bool {
		if !n.IsDir() {
			return true
		}
		var sum uint64
		for _, c := range n.Children {
			sum += tr.Node(c).Size
		}
		if sum != n.Size {
			t.Errorf("size(%s) = %d, children sum to %d", tr.Path(n.Ino), n.Size, sum)
		}
		return true
	})
}

func TestAggregateConcurrentMatchesSequential(t *testing.T) {
	seq := mustBuild(t, puzzleTranscript)
	want := mustAggregate(t, seq)

	for _, depth := range []int{0, 1, 2, 10} {
		par := mustBuild(t, puzzleTranscript)
		got, err := AggregateConcurrent(context.Background(), par, depth)
		if err != nil {
			t.Fatalf("AggregateConcurrent(depth=%d): %v", depth, err)
		}
		if got != want {
			t.Errorf("AggregateConcurrent(depth=%d) = %d, want %d", depth, got, want)
		}
		if !par.Aggregated() {
			t.Errorf("depth=%d: tree not marked aggregated", depth)
		}
		if got := sizeOf(t, par, "/a/e"); got != 584 {
			t.Errorf("depth=%d: size(/a/e) = %d, want 584", depth, got)
		}
	}
}

func TestAggregateConcurrentCancelled(t *testing.T) {
	tr := mustBuild(t, puzzleTranscript)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := AggregateConcurrent(ctx, tr, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		line  int
	}{
		{"above root", "$ cd /\n$ cd ..\n", ErrNavigateAboveRoot, 2},
		{"missing dir", "$ cd /\n$ ls\ndir a\n$ cd b\n", ErrDirectoryNotFound, 4},
		{"cd into file", "$ ls\n10 a\n$ cd a\n", ErrNotADirectory, 3},
		{"duplicate dir", "$ ls\ndir a\ndir a\n", ErrDuplicateChild, 3},
		{"duplicate mixed", "$ ls\ndir a\n5 a\n", ErrDuplicateChild, 3},
	}

	for _, tt := range tests {
		lines, err := transcript.Lex(strings.NewReader(tt.input))
		if err != nil {
			t.Fatalf("%s: Lex: %v", tt.name, err)
		}
		_, err = Build(lines)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
			continue
		}
		var lineErr *transcript.LineError
		if !errors.As(err, &lineErr) || lineErr.Line != tt.line {
			t.Errorf("%s: error %v should point at line %d", tt.name, err, tt.line)
		}
	}
}

func TestFailedNavigationKeepsState(t *testing.T) {
	b := NewBuilder()
	steps := []transcript.Entry{
		transcript.List(),
		transcript.DeclareDir("a"),
		transcript.DeclareFile("f", 10),
		transcript.Navigate("a"),
	}
	for _, e := range steps {
		if err := b.Apply(e); err != nil {
			t.Fatalf("Apply(%+v): %v", e, err)
		}
	}
	cwd, depth, nodes := b.Cwd(), b.Depth(), b.Tree().Len()

	if err := b.Apply(transcript.Navigate("missing")); !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("error = %v, want ErrDirectoryNotFound", err)
	}
	if b.Cwd() != cwd || b.Depth() != depth || b.Tree().Len() != nodes {
		t.Error("failed cd changed builder state")
	}

	if err := b.Apply(transcript.Navigate("..")); err != nil {
		t.Fatalf("cd ..: %v", err)
	}
	if err := b.Apply(transcript.Navigate("..")); !errors.Is(err, ErrNavigateAboveRoot) {
		t.Fatalf("error = %v, want ErrNavigateAboveRoot", err)
	}
	if b.Cwd() != RootIno || b.Depth() != 1 {
		t.Error("failed cd .. moved the cursor")
	}

	if err := b.Apply(transcript.Navigate("f")); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("error = %v, want ErrNotADirectory", err)
	}
	if err := b.Apply(transcript.DeclareDir("a")); !errors.Is(err, ErrDuplicateChild) {
		t.Fatalf("error = %v, want ErrDuplicateChild", err)
	}
	if b.Cwd() != RootIno || b.Tree().Len() != nodes {
		t.Error("failed operations changed builder state")
	}
}

func TestNavigateRootResetsCursor(t *testing.T) {
	tr := mustBuild(t, "$ ls\ndir a\n$ cd a\n$ ls\ndir b\n$ cd b\n$ cd /\n$ ls\n7 top\n")
	mustAggregate(t, tr)

	ino, ok := tr.Lookup(RootIno, "top")
	if !ok {
		t.Fatal("file declared after cd / should be under root")
	}
	if tr.Path(ino) != "/top" {
		t.Errorf("Path = %q, want /top", tr.Path(ino))
	}
	if got := sizeOf(t, tr, "/a/b"); got != 0 {
		t.Errorf("size(/a/b) = %d, want 0", got)
	}
}

func TestBoundedSumZeroThreshold(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)
	mustAggregate(t, tr)

	if sum, _ := BoundedSum(tr, 0); sum != 0 {
		t.Errorf("BoundedSum(0) = %d, want 0", sum)
	}
}

func TestMinimalDeletionNoCandidate(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)
	total := mustAggregate(t, tr)

	if _, err := MinimalDeletion(tr, total+1); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("error = %v, want ErrNoCandidate", err)
	}
}

func TestMinimalDeletionTieGoesToFirst(t *testing.T) {
	tr := mustBuild(t, "$ ls\ndir x\ndir y\n$ cd x\n$ ls\n50 f\n$ cd ..\n$ cd y\n$ ls\n50 g\n")
	mustAggregate(t, tr)

	cand, err := MinimalDeletion(tr, 50)
	if err != nil {
		t.Fatal(err)
	}
	if cand.Path != "/x" {
		t.Errorf("MinimalDeletion tie = %s, want /x", cand.Path)
	}
}

func TestQueriesRequireAggregation(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)

	if _, err := BoundedSum(tr, 10); !errors.Is(err, ErrNotAggregated) {
		t.Errorf("BoundedSum error = %v, want ErrNotAggregated", err)
	}
	if _, err := MinimalDeletion(tr, 10); !errors.Is(err, ErrNotAggregated) {
		t.Errorf("MinimalDeletion error = %v, want ErrNotAggregated", err)
	}
	if _, err := Directories(tr); !errors.Is(err, ErrNotAggregated) {
		t.Errorf("Directories error = %v, want ErrNotAggregated", err)
	}
}

func TestAddChildInvalidatesSizes(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)
	mustAggregate(t, tr)

	a, _ := tr.Lookup(RootIno, "a")
	if _, err := tr.AddChild(a, "late", models.NodeTypeFile, 5); err != nil {
		t.Fatal(err)
	}
	if tr.Aggregated() {
		t.Fatal("tree should need aggregation after a mutation")
	}
	if got := mustAggregate(t, tr); got != 305 {
		t.Errorf("root size = %d, want 305", got)
	}
}

func TestDirectoriesPreOrder(t *testing.T) {
	tr := mustBuild(t, puzzleTranscript)
	mustAggregate(t, tr)

	dirs, err := Directories(tr)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/", "/a", "/a/e", "/d"}
	if len(dirs) != len(want) {
		t.Fatalf("got %d directories, want %d", len(dirs), len(want))
	}
	for i, p := range want {
		if dirs[i].Path != p {
			t.Errorf("dirs[%d] = %s, want %s", i, dirs[i].Path, p)
		}
	}
}

func TestChildren(t *testing.T) {
	tr := mustBuild(t, sampleTranscript)

	got := tr.Children(RootIno)
	if len(got) != 2 {
		t.Fatalf("got %d children, want 2", len(got))
	}
	if got[0].Name != "a" || got[0].Type != models.NodeTypeDir {
		t.Errorf("first child = %+v, want dir a", got[0])
	}
	if got[1].Name != "f.txt" || got[1].Type != models.NodeTypeFile {
		t.Errorf("second child = %+v, want file f.txt", got[1])
	}
	if tr.Children(999) != nil {
		t.Error("Children of unknown inode should be nil")
	}
}

func TestDeletionThreshold(t *testing.T) {
	tests := []struct {
		used, capacity, required, want uint64
	}{
		{48381165, 70000000, 30000000, 8381165},
		{10, 100, 50, 0},
		{50, 100, 50, 0},
		{200, 100, 50, 50},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		got := DeletionThreshold(tt.used, tt.capacity, tt.required)
		if got != tt.want {
			t.Errorf("DeletionThreshold(%d, %d, %d) = %d, want %d",
				tt.used, tt.capacity, tt.required, got, tt.want)
		}
	}
}

func TestAggregateOverflow(t *testing.T) {
	input := "$ cd /\n$ ls\ndir big\n$ cd big\n$ ls\n18446744073709551615 a\n2 b\n"

	tr := mustBuild(t, input)
	if _, err := Aggregate(tr); !errors.Is(err, ErrSizeOverflow) {
		t.Fatalf("Aggregate error = %v, want ErrSizeOverflow", err)
	}
	if tr.Aggregated() {
		t.Error("tree must not be marked aggregated after an overflow")
	}
	if _, err := BoundedSum(tr, 10); !errors.Is(err, ErrNotAggregated) {
		t.Errorf("BoundedSum error = %v, want ErrNotAggregated", err)
	}

	par := mustBuild(t, input)
	if _, err := AggregateConcurrent(context.Background(), par, 2); !errors.Is(err, ErrSizeOverflow) {
		t.Errorf("AggregateConcurrent error = %v, want ErrSizeOverflow", err)
	}
}

func TestAggregateOverflowAtRoot(t *testing.T) {
	tr := mustBuild(t, "$ ls\n18446744073709551615 a\n2 b\n")

	if got, err := Aggregate(tr); !errors.Is(err, ErrSizeOverflow) {
		t.Errorf("Aggregate = %d, %v, want ErrSizeOverflow", got, err)
	}
}

func TestBoundedSumOverflow(t *testing.T) {
	// the root and /a are both max-sized, so their sum wraps
	tr := mustBuild(t, "$ ls\ndir a\n$ cd a\n$ ls\n18446744073709551615 f\n")
	mustAggregate(t, tr)

	const maxSize = uint64(18446744073709551615)
	if _, err := BoundedSum(tr, maxSize); !errors.Is(err, ErrSizeOverflow) {
		t.Errorf("BoundedSum error = %v, want ErrSizeOverflow", err)
	}
	if sum, err := BoundedSum(tr, maxSize-1); err != nil || sum != 0 {
		t.Errorf("BoundedSum(max-1) = %d, %v, want 0", sum, err)
	}
}

func TestApplyUnknownKind(t *testing.T) {
	b := NewBuilder()

	err := b.Apply(transcript.Entry{Kind: transcript.Kind(42)})
	if err == nil || !strings.Contains(err.Error(), "unknown entry kind unknown") {
		t.Errorf("Apply error = %v, want unknown entry kind", err)
	}
	if b.Tree().Len() != 1 || b.Cwd() != RootIno {
		t.Error("unknown entry changed builder state")
	}
}
