package models

import (
	"time"

	"github.com/google/uuid"
)

type NodeType int16

const (
	NodeTypeDir  NodeType = 0
	NodeTypeFile NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeDir:
		return "dir"
	case NodeTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Node is one arena slot of a reconstructed tree. Children holds inode
// numbers of the directory's entries in insertion order and is always nil for
// files. For files Size is intrinsic; for directories it is only meaningful
// once Sized is set by the aggregator.
type Node struct {
	Ino       int64
	ParentIno int64
	Name      string
	Type      NodeType
	Size      uint64
	Sized     bool
	Children  []int64
}

func (n *Node) IsDir() bool {
	return n.Type == NodeTypeDir
}

type Dirent struct {
	Name string   `json:"name"`
	Ino  int64    `json:"ino"`
	Type NodeType `json:"type"`
}

// DirSize is a directory together with its aggregated size.
type DirSize struct {
	Ino  int64  `json:"ino"`
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

type Analysis struct {
	RootSize          uint64  `json:"root_size"`
	NodeCount         int     `json:"node_count"`
	DirCount          int     `json:"dir_count"`
	SmallDirThreshold uint64  `json:"small_dir_threshold"`
	BoundedSum        uint64  `json:"bounded_sum"`
	DeletionThreshold uint64  `json:"deletion_threshold"`
	CandidateFound    bool    `json:"candidate_found"`
	Candidate         DirSize `json:"candidate"`
}

// Report is an analysis summary. Stored is set once it has been persisted.
type Report struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Stored    bool      `json:"stored"`
	Analysis  Analysis  `json:"analysis"`
}
