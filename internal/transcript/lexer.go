// Package transcript turns the lines of a shell session transcript into
// typed entries: navigation commands, listing commands and child declarations.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/S1riyS/dirsize/internal/models"
)

const (
	commandPrefix = "$ "
	cdPrefix      = commandPrefix + "cd "
	lsCommand     = commandPrefix + "ls"
	dirMarker     = "dir"

	TargetParent = ".."
	TargetRoot   = "/"
)

var ErrMalformedLine = errors.New("malformed line")

type Kind int

const (
	KindNavigate Kind = iota
	KindList
	KindDeclare
)

func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindList:
		return "list"
	case KindDeclare:
		return "declare"
	default:
		return "unknown"
	}
}

// Entry is a single lexed transcript line.
//
// Target is set for KindNavigate. Name, Type and Size are set for KindDeclare.
type Entry struct {
	Kind   Kind
	Target string
	Name   string
	Type   models.NodeType
	Size   uint64
}

func Navigate(target string) Entry {
	return Entry{Kind: KindNavigate, Target: target}
}

func List() Entry {
	return Entry{Kind: KindList}
}

func DeclareDir(name string) Entry {
	return Entry{Kind: KindDeclare, Name: name, Type: models.NodeTypeDir}
}

func DeclareFile(name string, size uint64) Entry {
	return Entry{Kind: KindDeclare, Name: name, Type: models.NodeTypeFile, Size: size}
}

// LineError ties a failure to the transcript line that triggered it.
type LineError struct {
	Line    int
	Content string
	Err     error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Content, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LexLine classifies one line of the transcript.
func LexLine(line string) (Entry, error) {
	if strings.HasPrefix(line, cdPrefix) {
		target := strings.TrimSpace(line[len(cdPrefix):])
		if target == "" {
			return Entry{}, fmt.Errorf("%w: cd without target", ErrMalformedLine)
		}
		return Navigate(target), nil
	}

	if strings.TrimRight(line, " \t") == lsCommand {
		return List(), nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Entry{}, fmt.Errorf("%w: expected two tokens, got %d", ErrMalformedLine, len(fields))
	}
	if len(fields) > 2 {
		return Entry{}, fmt.Errorf("%w: name must not contain whitespace", ErrMalformedLine)
	}

	name := fields[1]
	if fields[0] == dirMarker {
		return DeclareDir(name), nil
	}

	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q is neither %q nor a size", ErrMalformedLine, fields[0], dirMarker)
	}
	return DeclareFile(name, size), nil
}

// Line is a lexed entry with its 1-based position in the transcript.
type Line struct {
	Number  int
	Content string
	Entry   Entry
}

// Lex reads the whole transcript and lexes every non-blank line.
// The first malformed line aborts lexing and is returned as *LineError.
func Lex(r io.Reader) ([]Line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	lineNum := 0
	for sc.Scan() {
		lineNum++
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		entry, err := LexLine(raw)
		if err != nil {
			// a failed read hands the scanner a truncated last line
			if readErr := sc.Err(); readErr != nil {
				return nil, fmt.Errorf("read transcript: %w", readErr)
			}
			return nil, &LineError{Line: lineNum, Content: raw, Err: err}
		}
		lines = append(lines, Line{Number: lineNum, Content: raw, Entry: entry})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	return lines, nil
}
