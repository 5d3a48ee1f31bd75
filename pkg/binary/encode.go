package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"

	"github.com/S1riyS/dirsize/internal/models"
)

// EncodeReport lays out a report as:
//
//	id [16]byte | created_at int64 (unix nanos) | stored uint8 | analysis
func EncodeReport(report *models.Report) ([]byte, error) {
	buf := new(bytes.Buffer)

	if _, err := buf.Write(report.ID[:]); err != nil {
		return nil, fmt.Errorf("failed to encode id: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, report.CreatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to encode created_at: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, boolByte(report.Stored)); err != nil {
		return nil, fmt.Errorf("failed to encode stored: %w", err)
	}

	if err := writeAnalysis(buf, &report.Analysis); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeAnalysis(buf *bytes.Buffer, a *models.Analysis) error {
	fields := []struct {
		name  string
		value any
	}{
		{"root_size", a.RootSize},
		{"node_count", uint32(a.NodeCount)},
		{"dir_count", uint32(a.DirCount)},
		{"small_dir_threshold", a.SmallDirThreshold},
		{"bounded_sum", a.BoundedSum},
		{"deletion_threshold", a.DeletionThreshold},
		{"candidate_found", boolByte(a.CandidateFound)},
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f.value); err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
	}

	return writeDirSize(buf, &a.Candidate)
}

// EncodeDirSizes lays out a listing as a uint32 count followed by entries of
//
//	ino int64 | size uint64 | path_len uint32 | path bytes
func EncodeDirSizes(dirs []models.DirSize) ([]byte, error) {
	buf := new(bytes.Buffer)

	if uint64(len(dirs)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many directories: %d", len(dirs))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(dirs))); err != nil {
		return nil, fmt.Errorf("failed to encode count: %w", err)
	}

	for i := range dirs {
		if err := writeDirSize(buf, &dirs[i]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeDirSize(buf *bytes.Buffer, d *models.DirSize) error {
	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, d.Ino); err != nil {
		return fmt.Errorf("failed to encode ino: %w", err)
	}

	// size (uint64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, d.Size); err != nil {
		return fmt.Errorf("failed to encode size: %w", err)
	}

	// path (uint32 length + bytes)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(d.Path))); err != nil {
		return fmt.Errorf("failed to encode path length: %w", err)
	}
	if _, err := buf.WriteString(d.Path); err != nil {
		return fmt.Errorf("failed to encode path: %w", err)
	}

	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	// Код возврата (int64, 8 bytes)
	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}

	// Данные (если есть)
	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}
