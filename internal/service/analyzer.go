package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/S1riyS/dirsize/internal/metrics"
	"github.com/S1riyS/dirsize/internal/models"
	"github.com/S1riyS/dirsize/internal/pkg/kerrors"
	"github.com/S1riyS/dirsize/internal/repository"
	"github.com/S1riyS/dirsize/internal/transcript"
	"github.com/S1riyS/dirsize/internal/tree"
	"github.com/S1riyS/dirsize/pkg/logging"
	"github.com/S1riyS/dirsize/pkg/logging/slogext"
	"github.com/google/uuid"
)

// AnalyzeParams are the caller-supplied query thresholds. When DiskCapacity
// is non-zero the deletion threshold is derived from the space still missing
// to reach RequiredFree, and DeletionThreshold is ignored.
type AnalyzeParams struct {
	SmallDirThreshold uint64
	DeletionThreshold uint64
	DiskCapacity      uint64
	RequiredFree      uint64
}

type AnalyzerService interface {
	Analyze(ctx context.Context, r io.Reader, params AnalyzeParams) (*models.Report, error)
	Directories(ctx context.Context, r io.Reader) ([]models.DirSize, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

type analyzerService struct {
	reports       repository.ReportRepository
	parallelDepth int
}

// NewAnalyzerService creates the service. reports may be nil, in which case
// analyses are not persisted.
func NewAnalyzerService(reports repository.ReportRepository, parallelDepth int) AnalyzerService {
	return &analyzerService{
		reports:       reports,
		parallelDepth: parallelDepth,
	}
}

func (s *analyzerService) Analyze(ctx context.Context, r io.Reader, params AnalyzeParams) (*models.Report, error) {
	const op = "service.analyzerService.Analyze"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	start := time.Now()

	t, rootSize, err := s.buildSized(ctx, logger, r)
	if err != nil {
		metrics.ObserveAnalysis(errorKind(err), time.Since(start))
		return nil, s.wrapError(logger, op, err)
	}

	analysis := models.Analysis{
		RootSize:          rootSize,
		NodeCount:         t.Len(),
		SmallDirThreshold: params.SmallDirThreshold,
		DeletionThreshold: params.DeletionThreshold,
	}
	if params.DiskCapacity > 0 {
		analysis.DeletionThreshold = tree.DeletionThreshold(rootSize, params.DiskCapacity, params.RequiredFree)
	}

	dirs, err := tree.Directories(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	analysis.DirCount = len(dirs)

	analysis.BoundedSum, err = tree.BoundedSum(t, analysis.SmallDirThreshold)
	if err != nil {
		metrics.ObserveAnalysis(errorKind(err), time.Since(start))
		return nil, s.wrapError(logger, op, err)
	}

	candidate, err := tree.MinimalDeletion(t, analysis.DeletionThreshold)
	switch {
	case err == nil:
		analysis.CandidateFound = true
		analysis.Candidate = candidate
	case errors.Is(err, tree.ErrNoCandidate):
		logger.Debug("No deletion candidate", slog.Uint64("threshold", analysis.DeletionThreshold))
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &models.Report{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Analysis:  analysis,
	}
	if s.reports != nil {
		if err := s.reports.Create(ctx, report); err != nil {
			// the analysis itself is still valid
			logger.Warn("Failed to store report", slogext.Err(err), slog.String("id", report.ID.String()))
		} else {
			report.Stored = true
		}
	}

	metrics.ObserveAnalysis("ok", time.Since(start))
	metrics.ObserveTree(analysis.NodeCount, rootSize)

	logger.Debug("Analysis finished",
		slog.String("id", report.ID.String()),
		slog.Uint64("root_size", rootSize),
		slog.Int("nodes", analysis.NodeCount),
		slog.Uint64("bounded_sum", analysis.BoundedSum),
		slog.Bool("candidate_found", analysis.CandidateFound),
		slog.Duration("took", time.Since(start)),
	)

	return report, nil
}

func (s *analyzerService) Directories(ctx context.Context, r io.Reader) ([]models.DirSize, error) {
	const op = "service.analyzerService.Directories"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	t, _, err := s.buildSized(ctx, logger, r)
	if err != nil {
		return nil, s.wrapError(logger, op, err)
	}

	dirs, err := tree.Directories(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Directories listed", slog.Int("count", len(dirs)))
	return dirs, nil
}

func (s *analyzerService) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	const op = "service.analyzerService.GetReport"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("GetReport", slog.String("id", id.String()))

	if s.reports == nil {
		return nil, &ServiceError{Code: kerrors.EINVAL, Message: "report store is disabled"}
	}

	report, err := s.reports.Get(ctx, id)
	if err != nil {
		logger.Error("Failed to get report", slogext.Err(err), slog.String("id", id.String()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if report == nil {
		logger.Debug("Report not found", slog.String("id", id.String()))
		return nil, &ServiceError{Code: kerrors.ENOENT, Message: "report not found"}
	}

	report.Stored = true
	return report, nil
}

// buildSized runs lexing, building and aggregation.
func (s *analyzerService) buildSized(ctx context.Context, logger *slog.Logger, r io.Reader) (*tree.Tree, uint64, error) {
	lines, err := transcript.Lex(r)
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("Transcript lexed", slog.Int("lines", len(lines)))

	t, err := tree.Build(lines)
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("Tree built", slog.Int("nodes", t.Len()))

	if s.parallelDepth > 0 {
		rootSize, err := tree.AggregateConcurrent(ctx, t, s.parallelDepth)
		if err != nil {
			return nil, 0, err
		}
		return t, rootSize, nil
	}

	rootSize, err := tree.Aggregate(t)
	if err != nil {
		return nil, 0, err
	}
	return t, rootSize, nil
}

// wrapError turns transcript failures into ServiceError and wraps the rest.
func (s *analyzerService) wrapError(logger *slog.Logger, op string, err error) error {
	code, ok := errorCode(err)
	if !ok {
		logger.Error("Analysis failed", slogext.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	svcErr := &ServiceError{Code: code, Message: err.Error(), Err: err}
	var lineErr *transcript.LineError
	if errors.As(err, &lineErr) {
		svcErr.Line = lineErr.Line
	}

	logger.Warn("Transcript rejected", slogext.Err(err), slog.Int64("code", code), slog.Int("line", svcErr.Line))
	return svcErr
}

func errorCode(err error) (int64, bool) {
	switch {
	case errors.Is(err, transcript.ErrMalformedLine):
		return kerrors.EINVAL, true
	case errors.Is(err, tree.ErrDuplicateChild):
		return kerrors.EEXIST, true
	case errors.Is(err, tree.ErrNavigateAboveRoot):
		return kerrors.EPERM, true
	case errors.Is(err, tree.ErrDirectoryNotFound):
		return kerrors.ENOENT, true
	case errors.Is(err, tree.ErrNotADirectory):
		return kerrors.ENOTDIR, true
	case errors.Is(err, tree.ErrSizeOverflow):
		return kerrors.EFBIG, true
	default:
		return 0, false
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, transcript.ErrMalformedLine):
		return "malformed_line"
	case errors.Is(err, tree.ErrDuplicateChild):
		return "duplicate_child"
	case errors.Is(err, tree.ErrNavigateAboveRoot):
		return "navigate_above_root"
	case errors.Is(err, tree.ErrDirectoryNotFound):
		return "directory_not_found"
	case errors.Is(err, tree.ErrNotADirectory):
		return "not_a_directory"
	case errors.Is(err, tree.ErrSizeOverflow):
		return "size_overflow"
	default:
		return "internal"
	}
}

type ServiceError struct {
	Code    int64
	Message string
	// Line is the 1-based transcript line that triggered the error, 0 if none.
	Line int
	Err  error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) GetCode() int64 {
	return e.Code
}
