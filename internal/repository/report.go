package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/dirsize/internal/models"
	"github.com/S1riyS/dirsize/pkg/database/postgresql"
	"github.com/S1riyS/dirsize/pkg/logging"
	"github.com/S1riyS/dirsize/pkg/logging/slogext"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReportRepository stores analysis summaries. The tree itself is never stored.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

type reportRepository struct {
	db postgresql.Client
}

func NewReportRepository(db postgresql.Client) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	const op = "repository.reportRepository.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	reportQuery := `
		INSERT INTO reports (id, root_size, node_count, dir_count, small_dir_threshold, bounded_sum, deletion_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	candidateQuery := `
		INSERT INTO deletion_candidates (report_id, ino, path, size)
		VALUES ($1, $2, $3, $4)
	`

	a := report.Analysis
	err := postgresql.WithTransaction(ctx, r.db, func(txCtx context.Context) error {
		db := postgresql.GetDBClient(txCtx, r.db)

		err := db.QueryRow(txCtx, reportQuery,
			report.ID,
			int64(a.RootSize),
			a.NodeCount,
			a.DirCount,
			int64(a.SmallDirThreshold),
			int64(a.BoundedSum),
			int64(a.DeletionThreshold),
		).Scan(&report.CreatedAt)
		if err != nil {
			return err
		}

		if !a.CandidateFound {
			return nil
		}
		_, err = db.Exec(txCtx, candidateQuery,
			report.ID,
			a.Candidate.Ino,
			a.Candidate.Path,
			int64(a.Candidate.Size),
		)
		return err
	})
	if err != nil {
		logger.Error("Failed to create report", slogext.Err(err), "id", report.ID.String())
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *reportRepository) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	const op = "repository.reportRepository.Get"

	query := `
		SELECT r.id, r.created_at, r.root_size, r.node_count, r.dir_count,
		       r.small_dir_threshold, r.bounded_sum, r.deletion_threshold,
		       c.ino, c.path, c.size
		FROM reports r
		LEFT JOIN deletion_candidates c ON c.report_id = r.id
		WHERE r.id = $1
	`

	var report models.Report
	var rootSize, smallThreshold, boundedSum, delThreshold int64
	var candIno, candSize *int64
	var candPath *string
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.CreatedAt,
		&rootSize,
		&report.Analysis.NodeCount,
		&report.Analysis.DirCount,
		&smallThreshold,
		&boundedSum,
		&delThreshold,
		&candIno,
		&candPath,
		&candSize,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report.Analysis.RootSize = uint64(rootSize)
	report.Analysis.SmallDirThreshold = uint64(smallThreshold)
	report.Analysis.BoundedSum = uint64(boundedSum)
	report.Analysis.DeletionThreshold = uint64(delThreshold)
	if candIno != nil && candPath != nil && candSize != nil {
		report.Analysis.CandidateFound = true
		report.Analysis.Candidate = models.DirSize{
			Ino:  *candIno,
			Path: *candPath,
			Size: uint64(*candSize),
		}
	}

	return &report, nil
}
