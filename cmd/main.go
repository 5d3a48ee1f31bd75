package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/S1riyS/dirsize/internal/config"
	"github.com/S1riyS/dirsize/internal/handler"
	"github.com/S1riyS/dirsize/internal/middleware"
	"github.com/S1riyS/dirsize/internal/models"
	"github.com/S1riyS/dirsize/internal/repository"
	"github.com/S1riyS/dirsize/internal/service"
	"github.com/S1riyS/dirsize/pkg/database/postgresql"
	"github.com/S1riyS/dirsize/pkg/logging"
	"github.com/S1riyS/dirsize/pkg/logging/slogext"
	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dirsize [options]\n\n")
		fmt.Fprintf(os.Stderr, "dirsize rebuilds a directory tree from a cd/ls transcript and reports directory sizes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dirsize -i input.txt           # analyze a transcript file\n")
		fmt.Fprintf(os.Stderr, "  cat input.txt | dirsize -t     # read stdin, print every directory size\n")
		fmt.Fprintf(os.Stderr, "  dirsize --serve                # start the HTTP API\n")
	}

	configFlag := pflag.StringP("config", "c", defaultConfigPath, "Path to the YAML config (empty: environment only)")
	inputFlag := pflag.StringP("input", "i", "-", "Transcript file ('-' for stdin)")
	smallFlag := pflag.Uint64("small", 0, "Size threshold for the bounded-sum query")
	deleteFlag := pflag.Uint64("delete", 0, "Size threshold for the minimal-deletion query (disables --capacity)")
	capacityFlag := pflag.Uint64("capacity", 0, "Disk capacity used to derive the deletion threshold")
	requiredFlag := pflag.Uint64("required", 0, "Free space required on the disk")
	treeFlag := pflag.BoolP("tree", "t", false, "Print every directory with its size")
	serveFlag := pflag.BoolP("serve", "s", false, "Start the HTTP API instead of analyzing a file")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("dirsize version %s\n", version)
		return
	}

	cfg := config.MustLoad(resolveConfigPath(*configFlag))

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx := logging.MakeContextWithLogger(context.Background(), logger)

	params := service.AnalyzeParams{
		SmallDirThreshold: cfg.Analysis.SmallDirThreshold,
		DeletionThreshold: cfg.Analysis.DeletionThreshold,
		DiskCapacity:      cfg.Analysis.DiskCapacity,
		RequiredFree:      cfg.Analysis.RequiredFree,
	}
	if pflag.Lookup("small").Changed {
		params.SmallDirThreshold = *smallFlag
	}
	if pflag.Lookup("delete").Changed {
		params.DeletionThreshold = *deleteFlag
		params.DiskCapacity = 0
	}
	if pflag.Lookup("capacity").Changed {
		params.DiskCapacity = *capacityFlag
	}
	if pflag.Lookup("required").Changed {
		params.RequiredFree = *requiredFlag
	}

	var reports repository.ReportRepository
	if cfg.Database.Enabled {
		db, err := postgresql.NewClient(ctx, cfg.Database)
		if err != nil {
			fail(err)
		}
		defer db.Close()
		reports = repository.NewReportRepository(db)
	}

	svc := service.NewAnalyzerService(reports, cfg.Analysis.ParallelDepth)

	if *serveFlag {
		if err := serve(ctx, cfg, svc, params); err != nil {
			logger.Error("Server stopped", slogext.Err(err))
			os.Exit(1)
		}
		return
	}

	if err := analyze(ctx, svc, *inputFlag, params, *treeFlag); err != nil {
		fail(err)
	}
}

// resolveConfigPath falls back to the environment (empty path) when the
// default config file is absent. An explicit path is kept as is.
func resolveConfigPath(path string) string {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return ""
		}
	}
	return path
}

func analyze(ctx context.Context, svc service.AnalyzerService, input string, params service.AnalyzeParams, printTree bool) error {
	var r io.Reader
	if input == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open transcript %q: %w", input, err)
		}
		defer f.Close()
		r = f
	}

	if printTree {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		dirs, err := svc.Directories(ctx, bytes.NewReader(data))
		if err != nil {
			return err
		}
		printDirs(dirs)
		r = bytes.NewReader(data)
	}

	report, err := svc.Analyze(ctx, r, params)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printDirs(dirs []models.DirSize) {
	for _, d := range dirs {
		fmt.Printf("%12d  %s\n", d.Size, color.BlueString(d.Path))
	}
	fmt.Println()
}

func printReport(report *models.Report) {
	a := report.Analysis
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("%s %d (%d nodes, %d directories)\n", bold("root size:"), a.RootSize, a.NodeCount, a.DirCount)
	fmt.Printf("%s %d\n", bold(fmt.Sprintf("sum of directories <= %d:", a.SmallDirThreshold)), a.BoundedSum)

	label := bold(fmt.Sprintf("smallest directory >= %d:", a.DeletionThreshold))
	if a.CandidateFound {
		fmt.Printf("%s %s %d\n", label, color.GreenString(a.Candidate.Path), a.Candidate.Size)
	} else {
		fmt.Printf("%s %s\n", label, color.YellowString("none"))
	}

	if report.Stored {
		fmt.Printf("%s %s\n", bold("report:"), report.ID)
	}
}

func serve(ctx context.Context, cfg *config.Config, svc service.AnalyzerService, params service.AnalyzeParams) error {
	const op = "main.serve"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	baseCtx := ctx

	h := handler.NewHandler(svc, params, cfg.App.MaxBodyBytes)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      middleware.RequestIDMiddleware(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  cfg.App.DefaultTimeout,
		WriteTimeout: cfg.App.DefaultTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return baseCtx
		},
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func fail(err error) {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		fmt.Fprintf(os.Stderr, "%s %v (code %d)\n", color.RedString("error:"), svcErr, svcErr.Code)
	} else {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	}
	os.Exit(1)
}
