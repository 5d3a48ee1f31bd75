package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/S1riyS/dirsize/internal/pkg/kerrors"
	"github.com/S1riyS/dirsize/internal/service"
	"github.com/S1riyS/dirsize/pkg/binary"
	"github.com/S1riyS/dirsize/pkg/logging"
	"github.com/S1riyS/dirsize/pkg/logging/slogext"
	"github.com/google/uuid"
)

// ErrorLineHeader carries the transcript line that caused a rejection.
const ErrorLineHeader = "X-Error-Line"

type Handler struct {
	service      service.AnalyzerService
	defaults     service.AnalyzeParams
	maxBodyBytes int64
}

func NewHandler(service service.AnalyzerService, defaults service.AnalyzeParams, maxBodyBytes int64) *Handler {
	return &Handler{
		service:      service,
		defaults:     defaults,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleAnalyze reads a transcript from the request body and answers both
// size queries. Query parameters small, delete, capacity and required
// override the configured thresholds; an explicit delete disables the
// capacity-derived threshold unless capacity is given as well.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleAnalyze"

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := h.parseParams(r)
	if err != nil {
		logger := logging.GetLoggerFromContextWithOp(ctx, op)
		logger.Debug("Invalid threshold", slogext.Err(err))
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	report, err := h.service.Analyze(ctx, h.body(w, r), params)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := binary.EncodeReport(report)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleDirs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dirs, err := h.service.Directories(ctx, h.body(w, r))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := binary.EncodeDirSizes(dirs)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleReport"

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		logger := logging.GetLoggerFromContextWithOp(ctx, op)
		logger.Debug("Invalid report id", slogext.Err(err))
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	report, err := h.service.GetReport(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := binary.EncodeReport(report)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := `{"status":"ok","service":"dirsize"}`
	w.Write([]byte(response))
}

func (h *Handler) body(w http.ResponseWriter, r *http.Request) io.Reader {
	if h.maxBodyBytes <= 0 {
		return r.Body
	}
	return http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
}

func (h *Handler) parseParams(r *http.Request) (service.AnalyzeParams, error) {
	params := h.defaults
	q := r.URL.Query()

	overrides := []struct {
		key string
		set func(uint64)
	}{
		{"small", func(v uint64) { params.SmallDirThreshold = v }},
		{"delete", func(v uint64) {
			params.DeletionThreshold = v
			params.DiskCapacity = 0
		}},
		{"capacity", func(v uint64) { params.DiskCapacity = v }},
		{"required", func(v uint64) { params.RequiredFree = v }},
	}
	for _, o := range overrides {
		raw := q.Get(o.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return service.AnalyzeParams{}, err
		}
		o.set(v)
	}

	return params, nil
}

func writeError(w http.ResponseWriter, err error) {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) && svcErr.Line > 0 {
		w.Header().Set(ErrorLineHeader, strconv.Itoa(svcErr.Line))
	}
	binary.WriteResponse(w, mapErrorToCode(err), nil)
}

func mapErrorToCode(err error) int64 {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		return kerrors.Neg(svcErr.Code)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return kerrors.Neg(kerrors.EFBIG)
	}

	// По умолчанию возвращаем ENOMEM
	return kerrors.ENOMEM_NEG
}
