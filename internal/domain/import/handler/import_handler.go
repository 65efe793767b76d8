package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gorilla/mux"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/middleware"
)

const (
	defaultMaxUploadBytes = 20 << 20
	multipartMemory       = 8 << 20
)

var errMissingFile = errors.New("multipart field \"file\" is required")

// ImportHandler serves the import HTTP endpoints
type ImportHandler struct {
	importSvc      *importservice.ImportService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:      importSvc,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes caps the request body size
func (h *ImportHandler) WithMaxUploadBytes(n int64) *ImportHandler {
	if n > 0 {
		h.maxUploadBytes = n
	}
	return h
}

// RegisterRoutes mounts the import endpoints on r
func (h *ImportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/imports", h.Ingest).Methods(http.MethodPost)
	r.HandleFunc("/v1/imports/analyze", h.Analyze).Methods(http.MethodPost)
	r.HandleFunc("/v1/transactions/{hash}/cost-center", h.UpdateCostCenter).Methods(http.MethodPatch)
}

// Ingest accepts a multipart upload with a "file" field and optional
// "template" and "kind" fields. With Accept: text/csv the rejected rows are
// returned as CSV and the counts move to X-Import-* headers.
func (h *ImportHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	result, err := h.importSvc.Ingest(r.Context(), *up)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if wantsCSV(r) {
		h.writeRejectionsCSV(w, result)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Analyze reports the detected layout of an uploaded file without importing it
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	analysis, err := h.importSvc.Analyze(r.Context(), up.Data, up.Kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analysis)
}

type costCenterRequest struct {
	CostCenter *string `json:"cost_center"`
}

// UpdateCostCenter sets or clears the cost center of a stored transaction
func (h *ImportHandler) UpdateCostCenter(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	var req costCenterRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.CostCenter == nil {
		middleware.WriteError(w, http.StatusBadRequest, "body must be {\"cost_center\": string}")
		return
	}

	tx, err := h.importSvc.UpdateCostCenter(r.Context(), hash, *req.CostCenter)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (*importservice.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingFile
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	kind := parser.FileKind(strings.TrimSpace(r.FormValue("kind")))
	if kind == "" {
		kind = kindFromName(header.Filename)
	}

	return &importservice.Upload{
		Data:         data,
		FileName:     header.Filename,
		TemplateName: strings.TrimSpace(r.FormValue("template")),
		Kind:         kind,
	}, nil
}

func (h *ImportHandler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, errMissingFile):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Warn("failed to read upload", slog.Any("error", err))
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart upload")
	}
}

func (h *ImportHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, importservice.ErrBatchUnparseable):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, importservice.ErrUnknownTemplate):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, importservice.ErrInvalidTemplate):
		h.logger.Error("stored mapping template is invalid", slog.Any("error", err))
		middleware.WriteError(w, http.StatusUnprocessableEntity, "mapping template is invalid")
	case errors.Is(err, importservice.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "5")
		middleware.WriteError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		h.logger.Error("import request failed", slog.Any("error", err))
		middleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *ImportHandler) writeRejectionsCSV(w http.ResponseWriter, result *importservice.IngestionResult) {
	body, err := gocsv.MarshalBytes(&result.RejectedRows)
	if err != nil {
		h.logger.Error("failed to render rejected rows", slog.Any("error", err))
		middleware.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Import-ID", result.ImportID.String())
	w.Header().Set("X-Import-Total-Parsed", strconv.Itoa(result.TotalParsed))
	w.Header().Set("X-Import-New", strconv.Itoa(result.NewCount))
	w.Header().Set("X-Import-Duplicates", strconv.Itoa(result.DuplicateCount))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func wantsCSV(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func kindFromName(name string) parser.FileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return parser.FileKindSpreadsheet
	case ".csv", ".tsv", ".txt":
		return parser.FileKindDelimited
	default:
		// let the template decide
		return ""
	}
}
