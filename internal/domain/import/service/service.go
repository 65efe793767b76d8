// Package service provides the import orchestration logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/identity"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/mapping"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/statement-ingest/import"

// rows above this count are normalized by a worker pool
const parallelNormalizeThreshold = 256

// Upload is one file submitted for ingestion.
type Upload struct {
	Data         []byte
	FileName     string
	TemplateName string // empty selects by header fingerprint, then the default template
	Kind         parser.FileKind
}

// RowRejection is a row excluded from the batch and why.
type RowRejection struct {
	Row    int    `json:"row" csv:"row"`
	Reason string `json:"reason" csv:"reason"`
}

// IngestionResult summarizes one successful ingestion.
// NewCount + DuplicateCount + len(RejectedRows) == TotalParsed.
type IngestionResult struct {
	ImportID       uuid.UUID      `json:"import_id"`
	Template       string         `json:"template"`
	TotalParsed    int            `json:"total_parsed"`
	NewCount       int            `json:"new_count"`
	DuplicateCount int            `json:"duplicate_count"`
	RejectedRows   []RowRejection `json:"rejected_rows"`
}

// ImportService runs uploads through parse, map, normalize, hash, filter and persist.
// It keeps no state between calls; the store is the only source of truth.
type ImportService struct {
	store      repository.TransactionStore
	templates  mapping.Store
	normalizer *normalizer.Normalizer
	archive    storage.Storage // optional
	metrics    *Metrics        // optional
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// NewImportService creates a new import service. A nil template store falls
// back to the default template only.
func NewImportService(store repository.TransactionStore, templates mapping.Store, logger *slog.Logger) *ImportService {
	if templates == nil {
		templates, _ = mapping.NewMemoryStore()
	}
	return &ImportService{
		store:      store,
		templates:  templates,
		normalizer: normalizer.New("", ""),
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}
}

// WithNormalizer replaces the default normalizer (account label and currency)
func (s *ImportService) WithNormalizer(n *normalizer.Normalizer) *ImportService {
	s.normalizer = n
	return s
}

// WithArchive stores every upload before it is parsed
func (s *ImportService) WithArchive(archive storage.Storage) *ImportService {
	s.archive = archive
	return s
}

// WithMetrics enables prometheus counters
func (s *ImportService) WithMetrics(m *Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithTracer overrides the global otel tracer
func (s *ImportService) WithTracer(t trace.Tracer) *ImportService {
	s.tracer = t
	return s
}

// Ingest runs one upload through the pipeline. Row problems are reported in
// the result; an unparseable file or a store failure returns an *IngestError
// and no result.
func (s *ImportService) Ingest(ctx context.Context, up Upload) (*IngestionResult, error) {
	importID := uuid.New()
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "import.Ingest", trace.WithAttributes(
		attribute.String("import.id", importID.String()),
		attribute.String("import.template", up.TemplateName),
		attribute.Int("import.bytes", len(up.Data)),
	))
	defer span.End()

	log := s.logger.With(slog.String("import_id", importID.String()))
	enter := func(stage Stage) {
		span.AddEvent(string(stage))
	}
	fail := func(stage Stage, class, cause error) (*IngestionResult, error) {
		ierr := &IngestError{Stage: stage, Err: fmt.Errorf("%w: %w", class, cause)}
		span.AddEvent(string(StageFailed))
		span.RecordError(ierr)
		span.SetStatus(codes.Error, ierr.Error())
		s.metrics.failed(stage, s.now().Sub(start))
		log.Error("import failed", slog.String("stage", string(stage)), slog.Any("error", ierr))
		return nil, ierr
	}

	var tmpl *mapping.Template
	if name := strings.TrimSpace(up.TemplateName); name != "" {
		t, err := s.templates.GetTemplate(ctx, name)
		if err != nil {
			return fail(StageMapping, templateErrorClass(err), err)
		}
		tmpl = t
	}

	kind := up.Kind
	if kind == "" && tmpl != nil {
		kind = tmpl.FileKind
	}

	s.archiveUpload(ctx, importID, up, kind)

	enter(StageParsing)
	batch, err := parser.Parse(kind, up.Data)
	if err != nil {
		return fail(StageParsing, ErrBatchUnparseable, err)
	}

	enter(StageMapping)
	if tmpl == nil {
		tmpl, err = s.detectTemplate(ctx, batch.Fingerprint)
		if err != nil {
			return fail(StageMapping, templateErrorClass(err), err)
		}
	}
	span.SetAttributes(attribute.String("import.template", tmpl.Name))

	var rejected []*parser.RowError
	mapped := make([]*mapping.Mapped, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		m, rowErr := mapping.Apply(row, tmpl)
		if rowErr != nil {
			rejected = append(rejected, rowErr)
			continue
		}
		mapped = append(mapped, m)
	}

	enter(StageNormalizing)
	txs, normRejected := s.normalizeAll(mapped, tmpl)
	rejected = append(rejected, normRejected...)

	enter(StageHashing)
	createdAt := s.now().UTC()
	for _, tx := range txs {
		tx.ID = uuid.New()
		tx.ImportID = importID
		tx.IdentityHash = identity.Of(tx)
		tx.CreatedAt = createdAt
	}

	enter(StageFiltering)
	filtered, err := dedup.Filter(ctx, s.store, txs)
	if err != nil {
		return fail(StageFiltering, ErrStorageUnavailable, err)
	}

	enter(StagePersisting)
	if len(filtered.New) > 0 {
		if err := s.store.InsertMany(ctx, filtered.New); err != nil {
			return fail(StagePersisting, ErrStorageUnavailable, fmt.Errorf("failed to insert transactions: %w", err))
		}
	}

	enter(StageDone)
	result := &IngestionResult{
		ImportID:       importID,
		Template:       tmpl.Name,
		TotalParsed:    len(batch.Rows),
		NewCount:       len(filtered.New),
		DuplicateCount: len(filtered.Duplicates),
		RejectedRows:   toRejections(rejected),
	}

	span.SetAttributes(
		attribute.Int("import.total_parsed", result.TotalParsed),
		attribute.Int("import.new", result.NewCount),
		attribute.Int("import.duplicates", result.DuplicateCount),
		attribute.Int("import.rejected", len(result.RejectedRows)),
	)
	s.metrics.succeeded(result, s.now().Sub(start))
	log.Info("import completed",
		slog.String("template", result.Template),
		slog.Int("total_parsed", result.TotalParsed),
		slog.Int("new", result.NewCount),
		slog.Int("duplicates", result.DuplicateCount),
		slog.Int("rejected", len(result.RejectedRows)))

	return result, nil
}

// UpdateCostCenter assigns a cost center to a stored transaction; the store
// re-derives its status.
func (s *ImportService) UpdateCostCenter(ctx context.Context, identityHash, costCenter string) (*repository.Transaction, error) {
	tx, err := s.store.UpdateCostCenter(ctx, strings.TrimSpace(identityHash), strings.TrimSpace(costCenter))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to update cost center: %w", ErrStorageUnavailable, err)
	}
	return tx, nil
}

// detectTemplate picks the template registered for the header fingerprint,
// or the default template.
func (s *ImportService) detectTemplate(ctx context.Context, fingerprint string) (*mapping.Template, error) {
	t, err := s.templates.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to look up template by fingerprint: %w", err)
	}
	if t != nil {
		return t, nil
	}
	t, err = s.templates.GetTemplate(ctx, mapping.DefaultTemplateName)
	if errors.Is(err, mapping.ErrTemplateNotFound) {
		return mapping.DefaultTemplate(), nil
	}
	return t, err
}

func templateErrorClass(err error) error {
	switch {
	case errors.Is(err, mapping.ErrTemplateNotFound):
		return ErrUnknownTemplate
	case errors.Is(err, mapping.ErrInvalidTemplate):
		return ErrInvalidTemplate
	default:
		return ErrStorageUnavailable
	}
}

// normalizeAll keeps input order. Large batches fan out over GOMAXPROCS workers;
// the normalizer and template are read-only.
func (s *ImportService) normalizeAll(mapped []*mapping.Mapped, tmpl *mapping.Template) ([]*repository.Transaction, []*parser.RowError) {
	txs := make([]*repository.Transaction, len(mapped))
	errs := make([]*parser.RowError, len(mapped))

	if len(mapped) <= parallelNormalizeThreshold {
		for i, m := range mapped {
			txs[i], errs[i] = s.normalizer.Normalize(m, tmpl)
		}
	} else {
		workerCount := runtime.GOMAXPROCS(0)
		if workerCount < 1 {
			workerCount = 1
		}
		jobs := make(chan int, workerCount*4)

		var wg sync.WaitGroup
		for w := 0; w < workerCount; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					txs[i], errs[i] = s.normalizer.Normalize(mapped[i], tmpl)
				}
			}()
		}
		for i := range mapped {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	out := make([]*repository.Transaction, 0, len(mapped))
	var rejected []*parser.RowError
	for i := range mapped {
		if errs[i] != nil {
			rejected = append(rejected, errs[i])
			continue
		}
		out = append(out, txs[i])
	}
	return out, rejected
}

func (s *ImportService) archiveUpload(ctx context.Context, importID uuid.UUID, up Upload, kind parser.FileKind) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Upload(ctx, importID, up.FileName, contentType(kind), bytes.NewReader(up.Data)); err != nil {
		s.logger.Warn("failed to archive upload",
			slog.String("import_id", importID.String()),
			slog.Any("error", err))
	}
}

func contentType(kind parser.FileKind) string {
	if kind == parser.FileKindSpreadsheet {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// toRejections orders rejections by source row.
func toRejections(errs []*parser.RowError) []RowRejection {
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Row < errs[j].Row
	})
	out := make([]RowRejection, 0, len(errs))
	for _, e := range errs {
		out = append(out, RowRejection{Row: e.Row, Reason: e.String()})
	}
	return out
}
