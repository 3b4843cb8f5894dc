// Package poller drives the ingest loop: list the day's filings, fetch
// and normalize each document, store it, and enqueue a task for the
// downstream workers. One orchestrator goroutine owns all ingestion state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dartwatch/disclosure-ingest/internal/dart"
	"github.com/dartwatch/disclosure-ingest/internal/faillog"
	"github.com/dartwatch/disclosure-ingest/internal/logging"
	"github.com/dartwatch/disclosure-ingest/internal/metrics"
	"github.com/dartwatch/disclosure-ingest/internal/normalize"
	"github.com/dartwatch/disclosure-ingest/internal/objectstore"
	"github.com/dartwatch/disclosure-ingest/internal/queue"
	"github.com/dartwatch/disclosure-ingest/internal/state"
)

// Status-driven wait durations.
const (
	rateLimitWait   = time.Hour
	maintenanceWait = 5 * time.Minute
)

// minPayloadBytes is the floor below which a normalized document is judged
// too small to be meaningful and skipped.
const minPayloadBytes = 200

// kst pins "today" to the regulator's timezone regardless of where the
// service runs.
var kst = time.FixedZone("KST", 9*60*60)

// FilingSource is the subset of the provider client the orchestrator needs.
type FilingSource interface {
	FetchFilingsPage(ctx context.Context, date string, pageNo, pageCount int) (*dart.ListResponse, error)
	FetchDocument(ctx context.Context, receiptNo string) ([]byte, error)
}

// StatusSink receives progress updates for the health endpoint. The
// orchestrator only pushes; it never reads back.
type StatusSink interface {
	RecordCycle()
	RecordOutcomes(processed, skipped, failed int)
}

// Config parameterizes the polling loop.
type Config struct {
	// TargetDate fixes the polled date (YYYYMMDD). Empty means "today"
	// in the provider's timezone, re-resolved every cycle.
	TargetDate string
	Interval   time.Duration
	MaxFail    int
	PageCount  int
}

// Orchestrator runs the fetch -> normalize -> store -> enqueue pipeline.
type Orchestrator struct {
	cfg        Config
	source     FilingSource
	store      objectstore.Provider
	tasks      queue.Provider
	state      *state.State
	normalizer *normalize.Normalizer
	recorder   *faillog.Recorder
	status     StatusSink
	logger     *zap.Logger

	now func() time.Time
}

// New wires an Orchestrator. status may be nil when no health server runs.
func New(
	cfg Config,
	source FilingSource,
	store objectstore.Provider,
	tasks queue.Provider,
	st *state.State,
	recorder *faillog.Recorder,
	status StatusSink,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageCount <= 0 {
		cfg.PageCount = 100
	}
	if cfg.MaxFail <= 0 {
		cfg.MaxFail = 3
	}
	return &Orchestrator{
		cfg:        cfg,
		source:     source,
		store:      store,
		tasks:      tasks,
		state:      st,
		normalizer: normalize.New(logger),
		recorder:   recorder,
		status:     status,
		logger:     logger,
		now:        time.Now,
	}
}

// Run polls until the context is cancelled. Shutdown is cooperative: the
// loop drains the item in flight, logs final stats, and returns.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("polling started",
		zap.Duration("interval", o.cfg.Interval),
		zap.String("target_date", o.cfg.TargetDate),
	)

	for {
		o.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}
		metrics.ObservePollCycle()
		if o.status != nil {
			o.status.RecordCycle()
		}
		if err := sleepCtx(ctx, o.cfg.Interval); err != nil {
			break
		}
	}

	stats := o.state.Stats()
	o.logger.Info("polling stopped",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failing", stats.Failing),
		zap.Int("permanently_failed", stats.PermanentlyFailed),
		zap.Int("errors", stats.Errors),
	)
}

// cycleStats accumulates per-cycle outcomes for logging and health.
type cycleStats struct {
	stored     int
	duplicates int
	tooSmall   int
	failed     int
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	date := o.targetDate()

	filings := o.collectFilings(ctx, date)
	if ctx.Err() != nil {
		return
	}

	remaining := filings[:0]
	for _, f := range filings {
		if !o.state.IsProcessed(f.ReceiptNo) {
			remaining = append(remaining, f)
		}
	}

	var stats cycleStats
	for _, f := range remaining {
		if ctx.Err() != nil {
			break
		}
		if abort := o.processItem(ctx, date, f, &stats); abort {
			break
		}
	}

	o.logger.Info("cycle complete",
		zap.String("date", date),
		zap.Int("listed", len(filings)),
		zap.Int("stored", stats.stored),
		zap.Int("duplicates", stats.duplicates),
		zap.Int("too_small", stats.tooSmall),
		zap.Int("failed", stats.failed),
	)
	if o.status != nil {
		o.status.RecordOutcomes(stats.stored, stats.duplicates+stats.tooSmall, stats.failed)
	}
}

func (o *Orchestrator) targetDate() string {
	if o.cfg.TargetDate != "" {
		return o.cfg.TargetDate
	}
	return o.now().In(kst).Format("20060102")
}

// collectFilings pages through the list endpoint, accumulating records from
// successful pages. Status-driven waits and unclassified errors end the
// paging for this cycle; records gathered before the interruption still get
// processed.
func (o *Orchestrator) collectFilings(ctx context.Context, date string) []dart.Filing {
	var filings []dart.Filing
	totalPages := 1

	for page := 1; page <= totalPages; page++ {
		if ctx.Err() != nil {
			return filings
		}

		resp, err := o.source.FetchFilingsPage(ctx, date, page, o.cfg.PageCount)
		if err != nil {
			o.logger.Error("list page fetch failed, retrying next cycle",
				zap.String("date", date),
				zap.Int("page", page),
				zap.Error(err),
			)
			return filings
		}
		metrics.ObserveAPIStatus(resp.Status)

		switch resp.Status {
		case dart.StatusOK:
			// fall through to record collection
		case dart.StatusNoData:
			if page == 1 {
				o.logger.Info("no disclosures for date", zap.String("date", date))
			}
			return filings
		case dart.StatusRateLimited:
			o.logger.Warn("provider rate limit reached, backing off",
				zap.String("date", date),
				zap.Duration("wait", rateLimitWait),
			)
			metrics.ObserveWait("rate_limit", rateLimitWait)
			_ = sleepCtx(ctx, rateLimitWait)
			return filings
		case dart.StatusMaintenance:
			o.logger.Warn("provider under maintenance, backing off",
				zap.String("date", date),
				zap.Duration("wait", maintenanceWait),
			)
			metrics.ObserveWait("maintenance", maintenanceWait)
			_ = sleepCtx(ctx, maintenanceWait)
			return filings
		default:
			if dart.IsKeyStatus(resp.Status) {
				logging.Critical(o.logger, "provider rejected API key",
					zap.String("status", resp.Status),
					zap.String("message", resp.Message),
					zap.Bool("api_key", true),
				)
				metrics.ObserveWait("key_error", o.cfg.Interval)
				_ = sleepCtx(ctx, o.cfg.Interval)
				return filings
			}
			o.logger.Error("unclassified list status, aborting cycle",
				zap.String("status", resp.Status),
				zap.String("message", resp.Message),
			)
			return filings
		}

		if page == 1 {
			if resp.TotalPage > 0 {
				totalPages = resp.TotalPage
			}
			o.logger.Info("disclosures listed",
				zap.String("date", date),
				zap.Int("total", resp.TotalCount),
				zap.Int("pages", totalPages),
			)
		}
		if len(resp.List) == 0 && page > 1 {
			return filings
		}

		for _, item := range resp.List {
			f, err := dart.FilingFromMap(item)
			if err != nil {
				o.logger.Warn("malformed filing record skipped",
					zap.String("date", date),
					zap.Error(err),
				)
				continue
			}
			filings = append(filings, f)
		}
	}
	return filings
}

// processItem runs one filing through the pipeline. It returns true when
// the remaining batch should be abandoned (API key rejected mid-batch).
func (o *Orchestrator) processItem(ctx context.Context, date string, f dart.Filing, stats *cycleStats) bool {
	id := f.ReceiptNo

	// A list page can repeat a receipt within one cycle; re-check here so
	// an item that reached a terminal outcome earlier in the batch is not
	// run through the pipeline again.
	if o.state.IsProcessed(id) {
		return false
	}

	exists, err := o.store.Exists(ctx, f.ReceiptDate+"/"+id+"*")
	if err != nil {
		o.recordItemFailure(f, fmt.Errorf("existence check: %w", err), stats)
		return false
	}
	if exists {
		o.state.MarkSkipped(id)
		metrics.ObserveFiling(metrics.OutcomeDuplicate, 0)
		stats.duplicates++
		return false
	}

	raw, err := o.source.FetchDocument(ctx, id)
	if err != nil {
		var keyErr *dart.KeyError
		if errors.As(err, &keyErr) {
			logging.Critical(o.logger, "provider rejected API key during document fetch",
				zap.String("rcept_no", id),
				zap.String("status", keyErr.Status),
				zap.Bool("api_key", true),
			)
			return true
		}
		o.recordItemFailure(f, fmt.Errorf("document fetch: %w", err), stats)
		return false
	}

	payload := o.normalizer.Normalize(id, raw)
	if payload.Fallback {
		metrics.ObserveNormalizeFallback()
	}
	if len(payload.Body) < minPayloadBytes {
		o.logger.Warn("normalized document too small, skipping",
			zap.String("rcept_no", id),
			zap.Int("bytes", len(payload.Body)),
		)
		o.recorder.Record(id, fmt.Sprintf("too small: %d bytes", len(payload.Body)), filingDetails(f))
		o.state.MarkSkipped(id)
		metrics.ObserveFiling(metrics.OutcomeSkipped, 0)
		stats.tooSmall++
		return false
	}

	key := f.ReceiptDate + "/" + payload.Filename
	if err := o.store.Upload(ctx, key, payload.Body, payload.ContentType); err != nil {
		o.recordItemFailure(f, fmt.Errorf("upload %q: %w", key, err), stats)
		return false
	}
	o.state.MarkProcessed(id)

	msg := queue.TaskMessage{
		CorpCode:    f.CorpCode,
		CorpName:    f.CorpName,
		StockCode:   f.StockCode,
		CorpClass:   string(f.CorpClass),
		ReportName:  f.ReportName,
		ReceiptNo:   f.ReceiptNo,
		FilerName:   f.FilerName,
		ReceiptDate: f.ReceiptDate,
		Remark:      f.Remark,
		ObjectKey:   key,
		ContentType: payload.ContentType,
		FileSize:    len(payload.Body),
		PollingDate: date,
	}
	if err := o.tasks.Publish(ctx, msg); err != nil {
		// The object stays stored; the gap is recorded for out-of-band
		// reconciliation rather than rolled back.
		o.logger.Error("stored but not enqueued",
			zap.String("rcept_no", id),
			zap.String("object_key", key),
			zap.Error(err),
		)
		o.recorder.Record(id, fmt.Sprintf("stored but not enqueued: %v", err), filingDetails(f))
	}

	o.logger.Info("disclosure ingested",
		zap.String("rcept_no", id),
		zap.String("object_key", key),
		zap.String("content_type", payload.ContentType),
		zap.Int("bytes", len(payload.Body)),
	)
	metrics.ObserveFiling(metrics.OutcomeStored, len(payload.Body))
	stats.stored++
	return false
}

func (o *Orchestrator) recordItemFailure(f dart.Filing, err error, stats *cycleStats) {
	id := f.ReceiptNo
	o.recorder.Record(id, err.Error(), filingDetails(f))
	promoted := o.state.RecordFailure(id, o.cfg.MaxFail)
	if promoted {
		logging.Critical(o.logger, "disclosure permanently failed",
			zap.String("rcept_no", id),
			zap.Int("max_fail", o.cfg.MaxFail),
			zap.Bool("permanent_failure", true),
			zap.Error(err),
		)
	} else {
		o.logger.Error("disclosure processing failed",
			zap.String("rcept_no", id),
			zap.Error(err),
		)
	}
	metrics.ObserveFiling(metrics.OutcomeFailed, 0)
	stats.failed++
}

func filingDetails(f dart.Filing) map[string]any {
	return map[string]any{
		"corp_code":  f.CorpCode,
		"corp_name":  f.CorpName,
		"report_nm":  f.ReportName,
		"rcept_no":   f.ReceiptNo,
		"rcept_dt":   f.ReceiptDate,
		"viewer_url": f.ViewerURL,
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
