// Package backfill fills the normalization/classification cache columns of
// stored line items that were ingested before the cache existed.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/core/logging"
	"dart_accounts/pkg/core/metrics"
	"dart_accounts/pkg/core/normalize"
	"dart_accounts/pkg/models"

	"github.com/google/uuid"
)

// ErrInvalidLimit is returned for a non-positive batch size.
var ErrInvalidLimit = errors.New("backfill limit must be positive")

// Source is the storage the writer reads incomplete rows from and writes
// caches back to.
type Source interface {
	// SelectIncomplete returns up to limit rows whose account_nm_norm,
	// account_id_norm or canon_key is null.
	SelectIncomplete(ctx context.Context, limit int) ([]models.RawLineItem, error)
	// WriteCache stores the four cache columns of one row.
	WriteCache(ctx context.Context, id int64, cache models.NormalizedCache) error
}

// Result reports how many rows one run wrote.
type Result struct {
	Updated int `json:"updated"`
}

// Writer runs backfill batches.
type Writer struct {
	source     Source
	classifier classify.Interface
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// New returns a writer.
func New(source Source, classifier classify.Interface, opts ...Option) *Writer {
	w := &Writer{source: source, classifier: classifier}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.Component(w.logger, "backfill")
	return w
}

// ComputeCache derives the cache columns of one line item. A line that matches
// no canonical definition gets an empty canon key and a nil score, so it is not
// selected again.
func ComputeCache(c classify.Interface, li models.RawLineItem) models.NormalizedCache {
	nm := normalize.NamePtr(li.AccountNm)
	id := normalize.IDPtr(li.AccountID)
	cache := models.NormalizedCache{AccountNmNorm: &nm, AccountIDNorm: &id}

	res, ok := c.Classify(li.SjDiv, models.Deref(li.AccountID), models.Deref(li.AccountNm))
	if !ok {
		empty := ""
		cache.CanonKey = &empty
		return cache
	}
	key := string(res.Key)
	score := int(res.Score)
	cache.CanonKey = &key
	cache.CanonScore = &score
	return cache
}

// Run processes one batch of at most limit rows, writing each row in turn.
// The first failed write stops the batch; Updated then counts the rows written
// before it. Rows already written stay written and are not selected again.
func (w *Writer) Run(ctx context.Context, limit int) (res Result, err error) {
	if limit <= 0 {
		return Result{}, ErrInvalidLimit
	}

	runID := uuid.New()
	log := w.logger.With("run_id", runID.String())
	defer func() { w.metrics.Backfill(res.Updated, err) }()

	rows, err := w.source.SelectIncomplete(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to select rows for backfill: %w", err)
	}
	log.Debug("selected rows", "count", len(rows), "limit", limit)

	for _, li := range rows {
		cache := ComputeCache(w.classifier, li)
		score := 0
		if cache.CanonScore != nil {
			score = *cache.CanonScore
		}
		w.metrics.Classification(string(li.SjDiv), score)

		if err := w.source.WriteCache(ctx, li.ID, cache); err != nil {
			log.Error("cache write failed", "row_id", li.ID, "updated", res.Updated, "error", err)
			return res, fmt.Errorf("failed to write cache for row %d: %w", li.ID, err)
		}
		res.Updated++
	}

	log.Info("backfill batch done", "updated", res.Updated)
	return res, nil
}
