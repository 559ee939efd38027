package prediction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"fraudserve/internal/domain/transaction"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	pipelineTracer      = otel.Tracer("fraudserve/pipeline")
	pipelineMeter       = otel.Meter("fraudserve/pipeline")
	predictionsTotal, _ = pipelineMeter.Int64Counter("fraud.predictions.total",
		metric.WithDescription("Prediction requests by outcome"),
	)
	recordsFlagged, _ = pipelineMeter.Int64Counter("fraud.records.flagged",
		metric.WithDescription("Records predicted as fraud"),
	)
	pipelineDuration, _ = pipelineMeter.Float64Histogram("fraud.pipeline.duration",
		metric.WithDescription("End-to-end pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
)

// Pipeline turns raw transaction records into predictions. It is safe for
// concurrent use: the only state it holds is the read-only artifact set.
type Pipeline struct {
	artifacts Artifacts
	debug     *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDebugLogger logs the column layout after each stage.
func WithDebugLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.debug = l
	}
}

// NewPipeline binds a pipeline to a loaded artifact set.
func NewPipeline(artifacts Artifacts, opts ...Option) (*Pipeline, error) {
	if err := artifacts.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{artifacts: artifacts}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Version returns the artifact set version the pipeline serves.
func (p *Pipeline) Version() string {
	return p.artifacts.Version
}

// Normalize maps legacy field names onto canonical ones.
func (p *Pipeline) Normalize(ctx context.Context, records []*transaction.Record) []*transaction.Record {
	_, span := pipelineTracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	out := transaction.Normalize(records)
	p.debugColumns("Columns after renaming", out)
	return out
}

// Derive fills defaults and computes derived features.
func (p *Pipeline) Derive(ctx context.Context, records []*transaction.Record) []*transaction.Record {
	_, span := pipelineTracer.Start(ctx, "pipeline.derive")
	defer span.End()

	out := transaction.Derive(records)
	p.debugColumns("Columns after feature engineering", out)
	return out
}

// Prepare encodes and rescales derived records, then selects ModelColumns.
func (p *Pipeline) Prepare(ctx context.Context, records []*transaction.Record) ([]ModelInputRow, error) {
	_, span := pipelineTracer.Start(ctx, "pipeline.prepare")
	defer span.End()

	rows, err := p.prepare(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rows, nil
}

func (p *Pipeline) prepare(records []*transaction.Record) (rows []ModelInputRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = featureMismatch(StageDerived, "encoder or scaler panicked: %v", r)
		}
	}()

	frame, err := p.artifacts.Encoder.Transform(records)
	if err != nil {
		return nil, &Error{Kind: KindFeatureMismatch, Stage: StageDerived, Message: "encoding failed", Err: err}
	}
	if frame == nil || frame.Rows() != len(records) {
		got := 0
		if frame != nil {
			got = frame.Rows()
		}
		return nil, featureMismatch(StageDerived, "encoder produced %d rows for %d records", got, len(records))
	}

	if err := p.artifacts.Scaler.Transform(frame, ScaledColumns); err != nil {
		return nil, &Error{Kind: KindFeatureMismatch, Stage: StageDerived, Message: "scaling failed", Err: err}
	}

	rows = make([]ModelInputRow, frame.Rows())
	for j, col := range ModelColumns {
		values, ok := frame.Column(col)
		if !ok {
			return nil, featureMismatch(StageDerived, "missing model column %q (encoded columns: %v)", col, frame.Columns())
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, featureMismatch(StageDerived, "column %q of record %d is not a finite number", col, i)
			}
			rows[i][j] = v
		}
	}

	if p.debug != nil {
		p.debug.Printf("Final data shape: (%d, %d)", len(rows), NumModelFeatures)
		p.debug.Printf("Final data columns: %v", ModelColumns)
	}
	return rows, nil
}

// Predict runs the whole pipeline and attaches a prediction to a copy of each
// original record. Failures come back as *Error; nothing is returned partially.
func (p *Pipeline) Predict(ctx context.Context, records []*transaction.Record) (result *Result, err error) {
	start := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "pipeline.predict", trace.WithAttributes(
		attribute.Int("pipeline.records", len(records)),
		attribute.String("artifacts.version", p.artifacts.Version),
	))
	defer span.End()

	defer func() {
		outcome := string(StagePredicted)
		if err != nil {
			outcome = "error"
			var pe *Error
			if errors.As(err, &pe) {
				outcome = string(pe.Kind)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		predictionsTotal.Add(ctx, 1, attrs)
		pipelineDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	if len(records) == 0 {
		return nil, malformed("", ErrNoData)
	}

	normalized := p.Normalize(ctx, records)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	derived := p.Derive(ctx, normalized)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := p.Prepare(ctx, derived)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds, err := p.classify(ctx, rows, len(records))
	if err != nil {
		return nil, err
	}

	out := make([]*transaction.Record, len(records))
	for i, r := range records {
		rec := r.Clone()
		rec.Set(PredictionField, preds[i])
		out[i] = rec
	}
	result = &Result{Version: p.artifacts.Version, Records: out}

	if flagged := result.Flagged(); flagged > 0 {
		recordsFlagged.Add(ctx, int64(flagged))
	}
	span.SetAttributes(attribute.Int("pipeline.flagged", result.Flagged()))
	return result, nil
}

func (p *Pipeline) classify(ctx context.Context, rows []ModelInputRow, want int) (preds []int, err error) {
	_, span := pipelineTracer.Start(ctx, "pipeline.classify")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			preds = nil
			err = artifactIncompatible(StagePrepared, nil, "classifier panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if len(rows) != want {
		return nil, artifactIncompatible(StagePrepared, nil, "prepared %d rows for %d records", len(rows), want)
	}
	if err := CheckClassifierColumns(p.artifacts.Classifier); err != nil {
		return nil, err
	}

	preds, err = p.artifacts.Classifier.Predict(rows)
	if err != nil {
		return nil, artifactIncompatible(StagePrepared, err, "inference failed")
	}
	if len(preds) != want {
		return nil, artifactIncompatible(StagePrepared, nil, "classifier returned %d predictions for %d records", len(preds), want)
	}
	return preds, nil
}

func (p *Pipeline) debugColumns(label string, records []*transaction.Record) {
	if p.debug == nil || len(records) == 0 {
		return
	}
	p.debug.Printf("%s: %v", label, columnUnion(records))
}

func columnUnion(records []*transaction.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// String implements fmt.Stringer for logs.
func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(version=%s)", p.artifacts.Version)
}
