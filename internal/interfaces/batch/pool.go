// Package batch scores many independent inputs on a fixed set of workers.
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
)

var (
	jobTracer      = otel.Tracer("fraudserve/batch")
	jobMeter       = otel.Meter("fraudserve/batch")
	jobDuration, _ = jobMeter.Float64Histogram("batch.job.duration", metric.WithDescription("Batch job duration in seconds"), metric.WithUnit("s"))
	jobTotal, _    = jobMeter.Int64Counter("batch.job.total", metric.WithDescription("Batch jobs by status"))
)

// Predictor runs the prediction pipeline.
type Predictor interface {
	Predict(ctx context.Context, records []*transaction.Record) (*prediction.Result, error)
}

// Job is one raw input, usually a file.
type Job struct {
	Name  string
	Input []byte
}

// Outcome is the result of one Job. Exactly one of Result and Err is set.
type Outcome struct {
	Name   string
	Result *prediction.Result
	Err    error
}

// Pool scores jobs concurrently. The pipeline is read-only so workers share
// one predictor.
type Pool struct {
	predictor   Predictor
	workerCount int
	jobTimeout  time.Duration
}

// NewPool creates a pool of workerCount workers. A jobTimeout of zero means
// jobs only stop with the Run context.
func NewPool(predictor Predictor, workerCount int, jobTimeout time.Duration) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{predictor: predictor, workerCount: workerCount, jobTimeout: jobTimeout}
}

type indexedJob struct {
	index int
	job   Job
}

// Run scores every job and returns outcomes in job order. Jobs not started
// before ctx is done get ctx's error.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	queue := make(chan indexedJob)

	workers := p.workerCount
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for ij := range queue {
				outcomes[ij.index] = p.process(ctx, id, ij.job)
			}
		}(i)
	}

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			outcomes[i] = Outcome{Name: job.Name, Err: ctx.Err()}
			continue
		case queue <- indexedJob{index: i, job: job}:
		}
	}
	close(queue)
	wg.Wait()

	return outcomes
}

// process scores a single job with telemetry.
func (p *Pool) process(ctx context.Context, workerID int, job Job) Outcome {
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	ctx, span := jobTracer.Start(ctx, "batch.job",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.name", job.Name),
		),
	)
	defer span.End()

	start := time.Now()
	out := Outcome{Name: job.Name}

	records, err := prediction.ParseInput(job.Input)
	if err == nil {
		out.Result, err = p.predictor.Predict(ctx, records)
	}

	status := "success"
	if err != nil {
		out.Result = nil
		out.Err = err
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("Worker %d: Error scoring %s: %v", workerID, job.Name, err)
	}
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	jobDuration.Record(ctx, time.Since(start).Seconds())

	return out
}
