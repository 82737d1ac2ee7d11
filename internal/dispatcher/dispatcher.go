// Package dispatcher fans a batch of inbound records out over the pipeline
// and folds the per-record outcomes into one summary.
package dispatcher

import (
	"context"
	"net/http"
	"sync"

	"github.com/rapidphoto/pipeline/internal/event"
	"github.com/rapidphoto/pipeline/internal/metrics"
	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/rapidphoto/pipeline/internal/mwlogger"
)

// JobProcessor - контракт оркестратора одного джоба
type JobProcessor interface {
	Process(ctx context.Context, job *model.ImageJob) (*model.ProcessingResult, error)
}

type Dispatcher struct {
	processor JobProcessor
	workers   int
}

func New(processor JobProcessor, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{processor: processor, workers: workers}
}

// ProcessBatch runs every record through parse -> pipeline, never aborting the
// batch on a record failure. Records are independent and run on a bounded
// worker pool; messageId correlation survives regardless of completion order.
func (d *Dispatcher) ProcessBatch(ctx context.Context, records []model.InboundRecord) *model.BatchSummary {
	logger := mwlogger.LoggerFromContext(ctx)
	logger.Info().Int("records", len(records)).Msg("Dispatching batch")

	type slot struct {
		res    *model.ProcessingResult
		recErr *model.RecordError
	}
	slots := make([]slot, len(records))

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rec model.InboundRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			job, err := event.Parse(rec.Body)
			if err != nil {
				logger.Error().Err(err).Str("message_id", rec.MessageID).Msg("Failed to parse inbound record")
				slots[i].recErr = &model.RecordError{MessageID: rec.MessageID, Error: err.Error()}
				return
			}

			res, err := d.processor.Process(ctx, job)
			if err != nil {
				slots[i].recErr = &model.RecordError{MessageID: rec.MessageID, Error: err.Error()}
				return
			}
			slots[i].res = res
		}(i, rec)
	}
	wg.Wait()

	summary := &model.BatchSummary{
		Results: make([]model.ProcessingResult, 0, len(records)),
		Errors:  make([]model.RecordError, 0),
	}
	for _, s := range slots {
		switch {
		case s.recErr != nil:
			metrics.BatchRecords.WithLabelValues("failed").Inc()
			summary.Errors = append(summary.Errors, *s.recErr)
		default:
			metrics.BatchRecords.WithLabelValues("ok").Inc()
			summary.Results = append(summary.Results, *s.res)
		}
	}

	summary.Processed = len(summary.Results)
	summary.Failed = len(summary.Errors)
	summary.StatusCode = http.StatusOK
	if summary.Failed > 0 {
		summary.StatusCode = http.StatusMultiStatus
	}

	logger.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Msg("Batch finished")
	return summary
}
