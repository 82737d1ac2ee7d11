// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"fmt"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/rapidphoto/pipeline/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

type BatchHandler struct {
	dispatcher BatchDispatcher
}

// BatchDispatcher - контракт диспетчера батчей
type BatchDispatcher interface {
	ProcessBatch(ctx context.Context, records []model.InboundRecord) *model.BatchSummary
}

func NewBatchHandler(d BatchDispatcher) *BatchHandler {
	return &BatchHandler{dispatcher: d}
}

func (h BatchHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

type batchRequest struct {
	Records []model.InboundRecord `json:"records"`
}

// ProcessBatch accepts a batch of opaque records and replies with the
// aggregated summary. Per-record failures come back as 207 with error detail;
// a dispatcher-level panic is the only total-failure path and maps to 500.
func (h BatchHandler) ProcessBatch(ctx *ginext.Context) {
	var req batchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse batch payload"})
		return
	}

	summary, err := h.dispatch(ctx.Request.Context(), req.Records)
	if err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Msg("Dispatcher crashed")
		ctx.JSON(500, map[string]string{"error": "batch dispatch failed"})
		return
	}

	ctx.JSON(summary.StatusCode, summary)
}

// dispatch converts a dispatcher panic into a distinct top-level error so a
// broken batch never reports partial success.
func (h BatchHandler) dispatch(ctx context.Context, records []model.InboundRecord) (summary *model.BatchSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	return h.dispatcher.ProcessBatch(ctx, records), nil
}
