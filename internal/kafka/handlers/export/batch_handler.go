package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// ErrEmptyBatch is returned for a batch without export configs.
var ErrEmptyBatch = errors.New("export batch has no configs")

// service defines the interface for running export batches.
type service interface {
	ProcessBatch(ctx context.Context, batch model.ExportBatch) (export.Summary, error)
}

// BatchHandler handles Kafka messages carrying export batches.
type BatchHandler struct {
	service service
}

// NewBatchHandler creates a new handler with the given service.
func NewBatchHandler(s service) *BatchHandler {
	return &BatchHandler{service: s}
}

// Handle unmarshals an export batch, queues and processes it, and logs the
// aggregate result. Failed jobs inside the batch do not fail the message.
func (h *BatchHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var batch model.ExportBatch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return fmt.Errorf("unmarshal batch: %w", err)
	}
	if len(batch.Configs) == 0 {
		return fmt.Errorf("process batch %s: %w", batch.ID, ErrEmptyBatch)
	}

	summary, err := h.service.ProcessBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("process batch %s: %w", batch.ID, err)
	}

	zlog.Logger.Info().
		Str("batch_id", batch.ID.String()).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("export batch processed")

	return nil
}
