package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/nano-editor/internal/config"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// Producer publishes export batches to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy used for every send
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// PublishBatch serializes the batch to JSON and sends it to Kafka.
// The batch ID is the message key, so a batch is never split across partitions.
func (p *Producer) PublishBatch(ctx context.Context, batch model.ExportBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal export batch: %w", err)
	}

	key := []byte(batch.ID.String())

	if err = p.Client.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send export batch: %w", err)
	}

	return nil
}
