package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// Download is a finished export ready to be served.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// QueueExports adds one pending job per config for the image a session displays,
// with its current adjustments baked in. Nothing is processed yet.
func (s *Service) QueueExports(sessionID uuid.UUID, configs []model.ExportConfig) ([]uuid.UUID, error) {
	if len(configs) == 0 {
		return nil, ErrEmptyBatch
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	source, err := sess.Current()
	if err != nil {
		return nil, err
	}
	adj := sess.Adjustments()

	reqs := make([]export.Request, len(configs))
	for i, cfg := range configs {
		reqs[i] = export.Request{Owner: sess.Owner(), Config: cfg, Source: source, Adjustments: adj}
	}

	return s.queue.AddJobs(reqs)
}

// StartExports processes the pending jobs in the background. It returns
// export.ErrAlreadyProcessing when a batch is running.
func (s *Service) StartExports() error {
	if s.ctx.Err() != nil {
		return ErrServiceClosed
	}
	if s.queue.Processing() {
		return export.ErrAlreadyProcessing
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if _, err := s.queue.StartProcessing(s.ctx); err != nil {
			zlog.Logger.Warn().Err(err).Msg("export batch not started")
		}
	}()

	return nil
}

// SubmitBatch hands a session's export configs to the broker as one batch.
// Without a broker the batch is processed in the background in-process.
func (s *Service) SubmitBatch(ctx context.Context, sessionID uuid.UUID, configs []model.ExportConfig) (model.ExportBatch, error) {
	if len(configs) == 0 {
		return model.ExportBatch{}, ErrEmptyBatch
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return model.ExportBatch{}, err
	}

	source, err := sess.Current()
	if err != nil {
		return model.ExportBatch{}, err
	}

	for i, cfg := range configs {
		if _, err := export.NormalizeConfig(cfg); err != nil {
			return model.ExportBatch{}, fmt.Errorf("config %d: %w", i+1, err)
		}
	}

	batch := model.ExportBatch{
		ID:          uuid.New(),
		Owner:       sess.Owner(),
		Source:      source,
		Adjustments: sess.Adjustments(),
		Configs:     configs,
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBatch(ctx, batch); err != nil {
			return model.ExportBatch{}, fmt.Errorf("publish batch: %w", err)
		}
		return batch, nil
	}

	if s.ctx.Err() != nil {
		return model.ExportBatch{}, ErrServiceClosed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if _, err := s.ProcessBatch(s.ctx, batch); err != nil {
			zlog.Logger.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("export batch failed")
		}
	}()

	return batch, nil
}

// ProcessBatch queues every config of the batch and processes the queue until
// all of them are finished. When another batch is running it waits for it and
// then starts a new one.
func (s *Service) ProcessBatch(ctx context.Context, batch model.ExportBatch) (export.Summary, error) {
	if len(batch.Configs) == 0 {
		return export.Summary{}, ErrEmptyBatch
	}

	reqs := make([]export.Request, len(batch.Configs))
	for i, cfg := range batch.Configs {
		reqs[i] = export.Request{Owner: batch.Owner, Config: cfg, Source: batch.Source, Adjustments: batch.Adjustments}
	}

	ids, err := s.queue.AddJobs(reqs)
	if err != nil {
		return export.Summary{}, err
	}

	ticker := time.NewTicker(batchPollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.queue.StartProcessing(ctx); err != nil && !errors.Is(err, export.ErrAlreadyProcessing) {
			return export.Summary{}, err
		}

		if summary, done := s.summarize(ids); done {
			return summary, nil
		}

		select {
		case <-ctx.Done():
			return export.Summary{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// summarize counts the outcome of the given jobs. done is false while any of
// them is still pending or processing. Removed jobs count as failed.
func (s *Service) summarize(ids []uuid.UUID) (export.Summary, bool) {
	summary := export.Summary{Total: len(ids)}

	for _, id := range ids {
		job, err := s.queue.Job(id)
		switch {
		case errors.Is(err, export.ErrJobNotFound):
			summary.Failed++
		case err != nil:
			return export.Summary{}, false
		case !job.Finished():
			return export.Summary{}, false
		case job.Status == model.StatusCompleted:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	return summary, true
}

// Jobs lists the export jobs of owner.
func (s *Service) Jobs(owner string) []model.ExportJob {
	all := s.queue.Jobs()

	jobs := make([]model.ExportJob, 0, len(all))
	for _, j := range all {
		if j.Owner == owner {
			jobs = append(jobs, j)
		}
	}

	return jobs
}

// Job returns one export job of owner. Jobs of other owners are reported as
// export.ErrJobNotFound.
func (s *Service) Job(owner string, id uuid.UUID) (model.ExportJob, error) {
	job, err := s.queue.Job(id)
	if err != nil {
		return model.ExportJob{}, err
	}
	if job.Owner != owner {
		return model.ExportJob{}, export.ErrJobNotFound
	}
	return job, nil
}

// RemoveJob drops a job that is not processing.
func (s *Service) RemoveJob(owner string, id uuid.UUID) error {
	if _, err := s.Job(owner, id); err != nil {
		return err
	}
	return s.queue.Remove(id)
}

// RetryJob re-queues a failed job.
func (s *Service) RetryJob(owner string, id uuid.UUID) (uuid.UUID, error) {
	if _, err := s.Job(owner, id); err != nil {
		return uuid.Nil, err
	}
	return s.queue.Retry(id)
}

// ClearJobs removes the finished jobs of owner, or every idle one when all is set.
func (s *Service) ClearJobs(owner string, all bool) int {
	if all {
		return s.queue.Clear(owner)
	}
	return s.queue.ClearFinished(owner)
}

// ProcessingExports reports whether a batch is running.
func (s *Service) ProcessingExports() bool {
	return s.queue.Processing()
}

// Download returns the bytes of a completed export, from memory or from its link.
func (s *Service) Download(ctx context.Context, owner string, id uuid.UUID) (Download, error) {
	job, err := s.Job(owner, id)
	if err != nil {
		return Download{}, err
	}
	if job.Status != model.StatusCompleted {
		return Download{}, ErrNoResult
	}

	d := Download{Filename: job.Filename, ContentType: job.ContentType, Data: job.Result}
	if len(d.Data) == 0 {
		if job.ResultURL == "" {
			return Download{}, ErrNoResult
		}
		if d.Data, err = s.fetcher.Fetch(ctx, job.ResultURL); err != nil {
			return Download{}, fmt.Errorf("download export: %w", err)
		}
	}

	return d, nil
}
