// Package export queues export jobs and materializes them one at a time.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/model"
)

const (
	// DefaultJobTimeout bounds the rendering and delivery of one job.
	DefaultJobTimeout = 2 * time.Minute
	// DefaultQuality is the jpeg quality used when a config leaves it unset.
	DefaultQuality = 90
)

var (
	ErrJobNotFound       = errors.New("export job not found")
	ErrAlreadyProcessing = errors.New("export queue is already processing")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidConfig     = errors.New("invalid export config")
	ErrJobBusy           = errors.New("export job is processing")
	ErrJobNotFailed      = errors.New("only failed export jobs can be retried")
	// ErrCancelled is the failure reason of jobs cut short by cancellation or timeout.
	ErrCancelled = errors.New("cancelled")

	errRemoved = errors.New("export job removed from the queue")
)

// Output is a rendered export.
type Output struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// renderer turns a job into encoded bytes, reporting progress in percent.
type renderer interface {
	Render(ctx context.Context, job model.ExportJob, progress func(int)) (Output, error)
}

// sink receives finished exports and returns where they can be downloaded.
type sink interface {
	Deliver(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// notifier receives one aggregate summary per processed batch.
type notifier interface {
	Notify(ctx context.Context, s Summary)
}

// Request asks for one export variant of a source image.
type Request struct {
	Owner       string                 `json:"owner,omitempty"`
	Config      model.ExportConfig     `json:"config"`
	Source      model.StoredImage      `json:"source"`
	Adjustments model.ImageAdjustments `json:"adjustments"`
}

// Summary aggregates the outcome of one batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Message is the user-facing text of the summary.
func (s Summary) Message() string {
	if s.Failed == 0 {
		return fmt.Sprintf("Export finished: %d succeeded", s.Succeeded)
	}
	return fmt.Sprintf("Export finished: %d succeeded, %d failed", s.Succeeded, s.Failed)
}

// Options configure a Queue.
type Options struct {
	JobTimeout       time.Duration
	FilenameTemplate string
	Clock            model.Clock
}

// Queue holds export jobs and processes them strictly sequentially.
type Queue struct {
	mu         sync.Mutex
	jobs       []*model.ExportJob
	processing atomic.Bool

	renderer renderer
	sink     sink
	notifier notifier

	jobTimeout time.Duration
	template   string
	clock      model.Clock
}

// NewQueue creates a Queue. The sink and notifier may be nil.
func NewQueue(r renderer, s sink, n notifier, opts Options) *Queue {
	q := &Queue{
		renderer:   r,
		sink:       s,
		notifier:   n,
		jobTimeout: opts.JobTimeout,
		template:   opts.FilenameTemplate,
		clock:      opts.Clock,
	}

	if q.jobTimeout <= 0 {
		q.jobTimeout = DefaultJobTimeout
	}
	if q.template == "" {
		q.template = DefaultFilenameTemplate
	}
	if q.clock == nil {
		q.clock = model.RealClock{}
	}

	return q
}

// NormalizeConfig validates cfg and fills in defaults.
func NormalizeConfig(cfg model.ExportConfig) (model.ExportConfig, error) {
	if cfg.Format == "" {
		cfg.Format = "jpeg"
	}
	f, ok := model.LookupFormat(cfg.Format)
	if !ok {
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, cfg.Format)
	}
	cfg.Format = f.Name

	if cfg.Quality == 0 {
		cfg.Quality = DefaultQuality
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		return cfg, fmt.Errorf("%w: quality %d outside 1..100", ErrInvalidConfig, cfg.Quality)
	}

	switch cfg.Resize.Mode {
	case "":
		cfg.Resize.Mode = model.ResizeNone
	case model.ResizeNone:
	case model.ResizeFit, model.ResizeFill, model.ResizeExact:
		if cfg.Resize.Width < 0 || cfg.Resize.Height < 0 || (cfg.Resize.Width == 0 && cfg.Resize.Height == 0) {
			return cfg, fmt.Errorf("%w: resize %s needs a positive width or height", ErrInvalidConfig, cfg.Resize.Mode)
		}
		if cfg.Resize.Mode != model.ResizeFit && (cfg.Resize.Width == 0 || cfg.Resize.Height == 0) {
			return cfg, fmt.Errorf("%w: resize %s needs width and height", ErrInvalidConfig, cfg.Resize.Mode)
		}
	case model.ResizePercent:
		if cfg.Resize.Percent <= 0 || cfg.Resize.Percent > 400 {
			return cfg, fmt.Errorf("%w: resize percent %v outside (0,400]", ErrInvalidConfig, cfg.Resize.Percent)
		}
	default:
		return cfg, fmt.Errorf("%w: unknown resize mode %q", ErrInvalidConfig, cfg.Resize.Mode)
	}

	if cfg.ColorSpace == "" {
		cfg.ColorSpace = "srgb"
	}

	return cfg, nil
}

// AddJob appends a pending job. It does not start processing.
func (q *Queue) AddJob(req Request) (uuid.UUID, error) {
	ids, err := q.AddJobs([]Request{req})
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

// AddJobs appends pending jobs in order. Either all requests are queued or none.
func (q *Queue) AddJobs(reqs []Request) ([]uuid.UUID, error) {
	now := q.clock.Now()
	jobs := make([]*model.ExportJob, 0, len(reqs))

	for i, req := range reqs {
		cfg, err := NormalizeConfig(req.Config)
		if err != nil {
			return nil, fmt.Errorf("add job %d: %w", i+1, err)
		}

		jobs = append(jobs, &model.ExportJob{
			ID:          uuid.New(),
			Owner:       req.Owner,
			Config:      cfg,
			Source:      req.Source,
			Adjustments: req.Adjustments.Clone(),
			Status:      model.StatusPending,
			CreatedAt:   now,
		})
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, jobs...)
	q.mu.Unlock()

	ids := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}

	return ids, nil
}

// Processing reports whether a batch is running.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// StartProcessing runs every job pending at call time, one after another.
//
// Only one batch runs at a time: a call made while another is in flight
// returns ErrAlreadyProcessing without touching any job. A failed job never
// stops the batch. After the batch one aggregate summary is sent to the
// notifier. Cancelling ctx fails the remaining jobs as cancelled. Jobs removed
// from the queue before their turn are skipped and left out of the summary.
func (q *Queue) StartProcessing(ctx context.Context) (Summary, error) {
	if !q.processing.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyProcessing
	}
	defer q.processing.Store(false)

	var summary Summary

	batch := q.pending()
	if len(batch) == 0 {
		return summary, nil
	}

	zlog.Logger.Info().Int("jobs", len(batch)).Msg("export batch started")

	for _, job := range batch {
		err := q.process(ctx, job, summary.Total+1)
		if errors.Is(err, errRemoved) {
			continue
		}

		summary.Total++
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	zlog.Logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("export batch finished")

	if q.notifier != nil && summary.Total > 0 {
		q.notifier.Notify(ctx, summary)
	}

	return summary, nil
}

func (q *Queue) pending() []*model.ExportJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*model.ExportJob
	for _, j := range q.jobs {
		if j.Status == model.StatusPending {
			out = append(out, j)
		}
	}
	return out
}

// process runs one job to a terminal status and returns its failure, if any.
// A job no longer in the queue is left untouched and reported as errRemoved.
func (q *Queue) process(ctx context.Context, job *model.ExportJob, index int) error {
	ctxErr := ctx.Err()

	var (
		snapshot model.ExportJob
		queued   bool
	)
	q.with(func() {
		if queued = q.contains(job); !queued || ctxErr != nil {
			return
		}
		job.Status = model.StatusProcessing
		job.Progress = 0
		snapshot = *job
	})

	if !queued {
		zlog.Logger.Info().Str("job_id", job.ID.String()).Msg("export job removed before processing, skipped")
		return errRemoved
	}
	if ctxErr != nil {
		err := cancellation(ctxErr)
		q.finish(job, Output{}, "", "", err)
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	out, err := q.render(jobCtx, snapshot)
	if err != nil {
		q.finish(job, Output{}, "", "", err)
		return err
	}

	ext := out.Extension
	if ext == "" {
		if f, ok := model.LookupFormat(snapshot.Config.Format); ok {
			ext = f.Extension
		}
	}

	tmpl := snapshot.Config.FilenameTemplate
	if tmpl == "" {
		tmpl = q.template
	}

	filename := RenderFilename(tmpl, FilenameFields{
		Name:   snapshot.Source.Name,
		Time:   q.clock.Now(),
		Format: ext,
		Width:  out.Width,
		Height: out.Height,
		Preset: snapshot.Config.Preset,
		Index:  index,
	})

	url, err := q.deliver(jobCtx, filename, out)
	if err != nil {
		err = fmt.Errorf("deliver %s: %w", filename, err)
		if jobCtx.Err() != nil {
			err = cancellation(jobCtx.Err())
		}
		q.finish(job, Output{}, "", "", err)
		return err
	}

	q.finish(job, out, filename, url, nil)

	return nil
}

func (q *Queue) render(ctx context.Context, job model.ExportJob) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()

	out, err = q.renderer.Render(ctx, job, func(p int) { q.setProgress(job.ID, p) })
	if err != nil && ctx.Err() != nil {
		return Output{}, cancellation(ctx.Err())
	}

	return out, err
}

// deliver hands the result to the sink. Without a sink the result stays in
// the job and is downloaded from the queue.
func (q *Queue) deliver(ctx context.Context, filename string, out Output) (string, error) {
	if q.sink == nil {
		return "", nil
	}
	return q.sink.Deliver(ctx, filename, out.Data, out.ContentType)
}

func (q *Queue) finish(job *model.ExportJob, out Output, filename, url string, err error) {
	now := q.clock.Now()

	q.with(func() {
		job.CompletedAt = &now
		if err != nil {
			job.Status = model.StatusFailed
			job.Error = err.Error()
			return
		}

		job.Status = model.StatusCompleted
		job.Progress = 100
		job.Result = out.Data
		job.ContentType = out.ContentType
		job.Filename = filename
		job.ResultURL = url
		job.Error = ""
	})

	log := zlog.Logger.Info()
	if err != nil {
		log = zlog.Logger.Error().Err(err)
	}
	log.Str("job_id", job.ID.String()).Str("filename", filename).Msg("export job finished")
}

// cancellation maps a context error to the job failure reason.
func cancellation(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out", ErrCancelled)
	}
	return ErrCancelled
}

// IsCancelled reports whether a job error message records a cancellation.
func IsCancelled(job model.ExportJob) bool {
	return job.Status == model.StatusFailed && strings.HasPrefix(job.Error, ErrCancelled.Error())
}

func (q *Queue) setProgress(id uuid.UUID, p int) {
	if p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99 // 100 is reserved for completion
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.ID == id && j.Status == model.StatusProcessing && p > j.Progress {
			j.Progress = p
			return
		}
	}
}

// contains reports whether job is still held by the queue. Callers hold q.mu.
func (q *Queue) contains(job *model.ExportJob) bool {
	for _, j := range q.jobs {
		if j == job {
			return true
		}
	}
	return false
}

func (q *Queue) with(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn()
}

// Jobs returns a snapshot of every job in queue order.
func (q *Queue) Jobs() []model.ExportJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.ExportJob, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = *j
	}
	return out
}

// Job returns a snapshot of one job.
func (q *Queue) Job(id uuid.UUID) (model.ExportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.ID == id {
			return *j, nil
		}
	}
	return model.ExportJob{}, ErrJobNotFound
}

// Remove deletes a job that is not currently processing.
func (q *Queue) Remove(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, j := range q.jobs {
		if j.ID != id {
			continue
		}
		if j.Status == model.StatusProcessing {
			return ErrJobBusy
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return nil
	}
	return ErrJobNotFound
}

// ClearFinished removes the completed and failed jobs of owner and returns how
// many were removed.
func (q *Queue) ClearFinished(owner string) int {
	return q.removeWhere(func(j *model.ExportJob) bool { return j.Owner == owner && j.Finished() })
}

// Clear removes every job of owner that is not currently processing.
func (q *Queue) Clear(owner string) int {
	return q.removeWhere(func(j *model.ExportJob) bool { return j.Owner == owner && j.Status != model.StatusProcessing })
}

func (q *Queue) removeWhere(match func(*model.ExportJob) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.jobs[:0]
	removed := 0
	for _, j := range q.jobs {
		if match(j) {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept

	return removed
}

// Retry re-adds a failed job as a new pending job and returns its ID.
func (q *Queue) Retry(id uuid.UUID) (uuid.UUID, error) {
	job, err := q.Job(id)
	if err != nil {
		return uuid.Nil, err
	}
	if job.Status != model.StatusFailed {
		return uuid.Nil, ErrJobNotFailed
	}

	return q.AddJob(Request{Owner: job.Owner, Config: job.Config, Source: job.Source, Adjustments: job.Adjustments})
}
