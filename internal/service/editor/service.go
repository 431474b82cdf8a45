// Package editor is the business logic of the photo editor: it joins editing
// sessions with image generation, storage, the export queue and the project cache.
package editor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/model"
	"github.com/aliskhannn/nano-editor/internal/notify"
)

const (
	// DefaultGenerationTimeout bounds one generation including its retries.
	DefaultGenerationTimeout = 2 * time.Minute
	// batchPollInterval is how often a waiting batch checks its jobs.
	batchPollInterval = 100 * time.Millisecond
)

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrEmptyBatch    = errors.New("no export configs given")
	ErrNoResult      = errors.New("export job has no result yet")
	ErrServiceClosed = errors.New("service is closed")
)

// generator produces an edited image from a prompt.
type generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// fetcher reads the bytes behind an image URL.
type fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// objectStore uploads image bytes and returns a download link.
type objectStore interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// imageRepository records stored images.
type imageRepository interface {
	SaveImage(ctx context.Context, img model.StoredImage) (model.StoredImage, error)
	GetImage(ctx context.Context, id uuid.UUID) (model.StoredImage, error)
	ListImages(ctx context.Context, owner string, limit int) ([]model.StoredImage, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// projectStore is the local project cache.
type projectStore interface {
	List(ctx context.Context, owner string) ([]model.Project, error)
	Get(ctx context.Context, id uuid.UUID) (model.Project, error)
	Save(ctx context.Context, p model.Project) (model.Project, error)
	Update(ctx context.Context, p model.Project, note string) (model.Project, error)
	Restore(ctx context.Context, id, revisionID uuid.UUID) (model.Project, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// exportQueue is the sequential export queue.
type exportQueue interface {
	AddJobs(reqs []export.Request) ([]uuid.UUID, error)
	StartProcessing(ctx context.Context) (export.Summary, error)
	Processing() bool
	Jobs() []model.ExportJob
	Job(id uuid.UUID) (model.ExportJob, error)
	Remove(id uuid.UUID) error
	Retry(id uuid.UUID) (uuid.UUID, error)
	ClearFinished(owner string) int
	Clear(owner string) int
}

// batchPublisher sends export batches to the broker.
type batchPublisher interface {
	PublishBatch(ctx context.Context, batch model.ExportBatch) error
}

// Deps are the collaborators of a Service. Storage, Images and Publisher may be nil:
// images then stay data URLs, nothing is recorded and batches run in-process.
type Deps struct {
	Sessions  *editor.Manager
	Generator generator
	Fetcher   fetcher
	Storage   objectStore
	Images    imageRepository
	Projects  projectStore
	Queue     exportQueue
	Publisher batchPublisher
	Notices   *notify.Center
	Clock     model.Clock
}

// Options tune a Service.
type Options struct {
	GenerationTimeout time.Duration
}

// Service provides the editor operations exposed over HTTP and Kafka.
type Service struct {
	sessions  *editor.Manager
	generator generator
	fetcher   fetcher
	storage   objectStore
	images    imageRepository
	projects  projectStore
	queue     exportQueue
	publisher batchPublisher
	notices   *notify.Center
	clock     model.Clock

	generationTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. Close stops its background exports.
func NewService(d Deps, opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		sessions:          d.Sessions,
		generator:         d.Generator,
		fetcher:           d.Fetcher,
		storage:           d.Storage,
		images:            d.Images,
		projects:          d.Projects,
		queue:             d.Queue,
		publisher:         d.Publisher,
		notices:           d.Notices,
		clock:             d.Clock,
		generationTimeout: opts.GenerationTimeout,
		ctx:               ctx,
		cancel:            cancel,
	}

	if s.clock == nil {
		s.clock = model.RealClock{}
	}
	if s.generationTimeout <= 0 {
		s.generationTimeout = DefaultGenerationTimeout
	}

	return s
}

// Close cancels background exports and waits for them to stop.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Notifications returns the notification center.
func (s *Service) Notifications() *notify.Center {
	return s.notices
}

// CreateSession starts an empty editing session.
func (s *Service) CreateSession(owner string) editor.State {
	return s.sessions.Create(owner).State()
}

// Session returns a live session.
func (s *Service) Session(id uuid.UUID) (*editor.Session, error) {
	return s.sessions.Get(id)
}

// ListSessions returns the sessions of owner.
func (s *Service) ListSessions(owner string) []editor.State {
	return s.sessions.List(owner)
}

// DeleteSession drops a session.
func (s *Service) DeleteSession(id uuid.UUID) error {
	return s.sessions.Delete(id)
}

// UploadImage stores raw image bytes and makes them the primary image of a session.
func (s *Service) UploadImage(ctx context.Context, sessionID uuid.UUID, name, contentType string, data []byte) (editor.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return editor.State{}, err
	}

	img, err := s.storeImage(ctx, sess.Owner(), name, contentType, model.KindPrimary, data)
	if err != nil {
		return editor.State{}, err
	}

	return sess.SetImage(img)
}

// SetImageURL makes an existing data URL or remote URL the primary image.
func (s *Service) SetImageURL(sessionID uuid.UUID, url, name string) (editor.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return editor.State{}, err
	}

	img := model.NewStoredImage(url, name, model.KindPrimary, s.clock.Now())
	img.Owner = sess.Owner()

	return sess.SetImage(img)
}

// AddReference stores a reference image and attaches it to a session.
func (s *Service) AddReference(ctx context.Context, sessionID uuid.UUID, name, contentType string, data []byte) (editor.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return editor.State{}, err
	}
	if len(sess.References()) >= editor.MaxReferences {
		return editor.State{}, fmt.Errorf("%w: at most %d", editor.ErrTooManyReferences, editor.MaxReferences)
	}

	img, err := s.storeImage(ctx, sess.Owner(), name, contentType, model.KindReference, data)
	if err != nil {
		return editor.State{}, err
	}

	return sess.AddReference(img)
}

// Generate sends the displayed image, the references and the prompt to the
// generator and adds the result as a new version of the session.
func (s *Service) Generate(ctx context.Context, sessionID uuid.UUID, prompt, aspectRatio string) (editor.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return editor.State{}, err
	}

	current, err := sess.Current()
	if err != nil {
		return editor.State{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	req := generation.Request{Prompt: prompt, AspectRatio: aspectRatio}
	if req.Primary, err = s.dataURL(ctx, current.URL); err != nil {
		return editor.State{}, fmt.Errorf("load image: %w", err)
	}
	for _, ref := range sess.References() {
		u, err := s.dataURL(ctx, ref.URL)
		if err != nil {
			return editor.State{}, fmt.Errorf("load reference %s: %w", ref.Name, err)
		}
		req.References = append(req.References, u)
	}

	result, err := s.generator.Generate(ctx, req)
	if err != nil {
		if !errors.Is(err, generation.ErrInvalidRequest) {
			s.push(notify.LevelError, "Generation failed", err.Error())
		}
		return editor.State{}, fmt.Errorf("generate: %w", err)
	}

	data, mime, err := generation.ParseDataURL(result)
	if err != nil {
		return editor.State{}, fmt.Errorf("generate: %w", err)
	}

	img, err := s.storeImage(ctx, sess.Owner(), versionName(current.Name), mime, model.KindGenerated, data)
	if err != nil {
		return editor.State{}, err
	}

	zlog.Logger.Info().
		Str("session_id", sessionID.String()).
		Str("image_id", img.ID.String()).
		Msg("image generated")

	return sess.AddVersion(img)
}

// storeImage uploads data when object storage is configured and keeps it as a
// data URL otherwise. The record is saved best effort.
func (s *Service) storeImage(ctx context.Context, owner, name, contentType, kind string, data []byte) (model.StoredImage, error) {
	if len(data) == 0 {
		return model.StoredImage{}, ErrEmptyImage
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	img := model.NewStoredImage("", name, kind, s.clock.Now())
	img.Owner = owner

	if s.storage == nil {
		img.URL = generation.EncodeDataURL(data, contentType)
	} else {
		objectName := path.Join(kind, img.ID.String()+extension(contentType))
		url, err := s.storage.Upload(ctx, objectName, data, contentType)
		if err != nil {
			return model.StoredImage{}, fmt.Errorf("upload image: %w", err)
		}
		img.URL = url
	}

	if s.images != nil && s.storage != nil {
		if _, err := s.images.SaveImage(ctx, img); err != nil {
			zlog.Logger.Warn().Err(err).Str("image_id", img.ID.String()).Msg("failed to record image")
		}
	}

	return img, nil
}

// dataURL returns url as a base64 data URL, downloading it when needed.
func (s *Service) dataURL(ctx context.Context, url string) (string, error) {
	if generation.IsDataURL(url) {
		return url, nil
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return generation.EncodeDataURL(data, http.DetectContentType(data)), nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tif"
	}
	return ""
}

func versionName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		name = "image"
	}
	return name + "-edit"
}

func (s *Service) push(level, title, message string) {
	if s.notices != nil {
		s.notices.Push(level, title, message)
	}
}
