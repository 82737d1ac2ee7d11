// Package pipeline sequences the processing of one photo job: idempotency
// gate, download, decode, thumbnail, rendition fan-out, labels, persistence
// and the best-effort completion callback.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rapidphoto/pipeline/internal/imageproc"
	"github.com/rapidphoto/pipeline/internal/metrics"
	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/rapidphoto/pipeline/internal/mwlogger"
	"github.com/rapidphoto/pipeline/internal/notifier"
	"github.com/rapidphoto/pipeline/internal/repository"
	"github.com/rapidphoto/pipeline/internal/vision"
)

// BlobStorage - контракт хранилища исходников и производных артефактов
type BlobStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

type Config struct {
	ThumbWidth    int
	ThumbHeight   int
	ThumbQuality  int
	Renditions    []model.RenditionSpec
	MinConfidence float64
	MaxLabels     int
	MaxTags       int
	OpTimeout     time.Duration // ограничение на один внешний вызов
}

type Pipeline struct {
	repo     repository.PhotoRepo
	storage  BlobStorage
	vision   vision.LabelDetector
	notifier notifier.Notifier
	cfg      Config
}

// New validates the configured rendition set up front so a bad deployment
// fails before any job spends a download on it.
func New(cfg Config, repo repository.PhotoRepo, strg BlobStorage, det vision.LabelDetector, ntf notifier.Notifier) (*Pipeline, error) {
	if err := imageproc.ValidateSpecs(cfg.Renditions); err != nil {
		return nil, err
	}
	if cfg.ThumbWidth <= 0 || cfg.ThumbHeight <= 0 {
		return nil, fmt.Errorf("%w: thumbnail size %dx%d", model.ErrInvalidParameter, cfg.ThumbWidth, cfg.ThumbHeight)
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &Pipeline{repo: repo, storage: strg, vision: det, notifier: ntf, cfg: cfg}, nil
}

// Process runs one job start to finish. A non-nil error always comes with a
// FAILED result; SKIPPED and COMPLETED results come with a nil error.
func (p *Pipeline) Process(ctx context.Context, job *model.ImageJob) (*model.ProcessingResult, error) {
	logger := mwlogger.LoggerFromContext(ctx).With().
		Str("photo_id", job.PhotoID).
		Str("owner_id", job.OwnerID).
		Logger()

	started := time.Now()
	res, err := p.run(ctx, job)
	metrics.JobDuration.Observe(time.Since(started).Seconds())
	metrics.JobsTotal.WithLabelValues(string(res.Status), job.OwnerID).Inc()

	if err != nil {
		logger.Error().Err(err).Msg("Photo job failed")
		return res, err
	}

	logger.Info().
		Str("outcome", string(res.Status)).
		Int("renditions", len(res.Renditions)).
		Int("labels", res.LabelCount).
		Msg("Photo job finished")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, job *model.ImageJob) (*model.ProcessingResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// гейт идемпотентности: читаем статус, лока нет - гонка двух первых
	// доставок принята как допустимая
	status, err := p.getStatus(ctx, job.PhotoID)
	switch {
	case errors.Is(err, model.ErrPhotoNotFound):
		// записи еще нет - считаем первой доставкой
	case err != nil:
		return p.fail(ctx, job, fmt.Errorf("%w: read status: %v", model.ErrUpstream, err))
	case status == model.StatusReady, status == model.StatusProcessing:
		logger.Info().Str("photo_id", job.PhotoID).Str("status", string(status)).Msg("Skipping redelivered job")
		return &model.ProcessingResult{PhotoID: job.PhotoID, Status: model.OutcomeSkipped, Renditions: []model.RenditionResult{}, Tags: model.StringSlice{}}, nil
	}

	// помечаем in-flight; отсутствующая запись не повод падать
	if err := p.setStatus(ctx, job.PhotoID, model.StatusProcessing); err != nil && !errors.Is(err, model.ErrPhotoNotFound) {
		return p.fail(ctx, job, fmt.Errorf("%w: mark processing: %v", model.ErrUpstream, err))
	}

	// скачиваем исходник
	data, err := p.download(ctx, job.StorageKey)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	// каноничный растр + метаданные
	canonical, err := imageproc.Decode(data)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	result := &model.ProcessingResult{
		PhotoID:   job.PhotoID,
		Status:    model.OutcomeCompleted,
		Width:     canonical.Width,
		Height:    canonical.Height,
		SizeBytes: canonical.ByteSize,
		Format:    canonical.SourceFormat,
	}

	// тамбнейл
	thumbKey, err := p.makeThumbnail(ctx, job, canonical)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	result.ThumbnailKey = thumbKey

	// фанаут рендиций; частичное покрытие допустимо
	renditions, err := p.makeRenditions(ctx, job, canonical)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	result.Renditions = renditions

	// лейблы и теги
	labels, err := p.detectLabels(ctx, job.StorageKey)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	metrics.LabelsDetected.Add(float64(len(labels)))
	result.LabelCount = len(labels)
	result.Tags = vision.ExtractTags(labels, p.cfg.MaxTags)

	// персистенс строго до нотификации
	if err := p.persist(ctx, job.PhotoID, result, labels); err != nil {
		return p.fail(ctx, job, fmt.Errorf("%w: persist result: %v", model.ErrUpstream, err))
	}

	// нотификация best-effort: артефакты и метаданные уже надежно записаны
	p.notify(ctx, job.PhotoID, result)

	return result, nil
}

// fail captures the causing error, best-effort marks the photo FAILED and
// never attempts remaining steps.
func (p *Pipeline) fail(ctx context.Context, job *model.ImageJob, cause error) (*model.ProcessingResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.OpTimeout)
	defer cancel()
	if err := p.repo.MarkFailed(opCtx, job.PhotoID, cause.Error()); err != nil {
		logger.Warn().Err(err).Str("photo_id", job.PhotoID).Msg("Failed to write FAILED marker")
	}

	return &model.ProcessingResult{
		PhotoID:      job.PhotoID,
		Status:       model.OutcomeFailed,
		Renditions:   []model.RenditionResult{},
		Tags:         model.StringSlice{},
		ErrorMessage: cause.Error(),
	}, cause
}

func (p *Pipeline) getStatus(ctx context.Context, photoID string) (model.Status, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	return p.repo.GetStatus(opCtx, photoID)
}

func (p *Pipeline) setStatus(ctx context.Context, photoID string, status model.Status) error {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	return p.repo.SetStatus(opCtx, photoID, status)
}

func (p *Pipeline) download(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	return p.storage.Get(opCtx, key)
}

func (p *Pipeline) makeThumbnail(ctx context.Context, job *model.ImageJob, canonical *model.CanonicalImage) (string, error) {
	thumb, err := imageproc.Thumbnailer(canonical, p.cfg.ThumbWidth, p.cfg.ThumbHeight, p.cfg.ThumbQuality)
	if err != nil {
		return "", err
	}

	key := model.ThumbnailKey(job.OwnerID, job.StorageKey)
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	if err := p.storage.Put(opCtx, key, model.CTypeJPEG, thumb); err != nil {
		return "", err
	}
	return key, nil
}

// makeRenditions fans out over the spec set in parallel; the specs share the
// immutable canonical raster and do not depend on each other. Spec order is
// preserved in the returned slice.
func (p *Pipeline) makeRenditions(ctx context.Context, job *model.ImageJob, canonical *model.CanonicalImage) ([]model.RenditionResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	done := make([]*model.RenditionResult, len(p.cfg.Renditions))
	failures := make([]error, len(p.cfg.Renditions))

	var wg sync.WaitGroup
	for i, spec := range p.cfg.Renditions {
		wg.Add(1)
		go func(i int, spec model.RenditionSpec) {
			defer wg.Done()

			rend, err := imageproc.RenderOne(canonical, spec)
			if err != nil {
				failures[i] = fmt.Errorf("width %d: %w", spec.TargetWidth, err)
				return
			}

			key := model.RenditionKey(job.OwnerID, job.StorageKey, spec.TargetWidth)
			opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
			defer cancel()
			if err := p.storage.Put(opCtx, key, model.CTypeWebP, rend.Data); err != nil {
				failures[i] = fmt.Errorf("width %d: %w", spec.TargetWidth, err)
				return
			}

			done[i] = &model.RenditionResult{
				TargetWidth:  spec.TargetWidth,
				ActualWidth:  rend.Width,
				ActualHeight: rend.Height,
				StorageKey:   key,
				ByteSize:     len(rend.Data),
			}
		}(i, spec)
	}
	wg.Wait()

	results := make([]model.RenditionResult, 0, len(done))
	errMsgs := make([]string, 0)
	for i := range done {
		switch {
		case done[i] != nil:
			metrics.RenditionsTotal.WithLabelValues("ok").Inc()
			results = append(results, *done[i])
		default:
			metrics.RenditionsTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(failures[i]).Str("photo_id", job.PhotoID).Msg("Rendition target failed")
			errMsgs = append(errMsgs, failures[i].Error())
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrAllRenditionsFailed, strings.Join(errMsgs, "; "))
	}
	return results, nil
}

func (p *Pipeline) detectLabels(ctx context.Context, storageKey string) ([]model.Label, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	return p.vision.DetectLabels(opCtx, storageKey, p.cfg.MinConfidence, p.cfg.MaxLabels)
}

// persist writes the photo row, the rendition rows and the label rows. All
// three must land before the notifier is called.
func (p *Pipeline) persist(ctx context.Context, photoID string, res *model.ProcessingResult, labels []model.Label) error {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	if err := p.repo.UpdateResult(opCtx, photoID, res); err != nil {
		return fmt.Errorf("update photo row: %w", err)
	}
	if err := p.repo.SaveRenditions(opCtx, photoID, res.Renditions, res.ThumbnailKey); err != nil {
		return fmt.Errorf("save rendition rows: %w", err)
	}
	if err := p.repo.SaveLabels(opCtx, photoID, labels, res.Tags); err != nil {
		return fmt.Errorf("save label rows: %w", err)
	}
	return nil
}

// notify swallows delivery errors: the photo is already durable, re-marking it
// failed here would lie about successfully processed artifacts.
func (p *Pipeline) notify(ctx context.Context, photoID string, res *model.ProcessingResult) {
	logger := mwlogger.LoggerFromContext(ctx)

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	if err := p.notifier.Notify(opCtx, photoID, res); err != nil {
		metrics.NotifyFailures.Inc()
		logger.Error().Err(err).Str("photo_id", photoID).Msg("Completion notification failed")
	}
}
