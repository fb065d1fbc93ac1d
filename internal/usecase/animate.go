package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
	"github.com/mexwill790-beep/wan/internal/domain/port"
	"github.com/mexwill790-beep/wan/internal/infra/metrics"
	"github.com/mexwill790-beep/wan/internal/worksource"
)

// AnimateRunUseCase drives one batch run: pick the reference image,
// walk the pending video queue and, per item, download, generate,
// upload and mark processed. Items are strictly sequential; the
// generation service is the bottleneck and rate-limits anyway.
type AnimateRunUseCase struct {
	store     port.FileStore
	generator port.VideoGenerator
	source    *worksource.Source
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       AnimateRunConfig
}

type AnimateRunConfig struct {
	PicFolderID string
	RefFolderID string
	OutFolderID string
	// MaxVideoBytes gates item downloads; zero disables the gate.
	MaxVideoBytes int64
	// TempDir is the parent of the per-run workspace; empty means the
	// system temp dir.
	TempDir        string
	NotificationTo string
}

func NewAnimateRunUseCase(
	store port.FileStore,
	generator port.VideoGenerator,
	source *worksource.Source,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg AnimateRunConfig,
) *AnimateRunUseCase {
	return &AnimateRunUseCase{
		store:     store,
		generator: generator,
		source:    source,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *AnimateRunUseCase) Execute(ctx context.Context) error {
	runID := uuid.New().String()
	log := uc.logger.With(zap.String("run_id", runID))

	if err := uc.run(ctx, runID, log); err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		uc.notifyFailure(ctx, runID, err, log)
		return err
	}
	metrics.RunsTotal.WithLabelValues("completed").Inc()
	return nil
}

func (uc *AnimateRunUseCase) run(ctx context.Context, runID string, log *zap.Logger) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnimateRunUseCase.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	ref, err := uc.source.PickReferenceImage(ctx, uc.cfg.PicFolderID)
	if err != nil {
		return err
	}
	log.Info("selected reference image",
		zap.String("name", ref.Name),
		zap.Time("modified", ref.SortTime()),
	)

	queue, err := uc.source.ListUnprocessedVideos(ctx, uc.cfg.RefFolderID)
	if err != nil {
		return err
	}
	metrics.QueueDepth.Set(float64(len(queue)))
	if len(queue) == 0 {
		log.Info("no unprocessed videos found, nothing to do")
		return nil
	}
	log.Info("discovered pending videos", zap.Int("count", len(queue)))

	// Resolved once; every item of the run uses the same endpoint.
	endpoint, err := uc.generator.ResolveEndpoint(ctx)
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	log.Info("using generation endpoint", zap.String("endpoint", endpoint))

	workDir, err := os.MkdirTemp(uc.cfg.TempDir, "animator-"+runID+"-")
	if err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// The reference is downloaded once and shared read-only by every
	// item in the run.
	refPath := filepath.Join(workDir, entity.SafeFileName(ref.Name))
	log.Info("downloading reference image", zap.String("name", ref.Name))
	if err := uc.store.Download(ctx, ref.ID, refPath); err != nil {
		return fmt.Errorf("download reference image: %w", err)
	}

	for _, item := range queue {
		if err := uc.processItem(ctx, endpoint, refPath, workDir, item, log); err != nil {
			// First unrecoverable failure aborts the remaining queue.
			return err
		}
	}
	return nil
}

func (uc *AnimateRunUseCase) processItem(ctx context.Context, endpoint, refPath, workDir string, item entity.RemoteFile, log *zap.Logger) error {
	tracer := otel.Tracer("usecase")
	log = log.With(zap.String("video", item.Name))

	sizeMB := float64(item.Size) / (1 << 20)
	if uc.cfg.MaxVideoBytes > 0 && item.Size > uc.cfg.MaxVideoBytes {
		log.Warn("skipping oversized video", zap.Float64("size_mb", sizeMB))
		metrics.ItemsProcessedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	log.Info("processing video", zap.Float64("size_mb", sizeMB))
	totalTimer := time.Now()

	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, entity.SafeFileName(item.Name))
	if err := uc.store.Download(dlCtx, item.ID, videoPath); err != nil {
		spanDl.End()
		return fmt.Errorf("download %s: %w", item.Name, err)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	genStart := time.Now()
	genCtx, spanGen := tracer.Start(ctx, "generate")
	artifact, err := uc.generator.Generate(genCtx, endpoint, refPath, videoPath, workDir)
	if err != nil {
		spanGen.End()
		return fmt.Errorf("generate for %s: %w", item.Name, err)
	}
	spanGen.End()
	metrics.StageDuration.WithLabelValues("generate").Observe(time.Since(genStart).Seconds())

	outName := entity.OutputName(item.Name)
	upStart := time.Now()
	upCtx, spanUp := tracer.Start(ctx, "upload_output")
	outID, err := uc.store.Upload(upCtx, artifact, uc.cfg.OutFolderID, outName)
	if err != nil {
		spanUp.End()
		return fmt.Errorf("upload %s: %w", outName, err)
	}
	spanUp.End()
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())
	log.Info("uploaded output", zap.String("name", outName), zap.String("id", outID))

	// Rename strictly after the upload: a crash in between costs a
	// duplicate regeneration on the next run, never a lost output.
	newName := entity.ProcessedName(item.Name)
	if err := uc.store.Rename(ctx, item.ID, newName); err != nil {
		return fmt.Errorf("rename %s: %w", item.Name, err)
	}
	log.Info("marked video processed", zap.String("new_name", newName))

	metrics.ItemsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *AnimateRunUseCase) notifyFailure(ctx context.Context, runID string, runErr error, log *zap.Logger) {
	if uc.notifier == nil || uc.cfg.NotificationTo == "" {
		return
	}
	if err := uc.notifier.NotifyFailure(ctx, uc.cfg.NotificationTo, runID, runErr.Error()); err != nil {
		log.Error("failed to send failure notification", zap.Error(err))
	}
}
