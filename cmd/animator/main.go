package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mexwill790-beep/wan/internal/domain/port"
	"github.com/mexwill790-beep/wan/internal/infra/config"
	"github.com/mexwill790-beep/wan/internal/infra/drive"
	"github.com/mexwill790-beep/wan/internal/infra/email"
	"github.com/mexwill790-beep/wan/internal/infra/gradio"
	"github.com/mexwill790-beep/wan/internal/infra/metrics"
	miniostorage "github.com/mexwill790-beep/wan/internal/infra/minio"
	"github.com/mexwill790-beep/wan/internal/infra/tracing"
	"github.com/mexwill790-beep/wan/internal/usecase"
	"github.com/mexwill790-beep/wan/internal/worksource"
	"github.com/mexwill790-beep/wan/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting wan animator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	store, err := newFileStore(ctx, cfg)
	fatalOnErr(err, "create file store")

	generator := gradio.NewClient(gradio.ClientConfig{
		BaseURL:     cfg.SpaceURL,
		Token:       cfg.HFToken,
		MaxAttempts: cfg.MaxAttempts,
	}, log)

	var notifier port.FailureNotifier
	if cfg.NotificationTo != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	}

	if cfg.TempDir != "" {
		fatalOnErr(os.MkdirAll(cfg.TempDir, 0o755), "create temp dir")
	}

	uc := usecase.NewAnimateRunUseCase(
		store,
		generator,
		worksource.New(store),
		notifier,
		log,
		usecase.AnimateRunConfig{
			PicFolderID:    cfg.PicFolderID,
			RefFolderID:    cfg.RefFolderID,
			OutFolderID:    cfg.OutFolderID,
			MaxVideoBytes:  cfg.MaxVideoMB << 20,
			TempDir:        cfg.TempDir,
			NotificationTo: cfg.NotificationTo,
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	runErr := uc.Execute(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		log.Sync()
		os.Exit(1)
	}
	log.Info("run completed")
}

func newFileStore(ctx context.Context, cfg *config.Config) (port.FileStore, error) {
	switch cfg.StorageBackend {
	case "minio":
		s, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return drive.NewStorage(ctx, drive.StorageConfig{
			CredentialsJSON: cfg.DriveCredentialsJSON,
		})
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
