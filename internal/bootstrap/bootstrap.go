// Package bootstrap provides dependency initialization for the Dream Visualizer API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/dreamvisualizer-api/internal/config"
	"github.com/maauso/dreamvisualizer-api/internal/openai"
	"github.com/maauso/dreamvisualizer-api/internal/pipeline"
	"github.com/maauso/dreamvisualizer-api/internal/prompt"
	"github.com/maauso/dreamvisualizer-api/internal/run"
	"github.com/maauso/dreamvisualizer-api/internal/speech"
	"github.com/maauso/dreamvisualizer-api/internal/storage"
	"github.com/maauso/dreamvisualizer-api/internal/video"
)

// Dependencies holds all initialized dependencies for the binaries.
type Dependencies struct {
	Pipeline     *pipeline.Pipeline
	VideoService *video.Service
	Runs         *run.Tracker
	Storage      storage.Storage
	VideoDir     string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := openai.NewClient(cfg.OpenAIBaseURL,
		openai.WithAPIKey(cfg.OpenAIAPIKey),
		openai.WithProject(cfg.OpenAIProject),
		openai.WithTimeout(cfg.RequestTimeout()),
		openai.WithDownloadTimeout(cfg.DownloadTimeout()),
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}

	downloader, err := video.NewDownloader(client, cfg.VideoDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create video downloader: %w", err)
	}

	videoOpts := []video.ServiceOption{
		video.WithPollInterval(cfg.VideoPollInterval),
		video.WithMaxAttempts(cfg.VideoPollMaxAttempts),
	}
	if cfg.S3Enabled() {
		videoOpts = append(videoOpts, video.WithMirror(store))
	}
	videoSvc := video.NewService(client, downloader, cfg.VideoModel, logger, videoOpts...)

	p := pipeline.New(
		speech.NewService(client, cfg.AudioModel, logger),
		prompt.NewEngineer(client, cfg.TextModel, logger),
		videoSvc,
		logger,
		pipeline.WithSkipVideoGeneration(cfg.SkipVideoGeneration),
	)

	return &Dependencies{
		Pipeline:     p,
		VideoService: videoSvc,
		Runs:         run.NewTracker(run.NewMemoryRepository(), logger),
		Storage:      store,
		VideoDir:     downloader.Dir(),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirror configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
