package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"video-studio-server/modules/common/config"
	"video-studio-server/modules/common/gemini"
	"video-studio-server/modules/common/logger"
	redisClient "video-studio-server/modules/common/redis"
	"video-studio-server/modules/generation"
	"video-studio-server/modules/kling"
	"video-studio-server/modules/media"
	"video-studio-server/modules/session"
	"video-studio-server/modules/studio"
	"video-studio-server/modules/veo3"
)

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := logger.New(false)
		boot.Fatal().Err(err).Msg("❌ Failed to load config")
	}

	log := logger.New(cfg.IsDevelopment())
	if !cfg.DotEnvLoaded {
		log.Debug().Msg("No .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 미디어 스토어 (업로드 + 생성 결과)
	store := media.NewStore(cfg.MediaTTL, logger.Module(log, "Media"))
	store.OnRelease(func(h media.Handle) {
		log.Debug().Str("handle", h.ID).Str("kind", string(h.Kind)).Msg("🗑️ Media released")
	})

	// 영상 생성 백엔드
	var videos generation.VideoService
	switch cfg.VideoProvider {
	case config.ProviderKling:
		videos = kling.NewService(kling.NewConfig(cfg), logger.Module(log, "Kling"))
	default:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to create genai client")
		}
		videos = veo3.NewService(client, veo3.NewConfig(cfg), logger.Module(log, "Veo"))
	}

	opts := session.Options{
		Generation: generation.Options{
			PollInterval:   cfg.PollInterval,
			PhraseInterval: cfg.PhraseInterval,
			MaxPolls:       cfg.MaxPolls,
			PollTimeout:    cfg.PollTimeout,
		},
		DefaultModel: cfg.DefaultModel(),
		IdleTTL:      cfg.SessionIdleTTL,
	}

	// Redis 는 선택 (인스턴스 간 스냅샷 릴레이)
	var fanout *redisClient.Fanout
	handlerOpts := studio.Options{MaxUploadBytes: cfg.MaxUploadBytes}
	if cfg.RedisEnabled() {
		rdb, err := redisClient.Connect(ctx, cfg, logger.Module(log, "Redis"))
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
		}
		defer rdb.Close()

		fanout = redisClient.NewFanout(rdb, uuid.NewString(), logger.Module(log, "Redis"))
		opts.Publisher = fanout
		handlerOpts.RedisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	manager := session.NewManager(videos, store, opts, logger.Module(log, "Session"))
	handler := studio.NewHandler(manager, store, handlerOpts, logger.Module(log, "Studio"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("provider", cfg.VideoProvider).Str("model", cfg.DefaultModel()).Dur("pollInterval", cfg.PollInterval).
			Msg("🚀 Video Studio Server starting")
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?session={id}", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return manager.RunCleanup(gctx, cfg.SessionCleanupSchedule)
	})

	if fanout != nil {
		g.Go(func() error {
			return fanout.Relay(gctx, manager.Deliver)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("🛑 Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		manager.CloseAll()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("❌ Server stopped with error")
		os.Exit(1)
	}
	log.Info().Int("releasedMedia", store.Released()).Msg("👋 Server stopped")
}
