package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RickEth137/ClawStream/internal/archive"
	"github.com/RickEth137/ClawStream/internal/chatlog"
	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/internal/directory"
	"github.com/RickEth137/ClawStream/internal/engine"
	"github.com/RickEth137/ClawStream/internal/handler"
	"github.com/RickEth137/ClawStream/internal/hub"
	"github.com/RickEth137/ClawStream/internal/media"
	"github.com/RickEth137/ClawStream/internal/service"
	"github.com/RickEth137/ClawStream/internal/tts"
	"github.com/RickEth137/ClawStream/pkg/database"
	"github.com/RickEth137/ClawStream/pkg/jwt"
	"github.com/RickEth137/ClawStream/pkg/log"
	"github.com/RickEth137/ClawStream/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()
	l.Info().Int("port", cfg.Server.Port).Msg("starting clawstream")

	if cfg.Auth.JWTSecret == "" {
		l.Fatal().Msg("auth.jwt_secret is required")
	}
	jwtMgr := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize clip storage")
	}

	var synth tts.Synthesizer = tts.Noop{}
	if cfg.TTS.BaseURL != "" {
		synth = tts.NewOpenAIClient(cfg.TTS)
		l.Info().Str("base_url", cfg.TTS.BaseURL).Msg("tts synthesizer configured")
	} else {
		l.Warn().Msg("no tts backend configured, streams run silent")
	}

	var finder media.Finder = media.Noop{}
	if cfg.Media.GiphyAPIKey != "" {
		finder = media.NewGiphyClient(cfg.Media)
		l.Info().Msg("giphy media finder configured")
	}

	var arch archive.Repository = archive.Noop{}
	if cfg.Database.Driver != "" {
		db, err := database.New(&cfg.Database)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to database")
		}
		arch, err = archive.NewGormRepository(db)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to migrate archive schema")
		}
		l.Info().Str("driver", cfg.Database.Driver).Msg("stream archive enabled")
	}

	var dir directory.Directory = directory.Noop{}
	if cfg.Redis.Enabled {
		dir, err = directory.NewRedisDirectory(cfg.Redis)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to redis")
		}
		l.Info().Str("address", cfg.Redis.Address).Msg("stream directory enabled")
	}

	var cl chatlog.Producer = chatlog.Noop{}
	if cfg.Kafka.Enabled {
		cl, err = chatlog.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to kafka")
		}
		l.Info().Str("topic", cfg.Kafka.Topic).Msg("chat log enabled")
	}

	engineCfg := engine.Config{
		TickInterval:     cfg.Engine.TickInterval,
		ChatHistoryLimit: cfg.Engine.ChatHistoryLimit,
		Chunker: engine.Chunker{
			MaxSentenceWords: cfg.Engine.MaxSentenceWords,
			MaxClauseWords:   cfg.Engine.MaxClauseWords,
			HardSplitWords:   cfg.Engine.HardSplitWords,
		},
	}
	registry := engine.NewRegistry(engineCfg, nil, l)

	h := hub.NewHub()
	go h.Run()

	svc := service.NewStreamService(registry, jwtMgr, synth, finder, store, arch, dir, cl)
	wsHandler := handler.NewWSHandler(h, svc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(svc, registry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	httpHandler.RegisterRoutes(router)
	router.GET("/ws/studio", wsHandler.HandleStudio)
	router.GET("/ws/watch", wsHandler.HandleWatch)

	// Locally stored clips are served straight from disk.
	if local, ok := store.(*storage.LocalStorage); ok {
		router.Static("/media", local.BasePath())
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("http server failed")
		}
	}()
	l.Info().Str("addr", srv.Addr).Msg("clawstream listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.Stop(); err != nil {
		l.Warn().Err(err).Msg("service shutdown reported errors")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("http shutdown failed")
	}
	l.Info().Msg("clawstream stopped")
}
