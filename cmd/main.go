package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/adapters/audio"
	"github.com/studyhall/voxley/adapters/backend"
	"github.com/studyhall/voxley/domain/entities"
	"github.com/studyhall/voxley/domain/repositories"
	"github.com/studyhall/voxley/internal/api"
	"github.com/studyhall/voxley/internal/auth"
	"github.com/studyhall/voxley/internal/config"
	"github.com/studyhall/voxley/internal/voicebot"
	"github.com/studyhall/voxley/usecase"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	tokens, err := auth.NewTokenStore(cfg.AuthToken)
	if err != nil {
		logger.Fatal("Invalid STUDYHALL_TOKEN", zap.Error(err))
	}

	platform, err := backend.New(backend.Config{BaseURL: cfg.APIBaseURL}, tokens, logger)
	if err != nil {
		logger.Fatal("Failed to create platform client", zap.Error(err))
	}

	// Audio capabilities
	audioCfg := repositories.DefaultAudioConfig()
	source := audio.NewMicSource(audioCfg, cfg.CaptureDevice, logger)

	var sink repositories.AudioSink
	sink, err = audio.NewFFplaySink("s16le", audioCfg, logger)
	if err != nil {
		logger.Warn("No local audio player, assistant audio will be silent", zap.Error(err))
		sink = audio.DiscardSink{}
	}
	defer sink.Close()

	// Voice session controller
	voiceCfg := voicebot.DefaultConfig(cfg.VoiceWSURL)
	voiceCfg.Voice = cfg.Voice
	voiceCfg.SystemPrompt = cfg.SystemPrompt
	controller := voicebot.NewController(voiceCfg, tokens, source, sink, logger)
	defer controller.Close()

	// Initialize usecase services
	conversation := usecase.NewConversationService(
		controller, tokens, entities.VoiceName(cfg.Voice), cfg.SystemPrompt, logger)
	defer conversation.Close()

	// Initialize the event stream hub
	hub := api.NewStreamHub(conversation, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.NewServer(conversation, platform, tokens, hub, logger))

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voxley companion started",
		zap.String("addr", cfg.Addr),
		zap.String("api", cfg.APIBaseURL),
		zap.String("voice_ws", cfg.VoiceWSURL))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Voxley exited")
}
