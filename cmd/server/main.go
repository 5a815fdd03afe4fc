package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chase-replay/internal/api"
	"chase-replay/internal/config"
	"chase-replay/internal/feed"
	"chase-replay/internal/render"
	"chase-replay/internal/replay"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🎬 ================================")
	log.Println("🎬  CHASE REPLAY")
	log.Println("🎬 ================================")

	cfgPath := config.Path()
	appConfig, err := config.LoadFile(cfgPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration in %s: %v", cfgPath, err)
	}
	playbackCfg := appConfig.Playback
	dataCfg := appConfig.Data
	serverCfg := appConfig.Server

	// data dir may also be given as the first argument
	if len(os.Args) > 1 {
		dataCfg.Dir = os.Args[1]
	}

	opts := replay.Options{
		PingInterval: playbackCfg.PingInterval,
		TailStep:     playbackCfg.TailStep,
		TailCount:    playbackCfg.TailCount,
		MarkerSize:   playbackCfg.MarkerSize,

		CatchTolerance: playbackCfg.CatchTolerance,
	}
	loadSession := func() (*replay.Session, error) {
		return feed.LoadSession(dataCfg, opts)
	}

	session, err := loadSession()
	if err != nil {
		log.Fatalf("❌ Failed to load game from %s: %v", dataCfg.Dir, err)
	}

	log.Printf("🎬 Config: %d FPS, speed x%.0f, slow-mo x%.2f, pings every %s",
		playbackCfg.FPS, playbackCfg.SpeedFactor, playbackCfg.SlowMoFactor, playbackCfg.PingInterval)

	engine := replay.NewEngine(replay.EngineConfig{
		FPS:           playbackCfg.FPS,
		SpeedFactor:   playbackCfg.SpeedFactor,
		SlowMoFactor:  playbackCfg.SlowMoFactor,
		SlowMoEnabled: playbackCfg.SlowMoEnabled,
	})

	if dataCfg.JournalFile != "" {
		if err := engine.StartJournal(dataCfg.JournalFile); err != nil {
			log.Printf("⚠️ Journal disabled: %v", err)
		} else {
			log.Printf("📝 Journal: %s", dataCfg.JournalFile)
		}
	} else if err := engine.StartJournal(""); err != nil {
		log.Printf("⚠️ Journal disabled: %v", err)
	}

	if err := api.StartDebugServer(api.ObservabilityFromPort(serverCfg.DebugPort)); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	server := api.NewServer(engine, api.ServerOptions{
		Reload: loadSession,
		Render: render.Options{
			Width:   appConfig.Render.Width,
			Height:  appConfig.Render.Height,
			Padding: appConfig.Render.Padding,
		},
		CORSOrigins: serverCfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RateLimit,
			Burst:             serverCfg.RateBurst,
		},
	})

	engine.LoadSession(session)
	engine.Start()
	if playbackCfg.AutoPlay {
		if _, err := engine.Play(); err != nil {
			log.Printf("⚠️ Autoplay failed: %v", err)
		}
	}

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		log.Printf("🌐 Frames:   http://localhost%s/api/frame", addr)
		log.Printf("🖼️ Preview:  http://localhost%s/api/frame.png", addr)
		log.Printf("📱 Live:     ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	engine.Stop()
	engine.StopJournal()

	log.Println("👋 Goodbye!")
}
