package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"dispatchline/internal/callflow"
	"dispatchline/internal/config"
	"dispatchline/internal/dialogue"
	"dispatchline/internal/handler"
	"dispatchline/internal/middleware"
	"dispatchline/internal/persona"
	"dispatchline/internal/repository/postgres"
	"dispatchline/internal/session"
	"dispatchline/internal/speech"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load and validate configuration - missing credentials fail startup
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logOut := os.Stdout
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		f, err := config.SetupLogFile(dir, 10)
		if err != nil {
			log.Fatalf("Failed to setup log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"public_base_url", cfg.PublicBaseURL,
	)

	// Load the agent persona manifest
	personas, err := persona.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load personas: %v", err)
	}
	agent := personas.Default()

	// Audio store backing the /static/ route
	audio, err := speech.NewAudioStore(cfg.StaticDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to create audio store: %v", err)
	}

	// Speech synthesizer (Google TTS, primary + fallback voice)
	synth, err := speech.NewGoogleClient(speech.Config{
		APIKey: cfg.GoogleTTSAPIKey,
		Store:  audio,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create synthesizer: %v", err)
	}

	// Dialogue engine
	generator, err := dialogue.NewFromAPIKey(cfg.OpenAIAPIKey, dialogue.Options{
		Model:    cfg.Model,
		Persona:  agent,
		MaxTurns: cfg.MaxHistoryTurns,
		Timeout:  30 * time.Second,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create dialogue generator: %v", err)
	}

	// Volatile session store
	sessions := session.NewStore(session.Config{
		MaxTurns: cfg.MaxHistoryTurns,
		IdleTTL:  cfg.SessionIdleTTL,
	}, logger)

	// Optional transcript archive
	ctx := context.Background()
	var archiver callflow.Archiver
	if cfg.CallLogDBURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.CallLogDBURL)
		if err != nil {
			log.Fatalf("Failed to create call log pool: %v", err)
		}
		defer pool.Close()

		repo, err := postgres.NewCallLogRepository(ctx, pool, logger)
		if err != nil {
			log.Fatalf("Failed to create call log repository: %v", err)
		}
		archiver = repo
		logger.Info("transcript archive enabled")
	}

	// State machine
	machine := callflow.NewMachine(sessions, generator, synth, audio, agent, archiver, callflow.Config{
		ConfidenceMin:      cfg.ConfidenceMin,
		FirstGatherTimeout: cfg.FirstGatherTimeout,
		GatherTimeout:      cfg.GatherTimeout,
		FirstSpeechTimeout: cfg.FirstSpeechTimeout,
		SpeechTimeout:      cfg.SpeechTimeout,
		ProcessPath:        "/voice/process",
		ContinuePath:       "/voice/continue",
	}, logger)

	// Idle reaper: evicted sessions get archived like hung-up ones. Stale
	// synthesized audio is garbage collected on every tick - calls that end
	// through the normal hangup path never evict, so the cleanup cannot
	// depend on evictions happening.
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	sessions.StartReaper(reaperCtx, cfg.ReaperInterval, func(evicted []session.CallSession) {
		for _, s := range evicted {
			machine.HandleEvicted(s)
		}
		if err := audio.CleanupOlderThan(cfg.SessionIdleTTL); err != nil {
			logger.Warn("audio cleanup failed", "error", err)
		}
	})

	voiceHandler := handler.NewVoiceHandler(machine, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", voiceHandler.HealthCheck)

	// Provider webhook routes
	mux.HandleFunc("POST /voice", voiceHandler.Inbound)
	mux.HandleFunc("GET /voice", voiceHandler.InboundHint)
	mux.HandleFunc("POST /voice/process", voiceHandler.SpeechResult)
	mux.HandleFunc("POST /voice/continue", voiceHandler.Continue)
	mux.HandleFunc("POST /voice/hangup", voiceHandler.CallEnded)

	// Synthesized audio and filler clips the provider fetches for playback
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(audio.Dir()))))

	// Debug routes (only in dev environment)
	if cfg.Environment == "dev" {
		debugHandler := handler.NewDebugHandler(sessions)
		mux.HandleFunc("GET /debug/api/calls", debugHandler.ListCalls)
		mux.HandleFunc("GET /debug/api/calls/{sid}", debugHandler.GetCall)
		logger.Warn("DEBUG MODE: session inspection endpoints enabled (NEVER use in production!)")
	}

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Signature → Routes
	h = middleware.ValidateSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL, logger)(h)
	h = middleware.Recovery(logger, agent.ApologyLine)(h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
