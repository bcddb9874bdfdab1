package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/delivery"
	"media-library/internal/filesystem"
	"media-library/internal/handlers"
	"media-library/internal/indexer"
	"media-library/internal/logging"
	"media-library/internal/manager"
	"media-library/internal/media"
	"media-library/internal/memory"
	"media-library/internal/metrics"
	"media-library/internal/middleware"
	"media-library/internal/startup"
	"media-library/internal/telemetry"
	"media-library/internal/thumbnail"
	"media-library/internal/txgate"
)

// missingBatch caps the THUMB chains queued after each index pass.
const missingBatch = 1000

// services holds everything shutdown has to stop, in stop order.
type services struct {
	srv       *http.Server
	watcher   *indexer.Watcher
	idx       *indexer.Indexer
	worker    *asyncworker.Worker
	loop      *delivery.Loop
	mgr       *manager.Manager
	collector *metrics.Collector
	mem       *memory.Monitor
	db        *database.Database
}

func main() {
	startTime := time.Now()

	if err := startup.LoadDotEnv(); err != nil {
		startup.LogFatal("Failed to load .env: %v", err)
	}
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	metrics.InitializeMetrics()
	initFilesystemMetrics(config.MediaDir, config.ThumbnailDir, config.DatabasePath)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))
	gate := txgate.New(db, config.TxWaitTimeout)

	mem := memory.NewMonitor(memory.DefaultConfig())
	mem.Start()

	// Background task scheduler
	workerCfg := asyncworker.DefaultConfig()
	workerCfg.Memory = mem
	worker := asyncworker.New(workerCfg)
	worker.Start()

	// Thumbnail engine
	vipsErr := media.InitVips()
	if vipsErr != nil {
		logging.Warn("libvips unavailable, using pure Go decoders: %v", vipsErr)
	}
	startup.LogThumbnailInit(config, vipsErr == nil)
	codec := media.NewCodec()
	gen := thumbnail.NewGenerator(thumbnail.Config{
		CacheDir:      config.ThumbnailDir,
		ScreenSize:    config.ScreenSize,
		WaitTimeout:   config.ThumbWaitTimeout,
		TimeoutPolicy: config.TimeoutPolicy,
	}, db, gate, codec, worker, telemetry.LogSink{})

	// Pixel request manager; deliveries run on a single loop goroutine.
	mgr := manager.New(gen, codec, manager.Config{
		FastWorkers:    config.FastWorkers,
		QualityWorkers: config.QualityWorkers,
		Layout:         gen.Layout(),
	})
	mgr.Init()
	loop := delivery.NewLoop(64)
	go loop.Run(context.Background())

	// Indexer and watcher
	startup.LogIndexerInit(config)
	idx := indexer.New(indexer.Config{
		MediaDir: config.MediaDir,
		Interval: config.IndexInterval,
		Walker:   indexer.DefaultParallelWalkerConfig(),
		Memory:   mem,
	}, db, gate, gen)
	idx.SetOnIndexComplete(func(indexer.Result) {
		if n, err := gen.GenerateMissing(context.Background(), missingBatch); err != nil {
			logging.Warn("Failed to queue missing thumbnails: %v", err)
		} else if n > 0 {
			logging.Info("Queued %d missing thumbnails after index", n)
		}
		if n, err := gen.AgeLCD(context.Background(), config.LCDKeep); err != nil {
			logging.Warn("LCD aging failed: %v", err)
		} else if n > 0 {
			logging.Info("Aged out %d LCD artifacts", n)
		}
	})
	if config.IndexOnStart {
		idx.Start()
		startup.LogIndexerStarted()
	}

	var watcher *indexer.Watcher
	if config.WatchEnabled {
		watcher, err = indexer.NewWatcher(indexer.WatcherConfig{MediaDir: config.MediaDir}, db, gate, gen)
		if err != nil {
			logging.Error("Failed to create watcher: %v", err)
		} else if err := watcher.Start(); err != nil {
			logging.Error("Failed to start watcher: %v", err)
			watcher.Stop()
			watcher = nil
		}
	}

	collector := metrics.NewCollector(database.StatsProvider{DB: db}, time.Minute)
	collector.Start()

	// HTTP
	h := handlers.New(handlers.Deps{
		Library:   db,
		Indexer:   idx,
		Engine:    gen,
		Scheduler: worker,
		Requests:  mgr,
		Gate:      gate,
		Codec:     codec,
		Executor:  loop,
	}, handlers.Options{LCDKeep: config.LCDKeep})
	router := h.Router(config.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      middleware.Logger(middleware.DefaultLoggingConfig())(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(&services{
		srv:       srv,
		watcher:   watcher,
		idx:       idx,
		worker:    worker,
		loop:      loop,
		mgr:       mgr,
		collector: collector,
		mem:       mem,
		db:        db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

// initFilesystemMetrics labels filesystem operations by volume and routes
// them into the Prometheus registry.
func initFilesystemMetrics(mediaDir, cacheDir, dbPath string) {
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    mediaDir,
		"cache":    cacheDir,
		"database": filepath.Dir(dbPath),
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
}

var shutdownDone = make(chan struct{})

func handleShutdown(s *services) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if s.watcher != nil {
		startup.LogShutdownStep("Stopping watcher")
		s.watcher.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	startup.LogShutdownStep("Stopping indexer")
	s.idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Stopping thumbnail pipeline")
	dropped := s.worker.Interrupt()
	s.worker.Stop()
	s.loop.Close()
	<-s.loop.Done()
	s.mgr.Close()
	media.ShutdownVips()
	startup.LogShutdownStepComplete("Thumbnail pipeline stopped")
	if dropped > 0 {
		logging.Info("  Dropped %d queued background tasks", dropped)
	}

	s.collector.Stop()
	s.mem.Stop()

	startup.LogShutdownStep("Closing database")
	if err := s.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
