package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"media-library/internal/logging"
	"media-library/internal/thumbnail"
	"media-library/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaDir       string
	CacheDir       string
	DatabaseDir    string
	Port           string
	MetricsEnabled bool
	LogLevel       string

	// Thumbnail engine
	ScreenSize       int
	ThumbWaitTimeout time.Duration
	TimeoutPolicy    thumbnail.TimeoutPolicy
	TxWaitTimeout    time.Duration
	LCDKeep          int
	FastWorkers      int
	QualityWorkers   int

	// Indexing
	IndexOnStart  bool
	IndexInterval time.Duration
	WatchEnabled  bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// Defaults for values not set in the environment.
const (
	DefaultLCDKeep       = 100
	DefaultIndexInterval = 6 * time.Hour
)

// LoadDotEnv seeds the environment from the given files, or ./.env when
// none are given. Variables already set are left alone and missing files
// are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load %s: %w", strings.Join(present, ", "), err)
	}
	return nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		MediaDir:         getEnv("MEDIA_DIR", "/media"),
		CacheDir:         getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:      getEnv("DATABASE_DIR", "/database"),
		Port:             getEnv("PORT", "8080"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ScreenSize:       getEnvInt("SCREEN_SIZE", thumbnail.DefaultScreenSize),
		ThumbWaitTimeout: getEnvDuration("THUMB_WAIT_TIMEOUT", thumbnail.DefaultWaitTimeout),
		TxWaitTimeout:    getEnvDuration("TX_WAIT_TIMEOUT", time.Second),
		LCDKeep:          getEnvInt("LCD_KEEP", DefaultLCDKeep),
		FastWorkers:      workers.FastPool(),
		QualityWorkers:   workers.QualityPool(),
		IndexOnStart:     getEnvBool("INDEX_ON_START", true),
		IndexInterval:    getEnvDuration("INDEX_INTERVAL", DefaultIndexInterval),
		WatchEnabled:     getEnvBool("WATCH_ENABLED", true),
	}
	if getEnvBool("THUMB_WAIT_FAIL", false) {
		cfg.TimeoutPolicy = thumbnail.TimeoutFail
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	logging.Info("  MEDIA_DIR:              %s", cfg.MediaDir)
	logging.Info("  CACHE_DIR:              %s", cfg.CacheDir)
	logging.Info("  DATABASE_DIR:           %s", cfg.DatabaseDir)
	logging.Info("  PORT:                   %s", cfg.Port)
	logging.Info("  METRICS_ENABLED:        %v", cfg.MetricsEnabled)
	logging.Info("  SCREEN_SIZE:            %d", cfg.ScreenSize)
	logging.Info("  THUMB_WAIT_TIMEOUT:     %v (policy: %s)", cfg.ThumbWaitTimeout, cfg.TimeoutPolicy)
	logging.Info("  TX_WAIT_TIMEOUT:        %v", cfg.TxWaitTimeout)
	logging.Info("  LCD_KEEP:               %d", cfg.LCDKeep)
	logging.Info("  FAST_THUMB_WORKERS:     %d", cfg.FastWorkers)
	logging.Info("  QUALITY_THUMB_WORKERS:  %d", cfg.QualityWorkers)
	logging.Info("  INDEX_ON_START:         %v", cfg.IndexOnStart)
	logging.Info("  INDEX_INTERVAL:         %v", cfg.IndexInterval)
	logging.Info("  WATCH_ENABLED:          %v", cfg.WatchEnabled)
	logging.Info("  LOG_LEVEL:              %s", logging.GetLevel())

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	for _, dir := range []*string{&cfg.MediaDir, &cfg.CacheDir, &cfg.DatabaseDir} {
		if *dir, err = filepath.Abs(*dir); err != nil {
			return nil, fmt.Errorf("failed to resolve directory path: %w", err)
		}
	}
	logging.Info("  Media directory (absolute):    %s", cfg.MediaDir)
	logging.Info("  Cache directory (absolute):    %s", cfg.CacheDir)
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "media.db")
	cfg.ThumbnailDir = filepath.Join(cfg.CacheDir, "thumbnails")

	// Media directory is mounted, not created; problems are only logged
	if err := checkMediaDir(cfg.MediaDir); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Unlike the database, the artifact cache has no fallback: the manager
	// and the engine both need it.
	if err := ensureDirectory(cfg.ThumbnailDir, "thumbnails"); err != nil {
		return nil, fmt.Errorf("thumbnail directory error: %w", err)
	}
	if err := testWriteAccess(cfg.ThumbnailDir); err != nil {
		return nil, fmt.Errorf("thumbnail directory is not writable: %w", err)
	}
	logging.Info("  [OK] Thumbnail directory is writable")

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ScreenSize < thumbnail.ThumbSize {
		errs = append(errs, fmt.Errorf("SCREEN_SIZE must be at least %d, got %d", thumbnail.ThumbSize, c.ScreenSize))
	}
	if c.ThumbWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("THUMB_WAIT_TIMEOUT must be positive, got %v", c.ThumbWaitTimeout))
	}
	if c.TxWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TX_WAIT_TIMEOUT must be positive, got %v", c.TxWaitTimeout))
	}
	if c.LCDKeep < 0 {
		errs = append(errs, fmt.Errorf("LCD_KEEP must not be negative, got %d", c.LCDKeep))
	}
	return errors.Join(errs...)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs the decoders available to the thumbnail engine.
func LogThumbnailInit(cfg *Config, vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Artifact cache:   %s", cfg.ThumbnailDir)
	logging.Info("  Request workers:  %d fast, %d quality", cfg.FastWorkers, cfg.QualityWorkers)
	logging.Info("  libvips:          %s", enabledString(vipsAvailable))

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails will not be generated")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Index on start:  %v", cfg.IndexOnStart)
	logging.Info("  Index interval:  %v", cfg.IndexInterval)
	logging.Info("  File watcher:    %s", enabledString(cfg.WatchEnabled))
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Debug("  Registered routes (%d total):", len(routes))

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}
	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Ops API:       http://0.0.0.0:%s/api/stats", config.Port)
	logging.Info("    Health:        http://0.0.0.0:%s/healthz", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   __  ___        ___        __    _ __
  /  |/  /__ ___/ (_)__ _  / /   (_) /  _______ _______ __
 / /|_/ / -_) _  / / _ '/ / /__ / / _ \/ __/ _ '/ __/ // /
/_/  /_/\__/\_,_/_/\_,_/ /____//_/_.__/_/  \_,_/_/  \_, /
                                                   /___/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func checkMediaDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(first))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
