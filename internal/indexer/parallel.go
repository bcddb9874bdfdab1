package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel stat workers (0 = auto, I/O scaled)
	NumWorkers int
	// ChannelBuffer is the size of the job and result channel buffers
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns defaults sized for network mounts.
// INDEX_WORKERS overrides the worker count.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForIO(8),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

type fileJob struct {
	path string
	d    fs.DirEntry
}

// ParallelWalker walks a media tree and stats supported files on a pool of
// workers.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string

	filesProcessed atomic.Int64
	skipped        atomic.Int64
	errorsCount    atomic.Int64
}

// NewParallelWalker creates a walker rooted at root.
func NewParallelWalker(root string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForIO(8)
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 1000
	}
	return &ParallelWalker{config: config, root: root}
}

// Walk returns every supported asset under the root. Assets carry absolute
// paths. A canceled context stops the walk and returns what was found so far
// together with ctx.Err().
func (pw *ParallelWalker) Walk(ctx context.Context) ([]database.Asset, error) {
	start := time.Now()
	jobs := make(chan fileJob, pw.config.ChannelBuffer)
	results := make(chan database.Asset, pw.config.ChannelBuffer)

	var wg sync.WaitGroup
	for i := 0; i < pw.config.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if a, ok := pw.processFile(job); ok {
					select {
					case results <- a:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	var assets []database.Asset
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for a := range results {
			assets = append(assets, a)
		}
	}()

	walkErr := pw.walkAndEnqueue(ctx, jobs)
	close(jobs)
	wg.Wait()
	close(results)
	<-collected

	logging.Info("Parallel walk of %s complete: %d files in %v (skipped: %d, errors: %d)",
		pw.root, pw.filesProcessed.Load(), time.Since(start), pw.skipped.Load(), pw.errorsCount.Load())

	if walkErr != nil {
		return assets, walkErr
	}
	return assets, ctx.Err()
}

func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context, jobs chan<- fileJob) error {
	return filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if path == pw.root {
				return err
			}
			pw.errorsCount.Add(1)
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if path == pw.root {
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !mediatypes.KindForPath(path).Supported() {
			pw.skipped.Add(1)
			return nil
		}

		select {
		case jobs <- fileJob{path: path, d: d}:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) processFile(job fileJob) (database.Asset, bool) {
	info, err := job.d.Info()
	if err != nil {
		pw.errorsCount.Add(1)
		logging.Debug("Error getting info for %s: %v", job.path, err)
		return database.Asset{}, false
	}
	if !info.Mode().IsRegular() {
		pw.skipped.Add(1)
		return database.Asset{}, false
	}
	pw.filesProcessed.Add(1)
	return assetFromInfo(job.path, info), true
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, skipped, errors int64) {
	return pw.filesProcessed.Load(), pw.skipped.Load(), pw.errorsCount.Load()
}

func assetFromInfo(path string, info os.FileInfo) database.Asset {
	return database.Asset{
		Path:    path,
		Kind:    mediatypes.KindForPath(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
