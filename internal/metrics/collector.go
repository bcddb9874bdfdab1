package metrics

import (
	"time"

	"media-library/internal/logging"
)

// StatsProvider reports library-level counts for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics
type Stats struct {
	TotalImages      int
	TotalVideos      int
	TotalAudio       int
	MissingThumbnail int
}

// Collector periodically copies library statistics into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	MediaAssetsTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	MediaAssetsTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	MediaAssetsTotal.WithLabelValues("audio").Set(float64(stats.TotalAudio))
	MediaAssetsMissingThumbnail.Set(float64(stats.MissingThumbnail))

	logging.Debug("Metrics collected: images=%d, videos=%d, audio=%d, missing=%d",
		stats.TotalImages, stats.TotalVideos, stats.TotalAudio, stats.MissingThumbnail)
}
