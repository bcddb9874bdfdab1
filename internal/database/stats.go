package database

import (
	"context"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// StatsProvider adapts the database to metrics.StatsProvider.
type StatsProvider struct {
	DB *Database
}

// GetStats implements metrics.StatsProvider.
func (p StatsProvider) GetStats() metrics.Stats {
	s, err := p.DB.GetStats(context.Background())
	if err != nil {
		logging.Warn("Failed to collect asset stats: %v", err)
		return metrics.Stats{}
	}
	p.DB.UpdateDBMetrics()
	return metrics.Stats{
		TotalImages:      s.TotalImages,
		TotalVideos:      s.TotalVideos,
		TotalAudio:       s.TotalAudio,
		MissingThumbnail: s.MissingThumbnail,
	}
}
