package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first Prometheus scrape.
func InitializeMetrics() {
	volumes := []string{"media", "cache", "database", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"read", "write", "stat", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, tier := range []string{"THM", "MTH", "YEAR", "LCD"} {
		for _, status := range []string{"success", "error"} {
			ThumbnailGenerationsTotal.WithLabelValues(tier, status)
		}
	}
	for _, chain := range []string{"thumb", "lcd"} {
		ThumbnailGenerationDuration.WithLabelValues(chain)
	}
	for _, outcome := range []string{"insert", "wait_success", "timeout"} {
		ThumbnailDedupWaits.WithLabelValues(outcome)
	}
	for _, kind := range []string{"load", "compress", "persist", "metadata"} {
		ThumbnailErrors.WithLabelValues(kind)
	}

	for _, q := range []string{"fast", "quality"} {
		ManagerRequestsTotal.WithLabelValues(q)
		ManagerQueueDepth.WithLabelValues(q)
		for _, result := range []string{"delivered", "skipped", "failed"} {
			ManagerDeliveries.WithLabelValues(q, result)
		}
	}

	for _, p := range []string{"foreground", "background"} {
		SchedulerQueueDepth.WithLabelValues(p)
		SchedulerDropped.WithLabelValues(p)
		SchedulerTasksTotal.WithLabelValues(p, "success")
		SchedulerTasksTotal.WithLabelValues(p, "panic")
	}

	for _, outcome := range []string{"started", "timeout", "busy", "begin_error"} {
		TxGateOutcomes.WithLabelValues(outcome)
	}
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, kind := range []string{"image", "video", "audio"} {
		MediaAssetsTotal.WithLabelValues(kind)
	}
}
