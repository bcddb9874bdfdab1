package manager

import "media-library/internal/metrics"

func passLabel(fast bool) string {
	if fast {
		return "fast"
	}
	return "quality"
}

// notify posts a delivery to the request's executor. It returns false when
// the request is no longer wanted or the executor refused the work.
func (m *Manager) notify(req *Request, fast bool) bool {
	if !req.NeedContinue() {
		m.discard(req, fast)
		return false
	}
	if !req.exec.Post(func() { m.deliver(req, fast) }) {
		m.log.Warnf("executor rejected delivery for %s", req.ID)
		metrics.ManagerDeliveries.WithLabelValues(passLabel(fast), "failed").Inc()
		m.discard(req, fast)
		return false
	}
	return true
}

// deliver runs on the executor. The status is checked again here because
// RemoveRequest may have run since the delivery was posted.
func (m *Manager) deliver(req *Request, fast bool) {
	pm := req.takePixelMap(fast)
	status := req.Status()

	if status == StatusRemove {
		if err := pm.Release(); err != nil {
			m.log.Debugf("release pixel map for %s: %v", req.ID, err)
		}
		metrics.ManagerDeliveries.WithLabelValues(passLabel(fast), "skipped").Inc()
	} else {
		req.cb(pm, fast)
		metrics.ManagerDeliveries.WithLabelValues(passLabel(fast), "delivered").Inc()
	}

	if (status == StatusQuality && !fast) || status == StatusRemove {
		m.forget(req.ID)
	}
}

// discard drops an undeliverable pixel map and the request.
func (m *Manager) discard(req *Request, fast bool) {
	_ = req.takePixelMap(fast).Release()
	m.forget(req.ID)
}
