package metrics

import (
	"time"
)

// RecordPresenceReport counts an accepted report. channel is "request" or "beacon".
func (m *Metrics) RecordPresenceReport(status, channel string) {
	m.safeExecute("RecordPresenceReport", func() {
		m.PresenceReportsTotal.WithLabelValues(status, channel).Inc()
	})
}

// RecordGeoLookup counts a lookup outcome: resolved, failed, not_found, skipped, cached, canceled or circuit_open.
func (m *Metrics) RecordGeoLookup(result string) {
	m.safeExecute("RecordGeoLookup", func() {
		m.GeoLookupsTotal.WithLabelValues(result).Inc()
	})
}

func (m *Metrics) IncrementProfileWriteFailures() {
	m.safeExecute("IncrementProfileWriteFailures", func() {
		m.ProfileWriteFailures.Inc()
	})
}

func (m *Metrics) IncrementEventPublishFailures(topic string) {
	m.safeExecute("IncrementEventPublishFailures", func() {
		m.EventPublishFailures.WithLabelValues(topic).Inc()
	})
}

// SetPresenceUsers replaces the per-status gauge values.
func (m *Metrics) SetPresenceUsers(counts map[string]int64) {
	m.safeExecute("SetPresenceUsers", func() {
		m.PresenceUsers.Reset()
		for status, n := range counts {
			m.PresenceUsers.WithLabelValues(status).Set(float64(n))
		}
	})
}

// RecordJobRun records the outcome and duration of one job execution.
func (m *Metrics) RecordJobRun(job string, duration time.Duration, err error) {
	m.safeExecute("RecordJobRun", func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		m.JobRunsTotal.WithLabelValues(job, result).Inc()
		m.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	})
}

func (m *Metrics) AddJobItems(job string, processed, failed int) {
	m.safeExecute("AddJobItems", func() {
		m.JobItemsProcessed.WithLabelValues(job).Add(float64(processed))
		m.JobItemFailures.WithLabelValues(job).Add(float64(failed))
	})
}

func (m *Metrics) IncrementNotificationsCreated(category string) {
	m.safeExecute("IncrementNotificationsCreated", func() {
		m.NotificationsCreated.WithLabelValues(category).Inc()
	})
}

// AddDecayRows records rows touched by the decay job, e.g. ("pattern", "flagged").
func (m *Metrics) AddDecayRows(kind, action string, n int) {
	m.safeExecute("AddDecayRows", func() {
		m.DecayRowsTotal.WithLabelValues(kind, action).Add(float64(n))
	})
}

func (m *Metrics) AddPresenceMarkedOffline(n int64) {
	m.safeExecute("AddPresenceMarkedOffline", func() {
		m.PresenceMarkedOfflineTotal.Add(float64(n))
	})
}
