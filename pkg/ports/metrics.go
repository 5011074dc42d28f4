package ports

import "time"

// MetricsCollector receives pipeline measurements
type MetricsCollector interface {
	RecordResolution(result string)
	RecordPoll(status string, duration time.Duration)
	RecordEventEmitted(event string)
	RecordEventLagged(event string, count int)
	RecordDecodeError(event string)
	SetActiveSubscriptions(count int)
	SetSessionHealthy(healthy bool)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordResolution(string) {}
func (NopMetrics) RecordPoll(string, time.Duration) {}
func (NopMetrics) RecordEventEmitted(string) {}
func (NopMetrics) RecordEventLagged(string, int) {}
func (NopMetrics) RecordDecodeError(string) {}
func (NopMetrics) SetActiveSubscriptions(int) {}
func (NopMetrics) SetSessionHealthy(bool) {}
