// Package ports defines the contracts shared by the session poller and its
// adapters: the event wire shape, the event bus and the metrics collector.
package ports
