// Package http provides the HTTP API of the session poller.
//
// The HTTP server exposes endpoints for:
//   - Session status
//   - Health checks
//   - Prometheus metrics
//   - Live chat streaming over WebSocket, when a handler is attached
package http
