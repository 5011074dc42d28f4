// Package events provides event bus implementations and the typed
// subscription helper shared by them.
//
// Implementations:
//   - memory: in-process broadcast bus with bounded per-subscriber buffers
//   - redis: Redis Streams bridge for consumers in other processes
package events
