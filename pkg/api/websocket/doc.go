// Package websocket provides real-time chat update streaming via WebSocket.
//
// Clients connect to /api/v1/chat/ws and receive the raw body of every chat
// update the poller emits, one text frame per update.
package websocket
