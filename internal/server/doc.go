// Package server provides the HTTP status API for running readers.
//
// Endpoints:
//
//   - GET /api/status: JSON snapshot of every reader's status
//   - GET /api/sse: Server-Sent Events stream of status updates
//   - GET /api/lines?limit=N: most recent stored lines, when a line store is configured
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
