// Package api implements the HTTP REST API and WebSocket server for the
// discovery engine.
//
// This package provides:
//   - REST endpoints for starting and stopping discovery sessions
//   - Traffic ledger and session history queries
//   - Raw frame injection for manual bus interrogation
//   - WebSocket hub broadcasting discovery events to UI clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits between user interfaces and the discovery
// orchestrator. Start/stop commands flow to the orchestrator, which drives
// the gateway transports; discovered devices and session outcomes flow back
// through the WebSocket hub and the persisted session history.
//
// # Graceful Degradation
//
// The server operates without a bus recorder — discovery control and the
// event stream work, only traffic and history queries return 503.
package api
