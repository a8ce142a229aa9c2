// Package server provides the admin HTTP API for the gateway.
//
// The server exposes device lifecycle control, messaging, and real-time
// event streaming over a Chi-based router. All state lives in the store
// and the session service; handlers stay thin.
//
// # API Endpoints
//
//   - /device: register a device and start its session
//   - /device/{deviceID}: status, deletion
//   - /device/{deviceID}/connect, /disconnect, /restart: session control
//   - /device/{deviceID}/qr: current pairing payload
//   - /device/{deviceID}/webhook: inbound delivery configuration
//   - /device/{deviceID}/message: send and list messages
//   - /device/{deviceID}/chats, /stats, /logs: provider and bookkeeping reads
//   - /event: Server-Sent Events stream of bus events
//   - /health: liveness probe
//
// # Errors
//
// Every error response carries the same JSON envelope:
//
//	{"error": {"code": "NOT_FOUND", "message": "..."}}
//
// Session errors map onto HTTP statuses in writeServiceError: unknown
// devices become 404, duplicate or not-connected sessions 409, the retry
// limit 429, and initialization timeouts 408.
//
// # Authentication
//
// With an API key configured every route except /health requires
// "Authorization: Bearer <key>". Without one the API is open, which is
// the expected setup behind a private interface.
//
// # Usage Example
//
//	cfg := server.DefaultConfig()
//	cfg.Port = 8320
//
//	srv := server.New(cfg, st, sessions)
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// # SSE
//
// GET /event streams every bus event as {"type": ..., "data": ...}
// payloads with a 30s heartbeat. A ?device= query narrows the stream to
// one device's events.
package server
