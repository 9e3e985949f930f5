// Package server exposes the engine over HTTP.
//
// Routes:
//
//	POST /sessions                    create a session
//	GET  /sessions?match=<glob>       list session ids
//	GET  /sessions/{id}               full session state
//	GET  /sessions/{id}/turn          current turn projection
//	POST /sessions/{id}/start         start a pending session
//	POST /sessions/{id}/pause         pause a running session
//	POST /sessions/{id}/resume        resume a paused session
//	POST /sessions/{id}/end           end a session early
//	GET  /sessions/{id}/events        Server-Sent Events stream
//	GET  /stats                       aggregate statistics
//
// JSON responses use the envelope {"status": "ok", "data": ...}; failures
// use {"status": "ERROR", "code": ..., "message": ...}.
package server
