// Package websocket provides real-time status event streaming via WebSocket.
//
// Clients connect to /api/v1/events/ws for every run or to
// /api/v1/runs/:id/ws for one run; the run stream closes after the
// terminal state event.
package websocket
