// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Launch entries and their last run
//   - Launch requests and run cancellation
//   - Run status and results
//   - Health checks
//   - Prometheus metrics
package http
