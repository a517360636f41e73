// Package handler implements the HTTP API of meshinv.
//
// InventoryHandler exposes network number allocation, on-demand
// reconciliation and a health probe. Errors are returned as JSON with an
// {error, details} body; domain errors map to 404 (unknown install or
// adapter) and 409 (exhausted range, failed precondition, pass already
// running).
//
// Middleware provides panic recovery, CORS and request logging with a
// Prometheus request counter.
package handler
