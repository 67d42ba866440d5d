// Package observability records workflow events (bootstraps, document
// writes, task transitions, approval decisions) in an append-only JSON Lines
// file and derives metrics and alerts from it on demand.
package observability
