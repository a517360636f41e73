// Package service implements the inventory business logic of meshinv.
//
// Services coordinate between the HTTP handlers, the polling adapters and the
// repository layer. Every write happens inside a repository transaction, and
// notifications describing a write are delivered only after it commits.
//
// # Services
//
// Allocator hands out network numbers to installs, reusing numbers already
// held by the install's building and recycling numbers donated by closed
// installs.
//
// DeviceReconciler and LinkReconciler merge an external inventory snapshot
// into devices and links. Each record is matched in its own transaction, so a
// bad record never aborts the pass. Records that disappear upstream are
// marked inactive, never deleted.
//
// LOSProjector records line of sight between buildings joined by an active
// wireless link.
//
// ReconcileService runs the three phases in order and reports a Result.
//
// # Notifications
//
// Notifier is the delivery seam for human-readable change reports. Sinks are
// combined with MultiNotifier; EventNotifier republishes them on the EventBus
// for Server-Sent Events clients.
package service
