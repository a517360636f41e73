// Package adapter connects meshinv to sources of external inventory.
//
// An Adapter produces complete snapshots of devices and links. UISPAdapter
// polls a UISP NMS over its REST API; FileAdapter reads a snapshot exported
// to JSON or YAML and only runs on demand.
//
// Registry owns adapter lifecycles. Polling adapters are fetched on a fixed
// interval and every snapshot is handed to a ReconcileFunc. A failed fetch
// runs no reconciliation pass, since a partial snapshot would deactivate
// records that still exist upstream.
package adapter
