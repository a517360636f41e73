package handler

import "net/http"

// Routes registers the inventory API on mux
func Routes(mux *http.ServeMux, h *InventoryHandler) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/installs/{id}/network-number", h.AllocateNetworkNumber)
	mux.HandleFunc("POST /api/reconcile", h.TriggerReconcile)
	mux.HandleFunc("POST /api/snapshots", h.ReconcileSnapshot)
	mux.HandleFunc("GET /api/adapters", h.ListAdapters)
}
