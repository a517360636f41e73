package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"meshinv/internal/adapter"
	"meshinv/internal/codec"
	"meshinv/internal/domain"
	"meshinv/internal/service"
)

// maxSnapshotBytes bounds uploaded snapshot bodies
const maxSnapshotBytes = 64 << 20

// NetworkNumberAllocator assigns network numbers to installs
type NetworkNumberAllocator interface {
	Allocate(ctx context.Context, installID string) (*service.AllocationResult, error)
}

// SyncTrigger runs adapter fetches on demand
type SyncTrigger interface {
	TriggerSync(ctx context.Context, name string) error
	TriggerSyncAll(ctx context.Context) error
	ListAdapters() []adapter.AdapterInfo
}

// SnapshotReconciler runs a reconciliation pass over a snapshot
type SnapshotReconciler interface {
	Run(ctx context.Context, snapshot *domain.Snapshot) (*service.Result, error)
}

// InventoryHandler handles inventory API requests
type InventoryHandler struct {
	allocator  NetworkNumberAllocator
	sync       SyncTrigger
	reconciler SnapshotReconciler
	logger     *zap.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(allocator NetworkNumberAllocator, reconciler SnapshotReconciler, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{
		allocator:  allocator,
		reconciler: reconciler,
		logger:     logger.Named("http"),
	}
}

// SetSyncTrigger sets the adapter registry used by TriggerReconcile
func (h *InventoryHandler) SetSyncTrigger(s SyncTrigger) {
	h.sync = s
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AllocateNetworkNumber assigns a network number to the install in the path.
// It answers 201 when a number was newly bound and 200 when the install
// already had one.
func (h *InventoryHandler) AllocateNetworkNumber(w http.ResponseWriter, r *http.Request) {
	installID := r.PathValue("id")
	if installID == "" {
		h.writeError(w, "Install ID required", "", http.StatusBadRequest)
		return
	}

	result, err := h.allocator.Allocate(r.Context(), installID)
	if err != nil {
		h.writeServiceError(w, "Failed to allocate network number", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, result, status)
}

// TriggerReconcile fetches from one adapter (?adapter=name) or all enabled
// adapters and reconciles the result
func (h *InventoryHandler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		h.writeError(w, "No inventory adapters configured", "", http.StatusServiceUnavailable)
		return
	}

	var err error
	name := r.URL.Query().Get("adapter")
	if name != "" {
		err = h.sync.TriggerSync(r.Context(), name)
	} else {
		err = h.sync.TriggerSyncAll(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, "Reconciliation failed", err)
		return
	}

	h.writeJSON(w, map[string]string{"status": "reconciled"}, http.StatusOK)
}

// ListAdapters returns the registered inventory adapters
func (h *InventoryHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	infos := []adapter.AdapterInfo{}
	if h.sync != nil {
		infos = h.sync.ListAdapters()
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// ReconcileSnapshot runs a pass over a snapshot in the request body. YAML
// bodies are accepted when the content type says so.
func (h *InventoryHandler) ReconcileSnapshot(w http.ResponseWriter, r *http.Request) {
	format := "json"
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = "yaml"
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		h.writeError(w, "Unsupported snapshot format", err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	snapshot, err := c.Parse(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		h.writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}
	if snapshot.Source == "" {
		snapshot.Source = "api"
	}

	result, err := h.reconciler.Run(r.Context(), snapshot)
	if err != nil {
		h.writeServiceError(w, "Reconciliation failed", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// Health reports liveness
func (h *InventoryHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNetworkNumbersExhausted),
		errors.Is(err, domain.ErrPrecondition),
		errors.Is(err, domain.ErrImmutableNetworkNumber),
		errors.Is(err, service.ErrPassInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptySnapshot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *InventoryHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	h.writeError(w, msg, err.Error(), status)
}

func (h *InventoryHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
