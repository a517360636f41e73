package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"meshinv/internal/domain"
	"meshinv/internal/repository"
	"meshinv/internal/repository/sqlite"
)

// ============================================================================
// Test Helpers
// ============================================================================

var testPassDate = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testPassDate }

// newTestStore opens a fresh SQLite database for each test
func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "meshinv.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// observedLogger returns a logger whose entries can be inspected
func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func warnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.FilterLevelExact(zap.WarnLevel).All()
}

// recordingNotifier captures delivered notifications
type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recordingNotifier) ofKind(kind NotificationKind) []Notification {
	var out []Notification
	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

// mentions reports whether any object in n has the given id
func mentions(n Notification, id string) bool {
	for _, o := range n.Objects {
		if o.ID == id {
			return true
		}
	}
	return strings.Contains(n.Message, id)
}

// ============================================================================
// Fixtures
// ============================================================================

func withTx(t *testing.T, store repository.Store, fn func(ctx context.Context, tx repository.Tx)) {
	t.Helper()
	require.NoError(t, store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		fn(ctx, tx)
		return nil
	}))
}

func seedNode(t *testing.T, store repository.Store, nn int64) *domain.Node {
	t.Helper()
	n := &domain.Node{Status: domain.NodeStatusActive, NetworkNumber: &nn}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateNode(ctx, n))
	})
	return n
}

func seedInstall(t *testing.T, store repository.Store, number int64, status domain.InstallStatus) *domain.Install {
	t.Helper()
	i := &domain.Install{InstallNumber: number, Status: status}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateInstall(ctx, i))
	})
	return i
}

// seedBuilding creates a building served by node, which becomes its primary
func seedBuilding(t *testing.T, store repository.Store, node *domain.Node) *domain.Building {
	t.Helper()
	b := &domain.Building{Address: "building of " + node.String()}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateBuilding(ctx, b))
		require.NoError(t, tx.AddNodeBuilding(ctx, node.ID, b.ID))
		require.NoError(t, tx.SetBuildingPrimaryNode(ctx, b.ID, node.ID))
	})
	b.PrimaryNodeID = &node.ID
	return b
}

func seedDevice(t *testing.T, store repository.Store, node *domain.Node, name, externalID string, status domain.DeviceStatus) *domain.Device {
	t.Helper()
	d := &domain.Device{NodeID: node.ID, Name: name, ExternalID: externalID, Status: status}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateDevice(ctx, d))
	})
	return d
}

func seedLink(t *testing.T, store repository.Store, a, b *domain.Device, externalID string, linkType domain.LinkType, status domain.LinkStatus) *domain.Link {
	t.Helper()
	l := &domain.Link{FromDeviceID: a.ID, ToDeviceID: b.ID, ExternalID: externalID, Type: linkType, Status: status}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateLink(ctx, l))
	})
	return l
}

func getDevice(t *testing.T, store repository.Store, id string) *domain.Device {
	t.Helper()
	var d *domain.Device
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		var err error
		d, err = tx.GetDevice(ctx, id)
		require.NoError(t, err)
	})
	require.NotNil(t, d)
	return d
}

func devicesByExternalID(t *testing.T, store repository.Store, externalID string) []domain.Device {
	t.Helper()
	var devices []domain.Device
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		var err error
		devices, err = tx.FindDevicesByExternalID(ctx, externalID)
		require.NoError(t, err)
	})
	return devices
}

func linksByExternalID(t *testing.T, store repository.Store, externalID string) []domain.Link {
	t.Helper()
	var links []domain.Link
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		var err error
		links, err = tx.FindLinksByExternalIDForUpdate(ctx, externalID)
		require.NoError(t, err)
	})
	return links
}

func getInstall(t *testing.T, store repository.Store, id string) *domain.Install {
	t.Helper()
	var i *domain.Install
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		var err error
		i, err = tx.GetInstallForUpdate(ctx, id)
		require.NoError(t, err)
	})
	require.NotNil(t, i)
	return i
}

func ptr[T any](v T) *T { return &v }
