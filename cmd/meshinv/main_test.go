package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshinv/internal/config"
	"meshinv/internal/service"
)

// writeTestConfig points a fresh SQLite database at a temp dir
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "meshinv.db")
	cfg.Log.Level = "error"
	cfg.Notify.Log = false
	path := filepath.Join(dir, "meshinv.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	// a second run finds nothing to do
	_, err = execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
}

func TestAllocateUnknownInstall(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "allocate", "no-such-install")
	require.Error(t, err)
}

func TestAllocateRequiresInstallID(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "allocate")
	require.Error(t, err)
}

func TestReconcileFromFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	snapshot := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte(`
devices:
  - id: dev-a
    name: nycmesh-7777-omni
    category: wireless
`), 0600))

	out, err := execute(t, "--config", cfgPath, "reconcile", "--file", snapshot)
	require.NoError(t, err)

	var result service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "file", result.Source)
	assert.Equal(t, 1, result.Devices.Skipped, "no node carries NN 7777")
	assert.Zero(t, result.Devices.Created)
}

func TestReconcileRefusesEmptySnapshot(t *testing.T) {
	cfgPath := writeTestConfig(t)
	snapshot := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{"devices": []}`), 0600))

	_, err := execute(t, "--config", cfgPath, "reconcile", "--file", snapshot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devices")
}

func TestReconcileWithoutUISP(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uisp is not enabled")
}

func TestBuildNotifierSinks(t *testing.T) {
	cfg := config.DefaultConfig()
	notifier, err := buildNotifier(cfg, service.NewEventBus(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, notifier.Len(), "log and events")

	cfg.Notify.Log = false
	cfg.Notify.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/X"
	notifier, err = buildNotifier(cfg, service.NewEventBus(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, notifier.Len(), "slack and events")
}
