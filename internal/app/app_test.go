package app

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roast-tracker/config"
	"roast-tracker/internal/model"
	"roast-tracker/internal/monitor"
	"roast-tracker/internal/roast"
	"roast-tracker/internal/state"
)

func offline(t *testing.T, dir string) *App {
	t.Helper()
	cfg := config.Default().Client
	cfg.StatePath = filepath.Join(dir, "state.json")
	a, err := New(context.Background(), Options{
		Config:    cfg,
		Offline:   true,
		Detector:  roast.NewSimulator(11),
		Scheduler: monitor.NewManualClock(time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)),
		Logger:    log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	return a
}

func TestDetect_AutoSave(t *testing.T) {
	dir := t.TempDir()
	a := offline(t, dir)
	ctx := context.Background()

	est, record, err := a.Detect(ctx, "beans.jpg", []byte("jpeg"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, est.Label, record.RoastLabel)
	assert.NotEmpty(t, record.Advisory)

	off := false
	require.True(t, a.Store.UpdateSettings(model.SettingsPatch{AutoSave: &off}).OK())
	_, record, err = a.Detect(ctx, "beans.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Nil(t, record)
	require.NoError(t, a.Close())

	reopened := offline(t, dir)
	defer reopened.Close()
	assert.Len(t, reopened.Store.DetectionRecords(), 1)
	assert.False(t, reopened.Store.Settings().AutoSave)
}

func TestDetect_EmptyImage(t *testing.T) {
	a := offline(t, t.TempDir())
	defer a.Close()

	_, _, err := a.Detect(context.Background(), "empty.jpg", nil)
	assert.Error(t, err)
	assert.Empty(t, a.Store.DetectionRecords())
}

func TestSignOutStopsEngine(t *testing.T) {
	a := offline(t, t.TempDir())
	ctx := context.Background()

	id := "u1"
	a.Store.SetIdentity(model.Identity{ID: &id, Authenticated: true})
	_, err := a.Engine.Start(ctx, "evening roast", 60, roast.Medium)
	require.NoError(t, err)

	a.Store.Logout(ctx)
	require.Eventually(t, func() bool { return a.Engine.Status().Phase == monitor.Completed }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Close())
}

func TestLogout_StopsEngineFirst(t *testing.T) {
	a := offline(t, t.TempDir())
	defer a.Close()
	ctx := context.Background()

	id := "u1"
	a.Store.SetIdentity(model.Identity{ID: &id, Authenticated: true})
	session, err := a.Engine.Start(ctx, "morning roast", 60, roast.Medium)
	require.NoError(t, err)

	var authenticatedAtStop bool
	a.Store.Observe(func(ev state.Event) {
		if ev.Op == "update_monitor_session" && ev.Phase == state.Committed {
			authenticatedAtStop = a.Store.Identity().Authenticated
		}
	})

	require.True(t, a.Logout(ctx).OK())
	assert.Equal(t, monitor.Completed, a.Engine.Status().Phase, "stopped before Logout returns")
	assert.True(t, authenticatedAtStop, "session completed while still signed in")
	stored, ok := a.Store.MonitorSession(session.ID)
	require.True(t, ok)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	require.NotNil(t, stored.EndTime)
}

func TestLogout_Idle(t *testing.T) {
	a := offline(t, t.TempDir())
	defer a.Close()
	assert.True(t, a.Logout(context.Background()).OK())
	assert.Equal(t, monitor.Idle, a.Engine.Status().Phase)
}
