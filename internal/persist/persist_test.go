package persist

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

func sample() Snapshot {
	id, email, name := "u1", "roaster@example.com", "Roaster"
	created := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	end := created.Add(12 * time.Minute)
	s := Default()
	s.DetectionRecords = []model.DetectionRecord{{
		ID: "r1", OwnerID: &id, ImageRef: "img://1", RoastIndex: 65, RoastLabel: roast.Medium,
		Confidence: 0.92, Advisory: "手冲", CreatedAt: created,
	}}
	s.MonitorSessions = []model.MonitorSession{{
		ID: "s1", OwnerID: &id, Name: "Test Roast", TargetRoastIndex: 65, TargetRoastLabel: roast.Medium,
		StartTime: created, EndTime: &end, Status: model.SessionCompleted, CreatedAt: created,
	}}
	s.Settings.Theme = "dark"
	s.Settings.AutoSave = false
	s.Identity = model.Identity{ID: &id, Email: &email, Name: &name, Authenticated: true}
	return s
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := NewFile(filepath.Join(t.TempDir(), "state", "roast.json"), nil)

	want := sample()
	require.NoError(t, f.Save(ctx, want))
	got := f.Restore(ctx)
	assert.Equal(t, want, got)

	// Overwrites the previous snapshot.
	want.DetectionRecords = nil
	require.NoError(t, f.Save(ctx, want))
	assert.Empty(t, f.Restore(ctx).DetectionRecords)

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFile_LayoutKeys(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "roast.json"), nil)
	require.NoError(t, f.Save(context.Background(), sample()))

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	for _, key := range []string{`"detectionRecords"`, `"monitorSessions"`, `"settings"`, `"identity"`, `"isAuthenticated"`, `"autoSave"`, `"defaultRoastLevel"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestFile_RestoreDefaults(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{{{"},
		{name: "unknown key", data: `{"currentSession": {}}`},
		{name: "unknown label", data: `{"detectionRecords":[{"id":"r1","roast_label":"burnt","confidence":0.5}]}`},
		{name: "confidence out of range", data: `{"detectionRecords":[{"id":"r1","roast_label":"中烘","confidence":1.5}]}`},
		{name: "anonymous with id", data: `{"identity":{"id":"u1","isAuthenticated":false}}`},
		{name: "bad settings", data: `{"settings":{"language":"fr","theme":"light","defaultRoastLevel":"中烘"}}`},
		{name: "wrong type", data: `{"monitorSessions":"nope"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "roast.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.data), 0o644))

			var buf bytes.Buffer
			f := NewFile(path, log.New(&buf, "", 0))
			assert.Equal(t, Default(), f.Restore(context.Background()))
			assert.Contains(t, buf.String(), "persistence restore")
		})
	}
}

func TestFile_MissingFileIsSilent(t *testing.T) {
	var buf bytes.Buffer
	f := NewFile(filepath.Join(t.TempDir(), "absent.json"), log.New(&buf, "", 0))
	assert.Equal(t, Default(), f.Restore(context.Background()))
	assert.Empty(t, buf.String())
}

func TestDecode_PartialSnapshotKeepsDefaults(t *testing.T) {
	s, err := Decode([]byte(`{"settings":{"language":"en","theme":"dark","autoSave":false,"notifications":true,"defaultRoastLevel":"深烘"}}`))
	require.NoError(t, err)
	assert.Equal(t, "en", s.Settings.Language)
	assert.Equal(t, roast.Dark, s.Settings.DefaultRoastLevel)
	assert.NotNil(t, s.DetectionRecords)
	assert.Equal(t, model.Anonymous(), s.Identity)
}

func TestFile_SaveError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	f := NewFile(filepath.Join(blocker, "roast.json"), nil)
	err := f.Save(context.Background(), Default())
	assert.True(t, errs.IsPersistence(err))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := &Memory{}
	assert.Equal(t, Default(), m.Restore(ctx))

	require.NoError(t, m.Save(ctx, sample()))
	assert.Equal(t, sample(), m.Restore(ctx))
	assert.Equal(t, 1, m.Saves())

	m.Err = errors.New("disk full")
	assert.True(t, errs.IsPersistence(m.Save(ctx, sample())))
	assert.Equal(t, 1, m.Saves())
}

func TestSettingsExportImport(t *testing.T) {
	settings := model.DefaultSettings()
	settings.Theme = "dark"
	settings.DefaultRoastLevel = roast.Dark

	var buf bytes.Buffer
	require.NoError(t, ExportSettings(&buf, settings, time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))))
	assert.Contains(t, buf.String(), `"exportDate": "2026-05-01T01:00:00Z"`)
	assert.Contains(t, buf.String(), `"version": "1.0.0"`)

	patch, err := ImportSettings(&buf)
	require.NoError(t, err)
	assert.Equal(t, settings, patch.Apply(model.DefaultSettings()))
}

func TestImportSettings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    model.Settings
		invalid bool
	}{
		{name: "partial", body: `{"settings":{"theme":"dark"}}`, want: func() model.Settings {
			s := model.DefaultSettings()
			s.Theme = "dark"
			return s
		}()},
		{name: "unknown keys ignored", body: `{"settings":{"autoSave":false,"fontSize":3},"exportDate":"x"}`, want: func() model.Settings {
			s := model.DefaultSettings()
			s.AutoSave = false
			return s
		}()},
		{name: "not json", body: "settings", invalid: true},
		{name: "no settings", body: `{"version":"1.0.0"}`, invalid: true},
		{name: "wrong type", body: `{"settings":{"autoSave":"yes"}}`, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := ImportSettings(strings.NewReader(tt.body))
			if tt.invalid {
				assert.True(t, errs.IsValidation(err), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, patch.Apply(model.DefaultSettings()))
		})
	}
}
