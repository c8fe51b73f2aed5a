package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/roast"
)

func TestDetectionInput_Validate(t *testing.T) {
	valid := DetectionInput{ImageRef: "img://1", RoastIndex: 65, RoastLabel: roast.Medium, Confidence: 0.9}

	testCases := []struct {
		name    string
		mutate  func(in *DetectionInput)
		wantErr bool
	}{
		{name: "valid", mutate: func(*DetectionInput) {}},
		{name: "blank image", mutate: func(in *DetectionInput) { in.ImageRef = "  " }, wantErr: true},
		{name: "unknown label", mutate: func(in *DetectionInput) { in.RoastLabel = "burnt" }, wantErr: true},
		{name: "confidence above one", mutate: func(in *DetectionInput) { in.Confidence = 1.01 }, wantErr: true},
		{name: "confidence below zero", mutate: func(in *DetectionInput) { in.Confidence = -0.1 }, wantErr: true},
		{name: "confidence bounds inclusive", mutate: func(in *DetectionInput) { in.Confidence = 1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			err := in.Validate()
			if tc.wantErr {
				assert.True(t, errs.IsValidation(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionStatus_CanTransition(t *testing.T) {
	assert.True(t, SessionActive.CanTransition(SessionPaused))
	assert.True(t, SessionPaused.CanTransition(SessionActive))
	assert.True(t, SessionActive.CanTransition(SessionCompleted))
	assert.True(t, SessionPaused.CanTransition(SessionCompleted))
	for _, next := range []SessionStatus{SessionActive, SessionPaused, SessionCompleted} {
		assert.False(t, SessionCompleted.CanTransition(next), "completed -> %s", next)
	}
}

func TestSessionPatch_ValidateAndApply(t *testing.T) {
	completed := SessionCompleted
	end := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := SessionInput{Name: " Test Roast ", TargetRoastIndex: 65, TargetRoastLabel: roast.Medium}.Session("s1", end.Add(-time.Hour))
	assert.Equal(t, "Test Roast", s.Name)
	assert.Equal(t, SessionActive, s.Status)

	patch := SessionPatch{Status: &completed, EndTime: &end}
	assert.NoError(t, patch.Validate(s.Status))
	done := patch.Apply(s)
	assert.Equal(t, SessionCompleted, done.Status)
	assert.Equal(t, end, *done.EndTime)
	assert.Equal(t, SessionActive, s.Status, "Apply must not mutate its argument")

	assert.True(t, errs.IsValidation(patch.Validate(SessionCompleted)))
}

func TestSettings(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())

	dark := "dark"
	off := false
	s = SettingsPatch{Theme: &dark, AutoSave: &off}.Apply(s)
	assert.Equal(t, "dark", s.Theme)
	assert.False(t, s.AutoSave)
	assert.Equal(t, "zh", s.Language)

	bad := roast.Label("burnt")
	assert.True(t, errs.IsValidation(SettingsPatch{DefaultRoastLevel: &bad}.Apply(s).Validate()))

	assert.Equal(t, DefaultSettings(), DefaultSettings().Patch().Apply(s), "a full patch resets every field")
	assert.Equal(t, s, s.Preferences().Settings())

	prefs := DefaultPreferences()
	assert.NoError(t, prefs.Validate())
	prefs.Language = "fr"
	assert.True(t, errs.IsValidation(prefs.Validate()))
}

func TestIdentity(t *testing.T) {
	id, email := "u1", "a@b.c"
	assert.True(t, Anonymous().Consistent())
	assert.Nil(t, Anonymous().OwnerID())

	signedIn := Identity{ID: &id, Email: &email, Authenticated: true}
	assert.True(t, signedIn.Consistent())
	assert.Equal(t, "u1", *signedIn.OwnerID())

	stale := Identity{ID: &id, Email: &email}
	assert.False(t, stale.Consistent())
	assert.Equal(t, Anonymous(), stale.Normalize())
}
