package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roast-tracker/internal/db"
	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens a private in-memory database with the schema applied.
func newSQLiteStore(t *testing.T) Store {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewGormStore(gormDB)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func detection(owner *string, index float64) model.DetectionInput {
	return model.DetectionInput{
		OwnerID:    owner,
		ImageRef:   "img://beans",
		RoastIndex: index,
		RoastLabel: roast.Classify(index),
		Confidence: 0.9,
		Advisory:   "keep going",
	}
}

func TestGormStore_CreateDetectionRecord_SQL(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)
	owner := "user-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "detection_records"`)).
		WithArgs(Any{}, owner, "img://beans", 65.0, roast.Medium, 0.9, "keep going", Any{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := s.CreateDetectionRecord(context.Background(), detection(&owner, 65))
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, owner, *record.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListDetectionRecords_SQLError(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "detection_records" WHERE owner_id = $1`)).
		WithArgs("user-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.ListDetectionRecords(context.Background(), Owner("user-1"))
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DetectionRecords(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	owner := "user-1"

	first, err := s.CreateDetectionRecord(ctx, detection(&owner, 65))
	require.NoError(t, err)
	second, err := s.CreateDetectionRecord(ctx, detection(&owner, 45))
	require.NoError(t, err)
	anon, err := s.CreateDetectionRecord(ctx, detection(nil, 80))
	require.NoError(t, err)

	t.Run("owner scope is newest first", func(t *testing.T) {
		records, err := s.ListDetectionRecords(ctx, Owner(owner))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, second.ID, records[0].ID)
		assert.Equal(t, first.ID, records[1].ID)
	})

	t.Run("anonymous scope only sees ownerless rows", func(t *testing.T) {
		records, err := s.ListDetectionRecords(ctx, Scope{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, anon.ID, records[0].ID)
		assert.Nil(t, records[0].OwnerID)
	})

	t.Run("round trip keeps every field", func(t *testing.T) {
		got, err := s.GetDetectionRecord(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.RoastLabel, got.RoastLabel)
		assert.Equal(t, first.Confidence, got.Confidence)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		in := detection(nil, 65)
		in.Confidence = 2
		_, err := s.CreateDetectionRecord(ctx, in)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteDetectionRecord(ctx, first.ID))
		_, err := s.GetDetectionRecord(ctx, first.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		assert.ErrorIs(t, s.DeleteDetectionRecord(ctx, first.ID), errs.ErrNotFound)
	})
}

func TestGormStore_MonitorSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	session, err := s.CreateMonitorSession(ctx, model.SessionInput{
		Name: "Test Roast", TargetRoastIndex: 65, TargetRoastLabel: roast.Medium,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.False(t, session.StartTime.IsZero())

	paused := model.SessionPaused
	session, err = s.UpdateMonitorSession(ctx, session.ID, model.SessionPatch{Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, session.Status)

	completed := model.SessionCompleted
	end := time.Now().UTC()
	session, err = s.UpdateMonitorSession(ctx, session.ID, model.SessionPatch{Status: &completed, EndTime: &end})
	require.NoError(t, err)

	got, err := s.GetMonitorSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status)
	require.NotNil(t, got.EndTime)

	active := model.SessionActive
	_, err = s.UpdateMonitorSession(ctx, session.ID, model.SessionPatch{Status: &active})
	assert.ErrorIs(t, err, errs.ErrConflict, "completed is terminal")

	_, err = s.UpdateMonitorSession(ctx, "missing", model.SessionPatch{Status: &paused})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.CreateMonitorSession(ctx, model.SessionInput{Name: "  ", TargetRoastLabel: roast.Medium})
	assert.True(t, errs.IsValidation(err))

	sessions, err := s.ListMonitorSessions(ctx, Scope{})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGormStore_MonitorSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	session, err := s.CreateMonitorSession(ctx, model.SessionInput{
		Name: "Test Roast", TargetRoastIndex: 65, TargetRoastLabel: roast.Medium,
	})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := func(offset time.Duration) model.SnapshotInput {
		temp := 200.0
		return model.SnapshotInput{
			SessionID: session.ID, RoastIndex: 64, RoastLabel: roast.Medium,
			Temperature: &temp, Confidence: 0.88, Timestamp: base.Add(offset),
		}
	}

	_, err = s.CreateMonitorSnapshot(ctx, snap(3*time.Second))
	require.NoError(t, err)
	_, err = s.CreateMonitorSnapshot(ctx, snap(6*time.Second))
	require.NoError(t, err)

	_, err = s.CreateMonitorSnapshot(ctx, snap(6*time.Second))
	assert.ErrorIs(t, err, errs.ErrConflict, "timestamps must strictly increase")

	orphan := snap(9 * time.Second)
	orphan.SessionID = "missing"
	_, err = s.CreateMonitorSnapshot(ctx, orphan)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	snapshots, err := s.ListMonitorSnapshots(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].Timestamp.Before(snapshots[1].Timestamp))
	require.NotNil(t, snapshots[0].Temperature)
	assert.Equal(t, 200.0, *snapshots[0].Temperature)
}

func TestGormStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	name := "Barista"

	user, profile, err := s.CreateUser(ctx, " Roaster@Example.com ", "hash", &name)
	require.NoError(t, err)
	assert.Equal(t, "roaster@example.com", user.Email)
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, model.DefaultPreferences(), profile.Preferences)

	_, _, err = s.CreateUser(ctx, "roaster@example.com", "hash", nil)
	assert.ErrorIs(t, err, errs.ErrConflict)

	found, err := s.FindUserByEmail(ctx, "ROASTER@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	prefs := profile.Preferences
	prefs.Notifications = false
	prefs.Theme = "dark"
	updated, err := s.UpdateUserProfile(ctx, user.ID, model.ProfilePatch{Preferences: &prefs})
	require.NoError(t, err)
	assert.Equal(t, "Barista", *updated.Name)

	reloaded, err := s.GetUserProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Preferences.Notifications)
	assert.Equal(t, "dark", reloaded.Preferences.Theme)
}

func TestGormStore_PushSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	sub := model.PushSubscription{Endpoint: "https://push.example/1", OwnerID: "user-1", P256DH: "k1", Auth: "a1"}
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	sub.Auth = "a2"
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	got, err := s.GetPushSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.Auth)

	subs, err := s.ListPushSubscriptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, s.DeletePushSubscription(ctx, sub.Endpoint))
	_, err = s.GetPushSubscription(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
