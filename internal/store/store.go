package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

// Scope selects whose rows a list query returns. A nil OwnerID selects the
// anonymous rows, i.e. those stored without an owner.
type Scope struct {
	OwnerID *string
}

// Owner returns a Scope for the given user id.
func Owner(id string) Scope {
	return Scope{OwnerID: &id}
}

// Store defines the interface for all database operations.
type Store interface {
	CreateDetectionRecord(ctx context.Context, in model.DetectionInput) (model.DetectionRecord, error)
	GetDetectionRecord(ctx context.Context, id string) (model.DetectionRecord, error)
	ListDetectionRecords(ctx context.Context, scope Scope) ([]model.DetectionRecord, error)
	DeleteDetectionRecord(ctx context.Context, id string) error

	CreateMonitorSession(ctx context.Context, in model.SessionInput) (model.MonitorSession, error)
	GetMonitorSession(ctx context.Context, id string) (model.MonitorSession, error)
	UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) (model.MonitorSession, error)
	ListMonitorSessions(ctx context.Context, scope Scope) ([]model.MonitorSession, error)

	CreateMonitorSnapshot(ctx context.Context, in model.SnapshotInput) (model.MonitorSnapshot, error)
	ListMonitorSnapshots(ctx context.Context, sessionID string) ([]model.MonitorSnapshot, error)

	CreateUser(ctx context.Context, email, passwordHash string, name *string) (model.User, model.UserProfile, error)
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserProfile(ctx context.Context, id string) (model.UserProfile, error)
	UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.UserProfile, error)

	UpsertPushSubscription(ctx context.Context, sub model.PushSubscription) error
	GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, ownerID string) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: now}
}

// now returns the current UTC time at the precision postgres keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, errs.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

func scoped(db *gorm.DB, scope Scope) *gorm.DB {
	if scope.OwnerID == nil {
		return db.Where("owner_id IS NULL")
	}
	return db.Where("owner_id = ?", *scope.OwnerID)
}

// CreateDetectionRecord validates and stores a new record.
func (s *gormStore) CreateDetectionRecord(ctx context.Context, in model.DetectionInput) (model.DetectionRecord, error) {
	if err := in.Validate(); err != nil {
		return model.DetectionRecord{}, err
	}
	record := in.Record(uuid.NewString(), s.now())
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return model.DetectionRecord{}, fmt.Errorf("failed to create detection record: %w", err)
	}
	return record, nil
}

func (s *gormStore) GetDetectionRecord(ctx context.Context, id string) (model.DetectionRecord, error) {
	var record model.DetectionRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return model.DetectionRecord{}, notFound("detection record", id, err)
	}
	return record, nil
}

// ListDetectionRecords returns the records in scope, newest first.
func (s *gormStore) ListDetectionRecords(ctx context.Context, scope Scope) ([]model.DetectionRecord, error) {
	records := []model.DetectionRecord{}
	if err := scoped(s.db.WithContext(ctx), scope).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list detection records: %w", err)
	}
	return records, nil
}

func (s *gormStore) DeleteDetectionRecord(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.DetectionRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete detection record %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("detection record %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// CreateMonitorSession stores a new active session.
func (s *gormStore) CreateMonitorSession(ctx context.Context, in model.SessionInput) (model.MonitorSession, error) {
	if err := in.Validate(); err != nil {
		return model.MonitorSession{}, err
	}
	session := in.Session(uuid.NewString(), s.now())
	session.StartTime = session.StartTime.UTC()
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return model.MonitorSession{}, fmt.Errorf("failed to create monitor session: %w", err)
	}
	return session, nil
}

func (s *gormStore) GetMonitorSession(ctx context.Context, id string) (model.MonitorSession, error) {
	var session model.MonitorSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return model.MonitorSession{}, notFound("monitor session", id, err)
	}
	return session, nil
}

// UpdateMonitorSession applies patch inside a transaction. A status change
// the lifecycle does not allow is reported as errs.ErrConflict.
func (s *gormStore) UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) (model.MonitorSession, error) {
	var updated model.MonitorSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.MonitorSession
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			return notFound("monitor session", id, err)
		}

		if patch.Status != nil && patch.Status.Valid() && !current.Status.CanTransition(*patch.Status) {
			return fmt.Errorf("monitor session %s: %s -> %s: %w", id, current.Status, *patch.Status, errs.ErrConflict)
		}
		if err := patch.Validate(current.Status); err != nil {
			return err
		}

		updated = patch.Apply(current)
		if updated.EndTime != nil {
			end := updated.EndTime.UTC()
			updated.EndTime = &end
		}
		if err := tx.Model(&current).
			Select("name", "status", "end_time").
			Updates(&updated).Error; err != nil {
			return fmt.Errorf("failed to update monitor session %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.MonitorSession{}, err
	}
	return updated, nil
}

// ListMonitorSessions returns the sessions in scope, newest first.
func (s *gormStore) ListMonitorSessions(ctx context.Context, scope Scope) ([]model.MonitorSession, error) {
	sessions := []model.MonitorSession{}
	if err := scoped(s.db.WithContext(ctx), scope).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list monitor sessions: %w", err)
	}
	return sessions, nil
}

// CreateMonitorSnapshot appends a snapshot to an existing session. Snapshot
// timestamps must be strictly increasing per session.
func (s *gormStore) CreateMonitorSnapshot(ctx context.Context, in model.SnapshotInput) (model.MonitorSnapshot, error) {
	if err := in.Validate(); err != nil {
		return model.MonitorSnapshot{}, err
	}
	in.Timestamp = in.Timestamp.UTC()

	snapshot := in.Snapshot(uuid.NewString())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.MonitorSession{}).Where("id = ?", in.SessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check monitor session %s: %w", in.SessionID, err)
		}
		if count == 0 {
			return fmt.Errorf("monitor session %s: %w", in.SessionID, errs.ErrNotFound)
		}

		var last model.MonitorSnapshot
		res := tx.Where("session_id = ?", in.SessionID).Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).Limit(1).Find(&last)
		if res.Error != nil {
			return fmt.Errorf("failed to load latest snapshot of %s: %w", in.SessionID, res.Error)
		}
		if res.RowsAffected > 0 && !in.Timestamp.After(last.Timestamp) {
			return fmt.Errorf("snapshot at %s is not after %s: %w",
				in.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano), errs.ErrConflict)
		}

		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to create monitor snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.MonitorSnapshot{}, err
	}
	return snapshot, nil
}

// ListMonitorSnapshots returns a session's snapshots in time order.
func (s *gormStore) ListMonitorSnapshots(ctx context.Context, sessionID string) ([]model.MonitorSnapshot, error) {
	snapshots := []model.MonitorSnapshot{}
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %s: %w", sessionID, err)
	}
	return snapshots, nil
}

// CreateUser stores a user together with its profile. A taken email is
// reported as errs.ErrConflict.
func (s *gormStore) CreateUser(ctx context.Context, email, passwordHash string, name *string) (model.User, model.UserProfile, error) {
	email = normalizeEmail(email)
	createdAt := s.now()
	user := model.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: createdAt}
	profile := model.UserProfile{
		ID:          user.ID,
		Email:       email,
		Name:        name,
		Preferences: model.DefaultPreferences(),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("email %s already registered: %w", email, errs.ErrConflict)
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create user profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.User{}, model.UserProfile{}, err
	}
	return user, profile, nil
}

func (s *gormStore) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = normalizeEmail(email)
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return model.User{}, notFound("user", email, err)
	}
	return user, nil
}

func (s *gormStore) GetUserProfile(ctx context.Context, id string) (model.UserProfile, error) {
	var profile model.UserProfile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return model.UserProfile{}, notFound("user profile", id, err)
	}
	return profile, nil
}

func (s *gormStore) UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.UserProfile, error) {
	var profile model.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, "id = ?", id).Error; err != nil {
			return notFound("user profile", id, err)
		}
		if patch.Name != nil {
			profile.Name = patch.Name
		}
		if patch.AvatarRef != nil {
			profile.AvatarRef = patch.AvatarRef
		}
		if patch.Preferences != nil {
			profile.Preferences = *patch.Preferences
		}
		profile.UpdatedAt = s.now()
		if err := tx.Save(&profile).Error; err != nil {
			return fmt.Errorf("failed to update user profile %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

// UpsertPushSubscription creates or replaces the subscription for its endpoint.
func (s *gormStore) UpsertPushSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "p256dh", "auth"}),
	}).Create(&sub).Error; err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return model.PushSubscription{}, notFound("push subscription", endpoint, err)
	}
	return sub, nil
}

func (s *gormStore) ListPushSubscriptions(ctx context.Context, ownerID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions of %s: %w", ownerID, err)
	}
	return subs, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
