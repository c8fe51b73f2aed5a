package model

import (
	"strings"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/roast"
)

// SessionStatus is the lifecycle status of a MonitorSession.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionCompleted:
		return true
	}
	return false
}

// CanTransition reports whether a session may move from s to next.
// Staying in the same non-terminal status is allowed.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionActive || next == SessionPaused || next == SessionCompleted
	case SessionPaused:
		return next == SessionPaused || next == SessionActive || next == SessionCompleted
	}
	return false
}

// MonitorSession is one live-monitoring run of a roast.
type MonitorSession struct {
	ID               string            `gorm:"primaryKey;size:36" json:"id"`
	OwnerID          *string           `gorm:"size:36;index" json:"owner_id,omitempty"`
	Name             string            `gorm:"size:256;not null" json:"name"`
	TargetRoastIndex float64           `gorm:"not null" json:"target_roast_index"`
	TargetRoastLabel roast.Label       `gorm:"size:16;not null" json:"target_roast_label"`
	StartTime        time.Time         `gorm:"not null" json:"start_time"`
	EndTime          *time.Time        `json:"end_time,omitempty"`
	Status           SessionStatus     `gorm:"size:16;not null;index" json:"status"`
	CreatedAt        time.Time         `gorm:"not null;index" json:"created_at"`
	Snapshots        []MonitorSnapshot `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"snapshots,omitempty"`
}

// SessionInput carries the caller-supplied fields of a new MonitorSession.
type SessionInput struct {
	OwnerID          *string     `json:"owner_id,omitempty"`
	Name             string      `json:"name"`
	TargetRoastIndex float64     `json:"target_roast_index"`
	TargetRoastLabel roast.Label `json:"target_roast_label"`
	StartTime        time.Time   `json:"start_time"`
}

// Validate checks the session invariants.
func (in SessionInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errs.Validation("name", "must not be empty")
	}
	if !in.TargetRoastLabel.Valid() {
		return errs.Validation("target_roast_label", "unknown roast level %q", in.TargetRoastLabel)
	}
	if in.TargetRoastIndex < 0 {
		return errs.Validation("target_roast_index", "must not be negative")
	}
	return nil
}

// Session builds an active session from in.
func (in SessionInput) Session(id string, createdAt time.Time) MonitorSession {
	start := in.StartTime
	if start.IsZero() {
		start = createdAt
	}
	return MonitorSession{
		ID:               id,
		OwnerID:          in.OwnerID,
		Name:             strings.TrimSpace(in.Name),
		TargetRoastIndex: in.TargetRoastIndex,
		TargetRoastLabel: in.TargetRoastLabel,
		StartTime:        start,
		Status:           SessionActive,
		CreatedAt:        createdAt,
	}
}

// SessionPatch is a partial update of a MonitorSession. Nil fields are left
// untouched.
type SessionPatch struct {
	Name    *string        `json:"name,omitempty"`
	Status  *SessionStatus `json:"status,omitempty"`
	EndTime *time.Time     `json:"end_time,omitempty"`
}

// Validate checks the patch against the session's current status.
func (p SessionPatch) Validate(current SessionStatus) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errs.Validation("name", "must not be empty")
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return errs.Validation("status", "unknown status %q", *p.Status)
		}
		if !current.CanTransition(*p.Status) {
			return errs.Validation("status", "cannot move from %s to %s", current, *p.Status)
		}
	}
	return nil
}

// Apply returns a copy of s with the patch applied.
func (p SessionPatch) Apply(s MonitorSession) MonitorSession {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.EndTime != nil {
		end := *p.EndTime
		s.EndTime = &end
	}
	return s
}

// MonitorSnapshot is one sample taken during an active session.
type MonitorSnapshot struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	SessionID   string      `gorm:"size:36;not null;index" json:"session_id"`
	RoastIndex  float64     `gorm:"not null" json:"roast_index"`
	RoastLabel  roast.Label `gorm:"size:16;not null" json:"roast_label"`
	Temperature *float64    `json:"temperature,omitempty"`
	Confidence  float64     `gorm:"not null" json:"confidence"`
	Timestamp   time.Time   `gorm:"not null;index" json:"timestamp"`
}

// SnapshotInput carries the fields of a new MonitorSnapshot.
type SnapshotInput struct {
	SessionID   string      `json:"session_id"`
	RoastIndex  float64     `json:"roast_index"`
	RoastLabel  roast.Label `json:"roast_label"`
	Temperature *float64    `json:"temperature,omitempty"`
	Confidence  float64     `json:"confidence"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Validate checks the snapshot invariants.
func (in SnapshotInput) Validate() error {
	if in.SessionID == "" {
		return errs.Validation("session_id", "must not be empty")
	}
	if !in.RoastLabel.Valid() {
		return errs.Validation("roast_label", "unknown roast level %q", in.RoastLabel)
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return errs.Validation("confidence", "must be within [0, 1], got %v", in.Confidence)
	}
	if in.Timestamp.IsZero() {
		return errs.Validation("timestamp", "must be set")
	}
	return nil
}

// Snapshot builds the stored form of in.
func (in SnapshotInput) Snapshot(id string) MonitorSnapshot {
	return MonitorSnapshot{
		ID:          id,
		SessionID:   in.SessionID,
		RoastIndex:  in.RoastIndex,
		RoastLabel:  in.RoastLabel,
		Temperature: in.Temperature,
		Confidence:  in.Confidence,
		Timestamp:   in.Timestamp,
	}
}
