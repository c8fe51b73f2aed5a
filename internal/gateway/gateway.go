// Package gateway is the client side of the roast backend's HTTP contract.
// Every method is a single round trip: no caching, retries or batching.
package gateway

import (
	"context"

	"roast-tracker/internal/model"
)

// AuthEventKind tells subscribers how the remote session changed.
type AuthEventKind int

const (
	SignedIn AuthEventKind = iota
	SignedOut
)

func (k AuthEventKind) String() string {
	if k == SignedIn {
		return "signed_in"
	}
	return "signed_out"
}

// AuthEvent is delivered to Subscribe callbacks.
type AuthEvent struct {
	Kind     AuthEventKind
	Identity model.Identity
}

// Gateway is the remote store as seen by the client engine. Failed calls
// return an *errs.GatewayError.
type Gateway interface {
	CreateDetectionRecord(ctx context.Context, in model.DetectionInput) (model.DetectionRecord, error)
	ListDetectionRecords(ctx context.Context, ownerID *string) ([]model.DetectionRecord, error)
	DeleteDetectionRecord(ctx context.Context, id string) error

	CreateMonitorSession(ctx context.Context, in model.SessionInput) (model.MonitorSession, error)
	UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) (model.MonitorSession, error)
	ListMonitorSessions(ctx context.Context, ownerID *string) ([]model.MonitorSession, error)

	CreateMonitorSnapshot(ctx context.Context, in model.SnapshotInput) (model.MonitorSnapshot, error)
	ListMonitorSnapshots(ctx context.Context, sessionID string) ([]model.MonitorSnapshot, error)

	GetUserProfile(ctx context.Context, id string) (model.UserProfile, error)
	UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.UserProfile, error)

	SignUp(ctx context.Context, email, password string, name *string) (model.Identity, error)
	SignIn(ctx context.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context) error
	// CurrentIdentity returns nil when there is no live session.
	CurrentIdentity(ctx context.Context) (*model.Identity, error)
	// Subscribe registers fn for auth changes and returns a function that
	// removes it.
	Subscribe(fn func(AuthEvent)) (cancel func())
}

// IdentityFromProfile converts a backend profile into a signed-in identity.
func IdentityFromProfile(p model.UserProfile) model.Identity {
	id, email := p.ID, p.Email
	return model.Identity{ID: &id, Email: &email, Name: p.Name, Authenticated: true}
}
