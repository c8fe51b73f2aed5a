package state

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/gateway"
	"roast-tracker/internal/model"
)

// fakeGateway is an in-memory Gateway. Setting fail makes every data call
// return a gateway error.
type fakeGateway struct {
	mu        sync.Mutex
	fail      error
	calls     map[string]int
	seq       int
	records   []model.DetectionRecord
	sessions  map[string]model.MonitorSession
	snapshots []model.MonitorSnapshot
	current   *model.Identity
	listeners []func(gateway.AuthEvent)
	owners    []*string
	profiles  map[string]model.UserProfile
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:    map[string]int{},
		sessions: map[string]model.MonitorSession{},
		profiles: map[string]model.UserProfile{},
	}
}

var fakeClock = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func (g *fakeGateway) begin(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	g.seq++
	return g.fail
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) setFail(err error) {
	g.mu.Lock()
	g.fail = err
	g.mu.Unlock()
}

func (g *fakeGateway) id(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *fakeGateway) CreateDetectionRecord(_ context.Context, in model.DetectionInput) (model.DetectionRecord, error) {
	if err := g.begin("create_record"); err != nil {
		return model.DetectionRecord{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owners = append(g.owners, in.OwnerID)
	r := in.Record(g.id("srv-rec"), fakeClock.Add(time.Duration(g.seq)*time.Second))
	g.records = append(g.records, r)
	return r, nil
}

func (g *fakeGateway) ListDetectionRecords(_ context.Context, ownerID *string) ([]model.DetectionRecord, error) {
	if err := g.begin("list_records"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.DetectionRecord
	for _, r := range g.records {
		if sameOwner(r.OwnerID, ownerID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *fakeGateway) DeleteDetectionRecord(_ context.Context, id string) error {
	if err := g.begin("delete_record"); err != nil {
		return err
	}
	return nil
}

func (g *fakeGateway) CreateMonitorSession(_ context.Context, in model.SessionInput) (model.MonitorSession, error) {
	if err := g.begin("create_session"); err != nil {
		return model.MonitorSession{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := in.Session(g.id("srv-ses"), fakeClock.Add(time.Duration(g.seq)*time.Second))
	g.sessions[ms.ID] = ms
	return ms, nil
}

func (g *fakeGateway) UpdateMonitorSession(_ context.Context, id string, patch model.SessionPatch) (model.MonitorSession, error) {
	if err := g.begin("update_session"); err != nil {
		return model.MonitorSession{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ms, ok := g.sessions[id]
	if !ok {
		return model.MonitorSession{}, errs.Gateway("update_session", http.StatusNotFound, "not found", errs.ErrNotFound)
	}
	ms = patch.Apply(ms)
	g.sessions[id] = ms
	return ms, nil
}

func (g *fakeGateway) ListMonitorSessions(_ context.Context, ownerID *string) ([]model.MonitorSession, error) {
	if err := g.begin("list_sessions"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.MonitorSession
	for _, ms := range g.sessions {
		if sameOwner(ms.OwnerID, ownerID) {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (g *fakeGateway) CreateMonitorSnapshot(_ context.Context, in model.SnapshotInput) (model.MonitorSnapshot, error) {
	if err := g.begin("create_snapshot"); err != nil {
		return model.MonitorSnapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := in.Snapshot(g.id("srv-snap"))
	g.snapshots = append(g.snapshots, snap)
	return snap, nil
}

func (g *fakeGateway) ListMonitorSnapshots(_ context.Context, sessionID string) ([]model.MonitorSnapshot, error) {
	if err := g.begin("list_snapshots"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.MonitorSnapshot
	for i := len(g.snapshots) - 1; i >= 0; i-- {
		if g.snapshots[i].SessionID == sessionID {
			out = append(out, g.snapshots[i])
		}
	}
	return out, nil
}

func (g *fakeGateway) GetUserProfile(_ context.Context, id string) (model.UserProfile, error) {
	if err := g.begin("get_profile"); err != nil {
		return model.UserProfile{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile(id), nil
}

func (g *fakeGateway) UpdateUserProfile(_ context.Context, id string, patch model.ProfilePatch) (model.UserProfile, error) {
	if err := g.begin("update_profile"); err != nil {
		return model.UserProfile{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.profile(id)
	if patch.Name != nil {
		p.Name = patch.Name
	}
	if patch.Preferences != nil {
		p.Preferences = *patch.Preferences
	}
	g.profiles[id] = p
	return p, nil
}

// profile returns the stored profile for id, or a fresh one. g.mu is held.
func (g *fakeGateway) profile(id string) model.UserProfile {
	if p, ok := g.profiles[id]; ok {
		return p
	}
	return model.UserProfile{ID: id, Email: strings.TrimPrefix(id, "user-"), Preferences: model.DefaultPreferences()}
}

func (g *fakeGateway) SignUp(ctx context.Context, email, password string, name *string) (model.Identity, error) {
	identity, err := g.SignIn(ctx, email, password)
	identity.Name = name
	return identity, err
}

func (g *fakeGateway) SignIn(_ context.Context, email, password string) (model.Identity, error) {
	if err := g.begin("sign_in"); err != nil {
		return model.Identity{}, err
	}
	if password != "secret1" {
		return model.Identity{}, errs.Gateway("sign_in", http.StatusUnauthorized, "invalid credentials", errs.ErrUnauthorized)
	}
	id := "user-" + email
	identity := model.Identity{ID: &id, Email: &email, Authenticated: true}
	g.mu.Lock()
	g.current = &identity
	g.mu.Unlock()
	g.publish(gateway.AuthEvent{Kind: gateway.SignedIn, Identity: identity})
	return identity, nil
}

func (g *fakeGateway) SignOut(context.Context) error {
	err := g.begin("sign_out")
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()
	g.publish(gateway.AuthEvent{Kind: gateway.SignedOut})
	return err
}

func (g *fakeGateway) CurrentIdentity(context.Context) (*model.Identity, error) {
	if err := g.begin("current_identity"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, nil
}

func (g *fakeGateway) Subscribe(fn func(gateway.AuthEvent)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
	i := len(g.listeners) - 1
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.listeners[i] = nil
	}
}

func (g *fakeGateway) publish(ev gateway.AuthEvent) {
	g.mu.Lock()
	fns := append([]func(gateway.AuthEvent){}, g.listeners...)
	g.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(ev)
		}
	}
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func gatewaySignedOut() gateway.AuthEvent {
	return gateway.AuthEvent{Kind: gateway.SignedOut, Identity: model.Anonymous()}
}
