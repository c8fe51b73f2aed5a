package state

import (
	"context"
	"errors"
	"reflect"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/gateway"
	"roast-tracker/internal/model"
)

const (
	opUpdateSettings = "update_settings"
	opSetIdentity    = "set_identity"
	opLogout         = "logout"
	opInitialize     = "initialize"
	opSignIn         = "sign_in"
	opSignUp         = "sign_up"
	opLoadProfile    = "load_user_profile"
	opUpdateProfile  = "update_user_profile"
)

var (
	errNoGateway = errs.Validation("gateway", "no remote backend configured")
	errSignedOut = errs.Validation("identity", "sign in first")
)

// UpdateSettings merges patch into the settings. Settings never leave the
// device.
func (s *Store) UpdateSettings(patch model.SettingsPatch) Result[model.Settings] {
	s.emit(opUpdateSettings, Pending, nil)

	s.mu.Lock()
	next := patch.Apply(s.settings)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fail[model.Settings](s, opUpdateSettings, err)
	}
	s.settings = next
	s.mu.Unlock()
	return commit(context.Background(), s, opUpdateSettings, next)
}

// SetIdentity replaces the current identity. Identity listeners run only
// when it actually changed.
func (s *Store) SetIdentity(identity model.Identity) Result[model.Identity] {
	return s.setIdentity(identity, false)
}

func (s *Store) setIdentity(identity model.Identity, always bool) Result[model.Identity] {
	identity = identity.Normalize()
	s.emit(opSetIdentity, Pending, nil)

	s.mu.Lock()
	changed := !reflect.DeepEqual(s.identity, identity)
	s.identity = identity
	s.mu.Unlock()

	res := commit(context.Background(), s, opSetIdentity, identity)
	if changed || always {
		s.notifyIdentity(identity)
	}
	return res
}

// Logout signs out locally first, then tells the gateway. A gateway failure
// is reported but the local sign-out stands. Identity listeners always run,
// even when nobody was signed in.
func (s *Store) Logout(ctx context.Context) Result[model.Identity] {
	s.emit(opLogout, Pending, nil)
	s.setIdentity(model.Anonymous(), true)

	if s.gw != nil {
		if err := s.gw.SignOut(ctx); err != nil {
			return fail[model.Identity](s, opLogout, err)
		}
	}
	return commit(ctx, s, opLogout, model.Anonymous())
}

// Initialize follows gateway auth events and resolves the current identity.
// A signed-in identity also refreshes records and sessions. When the
// gateway cannot be reached the restored identity is kept.
func (s *Store) Initialize(ctx context.Context) Result[model.Identity] {
	s.emit(opInitialize, Pending, nil)
	if s.gw == nil {
		return commit(ctx, s, opInitialize, s.Identity())
	}

	s.listenMu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.gw.Subscribe(s.onAuthEvent)
	}
	s.listenMu.Unlock()

	current, err := s.gw.CurrentIdentity(ctx)
	if err != nil {
		s.logger.Printf("WARN: resolve identity: %v", err)
		return fail[model.Identity](s, opInitialize, err)
	}
	if current == nil {
		s.SetIdentity(model.Anonymous())
		return commit(ctx, s, opInitialize, model.Anonymous())
	}

	identity := s.SetIdentity(*current).Value
	if err := s.refresh(ctx); err != nil {
		return fail[model.Identity](s, opInitialize, err)
	}
	return commit(ctx, s, opInitialize, identity)
}

// SignIn authenticates against the gateway and loads the user's data.
func (s *Store) SignIn(ctx context.Context, email, password string) Result[model.Identity] {
	s.emit(opSignIn, Pending, nil)
	if s.gw == nil {
		return fail[model.Identity](s, opSignIn, errNoGateway)
	}
	identity, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return fail[model.Identity](s, opSignIn, err)
	}
	return s.signedIn(ctx, opSignIn, identity)
}

// SignUp registers a new account and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password string, name *string) Result[model.Identity] {
	s.emit(opSignUp, Pending, nil)
	if s.gw == nil {
		return fail[model.Identity](s, opSignUp, errNoGateway)
	}
	identity, err := s.gw.SignUp(ctx, email, password, name)
	if err != nil {
		return fail[model.Identity](s, opSignUp, err)
	}
	return s.signedIn(ctx, opSignUp, identity)
}

func (s *Store) signedIn(ctx context.Context, op string, identity model.Identity) Result[model.Identity] {
	identity = s.SetIdentity(identity).Value
	if err := s.refresh(ctx); err != nil {
		s.logger.Printf("WARN: %s: load data: %v", op, err)
	}
	return commit(ctx, s, op, identity)
}

func (s *Store) refresh(ctx context.Context) error {
	return errors.Join(s.LoadDetectionRecords(ctx).Err, s.LoadMonitorSessions(ctx).Err)
}

func (s *Store) onAuthEvent(ev gateway.AuthEvent) {
	switch ev.Kind {
	case gateway.SignedIn:
		s.SetIdentity(ev.Identity)
	case gateway.SignedOut:
		s.SetIdentity(model.Anonymous())
	}
}

// signedInID returns the user id for profile calls.
func (s *Store) signedInID() (string, error) {
	if s.gw == nil {
		return "", errNoGateway
	}
	identity := s.Identity()
	if !identity.Authenticated {
		return "", errSignedOut
	}
	return *identity.ID, nil
}

// LoadUserProfile fetches the signed-in user's backend profile.
func (s *Store) LoadUserProfile(ctx context.Context) Result[model.UserProfile] {
	s.emit(opLoadProfile, Pending, nil)
	id, err := s.signedInID()
	if err != nil {
		return fail[model.UserProfile](s, opLoadProfile, err)
	}
	profile, err := s.gw.GetUserProfile(ctx, id)
	if err != nil {
		return fail[model.UserProfile](s, opLoadProfile, err)
	}
	return commit(ctx, s, opLoadProfile, profile)
}

// UpdateUserProfile patches the signed-in user's backend profile. A new
// display name is carried into the identity.
func (s *Store) UpdateUserProfile(ctx context.Context, patch model.ProfilePatch) Result[model.UserProfile] {
	s.emit(opUpdateProfile, Pending, nil)
	id, err := s.signedInID()
	if err != nil {
		return fail[model.UserProfile](s, opUpdateProfile, err)
	}
	if patch.Preferences != nil {
		if err := patch.Preferences.Validate(); err != nil {
			return fail[model.UserProfile](s, opUpdateProfile, err)
		}
	}
	profile, err := s.gw.UpdateUserProfile(ctx, id, patch)
	if err != nil {
		return fail[model.UserProfile](s, opUpdateProfile, err)
	}
	if patch.Name != nil {
		identity := s.Identity()
		identity.Name = profile.Name
		s.SetIdentity(identity)
	}
	return commit(ctx, s, opUpdateProfile, profile)
}
