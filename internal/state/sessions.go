package state

import (
	"context"
	"slices"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

const (
	opAddSession    = "add_monitor_session"
	opUpdateSession = "update_monitor_session"
	opLoadSessions  = "load_monitor_sessions"
	opAddSnapshot   = "add_monitor_snapshot"
	opLoadSnapshots = "load_monitor_snapshots"
)

// AddMonitorSession creates an active session.
func (s *Store) AddMonitorSession(ctx context.Context, in model.SessionInput) Result[model.MonitorSession] {
	s.emit(opAddSession, Pending, nil)
	if err := in.Validate(); err != nil {
		return fail[model.MonitorSession](s, opAddSession, err)
	}
	if in.StartTime.IsZero() {
		in.StartTime = s.now()
	}

	var session model.MonitorSession
	if owner, ok := s.remote(); ok {
		in.OwnerID = owner
		created, err := s.gw.CreateMonitorSession(ctx, in)
		if err != nil {
			return fail[model.MonitorSession](s, opAddSession, err)
		}
		session = created
	} else {
		in.OwnerID = nil
		session = in.Session(s.newID(), s.now())
	}
	session.Snapshots = nil

	s.mu.Lock()
	s.sessions = slices.Insert(s.sessions, 0, session)
	s.mu.Unlock()
	return commit(ctx, s, opAddSession, session)
}

// UpdateMonitorSession applies patch optimistically. If the gateway rejects
// it the previous fields are restored and the result is Failed.
func (s *Store) UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) Result[model.MonitorSession] {
	s.mu.Lock()
	i := s.sessionIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return fail[model.MonitorSession](s, opUpdateSession, notFound("monitor session", id))
	}
	previous := s.sessions[i]
	if err := patch.Validate(previous.Status); err != nil {
		s.mu.Unlock()
		return fail[model.MonitorSession](s, opUpdateSession, err)
	}
	optimistic := patch.Apply(previous)
	s.sessions[i] = optimistic
	s.mu.Unlock()
	s.emit(opUpdateSession, Pending, nil)

	if _, ok := s.remote(); !ok {
		return commit(ctx, s, opUpdateSession, s.sessionCopy(id, optimistic))
	}

	server, err := s.gw.UpdateMonitorSession(ctx, id, patch)

	// Snapshots appended while the call was in flight are kept either way.
	s.mu.Lock()
	if j := s.sessionIndex(id); j >= 0 {
		next := server
		if err != nil {
			next = previous
		}
		next.Snapshots = s.sessions[j].Snapshots
		s.sessions[j] = next
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("WARN: update session %s rolled back: %v", id, err)
		return fail[model.MonitorSession](s, opUpdateSession, err)
	}
	return commit(ctx, s, opUpdateSession, s.sessionCopy(id, server))
}

// LoadMonitorSessions replaces the local sessions with the gateway's list.
// Snapshots already held locally for a session are carried over.
func (s *Store) LoadMonitorSessions(ctx context.Context) Result[[]model.MonitorSession] {
	s.emit(opLoadSessions, Pending, nil)

	owner, ok := s.remote()
	if !ok {
		return commit(ctx, s, opLoadSessions, s.MonitorSessions())
	}
	sessions, err := s.gw.ListMonitorSessions(ctx, owner)
	if err != nil {
		return fail[[]model.MonitorSession](s, opLoadSessions, err)
	}
	if sessions == nil {
		sessions = []model.MonitorSession{}
	}
	newestFirst(sessions, func(ms model.MonitorSession) time.Time { return ms.CreatedAt })

	s.mu.Lock()
	for k := range sessions {
		if len(sessions[k].Snapshots) > 0 {
			continue
		}
		if j := s.sessionIndex(sessions[k].ID); j >= 0 {
			sessions[k].Snapshots = s.sessions[j].Snapshots
		}
	}
	s.sessions = sessions
	s.mu.Unlock()
	return commit(ctx, s, opLoadSessions, s.MonitorSessions())
}

// AddSnapshot appends a sample to a known session. Timestamps within a
// session must be strictly increasing.
func (s *Store) AddSnapshot(ctx context.Context, in model.SnapshotInput) Result[model.MonitorSnapshot] {
	s.emit(opAddSnapshot, Pending, nil)
	if err := in.Validate(); err != nil {
		return fail[model.MonitorSnapshot](s, opAddSnapshot, err)
	}

	s.mu.Lock()
	i := s.sessionIndex(in.SessionID)
	var last time.Time
	if i >= 0 {
		if n := len(s.sessions[i].Snapshots); n > 0 {
			last = s.sessions[i].Snapshots[n-1].Timestamp
		}
	}
	s.mu.Unlock()
	if i < 0 {
		return fail[model.MonitorSnapshot](s, opAddSnapshot,
			errs.Validation("session_id", "unknown monitor session %q", in.SessionID))
	}
	if !last.IsZero() && !in.Timestamp.After(last) {
		return fail[model.MonitorSnapshot](s, opAddSnapshot,
			errs.Validation("timestamp", "must be after %s", last.Format(time.RFC3339Nano)))
	}

	var snap model.MonitorSnapshot
	if _, ok := s.remote(); ok {
		created, err := s.gw.CreateMonitorSnapshot(ctx, in)
		if err != nil {
			return fail[model.MonitorSnapshot](s, opAddSnapshot, err)
		}
		snap = created
	} else {
		snap = in.Snapshot(s.newID())
	}

	s.mu.Lock()
	if j := s.sessionIndex(in.SessionID); j >= 0 {
		s.sessions[j].Snapshots = append(s.sessions[j].Snapshots, snap)
	}
	s.mu.Unlock()
	return commit(ctx, s, opAddSnapshot, snap)
}

// LoadSnapshots fetches the samples of a session, oldest first.
func (s *Store) LoadSnapshots(ctx context.Context, sessionID string) Result[[]model.MonitorSnapshot] {
	s.emit(opLoadSnapshots, Pending, nil)

	if _, ok := s.remote(); !ok {
		ms, found := s.MonitorSession(sessionID)
		if !found {
			return fail[[]model.MonitorSnapshot](s, opLoadSnapshots, notFound("monitor session", sessionID))
		}
		return commit(ctx, s, opLoadSnapshots, ms.Snapshots)
	}

	snaps, err := s.gw.ListMonitorSnapshots(ctx, sessionID)
	if err != nil {
		return fail[[]model.MonitorSnapshot](s, opLoadSnapshots, err)
	}
	if snaps == nil {
		snaps = []model.MonitorSnapshot{}
	}
	slices.SortStableFunc(snaps, func(a, b model.MonitorSnapshot) int { return a.Timestamp.Compare(b.Timestamp) })

	s.mu.Lock()
	if j := s.sessionIndex(sessionID); j >= 0 {
		s.sessions[j].Snapshots = slices.Clone(snaps)
	}
	s.mu.Unlock()
	return commit(ctx, s, opLoadSnapshots, snaps)
}

// sessionCopy returns the stored session with id, or fallback when it has
// been dropped meanwhile.
func (s *Store) sessionCopy(id string, fallback model.MonitorSession) model.MonitorSession {
	if ms, ok := s.MonitorSession(id); ok {
		return ms
	}
	return fallback
}
