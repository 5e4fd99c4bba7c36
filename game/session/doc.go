// Package session provides the registry of live backgammon matches.
//
// The session package implements:
//   - A Session per match holding the game and both connection slots
//   - Lookup by room id, by connection id and by participant
//   - Rebinding of connections on reconnect
//   - JSON snapshots of in-progress matches for restarts
//
// Core Types:
//
// Manager is the registry. Session wraps an engine.Game with a mutex that
// serializes every intent applied to that match. Slot records which
// connection currently plays a color and since when it has been away.
//
// Concurrency:
//
// The registry maps have their own read-write lock, separate from the
// per-session mutex. Code holding a session lock may call into the Manager;
// the Manager never waits on a session lock while holding its own.
//
// Usage:
//
//	manager := session.NewManagerWithPersistence(persistence)
//
//	sess, err := manager.Create(game, whiteConn, blackConn, profiles)
//	if err != nil {
//		return err
//	}
//
//	sess, color, err := manager.Lookup(connID)
//	sess.Lock()
//	defer sess.Unlock()
//	if sess.Removed() {
//		return session.ErrSessionNotFound
//	}
//
// Persistence:
//
// FilePersistence writes one JSON file per session. On startup
// LoadPersistedSessions restores them with both sides disconnected so
// players can reconnect by announcing their identity again.
package session
