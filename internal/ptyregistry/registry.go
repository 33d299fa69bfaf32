// Package ptyregistry owns the map of live sessions: create-on-first-use,
// lookup, list, and terminate. It holds no per-session mutex itself —
// each Session already serializes its own operations — so a long-running
// wait on one session never blocks creation or lookup of another.
package ptyregistry

import (
	"sync"

	"agentpty/internal/ptyconfig"
	"agentpty/internal/ptyerr"
	"agentpty/internal/ptylog"
	"agentpty/internal/ptysession"

	"github.com/google/uuid"
)

// Registry tracks every session the daemon has created.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*ptysession.Session
	cfg      ptyconfig.Config
	logger   *ptylog.Logger
}

// New builds an empty Registry.
func New(cfg ptyconfig.Config, logger *ptylog.Logger) *Registry {
	return &Registry{sessions: make(map[string]*ptysession.Session), cfg: cfg, logger: logger}
}

// NewSessionID generates a session id as a random UUID, so two daemons
// racing to create a session id in the same second never collide.
func NewSessionID() string {
	return uuid.New().String()
}

// Create spawns a new session and registers it. If opts.ID is empty, a
// new id is generated, matching the external interface's
// "create-on-first-input" rule where the caller need not pick an id.
func (r *Registry) Create(opts ptysession.CreateOptions) (*ptysession.Session, error) {
	if opts.ID == "" {
		opts.ID = NewSessionID()
	}
	opts.Config = r.cfg
	if opts.Logger == nil {
		opts.Logger = r.logger
	}

	r.mu.Lock()
	if _, exists := r.sessions[opts.ID]; exists {
		r.mu.Unlock()
		return nil, ptyerr.InvalidArgument("session id already in use: " + opts.ID)
	}
	r.mu.Unlock()

	sess, err := ptysession.Create(opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[opts.ID] = sess
	r.mu.Unlock()
	return sess, nil
}

// Get looks up a session by id. A session is never removed from the
// registry once created, so a terminated id keeps resolving to the same
// *ptysession.Session forever — its operations report a terminal status
// themselves rather than Get turning the lookup into an error. Only an id
// that was never created returns ErrNoSuchSession.
func (r *Registry) Get(id string) (*ptysession.Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ptyerr.NoSuchSession(id)
	}
	return sess, nil
}

// List returns metadata for every tracked session.
func (r *Registry) List() []ptysession.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ptysession.Metadata, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.GetMetadata())
	}
	return out
}

// Terminate tears down a session. The id stays in the registry as a
// tombstone — it keeps resolving to the same Session, whose transcript
// directory and terminal status remain reachable rather than vanishing
// into a no-such-session error.
func (r *Registry) Terminate(id string) error {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ptyerr.NoSuchSession(id)
	}
	return sess.Terminate()
}

// TerminateAll tears down every tracked session, used on daemon shutdown.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		if err := r.Terminate(id); err != nil && r.logger != nil {
			r.logger.Warn("terminate during shutdown failed")
		}
	}
}
