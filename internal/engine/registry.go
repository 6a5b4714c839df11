package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry is the process-wide map of stream ID to session,
// constructed once at startup and passed by reference. Entries are
// created on first go-live and retained when a stream goes offline so
// a reconnecting producer resumes the same ID and chat history.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg    Config
	clock  func() time.Time
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, clock func() time.Time, logger zerolog.Logger) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// GetOrCreate returns the session for id, creating an offline one on
// first use. ownerID is recorded at creation and never changes.
func (r *Registry) GetOrCreate(id, ownerID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}

	s := NewSession(id, ownerID, r.cfg, r.clock, r.logger)
	r.sessions[id] = s
	r.logger.Info().Str("stream_id", id).Str("owner_id", ownerID).Msg("session created")
	return s
}

// Get returns the session for id if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ListLive returns discovery info for every live session.
func (r *Registry) ListLive() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		if info := s.Info(); info.Status == StatusLive {
			infos = append(infos, info)
		}
	}
	return infos
}
