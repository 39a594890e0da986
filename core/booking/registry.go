package booking

import (
	"sync"
	"time"
)

// Registry keeps live conversations in memory keyed by session. Entries
// expire after the configured lifetime; an expired or lost conversation
// simply starts over (and any remote lead linkage goes with it).
type Registry struct {
	lifetime time.Duration
	mu       sync.Mutex
	conns    map[string]*regEntry
}

type regEntry struct {
	conv       *Conversation
	lastAccess time.Time
}

func NewRegistry(lifetime time.Duration) *Registry {
	r := &Registry{
		lifetime: lifetime,
		conns:    make(map[string]*regEntry),
	}
	go r.sweep()
	return r
}

func (r *Registry) Get(sid string) (*Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[sid]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.conv, true
}

func (r *Registry) GetOrCreate(sid string, f *Flow) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[sid]; ok {
		e.lastAccess = time.Now()
		return e.conv
	}

	conv := f.NewConversation()
	r.conns[sid] = &regEntry{conv: conv, lastAccess: time.Now()}
	return conv
}

// Put replaces the session's conversation with a fresh one.
func (r *Registry) Put(sid string, conv *Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = &regEntry{conv: conv, lastAccess: time.Now()}
}

func (r *Registry) sweep() {
	for {
		time.Sleep(time.Minute)

		r.mu.Lock()
		for sid, e := range r.conns {
			if time.Since(e.lastAccess) > r.lifetime {
				delete(r.conns, sid)
			}
		}
		r.mu.Unlock()
	}
}
