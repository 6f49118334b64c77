package transport

import (
    "sort"
    "sync"
    "time"
)

// Manager tracks live sessions so a server can enumerate and close them.
type Manager struct {
    mu       sync.RWMutex
    next     uint64
    sessions map[uint64]*entry
}

type entry struct {
    s             Session
    establishedAt time.Time
}

// Tracked describes one registered session.
type Tracked struct {
    ID            uint64
    Kind          Kind
    Remote        string
    EstablishedAt time.Time
}

func NewManager() *Manager { return &Manager{sessions: make(map[uint64]*entry)} }

// AddSession registers s and returns the id to pass to Remove.
func (m *Manager) AddSession(s Session) uint64 {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.next++
    m.sessions[m.next] = &entry{s: s, establishedAt: time.Now()}
    return m.next
}

// Remove forgets the session without closing it.
func (m *Manager) Remove(id uint64) {
    m.mu.Lock(); delete(m.sessions, id); m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
    m.mu.RLock(); defer m.mu.RUnlock()
    return len(m.sessions)
}

// List returns the tracked sessions ordered by id.
func (m *Manager) List() []Tracked {
    m.mu.RLock()
    out := make([]Tracked, 0, len(m.sessions))
    for id, e := range m.sessions {
        t := Tracked{ID: id, Kind: e.s.TransportKind(), EstablishedAt: e.establishedAt}
        if ra := e.s.RemoteAddr(); ra != nil { t.Remote = ra.String() }
        out = append(out, t)
    }
    m.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out
}

// CloseAll closes and forgets every tracked session.
func (m *Manager) CloseAll() {
    m.mu.Lock()
    all := m.sessions
    m.sessions = make(map[uint64]*entry)
    m.mu.Unlock()
    for _, e := range all { _ = e.s.Close() }
}
