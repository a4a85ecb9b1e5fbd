package session

import (
	"fmt"
	"sync"
)

// Registry holds the connected player handles in join order.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64]*Conn
	order []uint64
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Conn)}
}

func (r *Registry) Add(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID]; ok {
		return fmt.Errorf("%w: id=%d", ErrDuplicateConn, c.ID)
	}
	r.conns[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// Remove unregisters and closes a handle. It returns nil when the id was
// not registered.
func (r *Registry) Remove(id uint64) *Conn {
	r.mu.Lock()
	c := r.conns[id]
	if c != nil {
		delete(r.conns, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	return c
}

func (r *Registry) Get(id uint64) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// Broadcast queues a line for every player and returns how many accepted it.
func (r *Registry) Broadcast(line string) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.order))
	for _, id := range r.order {
		targets = append(targets, r.conns[id])
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(line) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) SendTo(id uint64, line string) bool {
	c := r.Get(id)
	if c == nil {
		return false
	}
	return c.Send(line)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) IDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64(nil), r.order...)
}

// CloseAll tears down every handle, for shutdown.
func (r *Registry) CloseAll() {
	for _, id := range r.IDs() {
		r.Remove(id)
	}
}
