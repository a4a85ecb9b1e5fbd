package admission

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
)

var ErrPortUnavailable = errors.New("no free port")

// PortPool hands out per-player ports above the rendezvous port. A port is
// taken until Release; candidates must also be bindable at acquire time.
type PortPool struct {
	mu    sync.Mutex
	host  string
	base  int
	max   int
	inUse map[int]struct{}

	// probe reports whether a port can be bound right now.
	probe func(host string, port int) bool
}

// NewPortPool searches (base, max) in order; base itself is the rendezvous
// port and is never handed out.
func NewPortPool(host string, base, max int) (*PortPool, error) {
	if base <= 0 || base >= max || max > 65535 {
		return nil, fmt.Errorf("invalid port range (%d, %d)", base, max)
	}
	return &PortPool{
		host:  host,
		base:  base,
		max:   max,
		inUse: make(map[int]struct{}),
		probe: canBind,
	}, nil
}

func (p *PortPool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for port := p.base + 1; port < p.max; port++ {
		if _, taken := p.inUse[port]; taken {
			continue
		}
		if !p.probe(p.host, port) {
			continue
		}
		p.inUse[port] = struct{}{}
		return port, nil
	}
	log.Printf("[Admission] port search exhausted (%d, %d), %d in use", p.base, p.max, len(p.inUse))
	return 0, ErrPortUnavailable
}

// Release returns a port to the pool. Releasing a free port is a no-op.
func (p *PortPool) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, port)
}

func (p *PortPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

func (p *PortPool) IsInUse(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inUse[port]
	return ok
}

func canBind(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
