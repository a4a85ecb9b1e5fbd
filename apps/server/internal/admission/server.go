package admission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"blackjack-lite/apps/server/internal/session"
)

const (
	LineServerFull = "SERVER_FULL"
	LineNewPort    = "NEW_PORT"

	defaultHandoffTimeout = 10 * time.Second
	maxNameBytes          = 64
)

// Stage is how far one admission attempt got.
type Stage int

const (
	StageRendezvousAccepted Stage = iota
	StagePortAssigned
	StageSessionJoined
	StageRejected
)

var stageNames = map[Stage]string{
	StageRendezvousAccepted: "rendezvous_accepted",
	StagePortAssigned:       "port_assigned",
	StageSessionJoined:      "session_joined",
	StageRejected:           "rejected",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "stage(" + strconv.Itoa(int(s)) + ")"
}

// Joiner is the table side of admission.
type Joiner interface {
	CanJoin() bool
	NextPlayerID() uint64
	Join(c *session.Conn) error
}

type Options struct {
	// Addr is the rendezvous listen address, e.g. ":10000".
	Addr string
	// BindHost is the host the per-player listeners bind to.
	BindHost string
	// HandoffTimeout bounds the follow-up connect and the name line.
	HandoffTimeout time.Duration
	// Session is passed to every admitted connection. OnClose is replaced
	// by the port release.
	Session session.Options
}

// Server runs the two-phase handshake: the rendezvous connection only
// learns a port, the player's session lives on a second connection.
type Server struct {
	opts   Options
	pool   *PortPool
	joiner Joiner

	mu sync.Mutex
	ln net.Listener
}

func NewServer(joiner Joiner, pool *PortPool, opts Options) *Server {
	if opts.HandoffTimeout <= 0 {
		opts.HandoffTimeout = defaultHandoffTimeout
	}
	return &Server{opts: opts, pool: pool, joiner: joiner}
}

func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen rendezvous %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Printf("[Admission] Rendezvous listening on %s", ln.Addr())
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts rendezvous connections until ctx ends. Handshakes run one
// at a time so a pending handoff counts against the roster check.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		rc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Printf("[Admission] Rendezvous closed")
				return nil
			}
			log.Printf("[Admission] accept failed: %v", err)
			continue
		}
		s.handle(ctx, rc)
	}
}

func (s *Server) handle(ctx context.Context, rc net.Conn) Stage {
	defer rc.Close()
	remote := rc.RemoteAddr().String()
	log.Printf("[Admission] %s from %s", StageRendezvousAccepted, remote)

	reject := func(reason string, args ...any) Stage {
		log.Printf("[Admission] %s %s: %s", StageRejected, remote, fmt.Sprintf(reason, args...))
		return StageRejected
	}

	if !s.joiner.CanJoin() {
		s.writeLine(rc, LineServerFull)
		return reject("table full or round started")
	}

	port, err := s.pool.Acquire()
	if err != nil {
		s.writeLine(rc, LineServerFull)
		return reject("%v", err)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.opts.BindHost, strconv.Itoa(port)))
	if err != nil {
		s.pool.Release(port)
		s.writeLine(rc, LineServerFull)
		return reject("listen on port %d: %v", port, err)
	}
	defer ln.Close()

	if err := s.writeLine(rc, fmt.Sprintf("%s %d", LineNewPort, port)); err != nil {
		s.pool.Release(port)
		return reject("write %s: %v", LineNewPort, err)
	}
	log.Printf("[Admission] %s %s -> port %d", StagePortAssigned, remote, port)

	pc, err := s.acceptOne(ctx, ln)
	if err != nil {
		s.pool.Release(port)
		return reject("handoff on port %d: %v", port, err)
	}
	_ = ln.Close()

	br := bufio.NewReaderSize(pc, 512)
	name, err := s.readName(pc, br)
	if err != nil {
		_ = pc.Close()
		s.pool.Release(port)
		return reject("read name on port %d: %v", port, err)
	}

	opts := s.opts.Session
	opts.OnClose = func() { s.pool.Release(port) }
	c := session.NewConn(s.joiner.NextPlayerID(), name, port, pc, br, opts)
	if err := s.joiner.Join(c); err != nil {
		_ = c.WriteNow(LineServerFull)
		_ = c.Close()
		return reject("join %s: %v", name, err)
	}
	log.Printf("[Admission] %s %s as %s (id=%d port=%d)", StageSessionJoined, remote, name, c.ID, port)
	return StageSessionJoined
}

func (s *Server) acceptOne(ctx context.Context, ln net.Listener) (net.Conn, error) {
	deadline := time.Now().Add(s.opts.HandoffTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if tl, ok := ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(deadline)
	}
	return ln.Accept()
}

func (s *Server) readName(pc net.Conn, br *bufio.Reader) (string, error) {
	_ = pc.SetReadDeadline(time.Now().Add(s.opts.HandoffTimeout))
	defer pc.SetReadDeadline(time.Time{})

	raw, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && raw != "") {
		return "", err
	}
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("empty name")
	}
	if len(name) > maxNameBytes {
		name = name[:maxNameBytes]
	}
	return name, nil
}

func (s *Server) writeLine(c net.Conn, line string) error {
	_ = c.SetWriteDeadline(time.Now().Add(s.opts.HandoffTimeout))
	_, err := io.WriteString(c, line+"\n")
	return err
}
