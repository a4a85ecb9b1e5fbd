package session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"blackjack-lite/blackjack"
)

var (
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrDuplicateConn    = errors.New("connection already registered")
)

const (
	defaultSendQueue   = 64
	defaultSendTimeout = 5 * time.Second
	maxLineBytes       = 4096
)

type Options struct {
	// SendQueue bounds the outbound lines buffered per peer. A full queue
	// drops lines for that peer only.
	SendQueue int
	// SendTimeout bounds a single write to the socket.
	SendTimeout time.Duration
	// OnClose runs once after the socket is closed (port release).
	OnClose func()
}

// Conn is one player's durable line channel.
type Conn struct {
	ID   uint64
	Name string
	Port int

	conn   net.Conn
	reader *bufio.Reader
	send   chan string
	done   chan struct{}

	sendTimeout time.Duration
	onClose     func()
	closeOnce   sync.Once
	started     sync.Once
}

// NewConn wraps an accepted connection. br may carry bytes already buffered
// while the name line was read; nil means read straight from nc.
func NewConn(id uint64, name string, port int, nc net.Conn, br *bufio.Reader, opts Options) *Conn {
	if br == nil {
		br = bufio.NewReader(nc)
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = defaultSendQueue
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &Conn{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Port:        port,
		conn:        nc,
		reader:      br,
		send:        make(chan string, opts.SendQueue),
		done:        make(chan struct{}),
		sendTimeout: opts.SendTimeout,
		onClose:     opts.OnClose,
	}
}

// Start launches the pumps. onLine receives every inbound line in order;
// onGone fires once when the peer goes away and the read side stops.
func (c *Conn) Start(onLine func(c *Conn, line string), onGone func(c *Conn, err error)) {
	c.started.Do(func() {
		go c.readPump(onLine, onGone)
		go c.writePump()
	})
}

// Send queues a line without blocking. It reports false when the line was
// dropped (queue full or connection closed).
func (c *Conn) Send(line string) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- line:
		return true
	default:
		log.Printf("[Session] send queue full for %s (id=%d), dropping line", c.Name, c.ID)
		return false
	}
}

// WriteNow writes a line synchronously, for terminal replies on a
// connection whose pumps never started.
func (c *Conn) WriteNow(line string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) RemoteAddr() string {
	if c.conn == nil || c.conn.RemoteAddr() == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *Conn) readPump(onLine func(*Conn, string), onGone func(*Conn, error)) {
	var err error
	for {
		var line string
		var tooLong bool
		line, tooLong, err = readLine(c.reader, maxLineBytes)
		switch {
		case tooLong:
			log.Printf("[Session] %v from %s (id=%d)", fmt.Errorf("%w: line over %d bytes discarded", blackjack.ErrMalformedCommand, maxLineBytes), c.Name, c.ID)
		case err == nil && onLine != nil:
			onLine(c, line)
		}
		if err != nil {
			break
		}
	}
	if onGone != nil {
		onGone(c, fmt.Errorf("%w: %v", ErrPeerDisconnected, err))
	}
}

// readLine returns the next line without its terminator. A line longer
// than limit is consumed through its newline and reported as tooLong. A
// final unterminated line is returned before io.EOF.
func readLine(br *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		frag, rerr := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, frag...)
			if len(bytes.TrimRight(buf, "\r\n")) > limit {
				tooLong, buf = true, nil
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		if rerr != nil && (tooLong || len(buf) == 0) {
			return "", tooLong, rerr
		}
		if tooLong {
			return "", true, nil
		}
		return string(bytes.TrimRight(buf, "\r\n")), false, nil
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case line := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
			if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
				log.Printf("[Session] write to %s (id=%d) failed: %v", c.Name, c.ID, err)
				// the read pump then fails and reports the loss
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
