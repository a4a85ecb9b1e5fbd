// Package client speaks the player side of the table protocol: the
// rendezvous handshake, then newline-delimited commands and notices.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrServerFull   = errors.New("server full")
	ErrBadHandshake = errors.New("unexpected handshake reply")
)

const defaultDialTimeout = 5 * time.Second

type Client struct {
	Name string
	Port int

	conn   net.Conn
	reader *bufio.Reader

	wmu sync.Mutex
}

// Dial connects to the rendezvous address, follows the NEW_PORT redirect
// and sends name as the first line of the session.
func Dial(ctx context.Context, addr, name string, timeout time.Duration) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty player name")
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("bad server addr %q: %w", addr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	d := net.Dialer{Timeout: timeout}
	rc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial rendezvous: %w", err)
	}
	_ = rc.SetReadDeadline(time.Now().Add(timeout))
	reply, err := bufio.NewReader(rc).ReadString('\n')
	_ = rc.Close()
	if err != nil && !(errors.Is(err, io.EOF) && reply != "") {
		return nil, fmt.Errorf("read rendezvous reply: %w", err)
	}

	port, err := parseRedirect(strings.TrimSpace(reply))
	if err != nil {
		return nil, err
	}

	pc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial session port %d: %w", port, err)
	}
	c := &Client{Name: name, Port: port, conn: pc, reader: bufio.NewReader(pc)}
	if err := c.Send(name); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return c, nil
}

func parseRedirect(reply string) (int, error) {
	if reply == "SERVER_FULL" {
		return 0, ErrServerFull
	}
	portText, ok := strings.CutPrefix(reply, "NEW_PORT ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadHandshake, reply)
	}
	port, err := strconv.Atoi(strings.TrimSpace(portText))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: bad port %q", ErrBadHandshake, portText)
	}
	return port, nil
}

// ReadLine blocks for the next server line, without its newline.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if line != "" && errors.Is(err, io.EOF) {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Client) Send(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *Client) Hit() error   { return c.Send("HIT") }
func (c *Client) Stand() error { return c.Send("STAND") }

func (c *Client) Close() error { return c.conn.Close() }
