package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func pipeConn(t *testing.T, id uint64, opts Options) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(id, "p", 10001, server, nil, opts), client
}

func TestConn_ReadPumpForwardsLinesAndReportsLoss(t *testing.T) {
	c, peer := pipeConn(t, 1, Options{})

	lines := make(chan string, 4)
	gone := make(chan error, 1)
	c.Start(func(_ *Conn, line string) { lines <- line }, func(_ *Conn, err error) { gone <- err })

	go func() {
		peer.Write([]byte("HIT\r\nSTAND\n"))
		peer.Close()
	}()

	for _, want := range []string{"HIT", "STAND"} {
		select {
		case got := <-lines:
			if got != want {
				t.Fatalf("got line %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	select {
	case err := <-gone:
		if !errors.Is(err, ErrPeerDisconnected) {
			t.Fatalf("expected ErrPeerDisconnected, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("onGone not called")
	}
}

func TestConn_OverlongLineIsDiscarded(t *testing.T) {
	c, peer := pipeConn(t, 1, Options{})

	lines := make(chan string, 4)
	gone := make(chan error, 1)
	c.Start(func(_ *Conn, line string) { lines <- line }, func(_ *Conn, err error) { gone <- err })

	go peer.Write([]byte(strings.Repeat("x", 3*maxLineBytes) + "\nHIT\n"))

	select {
	case got := <-lines:
		if got != "HIT" {
			t.Fatalf("got line %q, want HIT", got)
		}
	case err := <-gone:
		t.Fatalf("conn dropped by a long line: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for HIT")
	}
}

func TestReadLine_Limits(t *testing.T) {
	br := bufio.NewReaderSize(strings.NewReader(strings.Repeat("a", 8)+"\r\n"+strings.Repeat("b", 9)+"\nlast"), 16)
	line, tooLong, err := readLine(br, 8)
	if err != nil || tooLong || line != "aaaaaaaa" {
		t.Fatalf("first line = %q tooLong=%v err=%v", line, tooLong, err)
	}
	if _, tooLong, err = readLine(br, 8); err != nil || !tooLong {
		t.Fatalf("second line tooLong=%v err=%v", tooLong, err)
	}
	if line, _, err = readLine(br, 8); err != nil || line != "last" {
		t.Fatalf("unterminated line = %q err=%v", line, err)
	}
	if _, _, err = readLine(br, 8); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestConn_WriteFailureClosesConn(t *testing.T) {
	c, peer := pipeConn(t, 1, Options{})
	c.Start(nil, nil)
	peer.Close()

	c.Send("YOUR_TURN")
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("conn still open after a failed write")
	}
	if c.Send("GAME_START") {
		t.Fatalf("send after write failure should report false")
	}
}

func TestConn_KeepsBytesBufferedDuringHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go client.Write([]byte("alice\nHIT\n"))

	br := bufio.NewReader(server)
	name, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read name: %v", err)
	}
	c := NewConn(7, name, 10002, server, br, Options{})
	if c.Name != "alice" {
		t.Fatalf("name = %q", c.Name)
	}

	lines := make(chan string, 1)
	c.Start(func(_ *Conn, line string) { lines <- line }, nil)
	select {
	case got := <-lines:
		if got != "HIT" {
			t.Fatalf("got %q, want HIT", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("buffered command lost")
	}
}

func TestConn_CloseRunsOnCloseOnce(t *testing.T) {
	var calls int32
	c, _ := pipeConn(t, 1, Options{OnClose: func() { atomic.AddInt32(&calls, 1) }})
	c.Close()
	c.Close()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("OnClose ran %d times", got)
	}
	if c.Send("YOUR_TURN") {
		t.Fatalf("send on closed conn should report false")
	}
}

func TestRegistry_BroadcastSkipsStalledPeer(t *testing.T) {
	reg := NewRegistry()

	stalled, _ := pipeConn(t, 1, Options{SendQueue: 1, SendTimeout: 5 * time.Second})
	healthy, healthyPeer := pipeConn(t, 2, Options{SendQueue: 8})
	for _, c := range []*Conn{stalled, healthy} {
		if err := reg.Add(c); err != nil {
			t.Fatal(err)
		}
		c.Start(nil, nil)
	}
	if err := reg.Add(healthy); !errors.Is(err, ErrDuplicateConn) {
		t.Fatalf("expected ErrDuplicateConn, got %v", err)
	}

	received := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(healthyPeer)
		for sc.Scan() {
			received <- sc.Text()
		}
	}()

	start := time.Now()
	stalledAccepted := 0
	for i := 0; i < 5; i++ {
		if reg.Broadcast("GAME_START") == 2 {
			stalledAccepted++
		}
	}
	if time.Since(start) > time.Second {
		t.Fatalf("broadcast blocked on a stalled peer")
	}
	if stalledAccepted == 5 {
		t.Fatalf("stalled peer should have dropped some lines")
	}

	for i := 0; i < 5; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("healthy peer received only %d lines", i)
		}
	}
}

func TestRegistry_RemoveClosesAndKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	var closed int32
	for id := uint64(1); id <= 3; id++ {
		c, _ := pipeConn(t, id, Options{OnClose: func() { atomic.AddInt32(&closed, 1) }})
		if err := reg.Add(c); err != nil {
			t.Fatal(err)
		}
	}
	if c := reg.Remove(2); c == nil {
		t.Fatalf("expected removed conn")
	}
	if reg.Remove(2) != nil {
		t.Fatalf("second remove should be a no-op")
	}
	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unexpected order %v", ids)
	}
	if atomic.LoadInt32(&closed) != 1 {
		t.Fatalf("removed conn not closed")
	}
	if reg.SendTo(2, "x") {
		t.Fatalf("send to removed id should fail")
	}
	reg.CloseAll()
	if reg.Len() != 0 || atomic.LoadInt32(&closed) != 3 {
		t.Fatalf("CloseAll left %d conns, closed=%d", reg.Len(), atomic.LoadInt32(&closed))
	}
}
