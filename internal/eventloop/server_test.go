package eventloop

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/blocking"
	"github.com/nullbyte-labs/redisgo/internal/bufpool"
	"github.com/nullbyte-labs/redisgo/internal/command"
	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/pubsub"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dispatcher := command.NewDispatcher(command.Deps{
		Keyspace: keyspace.New(nil),
		Blocking: blocking.New(),
		PubSub:   pubsub.New(),
	})
	srv := New(ln, dispatcher, bufpool.New(4096, 16), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()

	return ln.Addr().String(), func() {
		cancel()
		<-done
	}
}

func sendAndRead(t *testing.T, conn net.Conn, cmd string) string {
	t.Helper()
	if _, err := conn.Write([]byte(cmd)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return line
}

func TestServerRoundTripsPing(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got := sendAndRead(t, conn, "*1\r\n$4\r\nPING\r\n")
	if got != "+PONG\r\n" {
		t.Fatalf("reply = %q, want +PONG\\r\\n", got)
	}
}

func TestServerDeliversWakeToParkedBlpopClient(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	blocker, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial blocker: %v", err)
	}
	defer blocker.Close()

	if _, err := blocker.Write([]byte("*3\r\n$5\r\nBLPOP\r\n$1\r\nq\r\n$1\r\n0\r\n")); err != nil {
		t.Fatalf("write BLPOP: %v", err)
	}

	// Give the blocker time to register before the pusher writes.
	time.Sleep(50 * time.Millisecond)

	pusher, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial pusher: %v", err)
	}
	defer pusher.Close()
	sendAndRead(t, pusher, "*3\r\n$5\r\nLPUSH\r\n$1\r\nq\r\n$1\r\nv\r\n")

	blocker.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(blocker)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read blocker reply: %v", err)
	}
	if line != "*2\r\n" {
		t.Fatalf("first line = %q, want *2\\r\\n", line)
	}
}

// TestStoredValueSurvivesBufferReuseAcrossConnections guards against a
// value stored in the keyspace aliasing the shared read buffer: with pool
// capacity 1, the second connection is guaranteed to receive the first
// connection's exact backing array, and writing new traffic into it must
// not corrupt a value the first connection already stored.
func TestStoredValueSurvivesBufferReuseAcrossConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ks := keyspace.New(nil)
	dispatcher := command.NewDispatcher(command.Deps{
		Keyspace: ks,
		Blocking: blocking.New(),
		PubSub:   pubsub.New(),
	})
	srv := New(ln, dispatcher, bufpool.New(4096, 1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()
	addr := ln.Addr().String()

	first, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	sendAndRead(t, first, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$6\r\nsecret\r\n")
	first.Close()

	time.Sleep(50 * time.Millisecond) // let serve's deferred Put return the buffer

	second, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	sendAndRead(t, second, "*3\r\n$3\r\nSET\r\n$1\r\nj\r\n$7\r\nclobber\r\n")

	val, ok, err := ks.GetString("k")
	if err != nil || !ok {
		t.Fatalf("GetString(k) = %q,%v,%v", val, ok, err)
	}
	if string(val) != "secret" {
		t.Fatalf("k = %q, want %q (buffer reuse corrupted stored value)", val, "secret")
	}
}

// TestCloneArgsIsIndependentOfSourceBuffer is the direct regression test
// for the aliasing fix: mutating the shared read buffer after cloning must
// never change what a handler already stored.
func TestCloneArgsIsIndependentOfSourceBuffer(t *testing.T) {
	buf := []byte("SET k secret")
	args := [][]byte{buf[0:3], buf[4:5], buf[6:12]}

	cloned := cloneArgs(args)

	for i := range buf {
		buf[i] = 'X'
	}

	want := []string{"SET", "k", "secret"}
	for i, w := range want {
		if string(cloned[i]) != w {
			t.Fatalf("cloned[%d] = %q, want %q (aliases source buffer)", i, cloned[i], w)
		}
	}
}

func TestServerClosesConnectionAfterQuit(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got := sendAndRead(t, conn, "*1\r\n$4\r\nQUIT\r\n")
	if got != "+OK\r\n" {
		t.Fatalf("reply = %q, want +OK\\r\\n", got)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after QUIT")
	}
}
