package command

import (
	"testing"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/blocking"
	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/metrics"
	"github.com/nullbyte-labs/redisgo/internal/pubsub"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(Deps{
		Keyspace: keyspace.New(nil),
		Blocking: blocking.New(),
		PubSub:   pubsub.New(),
		Metrics:  metrics.New(),
	})
}

// newTestDispatcherWithClock builds a dispatcher whose Now() reads from a
// caller-controlled pointer, for deterministic deadline-sweep tests.
func newTestDispatcherWithClock(clock *time.Time) *Dispatcher {
	return NewDispatcher(Deps{
		Keyspace: keyspace.New(nil),
		Blocking: blocking.New(),
		PubSub:   pubsub.New(),
		Metrics:  metrics.New(),
		Clock:    func() time.Time { return *clock },
	})
}

func TestPingWithoutArgReturnsSimpleString(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	result := d.Dispatch(conn, [][]byte{[]byte("PING")})
	if string(result.Bytes) != "+PONG\r\n" {
		t.Fatalf("PING reply = %q, want +PONG\\r\\n", result.Bytes)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	result := d.Dispatch(conn, [][]byte{[]byte("NOTACOMMAND")})
	if result.Kind != ResultError {
		t.Fatalf("kind = %v, want ResultError", result.Kind)
	}
}

func TestWrongArityReturnsError(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	result := d.Dispatch(conn, [][]byte{[]byte("GET")})
	if result.Kind != ResultError {
		t.Fatalf("kind = %v, want ResultError for GET with no key", result.Kind)
	}
}

func TestSetThenGetRoundtrips(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	result := d.Dispatch(conn, [][]byte{[]byte("GET"), []byte("k")})
	if string(result.Bytes) != "$1\r\nv\r\n" {
		t.Fatalf("GET reply = %q, want $1\\r\\nv\\r\\n", result.Bytes)
	}
}

func TestIncrOnMissingKeyStartsAtOne(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	result := d.Dispatch(conn, [][]byte{[]byte("INCR"), []byte("counter")})
	if string(result.Bytes) != ":1\r\n" {
		t.Fatalf("INCR reply = %q, want :1\\r\\n", result.Bytes)
	}
}

func TestZAddRejectsWholeCommandOnBadFloat(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	result := d.Dispatch(conn, [][]byte{[]byte("ZADD"), []byte("z"), []byte("1"), []byte("a"), []byte("notafloat"), []byte("b")})
	if result.Kind != ResultError {
		t.Fatalf("ZADD kind = %v, want ResultError", result.Kind)
	}
	card := d.Dispatch(conn, [][]byte{[]byte("ZCARD"), []byte("z")})
	if string(card.Bytes) != ":0\r\n" {
		t.Fatalf("ZCARD after rejected ZADD = %q, want :0\\r\\n (no partial mutation)", card.Bytes)
	}
}

func TestBlpopOnWrongTypeKeyReturnsError(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("SET"), []byte("s"), []byte("v")})
	result := d.Dispatch(conn, [][]byte{[]byte("BLPOP"), []byte("s"), []byte("0")})
	if result.Kind != ResultError {
		t.Fatalf("BLPOP on string key kind = %v, want ResultError", result.Kind)
	}
}

func TestPubSubGateRejectsNonPubSubCommand(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("SUBSCRIBE"), []byte("ch")})
	result := d.Dispatch(conn, [][]byte{[]byte("GET"), []byte("k")})
	if result.Kind != ResultError {
		t.Fatalf("kind = %v, want ResultError while subscribed", result.Kind)
	}
}

func TestPubSubGateAllowsPingAndUnsubscribe(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("SUBSCRIBE"), []byte("ch")})
	if result := d.Dispatch(conn, [][]byte{[]byte("PING")}); result.Kind != ResultSuccess {
		t.Fatalf("PING while subscribed kind = %v, want success", result.Kind)
	}
	if result := d.Dispatch(conn, [][]byte{[]byte("UNSUBSCRIBE")}); result.Kind != ResultMultiSuccess {
		t.Fatalf("UNSUBSCRIBE kind = %v, want multi success", result.Kind)
	}
}

func TestMultiQueuesThenExecRunsInOrder(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("MULTI")})

	queued := d.Dispatch(conn, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	if string(queued.Bytes) != "+QUEUED\r\n" {
		t.Fatalf("queued reply = %q, want +QUEUED", queued.Bytes)
	}
	d.Dispatch(conn, [][]byte{[]byte("GET"), []byte("k")})

	result := d.Dispatch(conn, [][]byte{[]byte("EXEC")})
	if result.Kind != ResultSuccess {
		t.Fatalf("EXEC kind = %v, want success", result.Kind)
	}
	want := "*2\r\n+OK\r\n$1\r\nv\r\n"
	if string(result.Bytes) != want {
		t.Fatalf("EXEC reply = %q, want %q", result.Bytes, want)
	}
}

func TestExecSurfacesWakesFromQueuedCommands(t *testing.T) {
	d := newTestDispatcher()
	blocked := NewConn(1)
	pusher := NewConn(2)

	result := d.Dispatch(blocked, [][]byte{[]byte("BLPOP"), []byte("q"), []byte("0")})
	if result.Kind != ResultAsync {
		t.Fatalf("BLPOP kind = %v, want ResultAsync", result.Kind)
	}

	d.Dispatch(pusher, [][]byte{[]byte("MULTI")})
	d.Dispatch(pusher, [][]byte{[]byte("LPUSH"), []byte("q"), []byte("v")})
	execResult := d.Dispatch(pusher, [][]byte{[]byte("EXEC")})
	if len(execResult.Wakes) != 1 || execResult.Wakes[0].ConnID != 1 {
		t.Fatalf("EXEC wakes = %+v, want one wake for conn 1", execResult.Wakes)
	}
}

func TestBlockingCommandInsideMultiErrors(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("MULTI")})
	result := d.Dispatch(conn, [][]byte{[]byte("BLPOP"), []byte("q"), []byte("0")})
	if result.Kind != ResultError {
		t.Fatalf("BLPOP in MULTI kind = %v, want ResultError", result.Kind)
	}
}

func TestExecFailsWhenWatchedKeyChanged(t *testing.T) {
	d := newTestDispatcher()
	watcher := NewConn(1)
	other := NewConn(2)

	d.Dispatch(watcher, [][]byte{[]byte("SET"), []byte("k"), []byte("1")})
	d.Dispatch(watcher, [][]byte{[]byte("WATCH"), []byte("k")})
	d.Dispatch(other, [][]byte{[]byte("SET"), []byte("k"), []byte("2")})
	d.Dispatch(watcher, [][]byte{[]byte("MULTI")})
	d.Dispatch(watcher, [][]byte{[]byte("GET"), []byte("k")})

	result := d.Dispatch(watcher, [][]byte{[]byte("EXEC")})
	if string(result.Bytes) != "*-1\r\n" {
		t.Fatalf("EXEC after dirty watch = %q, want null array", result.Bytes)
	}
}

func TestBlpopParksThenLpushWakesIt(t *testing.T) {
	d := newTestDispatcher()
	blocked := NewConn(1)
	pusher := NewConn(2)

	result := d.Dispatch(blocked, [][]byte{[]byte("BLPOP"), []byte("q"), []byte("0")})
	if result.Kind != ResultAsync {
		t.Fatalf("BLPOP kind = %v, want ResultAsync", result.Kind)
	}

	pushResult := d.Dispatch(pusher, [][]byte{[]byte("LPUSH"), []byte("q"), []byte("v")})
	if len(pushResult.Wakes) != 1 || pushResult.Wakes[0].ConnID != 1 {
		t.Fatalf("LPUSH wakes = %+v, want one wake for conn 1", pushResult.Wakes)
	}
}

func TestPublishReturnsRecipientCountAndWakes(t *testing.T) {
	d := newTestDispatcher()
	sub := NewConn(1)
	pub := NewConn(2)

	d.Dispatch(sub, [][]byte{[]byte("SUBSCRIBE"), []byte("news")})
	result := d.Dispatch(pub, [][]byte{[]byte("PUBLISH"), []byte("news"), []byte("hello")})
	if string(result.Bytes) != ":1\r\n" {
		t.Fatalf("PUBLISH reply = %q, want :1", result.Bytes)
	}
	if len(result.Wakes) != 1 || result.Wakes[0].ConnID != 1 {
		t.Fatalf("PUBLISH wakes = %+v, want one wake for conn 1", result.Wakes)
	}
}

func TestCloseConnReleasesBlockingAndPubSubState(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	d.Dispatch(conn, [][]byte{[]byte("SUBSCRIBE"), []byte("ch")})
	d.Dispatch(conn, [][]byte{[]byte("BLPOP"), []byte("q"), []byte("0")})

	d.CloseConn(conn)

	if d.blocking.IsBlocked(conn.ID) {
		t.Fatal("expected blocking registration to be released on close")
	}
	if d.pubsub.Total(conn.ID) != 0 {
		t.Fatal("expected subscriptions to be released on close")
	}
}

func TestReplicationNotEnabledDegradesCleanly(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)

	if result := d.Dispatch(conn, [][]byte{[]byte("WAIT"), []byte("1"), []byte("0")}); result.Kind != ResultSuccess || string(result.Bytes) != ":0\r\n" {
		t.Fatalf("WAIT with no replication = %+v, want success :0", result)
	}
	if result := d.Dispatch(conn, [][]byte{[]byte("PSYNC"), []byte("?"), []byte("-1")}); result.Kind != ResultError {
		t.Fatalf("PSYNC with no replication kind = %v, want ResultError", result.Kind)
	}
}

func TestXReadBlockWakesOnXAdd(t *testing.T) {
	d := newTestDispatcher()
	reader := NewConn(1)
	writer := NewConn(2)

	result := d.Dispatch(reader, [][]byte{[]byte("XREAD"), []byte("BLOCK"), []byte("0"), []byte("STREAMS"), []byte("s"), []byte("$")})
	if result.Kind != ResultAsync {
		t.Fatalf("XREAD BLOCK kind = %v, want ResultAsync", result.Kind)
	}

	addResult := d.Dispatch(writer, [][]byte{[]byte("XADD"), []byte("s"), []byte("*"), []byte("field"), []byte("value")})
	if addResult.Kind != ResultSuccess {
		t.Fatalf("XADD kind = %v, want success", addResult.Kind)
	}
	if len(addResult.Wakes) != 1 || addResult.Wakes[0].ConnID != reader.ID {
		t.Fatalf("wakes = %+v, want one wake for conn %d", addResult.Wakes, reader.ID)
	}
}

func TestSweepExpiredWakesTimedOutBlpop(t *testing.T) {
	now := time.Now()
	d := newTestDispatcherWithClock(&now)
	conn := NewConn(1)

	result := d.Dispatch(conn, [][]byte{[]byte("BLPOP"), []byte("q"), []byte("0.01")})
	if result.Kind != ResultAsync {
		t.Fatalf("BLPOP kind = %v, want ResultAsync", result.Kind)
	}

	now = now.Add(50 * time.Millisecond)
	wakes := d.SweepExpired(now)
	if len(wakes) != 1 || wakes[0].ConnID != conn.ID {
		t.Fatalf("wakes = %+v, want one wake for conn %d", wakes, conn.ID)
	}
	if string(wakes[0].Reply) != "*-1\r\n" {
		t.Fatalf("reply = %q, want null array", wakes[0].Reply)
	}
	if d.blocking.IsBlocked(conn.ID) {
		t.Fatal("connection should no longer be blocked after sweep")
	}
}

func TestSweepExpiredWakesTimedOutXReadBlock(t *testing.T) {
	now := time.Now()
	d := newTestDispatcherWithClock(&now)
	conn := NewConn(1)

	result := d.Dispatch(conn, [][]byte{[]byte("XREAD"), []byte("BLOCK"), []byte("10"), []byte("STREAMS"), []byte("s"), []byte("$")})
	if result.Kind != ResultAsync {
		t.Fatalf("XREAD BLOCK kind = %v, want ResultAsync", result.Kind)
	}

	now = now.Add(50 * time.Millisecond)
	wakes := d.SweepExpired(now)
	if len(wakes) != 1 || wakes[0].ConnID != conn.ID {
		t.Fatalf("wakes = %+v, want one wake for conn %d", wakes, conn.ID)
	}
	if _, stillWaiting := d.streamWaits[conn.ID]; stillWaiting {
		t.Fatal("streamWaits entry should be cleared on sweep")
	}
}

func TestWaitImmediateTimeoutZero(t *testing.T) {
	d := newTestDispatcher()
	conn := NewConn(1)
	start := time.Now()
	result := d.Dispatch(conn, [][]byte{[]byte("WAIT"), []byte("0"), []byte("0")})
	if result.Kind != ResultSuccess {
		t.Fatalf("kind = %v, want success", result.Kind)
	}
	if time.Since(start) > time.Second {
		t.Fatal("WAIT with timeout 0 must not block")
	}
}
