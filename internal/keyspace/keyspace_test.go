package keyspace

import (
	"testing"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/container/quicklist"
)

func TestTypeNoneForAbsentKey(t *testing.T) {
	ks := New(nil)
	if kind := ks.Type("missing"); kind != KindNone {
		t.Fatalf("Type = %v, want none", kind)
	}
}

func TestSetStringThenExpire(t *testing.T) {
	ks := New(nil)
	frozen := time.Unix(0, 0)
	ks.now = func() time.Time { return frozen }

	ks.SetString("foo", []byte("bar"), ExpireAfter(frozen, 100*time.Millisecond))
	val, ok, err := ks.GetString("foo")
	if err != nil || !ok || string(val) != "bar" {
		t.Fatalf("GetString = %q,%v,%v", val, ok, err)
	}

	frozen = frozen.Add(200 * time.Millisecond)
	ks.now = func() time.Time { return frozen }
	_, ok, _ = ks.GetString("foo")
	if ok {
		t.Fatal("expected key to be expired")
	}
	if kind := ks.Type("foo"); kind != KindNone {
		t.Fatalf("Type after expiry = %v, want none", kind)
	}
}

func TestWrongType(t *testing.T) {
	ks := New(nil)
	ks.SetString("k", []byte("v"), NeverExpire())
	if err := ks.MutateList("k", func(l *quicklist.QuickList) { l.PushRight([]byte("x")) }); err != ErrWrongType {
		t.Fatalf("err = %v, want ErrWrongType", err)
	}
}

func TestEmptyingListRemovesKey(t *testing.T) {
	ks := New(nil)
	ks.MutateList("L", func(l *quicklist.QuickList) { l.PushRight([]byte("a")) })
	if ks.Type("L") != KindList {
		t.Fatal("expected list to exist")
	}
	ks.MutateList("L", func(l *quicklist.QuickList) { l.PopRight() })
	if ks.Type("L") != KindNone {
		t.Fatal("expected emptied list to remove the key")
	}
}

func TestVersionBumpsOnMutation(t *testing.T) {
	ks := New(nil)
	v0 := ks.Version("x")
	ks.SetString("x", []byte("1"), NeverExpire())
	v1 := ks.Version("x")
	if v1 <= v0 {
		t.Fatalf("version did not advance: %d -> %d", v0, v1)
	}
	ks.SetString("x", []byte("2"), NeverExpire())
	v2 := ks.Version("x")
	if v2 <= v1 {
		t.Fatalf("version did not advance on second write: %d -> %d", v1, v2)
	}
}

func TestKeysGlob(t *testing.T) {
	ks := New(nil)
	ks.SetString("foo1", []byte("x"), NeverExpire())
	ks.SetString("foo2", []byte("x"), NeverExpire())
	ks.SetString("bar", []byte("x"), NeverExpire())
	got := ks.Keys("foo*")
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestIncr(t *testing.T) {
	ks := New(nil)
	n, err := ks.Incr("counter")
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v, want 1,nil", n, err)
	}
	n, err = ks.Incr("counter")
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v, want 2,nil", n, err)
	}
}

func TestDelReturnsActualCount(t *testing.T) {
	ks := New(nil)
	ks.SetString("a", []byte("1"), NeverExpire())
	ks.SetString("b", []byte("1"), NeverExpire())
	n := ks.Del("a", "b", "missing")
	if n != 2 {
		t.Fatalf("Del count = %d, want 2", n)
	}
}

func TestSweepExpiredEvictsOnlyExpiredKeys(t *testing.T) {
	ks := New(nil)
	frozen := time.Unix(0, 0)
	ks.now = func() time.Time { return frozen }

	ks.SetString("short", []byte("1"), ExpireAfter(frozen, 50*time.Millisecond))
	ks.SetString("long", []byte("1"), NeverExpire())

	evicted := ks.SweepExpired(frozen.Add(100 * time.Millisecond))
	if len(evicted) != 1 || evicted[0] != "short" {
		t.Fatalf("evicted = %v, want [short]", evicted)
	}
	if ks.DBSize() != 1 {
		t.Fatalf("DBSize = %d, want 1", ks.DBSize())
	}
}
