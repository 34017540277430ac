package zset

import "testing"

func TestAddReturnsOnlyNewlyAdded(t *testing.T) {
	z := New()
	if added := z.Add("a", 1); !added {
		t.Fatal("expected first add to report newly added")
	}
	if added := z.Add("a", 2); added {
		t.Fatal("expected update to report not newly added")
	}
	if score, _ := z.Score("a"); score != 2 {
		t.Fatalf("score = %v, want 2", score)
	}
}

func TestOrderingByScoreThenMember(t *testing.T) {
	z := New()
	z.Add("b", 1)
	z.Add("a", 1)
	z.Add("c", 0)
	got := z.ToSlice()
	want := []string{"c", "a", "b"}
	for i, m := range got {
		if m.Name != want[i] {
			t.Fatalf("index %d = %s, want %s", i, m.Name, want[i])
		}
	}
}

func TestRankMatchesAscendingIndex(t *testing.T) {
	z := New()
	for i, m := range []string{"x", "y", "z"} {
		z.Add(m, float64(i))
	}
	for i, m := range []string{"x", "y", "z"} {
		rank, ok := z.Rank(m)
		if !ok || rank != i {
			t.Fatalf("rank(%s) = %d,%v want %d,true", m, rank, ok, i)
		}
	}
	if _, ok := z.Rank("missing"); ok {
		t.Fatal("expected Rank to report absent for unknown member")
	}
}

func TestRem(t *testing.T) {
	z := New()
	z.Add("a", 1)
	if !z.Rem("a") {
		t.Fatal("expected removal to succeed")
	}
	if z.Rem("a") {
		t.Fatal("expected second removal to report false")
	}
	if z.Len() != 0 {
		t.Fatalf("len = %d, want 0", z.Len())
	}
}

func TestRangeNegativeIndices(t *testing.T) {
	z := New()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Add(m, float64(i))
	}
	got := z.Range(-2, -1)
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "d" {
		t.Fatalf("got %v", got)
	}
}

func TestManyInsertsPreserveOrder(t *testing.T) {
	z := New()
	members := []string{"m9", "m1", "m5", "m3", "m7", "m2", "m8", "m4", "m6", "m0"}
	for _, m := range members {
		z.Add(m, float64(len(m)))
	}
	all := z.ToSlice()
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if cur.Score < prev.Score || (cur.Score == prev.Score && cur.Name < prev.Name) {
			t.Fatalf("order violated at %d: %+v after %+v", i, cur, prev)
		}
	}
}
