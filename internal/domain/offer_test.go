package domain

import (
	"testing"
)

func TestLadder_UpsertKeepsOrdering(t *testing.T) {
	asks := NewLadder(SideAsk)
	asks.Upsert(dec("102"), dec("1"))
	asks.Upsert(dec("100"), dec("2"))
	asks.Upsert(dec("101"), dec("3"))

	if asks.Len() != 3 {
		t.Fatalf("expected 3 levels, got %d", asks.Len())
	}
	want := []string{"100", "101", "102"}
	for i, w := range want {
		if !asks.At(i).Price.Equal(dec(w)) {
			t.Errorf("level %d: expected price %s, got %v", i, w, asks.At(i).Price)
		}
	}
	if err := asks.assertInvariants(); err != nil {
		t.Errorf("invariants violated: %v", err)
	}

	bids := NewLadder(SideBid)
	bids.Upsert(dec("98"), dec("1"))
	bids.Upsert(dec("99"), dec("2"))
	bids.Upsert(dec("97"), dec("3"))

	want = []string{"99", "98", "97"}
	for i, w := range want {
		if !bids.At(i).Price.Equal(dec(w)) {
			t.Errorf("bid level %d: expected price %s, got %v", i, w, bids.At(i).Price)
		}
	}
	if err := bids.assertInvariants(); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestLadder_UpsertUpdatesInPlace(t *testing.T) {
	l := NewLadder(SideAsk)
	l.Upsert(dec("100"), dec("1"))
	l.Upsert(dec("100"), dec("5"))

	if l.Len() != 1 {
		t.Fatalf("expected 1 level, got %d", l.Len())
	}
	if !l.At(0).AmountBase.Equal(dec("5")) {
		t.Errorf("expected amount 5, got %v", l.At(0).AmountBase)
	}
}

func TestLadder_ZeroQtyRemoves(t *testing.T) {
	l := NewLadder(SideAsk)
	l.Upsert(dec("100"), dec("1"))
	l.Upsert(dec("101"), dec("2"))

	l.Upsert(dec("100"), dec("0"))
	if l.Len() != 1 {
		t.Fatalf("expected 1 level after removal, got %d", l.Len())
	}
	if !l.At(0).Price.Equal(dec("101")) {
		t.Errorf("wrong level survived: %v", l.At(0).Price)
	}

	// removing an absent level is a no-op
	l.Upsert(dec("50"), dec("0"))
	if l.Len() != 1 {
		t.Errorf("expected removal of absent level to be a no-op, got %d levels", l.Len())
	}
}

func TestLadder_Best(t *testing.T) {
	l := NewLadder(SideBid)
	if _, ok := l.Best(); ok {
		t.Fatal("empty ladder should have no best")
	}
	l.Upsert(dec("98"), dec("1"))
	l.Upsert(dec("99"), dec("2"))
	best, ok := l.Best()
	if !ok || !best.Price.Equal(dec("99")) {
		t.Errorf("expected best bid 99, got %v (ok=%v)", best.Price, ok)
	}
}

func TestLadder_DepthTo(t *testing.T) {
	l := NewLadder(SideAsk)
	l.Upsert(dec("100"), dec("1"))
	l.Upsert(dec("101"), dec("2"))
	l.Upsert(dec("105"), dec("4"))

	if got := l.DepthTo(dec("101")); !got.Equal(dec("3")) {
		t.Errorf("expected depth 3 up to 101, got %v", got)
	}
	if got := l.DepthTo(dec("99")); !got.IsZero() {
		t.Errorf("expected zero depth below best ask, got %v", got)
	}
	if got := l.TotalBase(); !got.Equal(dec("7")) {
		t.Errorf("expected total 7, got %v", got)
	}
}

func TestLadder_InsertionIndex(t *testing.T) {
	l := NewLadder(SideAsk)
	l.Upsert(dec("100"), dec("1"))
	l.Upsert(dec("102"), dec("1"))

	if idx := l.InsertionIndex(dec("101")); idx != 1 {
		t.Errorf("expected insertion index 1, got %d", idx)
	}
	if idx, found := l.Index(dec("102")); !found || idx != 1 {
		t.Errorf("expected to find 102 at 1, got %d (found=%v)", idx, found)
	}
	if _, found := l.Index(dec("103")); found {
		t.Error("should not find absent price")
	}
}

func TestLadder_CloneIsIndependent(t *testing.T) {
	l := NewLadder(SideAsk)
	l.Upsert(dec("100"), dec("1"))

	c := l.Clone()
	c.Upsert(dec("100"), dec("9"))

	if !l.At(0).AmountBase.Equal(dec("1")) {
		t.Errorf("clone mutation leaked into original: %v", l.At(0).AmountBase)
	}
}
