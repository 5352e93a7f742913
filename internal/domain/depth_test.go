package domain

import (
	"testing"
)

func TestMarketDepth_ApplySnapshot(t *testing.T) {
	d := NewMarketDepth()
	d.ApplySnapshot(&Snapshot{
		SequenceNo: 42,
		Asks: []PriceLevel{
			{Price: dec("101"), Qty: dec("1")},
			{Price: dec("100"), Qty: dec("2")},
			{Price: dec("103"), Qty: dec("0")}, // empty levels are dropped
		},
		Bids: []PriceLevel{
			{Price: dec("98"), Qty: dec("1")},
			{Price: dec("99"), Qty: dec("3")},
		},
	})

	if d.SequenceNo != 42 {
		t.Errorf("expected sequence 42, got %d", d.SequenceNo)
	}
	if d.Asks.Len() != 2 || d.Bids.Len() != 2 {
		t.Fatalf("expected 2 levels per side, got %d/%d", d.Asks.Len(), d.Bids.Len())
	}
	if best, _ := d.Asks.Best(); !best.Price.Equal(dec("100")) {
		t.Errorf("expected best ask 100, got %v", best.Price)
	}
	if best, _ := d.Bids.Best(); !best.Price.Equal(dec("99")) {
		t.Errorf("expected best bid 99, got %v", best.Price)
	}
	if err := d.AssertInvariants(); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestMarketDepth_ConsumedLadder(t *testing.T) {
	d := NewMarketDepth()
	d.UpsertOffer(SideAsk, dec("100"), dec("1"))
	d.UpsertOffer(SideBid, dec("99"), dec("1"))

	if got := d.ConsumedLadder(Q2B).Side(); got != SideAsk {
		t.Errorf("buying base should consume asks, got %v", got)
	}
	if got := d.ConsumedLadder(B2Q).Side(); got != SideBid {
		t.Errorf("selling base should consume bids, got %v", got)
	}
}

func TestMarketDepth_OrderBookQueries(t *testing.T) {
	d := NewMarketDepth()
	d.UpsertOffer(SideAsk, dec("100"), dec("1"))
	d.UpsertOffer(SideAsk, dec("101"), dec("2"))

	if idx := d.OrderBookIndex(Q2B, dec("101")); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	if idx := d.OrderBookIndex(Q2B, dec("100.5")); idx != 1 {
		t.Errorf("expected insertion index 1, got %d", idx)
	}
	// only levels strictly better than the price count
	if got := d.OrderBookDepth(Q2B, dec("101")); !got.Equal(dec("1")) {
		t.Errorf("expected depth 1 ahead of 101, got %v", got)
	}
	if got := d.OrderBookDepth(Q2B, dec("200")); !got.Equal(dec("3")) {
		t.Errorf("expected whole ladder ahead of 200, got %v", got)
	}
}

func TestMarketDepth_RemovalDeltaEmptiesSide(t *testing.T) {
	d := NewMarketDepth()
	d.ApplySnapshot(&Snapshot{
		SequenceNo: 10,
		Asks:       []PriceLevel{{Price: dec("100"), Qty: dec("5")}},
		Bids:       []PriceLevel{{Price: dec("99"), Qty: dec("5")}},
	})

	d.UpsertOffer(SideAsk, dec("100"), dec("0"))
	d.SequenceNo = 11

	if d.Asks.Len() != 0 {
		t.Errorf("expected empty ask ladder, got %d levels", d.Asks.Len())
	}
	if d.SequenceNo != 11 {
		t.Errorf("expected sequence 11, got %d", d.SequenceNo)
	}
}

func TestMarketDepth_UpsertIdempotent(t *testing.T) {
	d := NewMarketDepth()
	d.UpsertOffer(SideBid, dec("99"), dec("2"))
	d.UpsertOffer(SideBid, dec("99"), dec("2"))

	if d.Bids.Len() != 1 || !d.Bids.At(0).AmountBase.Equal(dec("2")) {
		t.Errorf("repeated upsert must be idempotent, got %d levels", d.Bids.Len())
	}
}

func TestMarketDepth_CloneIsIndependent(t *testing.T) {
	d := NewMarketDepth()
	d.UpsertOffer(SideAsk, dec("100"), dec("1"))
	d.SequenceNo = 7

	c := d.Clone()
	c.UpsertOffer(SideAsk, dec("100"), dec("0"))
	c.SequenceNo = 8

	if d.Asks.Len() != 1 || d.SequenceNo != 7 {
		t.Errorf("clone mutation leaked into original")
	}
}

func TestMarketDepth_CrossedBookDetected(t *testing.T) {
	d := NewMarketDepth()
	d.UpsertOffer(SideAsk, dec("99"), dec("1"))
	d.UpsertOffer(SideBid, dec("100"), dec("1"))

	if err := d.AssertInvariants(); err == nil {
		t.Error("expected crossed book to violate invariants")
	}
}
