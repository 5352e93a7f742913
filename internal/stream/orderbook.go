package stream

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gammazero/deque"

	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
)

// State of an order-book stream instance.
type State uint32

const (
	StateConnecting State = iota
	StateAwaitingSnapshot
	StateLive
	// StateClosed is terminal for an instance; the owning cache replaces
	// it with a fresh one on the next access.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingSnapshot:
		return "awaiting-snapshot"
	case StateLive:
		return "live"
	default:
		return "closed"
	}
}

// GapPolicy decides what happens when a delta's SeqBegin does not continue
// the book's sequence number.
type GapPolicy string

const (
	// GapPolicyLenient logs the gap but applies the delta anyway. This is
	// the default.
	GapPolicyLenient GapPolicy = "lenient"
	// GapPolicyStrict tears the stream down so the cache re-snapshots.
	GapPolicyStrict GapPolicy = "strict"
)

// DefaultPendingCap bounds the number of deltas buffered before the REST
// snapshot lands. Overflow is fatal for the instance: silently dropping
// would desynchronize the book without detection.
const DefaultPendingCap = 1024

// Options tunes an order-book stream.
type Options struct {
	PendingCap int
	GapPolicy  GapPolicy
}

func (o Options) withDefaults() Options {
	if o.PendingCap <= 0 {
		o.PendingCap = DefaultPendingCap
	}
	if o.GapPolicy == "" {
		o.GapPolicy = GapPolicyLenient
	}
	return o
}

// OrderBookStream owns one delta socket and the MarketDepth it feeds.
// Lifecycle: Connecting -> AwaitingSnapshot -> Live -> Closed. All book
// mutations happen under a single per-stream mutex; readers clone under
// that same mutex via Snapshot.
type OrderBookStream struct {
	key  domain.PairKey
	opts Options

	mu      sync.Mutex
	state   State
	counted bool // active-streams gauge incremented, decrement on close
	depth   *domain.MarketDepth
	pending deque.Deque[domain.Delta]

	feed   domain.Feed[domain.Delta]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OpenOrderBookStream dials the delta feed, then synchronously fetches the
// REST snapshot while the read loop buffers whatever the socket delivers
// in the meantime. It returns once the book is live.
func OpenOrderBookStream(ctx context.Context, ex domain.Exchange, key domain.PairKey, opts Options) (*OrderBookStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &OrderBookStream{
		key:    key,
		opts:   opts.withDefaults(),
		state:  StateConnecting,
		depth:  domain.NewMarketDepth(),
		cancel: cancel,
	}

	feed, err := ex.DepthFeed(ctx, key)
	if err != nil {
		cancel()
		return nil, domain.NewNetworkError("depth feed "+key.String(), err)
	}
	s.feed = feed

	s.mu.Lock()
	s.state = StateAwaitingSnapshot
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(ctx)

	snap, err := ex.OrderBookSnapshot(ctx, key)
	if err != nil {
		s.Close()
		return nil, domain.NewNetworkError("snapshot "+key.String(), err)
	}
	infra.GlobalMetrics.RecordSnapshotFetch()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, domain.ErrStreamClosed
	}
	s.depth.ApplySnapshot(snap)
	s.state = StateLive
	s.counted = true
	infra.GlobalMetrics.IncrementStreams()
	s.applyPendingLocked()
	live := s.state == StateLive
	s.mu.Unlock()

	// a strict gap or buffer overflow in the pending drain closes the
	// stream before it ever went public
	if !live {
		s.wg.Wait()
		return nil, domain.ErrStreamClosed
	}

	slog.Info("order book live",
		slog.String("pair", key.String()),
		slog.Uint64("seq", snap.SequenceNo))
	return s, nil
}

func (s *OrderBookStream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		d, err := s.feed.Read()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("depth feed closed",
					slog.String("pair", s.key.String()), slog.Any("error", err))
			}
			s.teardown()
			return
		}
		s.ingest(d)
	}
}

func (s *OrderBookStream) ingest(d domain.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateConnecting, StateAwaitingSnapshot:
		s.pending.PushBack(d)
		if s.pending.Len() > s.opts.PendingCap {
			slog.Error("pending delta buffer overflowed before snapshot",
				slog.String("pair", s.key.String()),
				slog.Int("cap", s.opts.PendingCap),
				slog.Any("error", domain.ErrSnapshotTimeout))
			s.closeLocked()
		}
	case StateLive:
		s.pending.PushBack(d)
		s.applyPendingLocked()
	case StateClosed:
		// late delivery after teardown, drop
	}
}

// applyPendingLocked drains the buffer in SeqEnd order, applying every
// delta newer than the book. Caller holds mu.
func (s *OrderBookStream) applyPendingLocked() {
	if s.pending.Len() == 0 {
		return
	}
	batch := make([]domain.Delta, 0, s.pending.Len())
	for s.pending.Len() > 0 {
		batch = append(batch, s.pending.PopFront())
	}
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].SeqEnd < batch[j].SeqEnd
	})

	for _, d := range batch {
		if d.SeqEnd <= s.depth.SequenceNo {
			continue
		}
		if d.SeqBegin != s.depth.SequenceNo+1 {
			infra.GlobalMetrics.RecordSequenceGap()
			slog.Warn("sequence gap",
				slog.String("pair", s.key.String()),
				slog.Uint64("have", s.depth.SequenceNo),
				slog.Uint64("begin", d.SeqBegin),
				slog.String("policy", string(s.opts.GapPolicy)))
			if s.opts.GapPolicy == GapPolicyStrict {
				s.closeLocked()
				return
			}
		}
		s.depth.UpsertOffer(d.Side, d.Price, d.Qty)
		s.depth.SequenceNo = d.SeqEnd
		infra.GlobalMetrics.RecordDeltaApplied()
	}
}

// Snapshot returns a deep copy of the book, holding the stream lock only
// for the duration of the clone.
func (s *OrderBookStream) Snapshot() (*domain.MarketDepth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, domain.ErrStreamClosed
	}
	return s.depth.Clone(), nil
}

// Alive reports whether the instance can still serve snapshots.
func (s *OrderBookStream) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateClosed
}

// State returns the current lifecycle state.
func (s *OrderBookStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the socket and marks the instance closed. Idempotent.
func (s *OrderBookStream) Close() {
	s.teardown()
	s.wg.Wait()
}

// teardown is Close without waiting for the read loop, so the read loop
// itself may call it.
func (s *OrderBookStream) teardown() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *OrderBookStream) closeLocked() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.cancel()
	if s.feed != nil {
		s.feed.Close()
	}
	if s.counted {
		s.counted = false
		infra.GlobalMetrics.DecrementStreams()
	}
	infra.GlobalMetrics.RecordStreamClosed()
}

// NewOrderBookCache wires the order-book stream into the generic cache.
// Failed or dead streams yield an empty book and are rebuilt on the next
// access.
func NewOrderBookCache(ctx context.Context, ex domain.Exchange, opts Options) *Cache[domain.PairKey, *domain.MarketDepth] {
	build := func(ctx context.Context, key domain.PairKey) (Subscription[*domain.MarketDepth], error) {
		return OpenOrderBookStream(ctx, ex, key, opts)
	}
	return NewCache(ctx, build, func() *domain.MarketDepth { return domain.NewMarketDepth() })
}
