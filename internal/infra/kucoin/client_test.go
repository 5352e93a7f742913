package kucoin

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
)

func TestParseDeltas(t *testing.T) {
	payload := []byte(`{
		"sequenceStart": 101,
		"sequenceEnd": 103,
		"symbol": "BTC-USDT",
		"changes": {
			"asks": [["100.5", "2", "101"], ["101", "0", "103"]],
			"bids": [["99.5", "1.25", "102"]]
		}
	}`)

	deltas, err := parseDeltas(payload)
	require.NoError(t, err)
	require.Len(t, deltas, 3)

	ask := deltas[0]
	assert.Equal(t, domain.SideAsk, ask.Side)
	assert.Equal(t, uint64(101), ask.SeqBegin)
	assert.Equal(t, uint64(101), ask.SeqEnd, "each change row carries its own sequence")
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, ask.Qty.Equal(decimal.RequireFromString("2")))

	removal := deltas[1]
	assert.True(t, removal.Qty.IsZero(), "zero size marks a level removal")
	assert.Equal(t, uint64(103), removal.SeqEnd)

	bid := deltas[2]
	assert.Equal(t, domain.SideBid, bid.Side)
	assert.Equal(t, uint64(102), bid.SeqEnd)
}

func TestParseDeltas_MalformedRow(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"short row", `{"changes":{"asks":[["100.5","2"]]}}`},
		{"bad price", `{"changes":{"asks":[["abc","2","101"]]}}`},
		{"bad sequence", `{"changes":{"bids":[["100","2","xyz"]]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseDeltas([]byte(tc.payload))
			assert.ErrorIs(t, err, domain.ErrProtocol)
		})
	}
}

func TestParseSnapshot(t *testing.T) {
	snap := &level2Snapshot{
		Sequence: "3262786978",
		Asks:     [][]string{{"100.5", "2"}, {"101", "1"}},
		Bids:     [][]string{{"99.5", "3"}},
	}

	parsed, err := parseSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, uint64(3262786978), parsed.SequenceNo)
	require.Len(t, parsed.Asks, 2)
	require.Len(t, parsed.Bids, 1)
	assert.True(t, parsed.Bids[0].Qty.Equal(decimal.RequireFromString("3")))

	snap.Sequence = "not-a-number"
	_, err = parseSnapshot(snap)
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestParseCandles(t *testing.T) {
	payload := []byte(`{
		"symbol": "BTC-USDT",
		"candles": ["1700000000", "100", "105", "110", "95", "12.5", "1300"],
		"time": 1700000060000
	}`)

	candles, err := parseCandles(payload)
	require.NoError(t, err)
	require.Len(t, candles, 1)

	c := candles[0]
	assert.Equal(t, int64(1700000000), c.OpenTime.Unix())
	assert.True(t, c.Open.Equal(decimal.RequireFromString("100")))
	assert.True(t, c.Close.Equal(decimal.RequireFromString("105")))
	assert.True(t, c.High.Equal(decimal.RequireFromString("110")))
	assert.True(t, c.Low.Equal(decimal.RequireFromString("95")))
	assert.True(t, c.VolumeBase.Equal(decimal.RequireFromString("12.5")))
}

func TestParseTicker(t *testing.T) {
	payload := []byte(`{
		"sequence": "1545896668986",
		"price": "100.1",
		"bestBid": "100",
		"bestAsk": "100.2",
		"time": 1700000000000
	}`)

	quotes, err := parseTicker(payload)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Bid.Equal(decimal.RequireFromString("100")))
	assert.True(t, quotes[0].Ask.Equal(decimal.RequireFromString("100.2")))
	assert.Equal(t, int64(1700000000), quotes[0].Time.Unix())
}

func TestClient_ParseBalancesUpdatesBook(t *testing.T) {
	c := &Client{balances: domain.NewBalanceBook()}

	payload := []byte(`{
		"currency": "USDT",
		"total": "150",
		"available": "100",
		"hold": "50",
		"time": "1700000000000"
	}`)

	updates, err := c.parseBalances(payload)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "USDT", updates[0].Symbol)
	assert.True(t, updates[0].Free.Equal(decimal.RequireFromString("100")))

	b := c.balances.Get("USDT")
	assert.True(t, b.Amount().Equal(decimal.RequireFromString("150")))
	assert.True(t, b.Available().Equal(decimal.RequireFromString("100")))
}

func TestClient_Sign(t *testing.T) {
	c := &Client{
		accessKey:  "key",
		secretKey:  "secret",
		passphrase: "phrase",
	}

	req, err := http.NewRequest(http.MethodPost, "https://example.com/api/v1/orders", nil)
	require.NoError(t, err)
	c.sign(req, http.MethodPost, "/api/v1/orders", []byte(`{"side":"buy"}`))

	assert.Equal(t, "key", req.Header.Get("KC-API-KEY"))
	assert.Equal(t, "phrase", req.Header.Get("KC-API-PASSPHRASE"))
	assert.NotEmpty(t, req.Header.Get("KC-API-SIGN"))
	assert.NotEmpty(t, req.Header.Get("KC-API-TIMESTAMP"))
}

func TestClient_RecordTradeHistory(t *testing.T) {
	c := &Client{balances: domain.NewBalanceBook()}

	fill := &domain.TradeCompleted{TradeID: "t1"}
	c.RecordTrade(fill)
	c.RecordTrade(&domain.TradeCompleted{TradeID: "t2"})

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, "t1", history[0].TradeID)

	// the returned slice is a copy
	history[0] = nil
	assert.Equal(t, "t1", c.History()[0].TradeID)
}

func TestNewClient_StreamTuning(t *testing.T) {
	var cfg infra.Config
	cfg.Exchange.Name = "kucoin"
	cfg.Stream.PingIntervalSec = 5
	cfg.Stream.ReadTimeoutSec = 20

	c := NewClient(&cfg, nil)
	assert.Equal(t, 5*time.Second, c.pingInterval)
	assert.Equal(t, 20*time.Second, c.readTimeout)

	// absent keys fall back to the defaults
	cfg.Stream.PingIntervalSec = 0
	cfg.Stream.ReadTimeoutSec = 0
	c = NewClient(&cfg, nil)
	assert.Equal(t, defaultPingInterval, c.pingInterval)
	assert.Equal(t, defaultReadTimeout, c.readTimeout)
}
