package kucoin

import (
	"encoding/json"
	"time"
)

const (
	maxDialRetries   = 3
	handshakeTimeout = 10 * time.Second

	// used when the stream tuning keys are absent from configuration
	defaultPingInterval = 30 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

// bulletResponse answers the websocket token request.
type bulletResponse struct {
	Code string `json:"code"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint     string `json:"endpoint"`
			Protocol     string `json:"protocol"`
			PingInterval int    `json:"pingInterval"`
		} `json:"instanceServers"`
	} `json:"data"`
}

// wsEnvelope is the outer shape of every websocket message.
type wsEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"` // welcome, ack, pong, message, error
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

type subscribeMessage struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

type pingMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// level2Data is one depth update. Change rows are
// [price, size, sequence]; a zero size removes the level.
type level2Data struct {
	SequenceStart uint64 `json:"sequenceStart"`
	SequenceEnd   uint64 `json:"sequenceEnd"`
	Symbol        string `json:"symbol"`
	Changes       struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	} `json:"changes"`
}

// level2Snapshot is the REST full-depth response payload.
type level2Snapshot struct {
	Sequence string     `json:"sequence"`
	Time     int64      `json:"time"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

type restEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// candleData rows are [time, open, close, high, low, volume, turnover].
type candleData struct {
	Symbol  string   `json:"symbol"`
	Candles []string `json:"candles"`
	Time    int64    `json:"time"`
}

type tickerData struct {
	Sequence string `json:"sequence"`
	Price    string `json:"price"`
	BestBid  string `json:"bestBid"`
	BestAsk  string `json:"bestAsk"`
	Time     int64  `json:"time"`
}

type balanceData struct {
	Currency  string `json:"currency"`
	Total     string `json:"total"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
	Time      string `json:"time"`
}

type createOrderRequest struct {
	ClientOid string `json:"clientOid"`
	Side      string `json:"side"`
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Price     string `json:"price"`
	Size      string `json:"size"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}
