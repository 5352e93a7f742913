package kucoin

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
)

// wsFeed adapts one websocket topic into a typed domain.Feed. A single
// wire message may carry several domain messages (a depth update batches
// price levels), so parsed items queue up and Read drains them one at a
// time.
//
// A dead socket is not redialed here: the feed reports the error and the
// owning stream cache builds a replacement on the next access.
type wsFeed[T any] struct {
	name  string
	topic string
	conn  *websocket.Conn
	parse func([]byte) ([]T, error)

	pingInterval time.Duration
	readTimeout  time.Duration

	writeMu sync.Mutex
	queue   []T
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// dialFeed connects to endpoint, subscribes to topic and starts the ping
// loop. The dial is retried a few times with the shared backoff helper.
func dialFeed[T any](ctx context.Context, name, endpoint, topic string, ping, read time.Duration, parse func([]byte) ([]T, error)) (*wsFeed[T], error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	var conn *websocket.Conn
	var err error
	for retry := 0; ; retry++ {
		conn, _, err = dialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			break
		}
		if retry >= maxDialRetries {
			return nil, domain.NewNetworkError("dial "+name, err)
		}
		slog.Warn("websocket dial failed", slog.String("feed", name), slog.Int("retry", retry), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(infra.CalculateBackoff(retry)):
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &wsFeed[T]{
		name:         name,
		topic:        topic,
		conn:         conn,
		parse:        parse,
		pingInterval: ping,
		readTimeout:  read,
		cancel:       cancel,
	}

	if err := f.subscribe(); err != nil {
		f.Close()
		return nil, domain.NewNetworkError("subscribe "+name, err)
	}

	f.wg.Add(1)
	go f.pingLoop(ctx)

	// close the socket when the owner's context dies so a blocked read
	// unblocks during shutdown
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		<-ctx.Done()
		f.conn.Close()
	}()

	return f, nil
}

func (f *wsFeed[T]) subscribe() error {
	msg := subscribeMessage{
		ID:       uuid.NewString(),
		Type:     "subscribe",
		Topic:    f.topic,
		Response: true,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return f.threadSafeWrite(b)
}

func (f *wsFeed[T]) pingLoop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := json.Marshal(pingMessage{ID: uuid.NewString(), Type: "ping"})
			if err != nil {
				continue
			}
			f.threadSafeWrite(b)
		}
	}
}

func (f *wsFeed[T]) threadSafeWrite(data []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

// Read returns the next domain message, blocking on the socket when the
// queue is empty. Unrecognized messages are logged and dropped; the feed
// continues.
func (f *wsFeed[T]) Read() (T, error) {
	var zero T
	for {
		if len(f.queue) > 0 {
			item := f.queue[0]
			f.queue = f.queue[1:]
			return item, nil
		}

		f.conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			return zero, domain.NewNetworkError("read "+f.name, err)
		}

		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			slog.Warn("dropping malformed message", slog.String("feed", f.name), slog.Any("error", domain.ErrProtocol))
			continue
		}
		switch env.Type {
		case "welcome", "ack", "pong":
			continue
		case "message":
		default:
			slog.Warn("dropping message of unknown type", slog.String("feed", f.name), slog.String("type", env.Type))
			continue
		}

		items, err := f.parse(env.Data)
		if err != nil {
			slog.Warn("dropping unparseable payload", slog.String("feed", f.name), slog.Any("error", err))
			continue
		}
		f.queue = append(f.queue, items...)
	}
}

func (f *wsFeed[T]) Close() error {
	f.cancel()
	err := f.conn.Close()
	f.wg.Wait()
	return err
}
