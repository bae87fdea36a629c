package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"

	"online_tables_lite/internal/retry"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Transport is one realtime connection. Once connected it keeps itself
// alive, reporting drops and reconnects through Next. A Transport is not
// reused after Close.
type Transport interface {
	// Connect starts connecting. The outcome arrives through Next as
	// EventConnect or EventConnectError.
	Connect(ctx context.Context) error
	// Subscribe joins the table's room.
	Subscribe(ctx context.Context, tableID string) error
	// Unsubscribe leaves the table's room.
	Unsubscribe(ctx context.Context, tableID string) error
	// Next blocks until the next server event or connection change. It
	// returns an error once the transport has stopped reconnecting or was
	// closed.
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Dialer builds a transport that reconnects according to policy.
type Dialer func(policy retry.Config) (Transport, error)

const (
	eventBuffer         = 64
	reasonClientClose   = "io client disconnect"
	reasonServerClose   = "io server disconnect"
	randomizationFactor = 0.5
)

// SocketIOTransport is a Socket.IO client on the default namespace.
type SocketIOTransport struct {
	origin string
	opts   *socket.Options

	events chan Event
	done   chan struct{}
	once   sync.Once
	err    error

	mu     sync.Mutex
	client *socket.Socket
}

// NewSocketIOTransport targets the Socket.IO endpoint served next to the REST
// API at baseURL.
func NewSocketIOTransport(baseURL string, policy retry.Config) (*SocketIOTransport, error) {
	origin, path, err := SocketEndpoint(baseURL)
	if err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAutoConnect(false)
	opts.SetReconnection(true)
	if policy.InfiniteRetry {
		opts.SetReconnectionAttempts(math.Inf(1))
	} else {
		opts.SetReconnectionAttempts(float64(policy.MaxRetries))
	}
	if policy.BaseDelay > 0 {
		opts.SetReconnectionDelay(float64(policy.BaseDelay.Milliseconds()))
	}
	if policy.MaxDelay > 0 {
		opts.SetReconnectionDelayMax(float64(policy.MaxDelay.Milliseconds()))
	}
	opts.SetRandomizationFactor(randomizationFactor)
	if policy.Timeout > 0 {
		opts.SetTimeout(policy.Timeout)
	}

	return &SocketIOTransport{
		origin: origin,
		opts:   opts,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}, nil
}

// SocketEndpoint splits an http(s) base URL into the origin the client dials
// and the Socket.IO path below it.
func SocketEndpoint(baseURL string) (origin, path string, err error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	path = strings.TrimSuffix(u.Path, "/") + "/socket.io"
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(), path, nil
}

func (t *SocketIOTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return fmt.Errorf("realtime transport already connected")
	}

	manager := socket.NewManager(t.origin, t.opts)
	client := manager.Socket("/", nil)

	client.On(EventConnect, func(...any) {
		log.Debug().Str("sid", client.Id()).Msg("Realtime connected")
		t.push(Event{Name: EventConnect})
	})
	client.On(EventConnectError, func(args ...any) {
		err := connectError(args)
		t.push(Event{Name: EventConnectError, Err: err})
		// a namespace rejection is final; transport errors are retried
		if !client.Active() {
			t.finish(err)
		}
	})
	client.On(EventDisconnect, func(args ...any) {
		reason, _ := firstArg[string](args)
		if reason == reasonClientClose {
			return
		}
		t.push(Event{Name: EventDisconnect, Err: fmt.Errorf("disconnected: %s", reason)})
		if reason == reasonServerClose {
			t.finish(ErrServerClosed)
		}
	})
	for _, name := range []string{EventRoomJoined, EventCellUpdate} {
		client.On(types.EventName(name), func(args ...any) {
			t.pushServerEvent(name, args)
		})
	}
	manager.On(EventReconnecting, func(...any) {
		t.push(Event{Name: EventReconnecting})
	})
	manager.On("reconnect_failed", func(...any) {
		t.finish(ErrReconnectFailed)
	})

	t.client = client
	client.Connect()
	return nil
}

func (t *SocketIOTransport) Subscribe(ctx context.Context, tableID string) error {
	return t.emit(ctx, EventJoinTable, TablePayload{TableID: tableID})
}

func (t *SocketIOTransport) Unsubscribe(ctx context.Context, tableID string) error {
	return t.emit(ctx, EventLeaveTable, TablePayload{TableID: tableID})
}

func (t *SocketIOTransport) emit(ctx context.Context, name string, payload TablePayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !client.Connected() {
		return fmt.Errorf("emit %s: not connected", name)
	}
	if err := client.Emit(name, payload); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

func (t *SocketIOTransport) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-t.done:
		select {
		case ev := <-t.events:
			return ev, nil
		default:
		}
		return Event{}, t.err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (t *SocketIOTransport) Close() error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client != nil {
		client.Disconnect()
	}
	t.finish(ErrClosed)
	return nil
}

func (t *SocketIOTransport) push(ev Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *SocketIOTransport) pushServerEvent(name string, args []any) {
	var data json.RawMessage
	if len(args) > 0 {
		raw, err := json.Marshal(args[0])
		if err != nil {
			log.Debug().Err(err).Str("event", name).Msg("Skipping undecodable realtime event")
			return
		}
		data = raw
	}
	t.push(Event{Name: name, Data: data})
}

// finish ends the event stream with err.
func (t *SocketIOTransport) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func firstArg[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}

func connectError(args []any) error {
	if err, ok := firstArg[error](args); ok && err != nil {
		return fmt.Errorf("connect refused: %w", err)
	}
	if len(args) > 0 {
		return fmt.Errorf("connect refused: %v", args[0])
	}
	return fmt.Errorf("connect refused")
}
