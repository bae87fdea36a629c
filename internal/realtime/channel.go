package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/retry"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	joinTimeout  = 5 * time.Second
	leaveTimeout = 2 * time.Second
)

type ChannelOptions struct {
	// Dial returns a fresh, unconnected transport for each binding.
	Dial Dialer
	// OnCells receives cell updates for the bound table only.
	OnCells func(cells []api.Cell)
	// OnStatus observes every state transition.
	OnStatus func(state State, err error)
	// Reconnect is handed to the transport, which owns reconnection.
	Reconnect retry.Config
}

// Channel keeps a realtime subscription to one table, re-joining the table's
// room every time the transport (re)connects. It is bound to at most one
// table at a time.
type Channel struct {
	opts ChannelOptions

	mu      sync.Mutex
	state   State
	err     error
	tableID string
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewChannel(opts ChannelOptions) *Channel {
	return &Channel{opts: opts}
}

// Start binds the channel to tableID and begins connecting. An existing
// binding is torn down first.
func (c *Channel) Start(tableID string) {
	c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.tableID = tableID
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx, tableID)
	}()
}

// SwitchTable leaves the current table, tears the connection down and
// re-establishes it bound to tableID.
func (c *Channel) SwitchTable(tableID string) {
	log.Debug().Str("from", c.TableID()).Str("to", tableID).Msg("Switching realtime table")
	c.Start(tableID)
}

// Stop leaves the bound table and closes the connection. It blocks until the
// connection goroutine has exited.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the most recent connection error, cleared on reconnect.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) TableID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID
}

// run drives one transport until ctx is cancelled or the transport stops
// reconnecting.
func (c *Channel) run(ctx context.Context, tableID string) {
	c.setState(Connecting, nil)
	t, err := c.opts.Dial(c.opts.Reconnect)
	if err != nil {
		c.fail(tableID, err)
		return
	}
	if err := t.Connect(ctx); err != nil {
		t.Close()
		if ctx.Err() != nil {
			c.setState(Disconnected, nil)
			return
		}
		c.fail(tableID, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			ev, err := t.Next(gctx)
			if err != nil {
				return err
			}
			c.handle(gctx, t, tableID, ev)
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil && c.State() == Connected {
			leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			if err := t.Unsubscribe(leaveCtx, tableID); err != nil {
				log.Debug().Err(err).Str("table_id", tableID).Msg("Leave table failed")
			}
			cancel()
		}
		return t.Close()
	})

	err = g.Wait()
	if ctx.Err() != nil || errors.Is(err, ErrClosed) {
		c.setState(Disconnected, nil)
		return
	}
	c.fail(tableID, err)
}

func (c *Channel) fail(tableID string, err error) {
	log.Error().Err(err).Str("table_id", tableID).Msg("Giving up on realtime connection")
	c.setState(Disconnected, err)
}

func (c *Channel) handle(ctx context.Context, t Transport, tableID string, ev Event) {
	switch ev.Name {
	case EventConnect:
		joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
		err := t.Subscribe(joinCtx, tableID)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("table_id", tableID).Msg("Join table failed")
			c.setState(Disconnected, err)
			return
		}
		c.setState(Connected, nil)
		log.Info().Str("table_id", tableID).Msg("Joined realtime table")
	case EventConnectError:
		log.Warn().Err(ev.Err).Str("table_id", tableID).Msg("Realtime connect failed")
		c.setState(Disconnected, ev.Err)
	case EventDisconnect:
		log.Warn().Err(ev.Err).Str("table_id", tableID).Msg("Realtime connection lost")
		c.setState(Disconnected, ev.Err)
	case EventReconnecting:
		c.setState(Connecting, nil)
	case EventCellUpdate:
		c.dispatch(tableID, ev)
	case EventRoomJoined:
		log.Debug().Str("table_id", tableID).Msg("Room joined")
	}
}

func (c *Channel) dispatch(tableID string, ev Event) {
	var update CellUpdate
	if err := json.Unmarshal(ev.Data, &update); err != nil {
		log.Debug().Err(err).Msg("Skipping malformed cell_update")
		return
	}
	if update.TableID != tableID {
		return
	}
	log.Debug().Str("table_id", tableID).Int("cells", len(update.Cells)).Msg("Remote cell update")
	if c.opts.OnCells != nil {
		c.opts.OnCells(update.Cells)
	}
}

func (c *Channel) setState(state State, err error) {
	c.mu.Lock()
	c.state = state
	if state == Connected {
		c.err = nil
	} else if err != nil {
		c.err = err
	}
	c.mu.Unlock()

	if c.opts.OnStatus != nil {
		c.opts.OnStatus(state, err)
	}
}
