// Package session ties one open table together: the API client that loads
// and saves it, the editor that holds local state and the realtime channel
// that feeds in other collaborators' changes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/editor"
	"online_tables_lite/internal/realtime"
	"online_tables_lite/internal/retry"

	"github.com/rs/zerolog/log"
)

// API is the part of *api.Client a session needs.
type API interface {
	editor.Writer
	GetTable(ctx context.Context, slug, token string) (*api.Table, error)
}

type Options struct {
	Debounce   time.Duration
	Resilience config.ResilienceConfig
	// Dial opens realtime transports. Nil leaves the session without live
	// updates.
	Dial realtime.Dialer

	OnChange     func()
	OnRemote     func(cells []api.Cell)
	OnFlushError func(err error, cells []api.Cell)
}

type Session struct {
	client API
	slug   string
	token  string
	opts   Options

	mu    sync.RWMutex
	table *api.Table

	editor  *editor.Editor
	channel *realtime.Channel
}

// Open loads the table, seeds an editor with its cells and subscribes to
// live updates for it.
func Open(ctx context.Context, client API, slug, token string, opts Options) (*Session, error) {
	table, err := fetch(ctx, client, slug, token, opts.Resilience.TableLoad)
	if err != nil {
		return nil, err
	}

	s := &Session{client: client, slug: slug, token: token, opts: opts, table: table}
	s.editor = editor.New(client, slug, token, table.Cells, editor.Options{
		Debounce:     opts.Debounce,
		FlushTimeout: opts.Resilience.CellFlush.Timeout,
		OnChange:     opts.OnChange,
		OnFlushError: opts.OnFlushError,
	})

	if opts.Dial != nil {
		s.channel = realtime.NewChannel(realtime.ChannelOptions{
			Dial:      opts.Dial,
			OnCells:   s.applyRemote,
			OnStatus:  s.connectionStatus,
			Reconnect: opts.Resilience.Reconnect,
		})
		s.channel.Start(table.ID)
	}

	log.Info().
		Str("slug", slug).
		Str("table_id", table.ID).
		Int("rows", table.Rows).
		Int("cols", table.Cols).
		Int("cells", len(table.Cells)).
		Msg("Opened table")
	return s, nil
}

func fetch(ctx context.Context, client API, slug, token string, cfg retry.Config) (*api.Table, error) {
	table, err := retry.WithRetry(ctx, cfg, func(ctx context.Context) (*api.Table, error) {
		return client.GetTable(ctx, slug, token)
	})
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", slug, err)
	}
	return table, nil
}

func (s *Session) applyRemote(cells []api.Cell) {
	s.editor.ApplyRemote(cells)
	if s.opts.OnRemote != nil {
		s.opts.OnRemote(cells)
	}
}

func (s *Session) connectionStatus(state realtime.State, err error) {
	s.editor.SetConnectionStatus(state == realtime.Connected, err)
}

func (s *Session) Editor() *editor.Editor {
	return s.editor
}

// Channel is nil when the session was opened without realtime.
func (s *Session) Channel() *realtime.Channel {
	return s.channel
}

func (s *Session) Slug() string {
	return s.slug
}

func (s *Session) Token() string {
	return s.token
}

// Table returns the table's shape and column configuration as of the last
// load. Its Cells are the loaded snapshot; use Editor for current values.
func (s *Session) Table() api.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.table
}

// Reload re-fetches the table after a structure or config change and
// reseeds the confirmed cells. Pending edits survive.
func (s *Session) Reload(ctx context.Context) error {
	table, err := fetch(ctx, s.client, s.slug, s.token, s.opts.Resilience.TableLoad)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previousID := s.table.ID
	s.table = table
	s.mu.Unlock()

	s.editor.Reseed(table.Cells)
	if s.channel != nil && table.ID != previousID {
		s.channel.SwitchTable(table.ID)
	}
	log.Debug().Str("slug", s.slug).Int("rows", table.Rows).Int("cols", table.Cols).Msg("Reloaded table")
	return nil
}

// Close cancels any scheduled flush and leaves the realtime room. Pending
// edits that were not flushed are dropped.
func (s *Session) Close() {
	s.editor.Close()
	if s.channel != nil {
		s.channel.Stop()
	}
	log.Debug().Str("slug", s.slug).Msg("Closed table session")
}
