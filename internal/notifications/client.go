package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"online_tables_lite/internal/retry"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
	maxChangesShown  = 10
)

type Config struct {
	BaseURL   string
	Topic     string
	Enabled   bool
	BatchMode bool
	Priority  string
	Retry     retry.Config
}

// Client posts plain-text messages to an ntfy topic.
type Client struct {
	httpClient *http.Client
	cfg        Config

	mutex       sync.Mutex
	failures    int
	lastFailure time.Time
	circuitOpen bool

	totalSent    int64
	totalFailed  int64
	totalRetries int64

	pending sync.WaitGroup
}

// Change is one cell changed by another collaborator.
type Change struct {
	Row    int
	Col    int
	Header string
	Value  string
}

type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindClient      ErrorKind = "client"
	KindServer      ErrorKind = "server"
	KindCircuitOpen ErrorKind = "circuit_open"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type NotificationError struct {
	Kind       ErrorKind
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Kind, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer, KindRateLimit:
		return true
	default:
		return false
	}
}

func isRetryable(err error) bool {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.IsRetryable()
	}
	return false
}

func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.Retry.Retryable = isRetryable
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// SendNotification posts message with title, retrying transient failures.
func (c *Client) SendNotification(ctx context.Context, title, message string) error {
	if !c.cfg.Enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}
	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{Kind: KindCircuitOpen, Underlying: ErrCircuitOpen}
	}

	attempt := 0
	_, err := retry.WithRetry(ctx, c.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		attempt++
		if attempt > 1 {
			c.incrementRetries()
		}
		return struct{}{}, c.send(ctx, title, message, attempt)
	})
	if err != nil {
		c.recordFailure()
		return err
	}
	c.recordSuccess()
	return nil
}

func (c *Client) send(ctx context.Context, title, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.cfg.BaseURL, c.cfg.Topic)

	log.Debug().
		Str("url", url).
		Int("attempt", attempt).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{Kind: KindClient, Underlying: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if c.cfg.Priority != "" {
		req.Header.Set("Priority", c.cfg.Priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Kind: KindNetwork, Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %s", resp.Status),
		}
	}
	return nil
}

// SendNotificationAsync sends in the background. Wait blocks until every
// async send has finished.
func (c *Client) SendNotificationAsync(ctx context.Context, title, message string) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.SendNotification(ctx, title, message); err != nil {
			log.Warn().Err(err).Msg("Async notification failed")
		}
	}()
}

func (c *Client) Wait() {
	c.pending.Wait()
}

// NotifyRemoteChanges reports cells changed by other collaborators on table.
func (c *Client) NotifyRemoteChanges(ctx context.Context, table string, changes []Change) {
	if !c.cfg.Enabled || len(changes) == 0 {
		return
	}

	if c.cfg.BatchMode {
		log.Info().Int("changes", len(changes)).Msg("Sending batch notification for remote changes")
		c.SendNotificationAsync(ctx, table, formatBatchMessage(changes))
		return
	}

	log.Info().Int("changes", len(changes)).Msg("Sending individual notifications for remote changes")
	for i, change := range changes {
		c.SendNotificationAsync(ctx, table, formatChange(change, i+1, len(changes)))
	}
}

// NotifyFailedSave reports a batch of edits the backend did not accept.
func (c *Client) NotifyFailedSave(ctx context.Context, table string, cause error, cells int) {
	if !c.cfg.Enabled {
		return
	}
	message := fmt.Sprintf("⚠️ %d unsaved %s: %v", cells, plural(cells, "edit", "edits"), cause)
	c.SendNotificationAsync(ctx, table, message)
}

func formatBatchMessage(changes []Change) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✏️ %d %s changed\n", len(changes), plural(len(changes), "cell", "cells"))

	shown := min(len(changes), maxChangesShown)
	for _, ch := range changes[:shown] {
		fmt.Fprintf(&sb, "• %s\n", describe(ch))
	}
	if len(changes) > maxChangesShown {
		fmt.Fprintf(&sb, "... and %d more\n", len(changes)-maxChangesShown)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func formatChange(ch Change, n, total int) string {
	if total > 1 {
		return fmt.Sprintf("✏️ (%d/%d) %s", n, total, describe(ch))
	}
	return "✏️ " + describe(ch)
}

func describe(ch Change) string {
	ref, err := excelize.CoordinatesToCellName(ch.Col+1, ch.Row+1)
	if err != nil {
		ref = fmt.Sprintf("R%dC%d", ch.Row+1, ch.Col+1)
	}
	if ch.Header != "" {
		ref = fmt.Sprintf("%s (%s)", ref, ch.Header)
	}
	if ch.Value == "" {
		return ref + " cleared"
	}
	return fmt.Sprintf("%s = %s", ref, ch.Value)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.circuitOpen && time.Since(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}
	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
	if c.circuitOpen {
		c.circuitOpen = false
		log.Info().Msg("Circuit breaker closed after successful notification")
	}
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()

	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func (c *Client) incrementRetries() {
	c.mutex.Lock()
	c.totalRetries++
	c.mutex.Unlock()
}

func kindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}
