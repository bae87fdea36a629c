package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	apiPrefix   = "/api/v1"
	tokenHeader = "t"
)

type Client struct {
	baseURL      string
	client       *http.Client
	apiCallCount int64
	apiCallMutex sync.Mutex
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTP lets callers supply their own transport (tests, proxies).
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	c := NewClient(baseURL)
	c.client = httpClient
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

func (c *Client) CreateTable(ctx context.Context, req CreateTableRequest) (*CreateTableResponse, error) {
	var resp CreateTableResponse
	if err := c.do(ctx, "create table", http.MethodPost, apiPrefix+"/tables", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetTable(ctx context.Context, slug, token string) (*Table, error) {
	var table Table
	if err := c.do(ctx, "get table", http.MethodGet, tablePath(slug, ""), token, nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (c *Client) UpdateCells(ctx context.Context, slug, token string, req CellBatchUpdateRequest) (*CellBatchUpdateResponse, error) {
	var resp CellBatchUpdateResponse
	if err := c.do(ctx, "update cells", http.MethodPost, tablePath(slug, "/cells"), token, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: KindRejected, Op: "update cells", Message: "backend rejected cell update"}
	}
	return &resp, nil
}

func (c *Client) UpdateConfig(ctx context.Context, slug, token string, req TableConfigRequest) (*TableConfigResponse, error) {
	var resp TableConfigResponse
	if err := c.do(ctx, "update config", http.MethodPut, tablePath(slug, "/config"), token, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: KindRejected, Op: "update config", Message: resp.Message}
	}
	return &resp, nil
}

func (c *Client) AddRows(ctx context.Context, slug, token string, count int) (*RowColumnResponse, error) {
	return c.structure(ctx, "add rows", http.MethodPost, tablePath(slug, "/rows"), token, count)
}

func (c *Client) RemoveRows(ctx context.Context, slug, token string, count int) (*RowColumnResponse, error) {
	return c.structure(ctx, "remove rows", http.MethodDelete, tablePath(slug, "/rows"), token, count)
}

func (c *Client) AddColumns(ctx context.Context, slug, token string, count int) (*RowColumnResponse, error) {
	return c.structure(ctx, "add columns", http.MethodPost, tablePath(slug, "/columns"), token, count)
}

func (c *Client) RemoveColumns(ctx context.Context, slug, token string, count int) (*RowColumnResponse, error) {
	return c.structure(ctx, "remove columns", http.MethodDelete, tablePath(slug, "/columns"), token, count)
}

func (c *Client) structure(ctx context.Context, op, method, path, token string, count int) (*RowColumnResponse, error) {
	var resp RowColumnResponse
	if err := c.do(ctx, op, method, path, token, CountRequest{Count: count}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: KindRejected, Op: op, Message: resp.Message}
	}
	return &resp, nil
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "health check", http.MethodGet, "/healthz", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAppConfig(ctx context.Context) (AppConfig, error) {
	var resp AppConfig
	if err := c.do(ctx, "get app config", http.MethodGet, apiPrefix+"/config", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func tablePath(slug, suffix string) string {
	return apiPrefix + "/tables/" + url.PathEscape(slug) + suffix
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindClient, Op: op, Underlying: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindClient, Op: op, Underlying: fmt.Errorf("failed to create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	c.IncrementAPICall()

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Msg("Sending API request")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return &Error{Kind: kind, Op: op, Underlying: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Underlying: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().
			Str("op", op).
			Int("status_code", resp.StatusCode).
			Str("request_id", requestID).
			Str("response_body", string(respBody[:min(500, len(respBody))])).
			Msg("Non-2xx response from API")
		return &Error{
			Kind:       kindForStatus(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.Status),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Underlying: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorMessage pulls FastAPI's {"detail": ...} out of an error body.
func errorMessage(body []byte, fallback string) string {
	var detail struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && len(detail.Detail) > 0 {
		var s string
		if err := json.Unmarshal(detail.Detail, &s); err == nil {
			return s
		}
		return string(detail.Detail)
	}
	if len(body) > 0 {
		return strings.TrimSpace(string(body[:min(200, len(body))]))
	}
	return fallback
}
