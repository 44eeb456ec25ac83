// ABOUTME: Minimal JSON client for the ledger-gateway HTTP API
// ABOUTME: Attaches the bearer token and Idempotency-Key, and decodes error bodies

package cmd

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
	"time"

	"github.com/google/uuid"

	"github.com/2389/ledger-gateway/internal/gateway"
)

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

// do performs one request. Mutating requests carry a fresh Idempotency-Key so
// that a retry after a dropped response is not applied twice.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.token == "" {
		return errors.New("no token: set LEDGER_TOKEN, pass --token, or run `ledger-gateway bootstrap`")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(gateway.IdempotencyHeader, uuid.New().String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ready reports whether the gateway answers /health/ready. It needs no token.
func (c *client) ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health/ready", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// currency returns the --currency flag, or the caller's profile currency.
func (c *client) currency(ctx context.Context) (string, error) {
	if flagCurrency != "" {
		return strings.ToUpper(flagCurrency), nil
	}
	var p gateway.ProfileResponse
	if err := c.get(ctx, "/api/profile", nil, &p); err != nil {
		return "", fmt.Errorf("fetching profile currency: %w", err)
	}
	return p.Currency, nil
}
