// Package cms is the typed client for the remote content store, the system
// of record for users, cars, addresses, orders, carts, coupons and booking
// leads. The client value is immutable; WithToken derives a per-session
// client carrying the user's bearer credential.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a derived client authenticated as the token's user. The
// receiver is not modified.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Error is the decoded error envelope of the content store.
type Error struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("cms: %s (%d): %s", e.Name, e.Status, e.Message)
}

// NotFound reports whether err is a content-store 404.
func NotFound(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status == http.StatusNotFound
	}
	return false
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *Error          `json:"error"`
}

// do performs one request. Non-nil bodies are wrapped in the {data: ...}
// envelope the store expects; responses are unwrapped the same way.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(map[string]interface{}{"data": body}); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var r *http.Request
	var err error
	if buf != nil {
		r, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	} else {
		r, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("building request %s %s: %w", method, path, err)
	}

	r.Header.Set("Accept", "application/json")
	if buf != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	w, err := c.http.Do(r)
	if err != nil {
		return fmt.Errorf("requesting %s %s: %w", method, path, err)
	}
	defer w.Body.Close()

	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		if w.StatusCode >= 400 {
			return &Error{Status: w.StatusCode, Name: http.StatusText(w.StatusCode)}
		}
		return fmt.Errorf("decoding response of %s %s: %w", method, path, err)
	}

	if env.Error != nil {
		if env.Error.Status == 0 {
			env.Error.Status = w.StatusCode
		}
		return env.Error
	}

	if w.StatusCode >= 400 {
		return &Error{Status: w.StatusCode, Name: http.StatusText(w.StatusCode)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data of %s %s: %w", method, path, err)
		}
	}

	return nil
}
