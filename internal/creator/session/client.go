package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultRequestTimeout = 30 * time.Second

// RequestError is a non-2xx answer from a dashboard proxy route.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

type jarBacked interface {
	Jar() http.CookieJar
}

// APIClient talks to the dashboard's same-origin proxy routes.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	usesJar    bool
}

type ClientOption func(*APIClient)

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *APIClient) { c.httpClient.Timeout = d }
}

func NewAPIClient(baseURL string, store TokenStore, opts ...ClientOption) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		store:      store,
	}
	if jb, ok := store.(jarBacked); ok {
		c.httpClient.Jar = jb.Jar()
		c.usesJar = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request sends one call to endpoint and decodes the JSON answer as T. With
// requireAuth the stored id token is attached as a bearer credential when
// present; a missing token is left for the server to reject.
func Request[T any](ctx context.Context, c *APIClient, method, endpoint string, body any, requireAuth bool) (T, error) {
	var zero T

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return zero, err
	}
	if requireAuth {
		if idToken := c.store.GetTokens().IDToken; idToken != "" {
			req.Header.Set("Authorization", "Bearer "+idToken)
		}
	}

	return do[T](c, req)
}

// requestWithCookies presents the persisted tokens as cookies, the way a
// browser does on a full page load. Jar-backed stores already do this.
func requestWithCookies[T any](ctx context.Context, c *APIClient, method, endpoint string) (T, error) {
	var zero T

	req, err := c.newRequest(ctx, method, endpoint, nil)
	if err != nil {
		return zero, err
	}
	if !c.usesJar {
		tokens := c.store.GetTokens()
		for _, t := range tokenCookies(tokens) {
			req.AddCookie(&http.Cookie{Name: t.name, Value: t.value})
		}
	}
	return do[T](c, req)
}

func (c *APIClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func do[T any](c *APIClient, req *http.Request) (T, error) {
	var zero T

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &RequestError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func errorMessage(raw []byte, status int) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}
