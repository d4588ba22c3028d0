package backend

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout  = 15 * time.Second
	RequestIDHeader = "X-Request-Id"
)

// Function names exposed by the backend function service.
const (
	FnCreateProfile    = "createCreatorProfile"
	FnSendOTP          = "sendOtp"
	FnVerifyOTP        = "verifyOtp"
	FnGetProfile       = "getCreatorProfile"
	FnUpdateProfile    = "updateCreatorProfile"
	FnRefreshToken     = "refreshToken"
	FnListCoupons      = "getCoupons"
	FnCreateCoupon     = "createCoupon"
	FnListOrders       = "getOrders"
	FnDashboardSummary = "getDashboardSummary"
)

var ErrBaseURLRequired = errors.New("backend base URL is required")

// Error is a non-2xx answer from the function service.
type Error struct {
	Function string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Function, e.Message, e.Status)
}

// Unauthorized reports whether the backend rejected the bearer credential.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func NewClient(baseURL string, log zerolog.Logger, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("component", "backend").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call POSTs payload to the named function and decodes the JSON answer into
// out. A nil payload sends an empty JSON object.
func (c *Client) call(ctx context.Context, fn, bearer string, payload, out any, fallback string) error {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", fn, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestIDFrom(ctx))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("function", fn).Msg("backend call failed")
		return fmt.Errorf("%s: %w", fn, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", fn, err)
	}

	c.log.Debug().
		Str("function", fn).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Function: fn, Status: resp.StatusCode, Message: upstreamMessage(raw, fallback)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", fn, err)
	}
	return nil
}

func upstreamMessage(raw []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fallback
	}
	if env.Message != "" {
		return env.Message
	}
	switch v := env.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}
