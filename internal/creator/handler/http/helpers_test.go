package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/backend"
	"github.com/abisalde/creator-dashboard/internal/creator/cookies"
	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/abisalde/creator-dashboard/internal/database"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	"github.com/gofiber/fiber/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fnCall struct {
	Name string
	Auth string
	Body string
}

type fnResponder func(call fnCall) (int, string)

// functionService fakes the backend function service.
type functionService struct {
	mu        sync.Mutex
	calls     []fnCall
	responses map[string]fnResponder
	srv       *httptest.Server
}

func newFunctionService(t *testing.T, responses map[string]fnResponder) *functionService {
	t.Helper()
	fs := &functionService{responses: responses}
	fs.srv = httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		body, _ := io.ReadAll(r.Body)
		call := fnCall{
			Name: strings.TrimPrefix(r.URL.Path, "/"),
			Auth: r.Header.Get("Authorization"),
			Body: string(body),
		}

		fs.mu.Lock()
		fs.calls = append(fs.calls, call)
		responder, ok := fs.responses[call.Name]
		fs.mu.Unlock()

		status, out := nethttp.StatusNotFound, `{"message":"no such function"}`
		if ok {
			status, out = responder(call)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, out)
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *functionService) all() []fnCall {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]fnCall(nil), fs.calls...)
}

func (fs *functionService) names() []string {
	var out []string
	for _, c := range fs.all() {
		out = append(out, c.Name)
	}
	return out
}

func reply(status int, body string) fnResponder {
	return func(fnCall) (int, string) { return status, body }
}

func newTestApp(t *testing.T, fs *functionService, opts ...Option) *fiber.App {
	t.Helper()
	client, err := backend.NewClient(fs.srv.URL, zerolog.Nop())
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zerolog.Nop())})
	app.Use(middleware.RequestContext)
	NewCreatorHandler(client, cookies.NewStore(false), zerolog.Nop(), opts...).RegisterRoutes(app)
	return app
}

type request struct {
	method  string
	target  string
	body    string
	auth    string
	cookies map[string]string
}

func do(t *testing.T, app *fiber.App, r request) *nethttp.Response {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.target, body)
	if r.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth != "" {
		req.Header.Set("Authorization", "Bearer "+r.auth)
	}
	for name, value := range r.cookies {
		req.AddCookie(&nethttp.Cookie{Name: name, Value: value})
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *nethttp.Response) apierrors.Envelope {
	t.Helper()
	var env apierrors.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func readBody(t *testing.T, resp *nethttp.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func cookiesByName(resp *nethttp.Response) map[string]*nethttp.Cookie {
	out := map[string]*nethttp.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func signedToken(t *testing.T, uid string, ttl time.Duration) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id": uid,
		"exp":     time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return database.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.deletes = append(m.deletes, key)
	return nil
}

type recordingEvents struct {
	mu      sync.Mutex
	creator []string
}

func (r *recordingEvents) PublishProfileUpdated(_ context.Context, creatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creator = append(r.creator, creatorID)
	return nil
}
