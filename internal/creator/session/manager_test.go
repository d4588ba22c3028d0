package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abisalde/creator-dashboard/internal/creator/bootstrap"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPhone = "+15551234567"

	verifiedBody = `{"verified":{"id":"c1","name":"Ada","phoneNumber":"+15551234567","approved":"pending",
		"idToken":"id-1","refreshToken":"rt-1",
		"completionScore":{"completed":["profile"],"left":["socials"],"completedCount":1,"leftCount":1}}}`

	creatorBody = `{"creator":{"id":"c1","name":"Ada","phoneNumber":"+15551234567","approved":true,
		"completionScore":{"completed":["profile","socials"],"left":[],"completedCount":2,"leftCount":0}}}`
)

type memStore struct {
	mu      sync.Mutex
	tokens  model.Tokens
	cleared int
}

func (s *memStore) SetTokens(t model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.IDToken != "" {
		s.tokens.IDToken = t.IDToken
	}
	if t.RefreshToken != "" {
		s.tokens.RefreshToken = t.RefreshToken
	}
	return nil
}

func (s *memStore) GetTokens() model.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *memStore) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = model.Tokens{}
	s.cleared++
	return nil
}

// fakeDashboard stands in for the BFF proxy routes.
type fakeDashboard struct {
	calls   sync.Map
	handler map[string]http.HandlerFunc
}

func (f *fakeDashboard) count(route string) int32 {
	v, ok := f.calls.Load(route)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func newFakeDashboard(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *fakeDashboard) {
	t.Helper()
	f := &fakeDashboard{handler: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		v, _ := f.calls.LoadOrStore(key, &atomic.Int32{})
		v.(*atomic.Int32).Add(1)

		h, ok := f.handler[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, f
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestManager(srv *httptest.Server, store TokenStore, opts ...ManagerOption) *Manager {
	return NewManager(NewAPIClient(srv.URL, store), store, opts...)
}

func TestRequest_AttachesBearerWhenRequired(t *testing.T) {
	var auth atomic.Value
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": func(w http.ResponseWriter, r *http.Request) {
			auth.Store(r.Header.Get("Authorization"))
			respond(http.StatusOK, creatorBody)(w, r)
		},
	})
	store := &memStore{tokens: model.Tokens{IDToken: "id-1"}}
	client := NewAPIClient(srv.URL, store)

	_, err := Request[model.ProfileResponse](context.Background(), client, http.MethodGet, profilePath, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "Bearer id-1", auth.Load())

	_, err = Request[model.ProfileResponse](context.Background(), client, http.MethodGet, profilePath, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())
}

func TestRequest_MissingTokenStillCallsServer(t *testing.T) {
	srv, fake := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": respond(http.StatusUnauthorized,
			`{"error":"Unauthorized","message":"Authorization token is required","success":false}`),
	})
	client := NewAPIClient(srv.URL, &memStore{})

	_, err := Request[model.ProfileResponse](context.Background(), client, http.MethodGet, profilePath, nil, true)

	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)
	assert.Equal(t, "Authorization token is required", reqErr.Message)
	assert.EqualValues(t, 1, fake.count("GET /api/creator/profile"))
}

func TestRequest_GenericMessageWithoutEnvelope(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": respond(http.StatusBadGateway, `<html>bad gateway</html>`),
	})
	client := NewAPIClient(srv.URL, &memStore{})

	_, err := Request[model.ProfileResponse](context.Background(), client, http.MethodGet, profilePath, nil, true)
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 502", err.Error())
}

func TestManager_VerifyOTPIsAtomic(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/verify-otp": respond(http.StatusOK, verifiedBody),
	})
	store := &memStore{}
	m := newTestManager(srv, store)

	var observed []State
	var mu sync.Mutex
	m.Subscribe(func(s State) {
		mu.Lock()
		observed = append(observed, s)
		mu.Unlock()
	})

	state, err := m.VerifyOTP(context.Background(), testPhone, "123456")
	require.NoError(t, err)

	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "c1", state.Profile.ID)
	assert.Equal(t, model.Tokens{IDToken: "id-1", RefreshToken: "rt-1"}, state.Tokens)
	assert.Equal(t, 50, state.CompletionScore.Percentage())
	assert.Equal(t, RegionIncomplete, state.Region())

	assert.Equal(t, model.Tokens{IDToken: "id-1", RefreshToken: "rt-1"}, store.GetTokens())

	mu.Lock()
	defer mu.Unlock()
	for _, s := range observed {
		if s.Tokens.IDToken != "" {
			assert.NotNil(t, s.Profile, "tokens observed without a profile")
			assert.NotNil(t, s.CompletionScore)
			assert.True(t, s.IsAuthenticated)
		}
	}
}

func TestManager_VerifyOTPValidatesLocally(t *testing.T) {
	srv, fake := newFakeDashboard(t, nil)
	m := newTestManager(srv, &memStore{})

	_, err := m.VerifyOTP(context.Background(), testPhone, "12ab")
	require.Error(t, err)
	assert.Equal(t, err.Error(), m.Snapshot().Err)
	assert.EqualValues(t, 0, fake.count("POST /api/creator/verify-otp"))
}

func TestManager_CreateProfileMarksAuthenticatedWithoutTokens(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/create-profile": respond(http.StatusOK,
			`{"profile":{"id":"c9","name":"Grace","phoneNumber":"+15551234567"}}`),
	})
	store := &memStore{}
	m := newTestManager(srv, store)

	profile, err := m.CreateProfile(context.Background(), testPhone, "Grace")
	require.NoError(t, err)
	assert.Equal(t, "c9", profile.ID)

	state := m.Snapshot()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, model.Tokens{}, state.Tokens)
	assert.Equal(t, model.Tokens{}, store.GetTokens())
}

func TestManager_SendOTPDoesNotAuthenticate(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/send-otp": respond(http.StatusOK, `{"success":true,"message":"OTP sent"}`),
	})
	m := newTestManager(srv, &memStore{})

	resp, err := m.SendOTP(context.Background(), testPhone)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	state := m.Snapshot()
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Err)
}

func TestManager_OperationErrorIsStoredAndReturned(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/send-otp": respond(http.StatusInternalServerError,
			`{"error":"Upstream error","message":"SMS provider unavailable","success":false}`),
	})
	m := newTestManager(srv, &memStore{})

	_, err := m.SendOTP(context.Background(), testPhone)
	require.Error(t, err)

	state := m.Snapshot()
	assert.Equal(t, "SMS provider unavailable", state.Err)
	assert.False(t, state.IsLoading)
}

func TestManager_FetchProfileIsIdempotent(t *testing.T) {
	srv, fake := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": respond(http.StatusOK, creatorBody),
	})
	m := newTestManager(srv, &memStore{tokens: model.Tokens{IDToken: "id-1"}})

	require.NoError(t, m.FetchProfile(context.Background()))
	require.NoError(t, m.FetchProfile(context.Background()))

	assert.EqualValues(t, 1, fake.count("GET /api/creator/profile"))
	state := m.Snapshot()
	require.NotNil(t, state.Profile)
	assert.Equal(t, model.ApprovalApproved, state.Profile.Approved)
	assert.Equal(t, 100, m.CompletionPercentage())
}

func TestManager_FetchProfileDropsConcurrentCalls(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv, fake := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-release
			respond(http.StatusOK, creatorBody)(w, r)
		},
	})
	m := newTestManager(srv, &memStore{tokens: model.Tokens{IDToken: "id-1"}})

	done := make(chan error, 1)
	go func() { done <- m.FetchProfile(context.Background()) }()

	<-entered
	require.NoError(t, m.FetchProfile(context.Background()))
	close(release)
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, fake.count("GET /api/creator/profile"))
	assert.NotNil(t, m.Snapshot().Profile)
}

func TestManager_UpdateProfileWithoutProfileFailsLocally(t *testing.T) {
	srv, fake := newFakeDashboard(t, nil)
	m := newTestManager(srv, &memStore{})

	name := "Ada"
	_, err := m.UpdateProfile(context.Background(), model.ProfileUpdate{Name: &name})

	assert.ErrorIs(t, err, ErrNoProfile)
	assert.EqualValues(t, 0, fake.count("PUT /api/creator/profile"))
	assert.Equal(t, ErrNoProfile.Error(), m.Snapshot().Err)
}

func adoptSession(m *Manager) {
	m.Adopt(bootstrap.Result{
		Profile: &model.Profile{ID: "c1", Name: "Ada", PhoneNumber: testPhone, Approved: model.ApprovalApproved},
		CompletionScore: &model.CompletionScore{
			Completed: []string{"profile"}, Left: []string{"socials"}, CompletedCount: 1, LeftCount: 1,
		},
		Tokens: &model.Tokens{IDToken: "id-1", RefreshToken: "rt-1"},
	})
}

func TestManager_UpdateProfileMergesAndRefreshesScore(t *testing.T) {
	var sent atomic.Value
	srv, fake := newFakeDashboard(t, map[string]http.HandlerFunc{
		"PUT /api/creator/profile": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			sent.Store(string(body))
			respond(http.StatusOK, `{"profile":{"name":"Ada L."}}`)(w, r)
		},
		"GET /api/creator/profile": respond(http.StatusOK, creatorBody),
	})
	m := newTestManager(srv, &memStore{})
	adoptSession(m)

	name := "Ada L."
	profile, err := m.UpdateProfile(context.Background(), model.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.Equal(t, "Ada L.", profile.Name)
	assert.Equal(t, testPhone, profile.PhoneNumber, "merge keeps fields absent from the answer")
	assert.JSONEq(t, `{"uid":"c1","data":{"name":"Ada L."}}`, sent.Load().(string))

	assert.EqualValues(t, 1, fake.count("GET /api/creator/profile"))
	assert.Equal(t, 100, m.CompletionPercentage())
}

func TestManager_UpdateProfileSwallowsScoreRefreshFailure(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"PUT /api/creator/profile": respond(http.StatusOK, `{"profile":{"email":"ada@example.com"}}`),
		"GET /api/creator/profile": respond(http.StatusInternalServerError, `{"message":"boom","success":false}`),
	})

	backgroundErrs := make(chan error, 1)
	m := newTestManager(srv, &memStore{}, WithBackgroundErrorHandler(func(err error) { backgroundErrs <- err }))
	adoptSession(m)

	email := "ada@example.com"
	profile, err := m.UpdateProfile(context.Background(), model.ProfileUpdate{Email: &email})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	require.NotNil(t, profile.Email)
	assert.Equal(t, email, *profile.Email)

	bgErr := <-backgroundErrs
	assert.EqualError(t, bgErr, "boom")

	state := m.Snapshot()
	assert.Empty(t, state.Err, "background failure is not surfaced")
	assert.Equal(t, 50, state.CompletionScore.Percentage())
}

func TestManager_LogoutResetsEverything(t *testing.T) {
	srv, _ := newFakeDashboard(t, nil)
	path := filepath.Join(t.TempDir(), "session.yml")
	store := NewFileStore(path, false)

	var navigated []string
	m := newTestManager(srv, store, WithNavigator(NavigatorFunc(func(p string) { navigated = append(navigated, p) })))
	adoptSession(m)
	require.Equal(t, "id-1", store.GetTokens().IDToken)

	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, State{}, m.Snapshot())
	assert.Equal(t, RegionAnonymous, m.Snapshot().Region())
	assert.Equal(t, model.Tokens{}, store.GetTokens())
	assert.Equal(t, []string{LoginPath}, navigated)
}

// blockUntil answers with body once release is closed or the caller gives up.
func blockUntil(entered chan<- struct{}, release <-chan struct{}, body string) http.HandlerFunc {
	var once sync.Once
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		respond(http.StatusOK, body)(w, r)
	}
}

func TestManager_LogoutDropsPendingScoreRefresh(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"PUT /api/creator/profile": respond(http.StatusOK, `{"profile":{"name":"Ada L."}}`),
		"GET /api/creator/profile": blockUntil(entered, release, creatorBody),
	})

	var backgroundErrs atomic.Int32
	store := &memStore{}
	m := newTestManager(srv, store, WithBackgroundErrorHandler(func(error) { backgroundErrs.Add(1) }))
	adoptSession(m)

	name := "Ada L."
	_, err := m.UpdateProfile(context.Background(), model.ProfileUpdate{Name: &name})
	require.NoError(t, err)

	<-entered
	require.NoError(t, m.Logout(context.Background()))
	close(release)
	require.NoError(t, m.Close())

	assert.Equal(t, State{}, m.Snapshot())
	assert.Equal(t, model.Tokens{}, store.GetTokens())
	assert.Zero(t, backgroundErrs.Load(), "a cancelled refresh is not reported")
}

func TestManager_LogoutDropsFetchInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv, fake := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/creator/profile": blockUntil(entered, release, creatorBody),
	})
	m := newTestManager(srv, &memStore{tokens: model.Tokens{IDToken: "id-1"}})

	done := make(chan error, 1)
	go func() { done <- m.FetchProfile(context.Background()) }()

	<-entered
	require.NoError(t, m.Logout(context.Background()))
	close(release)
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, fake.count("GET /api/creator/profile"))
	assert.Nil(t, m.Snapshot().Profile)
	assert.Equal(t, State{}, m.Snapshot())
}

func TestManager_LogoutDuringVerifyOTPKeepsStoreEmpty(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/verify-otp": blockUntil(entered, release, verifiedBody),
	})
	store := &memStore{}
	m := newTestManager(srv, store)

	type result struct {
		state State
		err   error
	}
	done := make(chan result, 1)
	go func() {
		st, err := m.VerifyOTP(context.Background(), testPhone, "123456")
		done <- result{st, err}
	}()

	<-entered
	require.NoError(t, m.Logout(context.Background()))
	close(release)
	res := <-done

	assert.ErrorIs(t, res.err, ErrSessionReset)
	assert.False(t, res.state.IsAuthenticated)
	assert.Equal(t, State{}, m.Snapshot())
	assert.Equal(t, model.Tokens{}, store.GetTokens())
}

func TestManager_FailedSnapshotKeepsVerifiedSession(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"POST /api/creator/verify-otp": respond(http.StatusOK, verifiedBody),
	})
	store := &memStore{}
	m := newTestManager(srv, store)

	_, err := m.VerifyOTP(context.Background(), testPhone, "123456")
	require.NoError(t, err)

	state := m.Adopt(bootstrap.Result{Error: bootstrap.ErrTokenRefreshFailed})

	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, bootstrap.ErrTokenRefreshFailed, state.Err)
	assert.Equal(t, model.Tokens{IDToken: "id-1", RefreshToken: "rt-1"}, state.Tokens)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "c1", state.Profile.ID)
	assert.Equal(t, "id-1", store.GetTokens().IDToken)
}

func TestManager_BootstrapSendsStoredTokensAsCookies(t *testing.T) {
	var seen atomic.Value
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/session": func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie("refreshToken")
			if err == nil {
				seen.Store(c.Value)
			}
			out, _ := json.Marshal(bootstrap.Result{
				Profile: &model.Profile{ID: "c1", Approved: model.ApprovalPending},
				Tokens:  &model.Tokens{IDToken: "fresh-id", RefreshToken: "rt-2"},
			})
			respond(http.StatusOK, string(out))(w, r)
		},
	})
	store := NewFileStore(filepath.Join(t.TempDir(), "session.yml"), false)
	require.NoError(t, store.SetTokens(model.Tokens{RefreshToken: "rt-1"}))

	m := newTestManager(srv, store)
	state, err := m.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "rt-1", seen.Load())
	assert.True(t, state.IsAuthenticated)
	assert.True(t, state.Profile.IsPending())
	assert.Equal(t, model.Tokens{IDToken: "fresh-id", RefreshToken: "rt-2"}, store.GetTokens())
}

func TestManager_BootstrapErrorKeepsStoredTokens(t *testing.T) {
	srv, _ := newFakeDashboard(t, map[string]http.HandlerFunc{
		"GET /api/session": respond(http.StatusOK, `{"profile":null,"tokens":null,"error":"Token refresh failed"}`),
	})
	store := &memStore{tokens: model.Tokens{RefreshToken: "rt-1"}}

	m := newTestManager(srv, store)
	state, err := m.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, "Token refresh failed", state.Err)
	assert.Equal(t, "rt-1", store.GetTokens().RefreshToken)
}

func TestManager_CloseTwice(t *testing.T) {
	srv, _ := newFakeDashboard(t, nil)
	m := newTestManager(srv, &memStore{})

	require.NoError(t, m.Close())
	assert.True(t, errors.Is(m.Close(), ErrManagerClosed))
}

func TestReduce(t *testing.T) {
	profile := &model.Profile{ID: "c1"}
	score := &model.CompletionScore{CompletedCount: 1, LeftCount: 0}

	tests := []struct {
		name   string
		start  State
		action action
		want   State
	}{
		{
			name:   "start clears the error",
			start:  State{Err: "old"},
			action: action{kind: actionStart},
			want:   State{IsLoading: true},
		},
		{
			name:   "failure keeps authentication",
			start:  State{IsAuthenticated: true, IsLoading: true, Profile: profile},
			action: action{kind: actionFailed, err: "boom"},
			want:   State{IsAuthenticated: true, Profile: profile, Err: "boom"},
		},
		{
			name:   "hydrate without id token is unauthenticated",
			action: action{kind: actionHydrate, tokens: model.Tokens{RefreshToken: "rt"}},
			want:   State{Tokens: model.Tokens{RefreshToken: "rt"}},
		},
		{
			name:   "hydrate with id token",
			action: action{kind: actionHydrate, profile: profile, score: score, tokens: model.Tokens{IDToken: "id"}},
			want:   State{Profile: profile, CompletionScore: score, Tokens: model.Tokens{IDToken: "id"}, IsAuthenticated: true},
		},
		{
			name:   "hydrate with an error keeps the adopted session",
			start:  State{Profile: profile, Tokens: model.Tokens{IDToken: "id"}, IsAuthenticated: true, IsLoading: true},
			action: action{kind: actionHydrate, err: "Authentication failed"},
			want:   State{Profile: profile, Tokens: model.Tokens{IDToken: "id"}, IsAuthenticated: true, Err: "Authentication failed"},
		},
		{
			name:   "successful hydrate clears a previous error",
			start:  State{Err: "Token refresh failed"},
			action: action{kind: actionHydrate, tokens: model.Tokens{IDToken: "id"}},
			want:   State{Tokens: model.Tokens{IDToken: "id"}, IsAuthenticated: true},
		},
		{
			name:   "score refresh replaces the score only",
			start:  State{Profile: profile, IsAuthenticated: true},
			action: action{kind: actionScoreRefreshed, score: score},
			want:   State{Profile: profile, IsAuthenticated: true, CompletionScore: score},
		},
		{
			name:   "reset",
			start:  State{Profile: profile, CompletionScore: score, Tokens: model.Tokens{IDToken: "id"}, IsAuthenticated: true, Err: "x"},
			action: action{kind: actionReset},
			want:   State{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reduce(tt.start, tt.action))
		})
	}
}
