package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/bootstrap"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/creator/validator"
	"github.com/rs/zerolog"
)

const (
	createProfilePath = "/api/creator/create-profile"
	sendOTPPath       = "/api/creator/send-otp"
	verifyOTPPath     = "/api/creator/verify-otp"
	profilePath       = "/api/creator/profile"
	sessionPath       = "/api/session"

	LoginPath = "/login"

	scoreRefreshTimeout = 15 * time.Second
)

var (
	ErrNoProfile     = errors.New("no profile loaded")
	ErrEmptyUpdate   = errors.New("nothing to update")
	ErrManagerClosed = errors.New("session manager closed")
	ErrSessionReset  = errors.New("session was reset while the request was in flight")
)

// Navigator performs the hard navigation that follows a logout.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Manager is the single writer of the session State and the TokenStore.
type Manager struct {
	api   *APIClient
	store TokenStore
	nav   Navigator
	log   zerolog.Logger

	onBackgroundError func(error)

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSub     int
	closed      bool

	// epoch counts resets. Results of calls started in an older epoch are
	// dropped, and sessionCtx is cancelled on every reset.
	epoch         uint64
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	persistMu     sync.Mutex

	fetching   atomic.Bool
	background sync.WaitGroup
}

type ManagerOption func(*Manager)

func WithNavigator(nav Navigator) ManagerOption {
	return func(m *Manager) { m.nav = nav }
}

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithBackgroundErrorHandler receives failures of best-effort follow-up
// calls. The default logs them.
func WithBackgroundErrorHandler(fn func(error)) ManagerOption {
	return func(m *Manager) { m.onBackgroundError = fn }
}

func NewManager(api *APIClient, store TokenStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		api:         api,
		store:       store,
		nav:         NavigatorFunc(func(string) {}),
		log:         zerolog.Nop(),
		subscribers: map[int]func(State){},
	}
	m.sessionCtx, m.cancelSession = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "session").Logger()
	if m.onBackgroundError == nil {
		m.onBackgroundError = func(err error) {
			m.log.Warn().Err(err).Msg("completion score refresh failed")
		}
	}
	return m
}

func (m *Manager) dispatch(a action) State {
	next, _ := m.commit(a, false, 0)
	return next
}

// dispatchAt applies a only while no reset happened since epoch was taken.
func (m *Manager) dispatchAt(epoch uint64, a action) (State, bool) {
	return m.commit(a, true, epoch)
}

func (m *Manager) commit(a action, guarded bool, epoch uint64) (State, bool) {
	m.mu.Lock()
	if guarded && epoch != m.epoch {
		current := m.state
		m.mu.Unlock()
		m.log.Debug().Uint64("epoch", epoch).Msg("dropped result from a previous session")
		return current, false
	}
	prev := m.state
	next := reduce(prev, a)
	m.state = next
	if a.kind == actionReset {
		m.epoch++
		m.cancelSession()
		m.sessionCtx, m.cancelSession = context.WithCancel(context.Background())
	}
	applied := m.epoch
	subs := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if next.Tokens != prev.Tokens && !next.Tokens.Empty() {
		m.persist(applied, next.Tokens)
	}
	for _, fn := range subs {
		fn(next)
	}
	return next, true
}

// persist writes tokens unless a reset cleared the store in the meantime.
func (m *Manager) persist(epoch uint64, tokens model.Tokens) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if !m.current(epoch) {
		return
	}
	if err := m.store.SetTokens(tokens); err != nil {
		m.log.Error().Err(err).Msg("persist tokens")
	}
}

// begin marks the start of a request and returns the epoch it belongs to.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()
	m.dispatchAt(epoch, action{kind: actionStart})
	return epoch
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch
}

func (m *Manager) fail(err error) error {
	m.dispatch(action{kind: actionFailed, err: err.Error()})
	return err
}

func (m *Manager) failAt(epoch uint64, err error) error {
	m.dispatchAt(epoch, action{kind: actionFailed, err: err.Error()})
	return err
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state transition and returns a function
// that removes it.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) CompletionPercentage() int {
	return m.Snapshot().CompletionScore.Percentage()
}

// Adopt seeds the state with a bootstrap snapshot.
func (m *Manager) Adopt(r bootstrap.Result) State {
	return m.dispatch(hydrateAction(r))
}

// Bootstrap asks the server to resolve the persisted tokens and adopts the
// answer.
func (m *Manager) Bootstrap(ctx context.Context) (State, error) {
	epoch := m.begin()
	result, err := requestWithCookies[bootstrap.Result](ctx, m.api, http.MethodGet, sessionPath)
	if err != nil {
		return m.Snapshot(), m.failAt(epoch, err)
	}
	st, ok := m.dispatchAt(epoch, hydrateAction(result))
	if !ok {
		return st, ErrSessionReset
	}
	return st, nil
}

func (m *Manager) CreateProfile(ctx context.Context, phoneNumber, name string) (*model.Profile, error) {
	if verr := validator.ValidatePhoneNumber(phoneNumber); verr != nil {
		return nil, m.fail(verr)
	}
	if verr := validator.ValidateName(name); verr != nil {
		return nil, m.fail(verr)
	}

	epoch := m.begin()
	body := map[string]string{"phoneNumber": phoneNumber, "name": name}
	resp, err := Request[model.CreateProfileResponse](ctx, m.api, http.MethodPost, createProfilePath, body, false)
	if err != nil {
		return nil, m.failAt(epoch, err)
	}

	profile := resp.Profile
	if _, ok := m.dispatchAt(epoch, action{kind: actionProfileCreated, profile: &profile}); !ok {
		return nil, ErrSessionReset
	}
	return &profile, nil
}

func (m *Manager) SendOTP(ctx context.Context, phoneNumber string) (model.SendOTPResponse, error) {
	if verr := validator.ValidatePhoneNumber(phoneNumber); verr != nil {
		return model.SendOTPResponse{}, m.fail(verr)
	}

	epoch := m.begin()
	body := map[string]string{"phoneNumber": phoneNumber}
	resp, err := Request[model.SendOTPResponse](ctx, m.api, http.MethodPost, sendOTPPath, body, false)
	if err != nil {
		return resp, m.failAt(epoch, err)
	}
	m.dispatchAt(epoch, action{kind: actionDone})
	return resp, nil
}

// VerifyOTP adopts profile, tokens and completion score in one transition.
func (m *Manager) VerifyOTP(ctx context.Context, phoneNumber, otp string) (State, error) {
	if verr := validator.ValidatePhoneNumber(phoneNumber); verr != nil {
		return m.Snapshot(), m.fail(verr)
	}
	if verr := validator.ValidateOTP(otp); verr != nil {
		return m.Snapshot(), m.fail(verr)
	}

	epoch := m.begin()
	body := map[string]string{"phoneNumber": phoneNumber, "otp": otp}
	resp, err := Request[model.VerifyOTPResponse](ctx, m.api, http.MethodPost, verifyOTPPath, body, false)
	if err != nil {
		return m.Snapshot(), m.failAt(epoch, err)
	}

	v := resp.Verified
	profile := v.Profile
	st, ok := m.dispatchAt(epoch, action{
		kind:    actionVerified,
		profile: &profile,
		tokens:  v.Tokens(),
		score:   v.CompletionScore,
	})
	if !ok {
		return st, ErrSessionReset
	}
	return st, nil
}

// FetchProfile loads the profile once. It returns immediately when a profile
// is already present or another fetch is in flight.
func (m *Manager) FetchProfile(ctx context.Context) error {
	if m.Snapshot().Profile != nil {
		return nil
	}
	if !m.fetching.CompareAndSwap(false, true) {
		return nil
	}
	defer m.fetching.Store(false)

	epoch := m.begin()
	resp, err := Request[model.ProfileResponse](ctx, m.api, http.MethodGet, profilePath, nil, true)
	if err != nil {
		return m.failAt(epoch, err)
	}

	profile := resp.Creator.Profile
	m.dispatchAt(epoch, action{kind: actionProfileLoaded, profile: &profile, score: resp.Creator.CompletionScore})
	return nil
}

// UpdateProfile sends only the fields set on update and merges the answer
// into the current profile. The completion score is refreshed in the
// background afterwards.
func (m *Manager) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.Profile, error) {
	current := m.Snapshot().Profile
	if current == nil {
		return nil, m.fail(ErrNoProfile)
	}
	if update.Empty() {
		return nil, m.fail(ErrEmptyUpdate)
	}
	if verr := validator.ValidateProfileUpdate(update); verr != nil {
		return nil, m.fail(verr)
	}

	epoch := m.begin()
	body := struct {
		UID  string              `json:"uid"`
		Data model.ProfileUpdate `json:"data"`
	}{UID: current.ID, Data: update}
	resp, err := Request[model.UpdateProfileResponse](ctx, m.api, http.MethodPut, profilePath, body, true)
	if err != nil {
		return nil, m.failAt(epoch, err)
	}

	// Re-read so the merge applies to the latest profile.
	base := m.Snapshot().Profile
	if base == nil {
		base = current
	}
	merged := *base
	if len(resp.Profile) > 0 && string(resp.Profile) != "null" {
		if merged, err = base.Merge(resp.Profile); err != nil {
			return nil, m.failAt(epoch, err)
		}
	}
	if _, ok := m.dispatchAt(epoch, action{kind: actionProfileMerged, profile: &merged}); !ok {
		return nil, ErrSessionReset
	}

	m.refreshScore(ctx, epoch)
	return &merged, nil
}

// refreshScore runs detached from the caller but stops when the session is
// reset.
func (m *Manager) refreshScore(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if m.closed || epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	sessionCtx := m.sessionCtx
	m.background.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scoreRefreshTimeout)
		defer cancel()
		stop := context.AfterFunc(sessionCtx, cancel)
		defer stop()

		resp, err := Request[model.ProfileResponse](ctx, m.api, http.MethodGet, profilePath, nil, true)
		if err != nil {
			if m.current(epoch) {
				m.onBackgroundError(err)
			}
			return
		}
		m.dispatchAt(epoch, action{kind: actionScoreRefreshed, score: resp.Creator.CompletionScore})
	}()
}

// Logout clears the persisted tokens, resets the state and navigates to the
// login page. Calls still in flight cannot write into the new session.
func (m *Manager) Logout(_ context.Context) error {
	m.dispatch(action{kind: actionReset})

	m.persistMu.Lock()
	err := m.store.ClearTokens()
	m.persistMu.Unlock()
	if err != nil {
		m.log.Error().Err(err).Msg("clear tokens")
	}
	m.nav.Navigate(LoginPath)
	return err
}

// Close waits for background tasks. Later operations skip the background
// refresh.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.background.Wait()
	return nil
}
