package bootstrap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/backend"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/pkg/jwt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	ErrTokenRefreshFailed  = "Token refresh failed"
	ErrAuthenticationFail  = "Authentication failed"
	ErrProfileDecodeFailed = "Failed to read profile"
)

// Backend is the slice of the function service the bootstrap needs.
type Backend interface {
	RefreshToken(ctx context.Context, refreshToken string) (model.Tokens, error)
	GetProfile(ctx context.Context, idToken string) (json.RawMessage, error)
}

// Result never carries a Go error: every failure path is a message the
// caller renders as an unauthenticated or error state.
type Result struct {
	Profile         *model.Profile         `json:"profile"`
	CompletionScore *model.CompletionScore `json:"completionScore"`
	Tokens          *model.Tokens          `json:"tokens"`
	Error           string                 `json:"error,omitempty"`

	refreshed bool
}

// Refreshed reports whether Tokens differ from the ones the request carried.
func (r Result) Refreshed() bool { return r.refreshed }

func (r Result) Anonymous() bool {
	return r.Profile == nil && r.Tokens == nil && r.Error == ""
}

type Prefetcher struct {
	backend Backend
	log     zerolog.Logger
	now     func() time.Time
	group   singleflight.Group
}

func NewPrefetcher(b Backend, log zerolog.Logger) *Prefetcher {
	return &Prefetcher{
		backend: b,
		log:     log.With().Str("component", "bootstrap").Logger(),
		now:     time.Now,
	}
}

// Prefetch resolves the persisted tokens into a profile snapshot. It calls
// refresh, fetch and an optional retry-fetch strictly in sequence, and
// refreshes at most once.
func (p *Prefetcher) Prefetch(ctx context.Context, tokens model.Tokens) Result {
	idToken, refreshToken := tokens.IDToken, tokens.RefreshToken

	if idToken != "" && jwt.IsExpired(idToken, p.now()) {
		p.log.Debug().Msg("id token expired, treating as absent")
		idToken = ""
	}

	if idToken == "" && refreshToken == "" {
		return Result{}
	}

	refreshed := false
	if idToken == "" {
		next, err := p.backend.RefreshToken(ctx, refreshToken)
		if err != nil {
			p.log.Warn().Err(err).Msg("token refresh failed")
			return Result{Error: ErrTokenRefreshFailed}
		}
		idToken, refreshToken = next.IDToken, next.RefreshToken
		refreshed = true
	}

	raw, err := p.fetch(ctx, idToken)
	if err != nil {
		be, ok := backend.AsError(err)
		if ok && be.Unauthorized() && refreshed {
			p.log.Warn().Err(err).Msg("freshly refreshed id token rejected")
			return Result{Error: ErrAuthenticationFail}
		}
		if !ok || !be.Unauthorized() || refreshToken == "" {
			return p.failed(err)
		}

		next, refreshErr := p.backend.RefreshToken(ctx, refreshToken)
		if refreshErr != nil {
			p.log.Warn().Err(refreshErr).Msg("retry refresh failed")
			return Result{Error: ErrAuthenticationFail}
		}
		idToken, refreshToken = next.IDToken, next.RefreshToken

		raw, err = p.fetch(ctx, idToken)
		if err != nil {
			p.log.Warn().Err(err).Msg("profile fetch failed after refresh")
			return Result{Error: ErrAuthenticationFail}
		}
	}

	var resp model.ProfileResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		p.log.Error().Err(err).Msg("decode profile")
		return Result{Error: ErrProfileDecodeFailed}
	}

	profile := resp.Creator.Profile
	current := model.Tokens{IDToken: idToken, RefreshToken: refreshToken}
	return Result{
		Profile:         &profile,
		CompletionScore: resp.Creator.CompletionScore,
		Tokens:          &current,
		refreshed:       current != tokens,
	}
}

// fetch shares one in-flight profile fetch between concurrent renders that
// carry the same id token. The shared call does not stop when the render
// that started it goes away.
func (p *Prefetcher) fetch(ctx context.Context, idToken string) (json.RawMessage, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(idToken, func() (any, error) {
		return p.backend.GetProfile(shared, idToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (p *Prefetcher) failed(err error) Result {
	if be, ok := backend.AsError(err); ok {
		return Result{Error: be.Message}
	}
	p.log.Error().Err(err).Msg("profile fetch failed")
	return Result{Error: "Failed to fetch profile"}
}
