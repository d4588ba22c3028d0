package session

import (
	"github.com/abisalde/creator-dashboard/internal/creator/bootstrap"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
)

// State is the in-memory session aggregate. Profile and CompletionScore are
// nil until the backend supplies them.
type State struct {
	Profile         *model.Profile         `json:"profile"`
	Tokens          model.Tokens           `json:"tokens"`
	CompletionScore *model.CompletionScore `json:"completionScore"`
	IsAuthenticated bool                   `json:"isAuthenticated"`
	IsLoading       bool                   `json:"isLoading"`
	Err             string                 `json:"error,omitempty"`
}

// Region names the part of the state space the aggregate sits in. Err may
// accompany any region.
type Region string

const (
	RegionAnonymous          Region = "anonymous"
	RegionAuthenticating     Region = "authenticating"
	RegionAuthenticatedEmpty Region = "authenticated"
	RegionIncomplete         Region = "authenticated-incomplete"
	RegionComplete           Region = "authenticated-complete"
)

func (s State) Region() Region {
	switch {
	case s.IsLoading && !s.IsAuthenticated:
		return RegionAuthenticating
	case !s.IsAuthenticated:
		return RegionAnonymous
	case s.CompletionScore == nil:
		return RegionAuthenticatedEmpty
	case s.CompletionScore.LeftCount > 0:
		return RegionIncomplete
	default:
		return RegionComplete
	}
}

type actionKind int

const (
	actionStart actionKind = iota
	actionFailed
	actionDone
	actionProfileCreated
	actionVerified
	actionProfileLoaded
	actionProfileMerged
	actionScoreRefreshed
	actionHydrate
	actionReset
)

type action struct {
	kind    actionKind
	profile *model.Profile
	score   *model.CompletionScore
	tokens  model.Tokens
	err     string
}

// reduce is pure: every transition the Manager performs goes through it.
func reduce(s State, a action) State {
	switch a.kind {
	case actionStart:
		s.IsLoading = true
		s.Err = ""
	case actionFailed:
		s.IsLoading = false
		s.Err = a.err
	case actionDone:
		s.IsLoading = false
	case actionProfileCreated:
		s.Profile = a.profile
		s.IsAuthenticated = true
		s.IsLoading = false
	case actionVerified:
		s.Profile = a.profile
		s.Tokens = a.tokens
		s.CompletionScore = a.score
		s.IsAuthenticated = true
		s.IsLoading = false
	case actionProfileLoaded:
		s.Profile = a.profile
		s.CompletionScore = a.score
		s.IsLoading = false
	case actionProfileMerged:
		s.Profile = a.profile
		s.IsLoading = false
	case actionScoreRefreshed:
		s.CompletionScore = a.score
	case actionHydrate:
		if a.err != "" {
			// A failed bootstrap leaves an adopted session in place.
			s.IsLoading = false
			s.Err = a.err
			break
		}
		s.Profile = a.profile
		s.CompletionScore = a.score
		s.Tokens = a.tokens
		s.IsAuthenticated = a.tokens.IDToken != ""
		s.IsLoading = false
		s.Err = ""
	case actionReset:
		return State{}
	}
	return s
}

func hydrateAction(r bootstrap.Result) action {
	a := action{kind: actionHydrate, profile: r.Profile, score: r.CompletionScore, err: r.Error}
	if r.Tokens != nil {
		a.tokens = *r.Tokens
	}
	return a
}
