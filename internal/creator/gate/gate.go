package gate

import (
	"strings"

	"github.com/abisalde/creator-dashboard/internal/creator/model"
)

// View is what the authenticated layout renders for a route.
type View string

const (
	ViewPage            View = "page"
	ViewLocked          View = "locked"
	ViewPendingApproval View = "pending-approval"
	ViewError           View = "error"
	ViewLogin           View = "login"
)

// Policy tables. Routes are matched exactly after trailing-slash trimming.
var (
	LockExempt = map[string]struct{}{
		"/profile":    {},
		"/dashboard":  {},
		"/onboarding": {},
	}
	ApprovalExempt = map[string]struct{}{
		"/onboarding": {},
	}
)

func normalize(route string) string {
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}

func Locked(route string, score *model.CompletionScore) bool {
	if _, ok := LockExempt[normalize(route)]; ok {
		return false
	}
	return score.Percentage() < 100
}

func PendingApproval(route string, profile *model.Profile) bool {
	if _, ok := ApprovalExempt[normalize(route)]; ok {
		return false
	}
	return profile.IsPending()
}

type Snapshot struct {
	Authenticated   bool
	Profile         *model.Profile
	CompletionScore *model.CompletionScore
	Error           string
}

// Resolve applies the pending-approval override before any per-page
// gating, then the lock overlay.
func Resolve(route string, s Snapshot) View {
	if !s.Authenticated {
		if s.Error != "" {
			return ViewError
		}
		return ViewLogin
	}
	if s.Profile == nil {
		return ViewError
	}
	if PendingApproval(route, s.Profile) {
		return ViewPendingApproval
	}
	if Locked(route, s.CompletionScore) {
		return ViewLocked
	}
	return ViewPage
}
