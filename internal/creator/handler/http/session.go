package http

import (
	"github.com/abisalde/creator-dashboard/internal/creator/bootstrap"
	"github.com/abisalde/creator-dashboard/internal/creator/gate"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/gofiber/fiber/v2"
)

// LayoutResponse is the authenticated layout's decision for one route.
type LayoutResponse struct {
	Route                string                 `json:"route"`
	View                 gate.View              `json:"view"`
	CompletionPercentage int                    `json:"completionPercentage"`
	Profile              *model.Profile         `json:"profile"`
	CompletionScore      *model.CompletionScore `json:"completionScore"`
	Error                string                 `json:"error,omitempty"`
}

// bootstrapSession resolves the request's token cookies and rewrites them
// when the bootstrap had to refresh.
func (h *CreatorHandler) bootstrapSession(c *fiber.Ctx) bootstrap.Result {
	result := h.prefetcher.Prefetch(c.UserContext(), h.cookies.GetTokens(c))
	if result.Refreshed() && result.Tokens != nil {
		h.cookies.SetTokens(c, *result.Tokens)
	}
	return result
}

// Session returns the bootstrap snapshot a client adopts on start.
func (h *CreatorHandler) Session(c *fiber.Ctx) error {
	return c.JSON(h.bootstrapSession(c))
}

// Layout evaluates the pending-approval override and the lock overlay for
// the route under /app.
func (h *CreatorHandler) Layout(c *fiber.Ctx) error {
	route := "/" + c.Params("*")
	result := h.bootstrapSession(c)

	snapshot := gate.Snapshot{
		Authenticated:   result.Tokens != nil && result.Tokens.IDToken != "",
		Profile:         result.Profile,
		CompletionScore: result.CompletionScore,
		Error:           result.Error,
	}

	return c.JSON(LayoutResponse{
		Route:                route,
		View:                 gate.Resolve(route, snapshot),
		CompletionPercentage: result.CompletionScore.Percentage(),
		Profile:              result.Profile,
		CompletionScore:      result.CompletionScore,
		Error:                result.Error,
	})
}
