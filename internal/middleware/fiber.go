package middleware

import (
	"context"

	"github.com/abisalde/creator-dashboard/internal/creator/backend"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const HeaderRequestID = backend.RequestIDHeader

// RequestContext gives every request a user context carrying a request id.
// An inbound X-Request-Id is kept; otherwise one is minted. The id is echoed
// on the response and forwarded on backend calls.
func RequestContext(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	id := c.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(HeaderRequestID, id)
	c.SetUserContext(backend.WithRequestID(ctx, id))
	return c.Next()
}
