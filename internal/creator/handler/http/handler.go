package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/backend"
	"github.com/abisalde/creator-dashboard/internal/creator/bootstrap"
	"github.com/abisalde/creator-dashboard/internal/creator/cookies"
	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultSummaryTTL = 60 * time.Second

// Backend is the function service as the proxy routes use it.
type Backend interface {
	bootstrap.Backend
	CreateProfile(ctx context.Context, phoneNumber, name string) (json.RawMessage, error)
	SendOTP(ctx context.Context, phoneNumber string) (json.RawMessage, error)
	VerifyOTP(ctx context.Context, phoneNumber, otp string) (json.RawMessage, *model.VerifiedCreator, error)
	UpdateProfile(ctx context.Context, idToken, uid string, data json.RawMessage) (json.RawMessage, error)
	ListCoupons(ctx context.Context, idToken string) (json.RawMessage, error)
	CreateCoupon(ctx context.Context, idToken string, coupon model.CouponInput) (json.RawMessage, error)
	ListOrders(ctx context.Context, idToken string, query model.OrdersQuery) (*model.OrdersPage, error)
	DashboardSummary(ctx context.Context, idToken string) (json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type ProfileEvents interface {
	PublishProfileUpdated(ctx context.Context, creatorID string) error
}

type CreatorHandler struct {
	backend    Backend
	prefetcher *bootstrap.Prefetcher
	cookies    *cookies.Store
	log        zerolog.Logger

	cache      Cache
	summaryTTL time.Duration
	events     ProfileEvents
	otpLimiter fiber.Handler

	group singleflight.Group
}

type Option func(*CreatorHandler)

// WithSummaryCache caches dashboard summaries per creator for ttl.
func WithSummaryCache(cache Cache, ttl time.Duration) Option {
	return func(h *CreatorHandler) {
		h.cache = cache
		if ttl > 0 {
			h.summaryTTL = ttl
		}
	}
}

func WithProfileEvents(events ProfileEvents) Option {
	return func(h *CreatorHandler) { h.events = events }
}

// WithOTPLimiter runs limiter in front of send-otp.
func WithOTPLimiter(limiter fiber.Handler) Option {
	return func(h *CreatorHandler) { h.otpLimiter = limiter }
}

func NewCreatorHandler(b Backend, store *cookies.Store, log zerolog.Logger, opts ...Option) *CreatorHandler {
	log = log.With().Str("component", "proxy").Logger()
	h := &CreatorHandler{
		backend:    b,
		prefetcher: bootstrap.NewPrefetcher(b, log),
		cookies:    store,
		log:        log,
		summaryTTL: defaultSummaryTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CreatorHandler) RegisterRoutes(app fiber.Router) {
	requireID := middleware.RequireBearer(cookies.IDTokenName, apierrors.AuthorizationRequired)
	requireRefresh := middleware.RequireBearer(cookies.RefreshTokenName, apierrors.RefreshTokenRequired)

	api := app.Group("/api/creator")
	api.Post("/create-profile", h.CreateProfile)
	if h.otpLimiter != nil {
		api.Post("/send-otp", h.otpLimiter, h.SendOTP)
	} else {
		api.Post("/send-otp", h.SendOTP)
	}
	api.Post("/verify-otp", h.VerifyOTP)
	api.Post("/refresh-token", requireRefresh, h.RefreshToken)
	api.Post("/logout", h.Logout)

	api.Get("/profile", requireID, h.GetProfile)
	api.Put("/profile", requireID, h.UpdateProfile)
	api.Get("/coupons", requireID, h.ListCoupons)
	api.Post("/coupons", requireID, h.CreateCoupon)
	api.Get("/orders", requireID, h.ListOrders)
	api.Get("/dashboard-summary", requireID, h.DashboardSummary)

	app.Get("/api/session", h.Session)
	app.Get("/app/*", h.Layout)
}

// relay writes the function service's JSON answer through unchanged.
func relay(c *fiber.Ctx, status int, raw json.RawMessage) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return c.Status(status).Send(raw)
}

// upstreamError maps a backend failure onto the envelope: rejected
// credentials become 401, everything else 500 with the upstream message.
func upstreamError(err error, fallback string) error {
	if be, ok := backend.AsError(err); ok {
		if be.Unauthorized() {
			return apierrors.Unauthorized(be.Message)
		}
		return apierrors.Upstream(be.Message, err)
	}
	return apierrors.Upstream(fallback, err)
}

func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return apierrors.Validation("Request body is required")
	}
	if err := json.Unmarshal(c.Body(), dest); err != nil {
		return apierrors.Validation("Invalid request body")
	}
	return nil
}
