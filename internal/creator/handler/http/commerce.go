package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/creator/validator"
	"github.com/abisalde/creator-dashboard/internal/database"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	"github.com/abisalde/creator-dashboard/pkg/jwt"
	"github.com/abisalde/creator-dashboard/pkg/verification"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

func (h *CreatorHandler) ListCoupons(c *fiber.Ctx) error {
	raw, err := h.backend.ListCoupons(c.UserContext(), middleware.BearerToken(c))
	if err != nil {
		return upstreamError(err, "Failed to fetch coupons")
	}
	return relay(c, fiber.StatusOK, raw)
}

func (h *CreatorHandler) CreateCoupon(c *fiber.Ctx) error {
	var coupon model.CouponInput
	if err := parseBody(c, &coupon); err != nil {
		return err
	}
	if verr := validator.ValidateCoupon(coupon); verr != nil {
		return verr
	}

	raw, err := h.backend.CreateCoupon(c.UserContext(), middleware.BearerToken(c), coupon)
	if err != nil {
		return upstreamError(err, "Failed to create coupon")
	}
	return relay(c, fiber.StatusCreated, raw)
}

func (h *CreatorHandler) ListOrders(c *fiber.Ctx) error {
	query := model.OrdersQuery{
		Page:      c.QueryInt("page", defaultPage),
		PageSize:  c.QueryInt("pageSize", defaultPageSize),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: model.SortOrder(c.Query("sortOrder")),
	}
	if verr := validator.ValidateOrdersQuery(query); verr != nil {
		return verr
	}

	page, err := h.backend.ListOrders(c.UserContext(), middleware.BearerToken(c), query)
	if err != nil {
		return upstreamError(err, "Failed to fetch orders")
	}
	return c.JSON(page)
}

// cachedSummary is bound to the token that fetched it: id tokens are not
// verified here, so a hit is only served to the same token.
type cachedSummary struct {
	TokenHash string          `json:"tokenHash"`
	Summary   json.RawMessage `json:"summary"`
}

// DashboardSummary is cached per creator when a cache is configured.
// Concurrent misses for one creator share a single backend call.
func (h *CreatorHandler) DashboardSummary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	idToken := middleware.BearerToken(c)

	uid := jwt.UIDFromToken(idToken)
	if h.cache == nil || uid == "" {
		raw, err := h.backend.DashboardSummary(ctx, idToken)
		if err != nil {
			return upstreamError(err, "Failed to fetch dashboard summary")
		}
		return relay(c, fiber.StatusOK, raw)
	}

	key := database.SummaryCacheKey(uid)
	hash := verification.HashToken(idToken)

	var cached cachedSummary
	err := h.cache.Get(ctx, key, &cached)
	switch {
	case err == nil && verification.VerifyTokenHash(idToken, cached.TokenHash) && len(cached.Summary) > 0:
		c.Set("X-Cache", "HIT")
		return relay(c, fiber.StatusOK, cached.Summary)
	case err != nil && !errors.Is(err, database.ErrCacheMiss):
		h.log.Warn().Err(err).Msg("summary cache read failed")
	}

	v, err, _ := h.group.Do(key+":"+hash, func() (any, error) {
		raw, err := h.backend.DashboardSummary(ctx, idToken)
		if err != nil {
			return nil, err
		}
		if err := h.cache.Set(ctx, key, cachedSummary{TokenHash: hash, Summary: raw}, h.entryTTL(idToken)); err != nil {
			h.log.Warn().Err(err).Msg("summary cache write failed")
		}
		return raw, nil
	})
	if err != nil {
		return upstreamError(err, "Failed to fetch dashboard summary")
	}

	c.Set("X-Cache", "MISS")
	return relay(c, fiber.StatusOK, v.(json.RawMessage))
}

// entryTTL never outlives the token the entry is bound to.
func (h *CreatorHandler) entryTTL(idToken string) time.Duration {
	ttl := h.summaryTTL
	if remaining := jwt.GetTokenRemainingTTL(idToken); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	return ttl
}
