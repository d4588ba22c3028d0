package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimitConfig is a fixed window: Limit requests per Window for one key.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	Prefix string
}

func DefaultOTPRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Limit:  5,
		Window: 10 * time.Minute,
		Prefix: "ratelimit:otp",
	}
}

// RateLimiter counts requests per key in Redis. Redis failures let the
// request through.
type RateLimiter struct {
	config      RateLimitConfig
	redisClient *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

func NewRateLimiter(config RateLimitConfig, redisClient *redis.Client, log zerolog.Logger) *RateLimiter {
	if config.Limit <= 0 {
		config.Limit = DefaultOTPRateLimit().Limit
	}
	if config.Window <= 0 {
		config.Window = DefaultOTPRateLimit().Window
	}
	if config.Prefix == "" {
		config.Prefix = DefaultOTPRateLimit().Prefix
	}
	return &RateLimiter{
		config:      config,
		redisClient: redisClient,
		log:         log.With().Str("component", "rate_limiter").Logger(),
		now:         time.Now,
	}
}

// Allow reports whether key may make another request and, when it may not,
// how long until the window resets.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if rl == nil || rl.redisClient == nil {
		return true, 0
	}

	now := rl.now()
	windowStart := now.Truncate(rl.config.Window)
	countKey := fmt.Sprintf("%s:%s:%d", rl.config.Prefix, key, windowStart.Unix())

	pipe := rl.redisClient.TxPipeline()
	incrCmd := pipe.Incr(ctx, countKey)
	pipe.Expire(ctx, countKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.log.Warn().Err(err).Msg("redis error in rate limiter, allowing request")
		return true, 0
	}

	if incrCmd.Val() > int64(rl.config.Limit) {
		return false, windowStart.Add(rl.config.Window).Sub(now)
	}
	return true, 0
}

// PhoneNumberKey keys the limiter on the phoneNumber field of a JSON body,
// falling back to the client IP.
func PhoneNumberKey(c *fiber.Ctx) string {
	var body struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.BodyParser(&body); err == nil {
		if phone := strings.TrimSpace(body.PhoneNumber); phone != "" {
			return "phone:" + phone
		}
	}
	return "ip:" + c.IP()
}

// Handler rejects a request with 429 once its key exhausted the window.
func (rl *RateLimiter) Handler(keyFunc func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, retryAfter := rl.Allow(c.UserContext(), keyFunc(c))
		if !allowed {
			rl.log.Info().Str("path", c.Path()).Dur("retry_after", retryAfter).Msg("rate limit exceeded")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Seconds())))
			c.Set("X-RateLimit-Reset", rl.now().Add(retryAfter).Format(time.RFC3339))
			return apierrors.RateLimitExceeded
		}
		return c.Next()
	}
}
