package server

import (
	"context"
	"time"

	"github.com/abisalde/creator-dashboard/internal/configs"
	"github.com/abisalde/creator-dashboard/internal/creator/backend"
	"github.com/abisalde/creator-dashboard/internal/creator/cookies"
	creatorhttp "github.com/abisalde/creator-dashboard/internal/creator/handler/http"
	"github.com/abisalde/creator-dashboard/internal/database"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	"github.com/abisalde/creator-dashboard/internal/worker"
	app_logger "github.com/abisalde/creator-dashboard/pkg/logger"
	"github.com/rs/zerolog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const redisConnectTimeout = 5 * time.Second

type AppConfig struct {
	HTTPPort string
	AppEnv   string
}

func InitConfig(env string) (*configs.Config, *AppConfig, zerolog.Logger, error) {
	cfg, err := configs.Load(env)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	log := app_logger.New(cfg.Server.Env, cfg.Log.Level)

	appConfig := &AppConfig{
		HTTPPort: cfg.Server.Port,
		AppEnv:   cfg.Server.Env,
	}
	return cfg, appConfig, log, nil
}

// SetupRedis returns nil without error when no redis address is configured.
func SetupRedis(ctx context.Context, cfg *configs.Config, log zerolog.Logger) (*database.RedisCache, error) {
	if !cfg.RedisEnabled() {
		log.Warn().Msg("redis not configured: summary cache, OTP rate limit and profile events disabled")
		return nil, nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	return database.InitRedis(ctxWithTimeout, cfg, log)
}

// SetupCreatorHandler wires the proxy routes to the function service and,
// when redis is up, to the summary cache, the OTP limiter and the profile
// event stream. The returned stop func ends the invalidation worker.
func SetupCreatorHandler(cfg *configs.Config, redisCache *database.RedisCache, log zerolog.Logger) (*creatorhttp.CreatorHandler, func(), error) {
	client, err := backend.NewClient(cfg.Backend.BaseURL, log, backend.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		return nil, nil, err
	}

	stop := func() {}
	var opts []creatorhttp.Option

	if redisCache != nil {
		rdb := redisCache.RawClient()

		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Limit:  cfg.RateLimit.OTPRequests,
			Window: cfg.RateLimit.OTPWindow,
			Prefix: middleware.DefaultOTPRateLimit().Prefix,
		}, rdb, log)

		opts = append(opts,
			creatorhttp.WithSummaryCache(redisCache, cfg.Cache.SummaryTTL),
			creatorhttp.WithProfileEvents(worker.NewProfileEventPublisher(rdb)),
			creatorhttp.WithOTPLimiter(limiter.Handler(middleware.PhoneNumberKey)),
		)

		invalidator := worker.NewSummaryInvalidationWorker(rdb, redisCache, log)
		consumerCtx, consumerCancel := context.WithCancel(context.Background())
		go invalidator.Start(consumerCtx)
		stop = consumerCancel
	}

	store := cookies.NewStore(cfg.Cookies.Secure)
	return creatorhttp.NewCreatorHandler(client, store, log, opts...), stop, nil
}

func SetupFiberApp(cfg *configs.Config, h *creatorhttp.CreatorHandler, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:                 "Creator Dashboard",
		ErrorHandler:            middleware.ErrorHandler(log),
		ProxyHeader:             fiber.HeaderXForwardedFor,
		CaseSensitive:           true,
		EnableTrustedProxyCheck: len(cfg.Server.TrustedProxies) > 0,
		TrustedProxies:          cfg.Server.TrustedProxies,
	})

	app.Use(recover.New())

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessProbe: func(c *fiber.Ctx) bool {
			return true
		},
		LivenessEndpoint: "/health",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${ip}]:${port} ${status} - ${method} ${path}\n",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderRequestID,
		AllowCredentials: true,
	}))

	app.Use(middleware.RequestContext)
	app.Use(middleware.RouteGate())

	h.RegisterRoutes(app)

	return app
}
