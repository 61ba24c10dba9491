package ratelimit

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/NutriFox/internal/pkg/cache"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
)

const (
	defaultMax        = 60
	defaultAddressMax = 300
)

// Config controls the API rate limiters. Max applies per authenticated user,
// AddressMax per client address before authentication.
type Config struct {
	Max        int
	AddressMax int
	Window     time.Duration
	Storage    fiber.Storage
}

// LoadConfig reads RATE_LIMIT_MAX, RATE_LIMIT_IP_MAX and RATE_LIMIT_WINDOW.
// Counters are kept in Redis unless RATE_LIMIT_REDIS=false.
func LoadConfig() Config {
	cfg := Config{
		Max:        envInt("RATE_LIMIT_MAX", defaultMax),
		AddressMax: envInt("RATE_LIMIT_IP_MAX", defaultAddressMax),
		Window:     env.GetEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
	if env.GetEnvBool("RATE_LIMIT_REDIS", true) {
		cfg.Storage = NewRedisStorage()
	}
	return cfg
}

// NewRedisStorage opens limiter storage on the cache server, database 1
// (the cache uses database 0).
func NewRedisStorage() fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port, _ := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}
	if port == 0 {
		port = 6379
	}

	log.Infof("[RateLimit] using redis storage at %s:%d", host, port)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

// NewAddressLimiter limits requests per client address. It runs before
// authentication, so presented API keys do not influence the bucket.
func NewAddressLimiter(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()
	return limiter.New(limiter.Config{
		Max:        cfg.AddressMax,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ip:" + usercontext.ClientIP(c)
		},
		LimitReached: limitReached,
	})
}

// NewCallerLimiter limits authenticated callers per user id. Anonymous
// requests pass through; they are covered by the address limiter.
func NewCallerLimiter(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return !usercontext.IsLoggedIn(c)
		},
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + usercontext.GetUserID(c)
		},
		LimitReached: limitReached,
	})
}

// TrustProxies applies TRUSTED_PROXIES (comma separated addresses or CIDRs)
// and PROXY_HEADER to an app config. Without trusted proxies forwarding
// headers are ignored.
func TrustProxies(cfg *fiber.Config) {
	var proxies []string
	for _, p := range strings.Split(env.GetEnv("TRUSTED_PROXIES", ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	if len(proxies) == 0 {
		cfg.ProxyHeader = ""
		return
	}
	cfg.ProxyHeader = strings.TrimSpace(env.GetEnv("PROXY_HEADER", ""))
	if cfg.ProxyHeader == "" {
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
	}
	cfg.EnableIPValidation = true
}

func (cfg Config) withDefaults() Config {
	if cfg.Max <= 0 {
		cfg.Max = defaultMax
	}
	if cfg.AddressMax <= 0 {
		cfg.AddressMax = defaultAddressMax
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return cfg
}

func limitReached(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "rate_limited",
		"message": "too many requests",
	})
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(env.GetEnv(key, "")))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
