package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourierick/solifin/member-service/internal/config"
	"go.uber.org/zap"
)

// RateLimiter is a sliding-window in-memory limiter keyed by member or IP.
type RateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	lastSweep time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)
	rl.sweep(now, windowStart)

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// sweep drops keys with no request inside the window, at most once per window.
func (rl *RateLimiter) sweep(now, windowStart time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(rl.requests, key)
		}
	}
}

// RateLimitMiddleware rejects requests over the limiter's budget.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ctxUserID)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, please try again later",
			})
			return
		}

		c.Next()
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	db      Pinger
	logger  *zap.Logger
	quoteRL *RateLimiter
	renewRL *RateLimiter
}

func NewServer(cfg *config.Config, db Pinger, renewals RenewalService, referrals ReferralService, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger.Named("http")))

	s := &Server{
		router:  router,
		handler: NewHandler(renewals, referrals),
		cfg:     cfg,
		db:      db,
		logger:  logger,
		// Quotes follow every keystroke of the dialog; renewals are rare.
		quoteRL: NewRateLimiter(120, time.Minute),
		renewRL: NewRateLimiter(5, time.Minute),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	{
		user.GET("/wallet/balance", s.handler.GetWalletBalance)

		packs := user.Group("/packs/:id")
		{
			packs.GET("/referrals/tree", s.handler.GetReferralTree)
			packs.GET("/stats", s.handler.GetPackStats)

			packs.POST("/renewal/quote", RateLimitMiddleware(s.quoteRL), s.handler.QuoteRenewal)
			packs.POST("/renewal/recalculate", RateLimitMiddleware(s.quoteRL), s.handler.RecalculateRenewal)
			packs.POST("/renew", RateLimitMiddleware(s.renewRL), s.handler.RenewPack)
			packs.GET("/renewals", s.handler.GetRenewalHistory)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("health check: database unreachable", zap.Error(err))
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "member-service",
	})
}

// Handler exposes the router, mostly for tests and http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
