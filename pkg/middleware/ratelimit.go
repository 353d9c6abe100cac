package middleware

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// UberRateLimiter implements common.RateLimiter using Uber's ratelimit library (leaky bucket).
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
}

// NewUberRateLimiter creates a new rate limiter using Uber's ratelimit library.
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{}
}

// getLimiter gets or creates a limiter for key at rps messages per second.
// The rate is part of the map key so one client key can carry several limits.
func (u *UberRateLimiter) getLimiter(key string, rps int) ratelimit.Limiter {
	compositeKey := key + "-" + strconv.Itoa(rps)

	if limiter, ok := u.limiters.Load(compositeKey); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if limiter, ok := u.limiters.Load(compositeKey); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(rps)
	u.limiters.Store(compositeKey, limiter)
	return limiter
}

var _ common.RateLimiter = (*UberRateLimiter)(nil)

// Allow takes a slot from the leaky bucket for key.
// Take blocks until the slot is due, so a client sending too fast is slowed down
// and the late message is reported as not allowed. The rate is at least one message per second.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	rps := 1
	if window > 0 {
		rps = max(int(float64(limit)/window.Seconds()), 1)
	}

	limiter := u.getLimiter(key, rps)

	now := time.Now()
	waitTime := limiter.Take().Sub(now)

	remaining := limit
	if window > 0 {
		remaining = max(int(float64(limit)*(1-waitTime.Seconds()/window.Seconds())), 0)
	}

	// Take may report a time marginally in the future even when not limited.
	allowed := waitTime <= time.Millisecond

	return allowed, remaining, max(waitTime, 0)
}

// RateLimit enforces config.Limit messages per config.Window for each client key.
// The key comes from config.KeyExtractor, else the client IP stored by ClientIP,
// else the connection's remote address. Messages over the limit are passed to
// config.ExceededHandler, or dropped when it is nil.
// A nil config yields a pass-through middleware; a nil limiter uses an UberRateLimiter.
func RateLimit(config *common.RateLimitConfig, limiter common.RateLimiter, logger *zap.Logger) common.HandlerFunc {
	if config == nil {
		return func(req *common.Request, res *common.Response) common.Result {
			return common.Next()
		}
	}
	if limiter == nil {
		limiter = NewUberRateLimiter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(req *common.Request, res *common.Response) common.Result {
		key, err := rateLimitKey(req, config)
		if err != nil {
			logger.Error("Failed to extract rate limit key", zap.Error(err))
			return common.Fail(common.NewError(common.KindHandler, "rate limit key", err))
		}
		if config.BucketName != "" {
			key = config.BucketName + ":" + key
		}

		allowed, remaining, reset := limiter.Allow(key, config.Limit, config.Window)
		if allowed {
			return common.Next()
		}

		logger.Warn("Rate limit exceeded",
			zap.String("key", key),
			zap.Int("remaining", remaining),
			zap.Duration("reset", reset),
			zap.String("trace_id", scontext.GetTraceIDFromRequest(req)),
		)
		if config.ExceededHandler != nil {
			return config.ExceededHandler(req, res)
		}
		return common.Stop()
	}
}

func rateLimitKey(req *common.Request, config *common.RateLimitConfig) (string, error) {
	if config.KeyExtractor != nil {
		return config.KeyExtractor(req)
	}
	if ip, ok := scontext.GetClientIPFromRequest(req); ok && ip != "" {
		return ip, nil
	}
	return cleanIP(remoteIP(req.Conn)), nil
}
