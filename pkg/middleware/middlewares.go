package middleware

// Public middleware constructors exposed via variables.
// The implementations are kept private within their respective files.
var (
	// From middleware.go
	Logging        = logging
	MaxMessageSize = maxMessageSize

	// From trace.go
	Trace           = traceMiddleware
	TraceWithBuffer = traceMiddlewareWithConfig

	// From ip.go
	ClientIP = clientIPMiddleware
)

// Note: RateLimit and the authorization middleware remain public in their own files
// (ratelimit.go, auth.go), as do supporting types like IDGenerator, IPConfig and
// UberRateLimiter.
