package middleware

import (
	"net"
	"strings"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the connection's remote address
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceField uses a string field of a decoded message body, for clients
	// connecting through a proxy that forwards the original address in each message
	IPSourceField IPSourceType = "field"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// Field is the body key to read when Source is IPSourceField
	Field string

	// TrustProxy must be set for IPSourceField to take effect.
	// If false, the remote address is always used.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{Source: IPSourceRemoteAddr}
}

// clientIPMiddleware stores the client IP of every message in its context.
func clientIPMiddleware(config *IPConfig) common.HandlerFunc {
	if config == nil {
		config = DefaultIPConfig()
	}
	return func(req *common.Request, res *common.Response) common.Result {
		if ip := extractClientIP(req, config); ip != "" {
			req.SetContext(scontext.WithClientIP(req.Context(), ip))
		}
		return common.Next()
	}
}

// extractClientIP extracts the client IP from the message based on the configuration
func extractClientIP(req *common.Request, config *IPConfig) string {
	var ip string
	if config.Source == IPSourceField && config.TrustProxy && config.Field != "" {
		if body, ok := req.Body.(map[string]any); ok {
			ip, _ = body[config.Field].(string)
		}
	}
	if ip == "" {
		ip = remoteIP(req.Conn)
	}
	return cleanIP(strings.TrimSpace(ip))
}

func remoteIP(conn common.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	return conn.RemoteAddr().String()
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port
	if strings.HasPrefix(ip, "[") {
		if end := strings.LastIndex(ip, "]"); end > 0 {
			return ip[1:end]
		}
		return ip
	}

	// IPv6 without brackets carries no port
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	if end := strings.LastIndex(ip, ":"); end > 0 {
		return ip[:end]
	}
	return ip
}
