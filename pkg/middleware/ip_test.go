package middleware

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

type namedAddr string

func (a namedAddr) Network() string { return "test" }
func (a namedAddr) String() string  { return string(a) }

func TestClientIPFromRemoteAddr(t *testing.T) {
	req, res, _ := newRequest("x")
	assert.Equal(t, common.OutcomeNext, ClientIP(nil)(req, res).Outcome())
	ip, ok := scontext.GetClientIPFromRequest(req)
	assert.True(t, ok)
	assert.Equal(t, "10.1.2.3", ip)
}

func TestClientIPFromField(t *testing.T) {
	body := map[string]any{"client_ip": "192.168.1.9"}

	t.Run("trusted", func(t *testing.T) {
		req, res, _ := newRequest(body)
		ClientIP(&IPConfig{Source: IPSourceField, Field: "client_ip", TrustProxy: true})(req, res)
		ip, _ := scontext.GetClientIPFromRequest(req)
		assert.Equal(t, "192.168.1.9", ip)
	})

	t.Run("untrusted", func(t *testing.T) {
		req, res, _ := newRequest(body)
		ClientIP(&IPConfig{Source: IPSourceField, Field: "client_ip"})(req, res)
		ip, _ := scontext.GetClientIPFromRequest(req)
		assert.Equal(t, "10.1.2.3", ip)
	})

	t.Run("missing field", func(t *testing.T) {
		req, res, _ := newRequest(map[string]any{})
		ClientIP(&IPConfig{Source: IPSourceField, Field: "client_ip", TrustProxy: true})(req, res)
		ip, _ := scontext.GetClientIPFromRequest(req)
		assert.Equal(t, "10.1.2.3", ip)
	})
}

func TestClientIPNonTCPAddr(t *testing.T) {
	req, res, conn := newRequest("x")
	conn.addr = namedAddr("172.16.0.1:9000")
	ClientIP(nil)(req, res)
	ip, _ := scontext.GetClientIPFromRequest(req)
	assert.Equal(t, "172.16.0.1", ip)

	conn.addr = nil
	req, res, _ = newRequest("x")
	req.Conn = conn
	ClientIP(nil)(req, res)
	_, ok := scontext.GetClientIPFromRequest(req)
	assert.False(t, ok)
}

func TestCleanIP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"192.168.1.1", "192.168.1.1"},
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"pipe", "pipe"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanIP(tt.in), tt.in)
	}
	assert.Equal(t, "", remoteIP(nil))
	assert.Equal(t, "::1", remoteIP(&stubConn{addr: &net.TCPAddr{IP: net.IPv6loopback}}))
}
