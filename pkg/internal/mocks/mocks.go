package mocks

import (
	"net"
	"sync"

	"github.com/Suhaibinator/SLine/pkg/common"
)

// MockAddr is a mock implementation of net.Addr for testing
type MockAddr struct {
	Addr string
}

func (a MockAddr) Network() string { return "tcp" }
func (a MockAddr) String() string  { return a.Addr }

// MockConn is a mock implementation of common.Conn for testing
type MockConn struct {
	IDValue      string
	Remote       string
	IsAuthorized bool
	SendLineFunc func(text string) error
	mu           sync.Mutex
	lines        []string
	closeCount   int
}

// NewMockConn creates a MockConn with a fixed ID and remote address
func NewMockConn() *MockConn {
	return &MockConn{IDValue: "conn-1", Remote: "192.0.2.10:40000"}
}

func (c *MockConn) ID() string { return c.IDValue }

func (c *MockConn) RemoteAddr() net.Addr { return MockAddr{Addr: c.Remote} }

func (c *MockConn) Authorized() bool { return c.IsAuthorized }

// SendLine implements common.Conn
func (c *MockConn) SendLine(text string) error {
	if c.SendLineFunc != nil {
		if err := c.SendLineFunc(text); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, text)
	return nil
}

// Close implements common.Conn
func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	return nil
}

// Lines returns a copy of every line sent so far
func (c *MockConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// CloseCount returns the number of times Close was called
func (c *MockConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

var _ common.Conn = (*MockConn)(nil)
