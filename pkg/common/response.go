package common

import "sync"

// EncodeFunc turns a structured value into a single line of text.
type EncodeFunc func(v any) (string, error)

// Response is created fresh for every framed message.
// Send is always available; codec middleware may attach an encoder so handlers can use Encode.
type Response struct {
	conn    Conn
	mu      sync.Mutex
	encoder EncodeFunc
	sent    int
}

// NewResponse creates a response bound to conn.
func NewResponse(conn Conn) *Response {
	return &Response{conn: conn}
}

// Send writes text to the connection terminated by a newline.
// Responses always end with "\n" whatever delimiter the server frames input on.
func (r *Response) Send(text string) error {
	if r.conn == nil {
		return ErrNoConnection
	}
	if err := r.conn.SendLine(text); err != nil {
		return err
	}
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
	return nil
}

// SetEncoder attaches a structured-send helper.
func (r *Response) SetEncoder(enc EncodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoder = enc
}

// Encode serializes v with the attached encoder and sends it.
// Returns ErrNoEncoder if no codec middleware attached one.
func (r *Response) Encode(v any) error {
	r.mu.Lock()
	enc := r.encoder
	r.mu.Unlock()
	if enc == nil {
		return ErrNoEncoder
	}
	line, err := enc(v)
	if err != nil {
		return err
	}
	return r.Send(line)
}

// Sent returns the number of lines written through this response.
func (r *Response) Sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}
