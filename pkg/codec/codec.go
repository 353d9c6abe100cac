// Package codec provides encoding and decoding of message lines for different data formats.
package codec

import (
	"github.com/Suhaibinator/SLine/pkg/common"
)

// Codec defines an interface for turning message lines into values and values into lines.
// The framework includes JSON, protobuf JSON and base64 protobuf implementations.
type Codec[T any] interface {
	// NewRequest creates a new zero-value instance of the decoded type T.
	NewRequest() T

	// Decode parses one message line into a value of type T.
	Decode(line string) (T, error)

	// Encode serializes v into a single line. The result never contains a newline.
	Encode(v any) (string, error)
}

// Parser returns middleware that decodes each raw message body with c and attaches
// c's encoder to the response, so later handlers work with structured bodies and can
// reply with res.Encode. Bodies that were already decoded pass through unchanged.
// A decoding failure fails the message with a KindHandler error.
func Parser[T any](c Codec[T]) common.HandlerFunc {
	if c == nil {
		panic("codec: nil codec passed to Parser")
	}
	return func(req *common.Request, res *common.Response) common.Result {
		res.SetEncoder(c.Encode)
		line, ok := req.Body.(string)
		if !ok {
			return common.Next()
		}
		v, err := c.Decode(line)
		if err != nil {
			return common.Fail(common.NewError(common.KindHandler, "decode", err))
		}
		req.Body = v
		return common.Next()
	}
}
