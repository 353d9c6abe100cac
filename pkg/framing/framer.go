// Package framing splits an arbitrarily chunked text stream into delimiter-terminated messages.
package framing

import (
	"fmt"
	"strings"

	"github.com/Suhaibinator/SLine/pkg/common"
)

// DefaultDelimiter is the delimiter used when none is configured.
const DefaultDelimiter = "\n"

// DefaultMaxSize is the default limit on the carried-over partial message, in bytes.
const DefaultMaxSize = 1 << 20

// Framer accumulates chunks and emits complete messages.
// A Framer belongs to exactly one connection and is not safe for concurrent use.
type Framer struct {
	delimiter string
	maxSize   int
	partial   string
}

// New creates a Framer for delimiter. An empty delimiter means DefaultDelimiter.
// maxSize bounds the partial buffer; zero or negative disables the bound.
func New(delimiter string, maxSize int) *Framer {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Framer{delimiter: delimiter, maxSize: maxSize}
}

// Delimiter returns the configured delimiter.
func (f *Framer) Delimiter() string {
	return f.delimiter
}

// Pending returns the partial message carried over from previous chunks.
func (f *Framer) Pending() string {
	return f.partial
}

// Feed appends chunk to the pending partial message and returns every message the
// delimiter completes, in order. Whatever follows the last delimiter becomes the new
// partial message. A chunk without a delimiter only grows the partial message.
//
// A delimiter that straddles two chunks is still recognised, so the messages produced
// do not depend on how the stream was chunked.
//
// If the partial message would exceed the maximum size it is discarded and an error of
// kind KindFraming is returned along with any messages completed before the overflow.
func (f *Framer) Feed(chunk string) ([]string, error) {
	data := f.partial + chunk
	// only the tail of the old partial can hold the start of a delimiter
	scan := max(0, len(f.partial)-len(f.delimiter)+1)

	var messages []string
	start := 0
	for {
		i := strings.Index(data[scan:], f.delimiter)
		if i < 0 {
			break
		}
		end := scan + i
		messages = append(messages, data[start:end])
		start = end + len(f.delimiter)
		scan = start
	}

	rest := data[start:]
	if f.maxSize > 0 && len(rest) > f.maxSize {
		f.partial = ""
		return messages, common.NewError(common.KindFraming, "feed",
			fmt.Errorf("%w: %d bytes without delimiter (max %d)", common.ErrBufferOverflow, len(rest), f.maxSize))
	}
	f.partial = rest
	return messages, nil
}

// Flush returns whatever remains in the buffer as a final message and resets it.
// The result may be empty; callers ignore empty messages.
func (f *Framer) Flush() string {
	msg := f.partial
	f.partial = ""
	return msg
}
