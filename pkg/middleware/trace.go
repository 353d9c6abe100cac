package middleware

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// IDGenerator hands out trace IDs from a buffer of precomputed UUIDs.
// A background goroutine keeps the buffer filled until Stop is called.
type IDGenerator struct {
	idChan   chan string
	size     int
	done     chan struct{}
	stopOnce sync.Once
}

// generatorRegistry shares generators between middleware with the same buffer size.
var generatorRegistry = struct {
	sync.Mutex
	generators map[int]*IDGenerator
}{
	generators: make(map[int]*IDGenerator),
}

const defaultBufferSize = 1024

// NewIDGenerator creates an IDGenerator holding up to bufferSize IDs.
// The buffer is filled before NewIDGenerator returns.
func NewIDGenerator(bufferSize int) *IDGenerator {
	if bufferSize < 1 {
		bufferSize = 1
	}
	g := &IDGenerator{
		idChan: make(chan string, bufferSize),
		size:   bufferSize,
		done:   make(chan struct{}),
	}
	for i := 0; i < bufferSize; i++ {
		g.idChan <- uuid.NewString()
	}
	go g.fill()
	return g
}

// GetDefaultGenerator returns the shared generator with the default buffer size.
func GetDefaultGenerator() *IDGenerator {
	return getOrCreateGenerator(defaultBufferSize)
}

func getOrCreateGenerator(bufferSize int) *IDGenerator {
	generatorRegistry.Lock()
	defer generatorRegistry.Unlock()
	if gen, ok := generatorRegistry.generators[bufferSize]; ok {
		return gen
	}
	gen := NewIDGenerator(bufferSize)
	generatorRegistry.generators[bufferSize] = gen
	return gen
}

func (g *IDGenerator) fill() {
	for {
		id := uuid.NewString()
		select {
		case g.idChan <- id:
		case <-g.done:
			return
		}
		// Refill in bursts once the buffer runs low, otherwise trickle.
		if len(g.idChan) > g.size/10 {
			select {
			case <-time.After(time.Millisecond):
			case <-g.done:
				return
			}
		}
	}
}

// GetID returns a precomputed ID, blocking until one is available.
// After Stop it generates IDs on demand once the buffer is drained.
func (g *IDGenerator) GetID() string {
	select {
	case id := <-g.idChan:
		return id
	case <-g.done:
		return g.GetIDNonBlocking()
	}
}

// GetIDNonBlocking returns a precomputed ID, or a freshly generated one if the buffer is empty.
func (g *IDGenerator) GetIDNonBlocking() string {
	select {
	case id := <-g.idChan:
		return id
	default:
		return uuid.NewString()
	}
}

// Stop terminates the background filler. It is safe to call more than once.
func (g *IDGenerator) Stop() {
	g.stopOnce.Do(func() { close(g.done) })
}

// traceMiddleware assigns every message a trace ID from the default generator.
// A trace ID already present in the context is kept.
func traceMiddleware() common.HandlerFunc {
	return traceWith(GetDefaultGenerator())
}

// traceMiddlewareWithConfig is traceMiddleware with a generator of the given buffer size.
// Generators with the same buffer size are shared.
func traceMiddlewareWithConfig(bufferSize int) common.HandlerFunc {
	return traceWith(getOrCreateGenerator(bufferSize))
}

func traceWith(generator *IDGenerator) common.HandlerFunc {
	return func(req *common.Request, res *common.Response) common.Result {
		if scontext.GetTraceIDFromRequest(req) == "" {
			req.SetContext(scontext.WithTraceID(req.Context(), generator.GetIDNonBlocking()))
		}
		return common.Next()
	}
}
