// Package router provides conditional message handlers for the SLine pipeline.
// Handlers are registered behind chains of declarative filters and transforms and the
// router compiles them into a single middleware that can be mounted with Use.
package router

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Suhaibinator/SLine/pkg/common"
	"go.uber.org/zap"
)

// commit binds a completed chain to its terminal handler.
type commit struct {
	steps   []step
	handler common.HandlerFunc
}

// Router holds the commit store and replays it against every message body.
// The zero value is not usable; create one with New.
//
// The builder methods on Router start a chain from the empty step sequence, so
// r.IsArray().Execute(h) registers h for array bodies.
type Router struct {
	logger *zap.Logger
	root   *Chain

	mu       sync.Mutex
	commits  []commit
	compiled atomic.Bool
	once     sync.Once
	snapshot []commit
}

// New creates a Router. A nil logger disables logging.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{logger: logger}
	r.root = &Chain{router: r}
	return r
}

func (r *Router) commit(steps []step, handler common.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compiled.Load() {
		r.logger.Warn("Handler registered after the router started serving; ignoring",
			zap.Int("steps", len(steps)))
		return
	}
	r.commits = append(r.commits, commit{steps: steps, handler: handler})
}

func (r *Router) compile() []commit {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.compiled.Store(true)
		r.snapshot = slices.Clone(r.commits)
		r.logger.Debug("Router compiled", zap.Int("handlers", len(r.snapshot)))
	})
	return r.snapshot
}

// Len returns the number of committed handlers.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

// Handle is the compiled router middleware. Mount it with Use.
//
// Every committed chain is replayed against req.Body in registration order. When a chain
// passes, its handler runs with a shallow copy of req carrying the transformed body.
// A handler returning Next lets the router try the following chain; once all chains have
// been tried the router returns Next. A handler returning Stop or Fail ends the router
// with that result. Several handlers may therefore fire for one message.
func (r *Router) Handle(req *common.Request, res *common.Response) common.Result {
	for i, c := range r.compile() {
		result := replay(c.steps, req.Body, func(body any) common.Result {
			if ce := r.logger.Check(zap.DebugLevel, "Router handler matched"); ce != nil {
				ce.Write(zap.Int("handler_index", i), zap.String("conn_id", connID(req)))
			}
			return common.Call(c.handler, req.WithBody(body), res)
		})
		if result.Outcome() != common.OutcomeNext {
			return result
		}
	}
	return common.Next()
}

func connID(req *common.Request) string {
	if req.Conn == nil {
		return ""
	}
	return req.Conn.ID()
}

// Chain returns the empty chain every registration starts from.
func (r *Router) Chain() *Chain { return r.root }

// Filter starts a chain with a custom predicate. See Chain.Filter.
func (r *Router) Filter(pred Predicate) *Chain { return r.root.Filter(pred) }

// IsArray starts a chain that passes sequence bodies.
func (r *Router) IsArray() *Chain { return r.root.IsArray() }

// IsObject starts a chain that passes map and struct bodies.
func (r *Router) IsObject() *Chain { return r.root.IsObject() }

// IsString starts a chain that passes string bodies.
func (r *Router) IsString() *Chain { return r.root.IsString() }

// HasKey starts a chain that passes mappings containing key.
func (r *Router) HasKey(key string) *Chain { return r.root.HasKey(key) }

// StringMatch starts a chain that passes bodies matching m.
func (r *Router) StringMatch(m Match) *Chain { return r.root.StringMatch(m) }

// MatchValue starts a chain that passes mappings whose key matches m.
func (r *Router) MatchValue(key string, m Match) *Chain { return r.root.MatchValue(key, m) }

// EmitKeyValue starts a chain that expands mapping bodies into key/value pairs.
func (r *Router) EmitKeyValue() *Chain { return r.root.EmitKeyValue() }

// ForEach starts a chain that applies the following steps to each element.
func (r *Router) ForEach() *Chain { return r.root.ForEach() }

// Execute registers handler for every non-nil body.
func (r *Router) Execute(handler common.HandlerFunc) { r.root.Execute(handler) }
