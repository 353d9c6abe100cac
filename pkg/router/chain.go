package router

import (
	"github.com/Suhaibinator/SLine/pkg/common"
)

// Chain is an immutable sequence of filter and transform steps.
// Every builder method returns a new Chain that extends the receiver by one step;
// the receiver is left unchanged, so a common prefix can be shared by several branches:
//
//	objects := r.IsObject()
//	objects.HasKey("ping").Execute(onPing)
//	objects.HasKey("pong").Execute(onPong)
//
// Chains are linked to their parent rather than copied, so appending is constant time.
type Chain struct {
	router *Router
	parent *Chain
	step   step
	depth  int
}

func (c *Chain) then(s step) *Chain {
	return &Chain{router: c.router, parent: c, step: s, depth: c.depth + 1}
}

// steps returns the chain's steps in application order.
func (c *Chain) steps() []step {
	out := make([]step, c.depth)
	for n := c; n.parent != nil; n = n.parent {
		out[n.depth-1] = n.step
	}
	return out
}

// Len returns the number of steps in the chain.
func (c *Chain) Len() int {
	return c.depth
}

// Filter adds a step that rejects bodies for which pred returns false.
func (c *Chain) Filter(pred Predicate) *Chain {
	if pred == nil {
		panic("router: nil predicate passed to Filter")
	}
	return c.then(filterStep{label: "filter", pred: pred})
}

// IsArray passes slice and array bodies.
func (c *Chain) IsArray() *Chain {
	return c.then(filterStep{label: "isArray", pred: isArray})
}

// IsObject passes string-keyed map bodies. Structs, including decoded
// protobuf messages, are rejected; use Filter for those.
func (c *Chain) IsObject() *Chain {
	return c.then(filterStep{label: "isObject", pred: isObject})
}

// IsString passes string bodies.
func (c *Chain) IsString() *Chain {
	return c.then(filterStep{label: "isString", pred: isString})
}

// HasKey passes mapping bodies that contain key.
func (c *Chain) HasKey(key string) *Chain {
	return c.then(filterStep{label: "hasKey", pred: func(body any) bool {
		_, ok := field(body, key)
		return ok
	}})
}

// StringMatch passes bodies that match m.
func (c *Chain) StringMatch(m Match) *Chain {
	return c.then(filterStep{label: "stringMatch", pred: m.matches})
}

// MatchValue passes mapping bodies whose value at key matches m.
// A missing key never matches.
func (c *Chain) MatchValue(key string, m Match) *Chain {
	return c.then(filterStep{label: "matchValue", pred: func(body any) bool {
		v, ok := field(body, key)
		return ok && m.matches(v)
	}})
}

// EmitKeyValue replaces a string-keyed mapping body with a []KeyValue sorted by key.
// Any other body is rejected.
func (c *Chain) EmitKeyValue() *Chain {
	return c.then(emitKeyValueStep{})
}

// ForEach applies the steps that follow to each element of a sequence body.
// The handler fires once per element that passes, in element order.
// A body that is not a sequence is rejected.
func (c *Chain) ForEach() *Chain {
	return c.then(forEachStep{})
}

// Execute commits the chain with its terminal handler.
// Registrations made after the router has handled its first message are ignored with a warning.
func (c *Chain) Execute(handler common.HandlerFunc) {
	if handler == nil {
		panic("router: nil handler passed to Execute")
	}
	c.router.commit(c.steps(), handler)
}
