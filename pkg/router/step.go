package router

import (
	"reflect"
	"sort"

	"github.com/Suhaibinator/SLine/pkg/common"
)

// Predicate decides whether a body passes a filter step.
type Predicate func(body any) bool

// KeyValue is one entry of a mapping body expanded by EmitKeyValue.
type KeyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// step is one operation of a context chain. The set of implementations is closed:
// filterStep, emitKeyValueStep and forEachStep.
type step interface {
	name() string
}

type filterStep struct {
	label string
	pred  Predicate
}

type emitKeyValueStep struct{}

type forEachStep struct{}

func (s filterStep) name() string     { return s.label }
func (emitKeyValueStep) name() string { return "emitKeyValue" }
func (forEachStep) name() string      { return "forEach" }

// replay runs steps against body and calls fire for every value that survives.
// A rejected value yields Next so the caller moves on. Replay ends early when
// fire returns anything other than Next.
func replay(steps []step, body any, fire func(body any) common.Result) common.Result {
	for i, s := range steps {
		if body == nil {
			return common.Next()
		}
		switch s := s.(type) {
		case filterStep:
			if !s.pred(body) {
				return common.Next()
			}
		case emitKeyValueStep:
			pairs, ok := keyValuePairs(body)
			if !ok {
				return common.Next()
			}
			body = pairs
		case forEachStep:
			elems, ok := elements(body)
			if !ok {
				return common.Next()
			}
			rest := steps[i+1:]
			for _, elem := range elems {
				if r := replay(rest, elem, fire); r.Outcome() != common.OutcomeNext {
					return r
				}
			}
			return common.Next()
		default:
			panic("router: unknown step " + s.name())
		}
	}
	if body == nil {
		return common.Next()
	}
	return fire(body)
}

func indirect(body any) reflect.Value {
	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isArray(body any) bool {
	switch indirect(body).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// isObject reports whether body is a string-keyed mapping, the only shape
// field and keyValuePairs can read.
func isObject(body any) bool {
	v := indirect(body)
	return v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String
}

func isString(body any) bool {
	_, ok := body.(string)
	return ok
}

// field looks key up in a mapping body with string keys.
func field(body any, key string) (any, bool) {
	if m, ok := body.(map[string]any); ok {
		v, found := m[key]
		return v, found
	}
	v := indirect(body)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	e := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
	if !e.IsValid() {
		return nil, false
	}
	return e.Interface(), true
}

// keyValuePairs expands a string-keyed mapping into pairs sorted by key.
func keyValuePairs(body any) ([]KeyValue, bool) {
	v := indirect(body)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	pairs := make([]KeyValue, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, KeyValue{Key: iter.Key().String(), Value: iter.Value().Interface()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, true
}

func elements(body any) ([]any, bool) {
	switch b := body.(type) {
	case []any:
		return b, true
	case []KeyValue:
		out := make([]any, len(b))
		for i, kv := range b {
			out[i] = kv
		}
		return out, true
	}
	v := indirect(body)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}
