package provider

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

type optionKind int

const (
	kindFloat optionKind = iota
	kindInt
	kindString
)

// optionSpec describes one provider option: its type and, for strings,
// the closed set of accepted values (empty = any string).
type optionSpec struct {
	kind    optionKind
	choices []string
	min     float64 // lower bound for numeric options
}

// options is a typed, mutex-guarded option table shared by all variants.
type options struct {
	mu     sync.RWMutex
	specs  map[string]optionSpec
	values map[string]any
}

func newOptions() *options {
	return &options{
		specs:  make(map[string]optionSpec),
		values: make(map[string]any),
	}
}

func (o *options) define(name string, spec optionSpec, initial any) {
	o.specs[name] = spec
	o.values[name] = initial
}

func (o *options) snapshot() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

func (o *options) set(name string, value any) bool {
	spec, ok := o.specs[name]
	if !ok {
		return false
	}
	v, ok := coerce(spec, value)
	if !ok {
		return false
	}
	o.mu.Lock()
	o.values[name] = v
	o.mu.Unlock()
	return true
}

func (o *options) floatValue(name string) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, _ := o.values[name].(float64)
	return f
}

func (o *options) intValue(name string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, _ := o.values[name].(int)
	return n
}

func (o *options) stringValue(name string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, _ := o.values[name].(string)
	return s
}

// applySettings sets every recognised option in opts; unknown keys and
// values that do not coerce are skipped.
func (o *options) applySettings(opts map[string]any) {
	for k, v := range opts {
		o.set(k, v)
	}
}

func coerce(spec optionSpec, value any) (any, bool) {
	switch spec.kind {
	case kindFloat:
		f, ok := toFloat(value)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < spec.min {
			return nil, false
		}
		return f, true
	case kindInt:
		n, ok := toInt(value)
		if !ok || float64(n) < spec.min {
			return nil, false
		}
		return n, true
	case kindString:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if len(spec.choices) == 0 {
			return s, s != ""
		}
		for _, c := range spec.choices {
			if strings.EqualFold(c, s) {
				return c, true
			}
		}
		return nil, false
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

// sleepCtx waits for the given number of seconds or until ctx is done.
func sleepCtx(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
