package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/gowebpki/jcs"

	dErrors "attesto/pkg/domain-errors"
)

// MaxSafeInteger is the largest integer a JSON number survives decoding and
// canonicalization with unchanged. Larger integers must be sent as strings.
const MaxSafeInteger = 1<<53 - 1

// ReservedKeyPrefix marks content keys owned by storage. They are never accepted from
// clients and are stripped before signing.
const ReservedKeyPrefix = "_"

// Content is the open set of facts a claim attests. Values are JSON primitives:
// string, number, bool or null.
type Content map[string]any

// Clone returns a shallow copy; values are primitives so this is a full copy.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// Submitted returns the content exactly as the holder submitted it, without any
// storage-reserved keys.
func (c Content) Submitted() Content {
	out := make(Content, len(c))
	for k, v := range c {
		if strings.HasPrefix(k, ReservedKeyPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// Canonical returns the RFC 8785 (JCS) serialization. Two contents with the same
// keys and values always produce the same bytes regardless of map order.
func (c Content) Canonical() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize content: %w", err)
	}
	return canonical, nil
}

// Validate checks the structural rules: at least one field, no reserved keys,
// primitive values only, and no integers that would lose precision.
func (c Content) Validate() error {
	if len(c) == 0 {
		return dErrors.New(dErrors.CodeValidation, "content must not be empty")
	}
	for k, v := range c {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeValidation, "content keys must not be blank")
		}
		if strings.HasPrefix(k, ReservedKeyPrefix) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("content key %q uses the reserved prefix %q", k, ReservedKeyPrefix))
		}
		if !isPrimitive(v) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("content value for %q must be a string, number, boolean or null", k))
		}
		if !isExactNumber(v) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("content value for %q is an integer larger than %d; send it as a string", k, MaxSafeInteger))
		}
	}
	return nil
}

// isExactNumber reports whether v keeps its value through float64 decoding. Non
// numbers are exact. Fractions are signed as their shortest float64 form.
func isExactNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return !isUnsafeInteger(n)
	case float32:
		return !isUnsafeInteger(float64(n))
	case int:
		return n >= -MaxSafeInteger && n <= MaxSafeInteger
	case int64:
		return n >= -MaxSafeInteger && n <= MaxSafeInteger
	case uint:
		return n <= MaxSafeInteger
	case uint64:
		return n <= MaxSafeInteger
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i >= -MaxSafeInteger && i <= MaxSafeInteger
		}
		f, err := n.Float64()
		return err == nil && !isUnsafeInteger(f)
	default:
		return true
	}
}

func isUnsafeInteger(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) > MaxSafeInteger
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}
