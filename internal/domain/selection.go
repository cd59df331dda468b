package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the value shape a filter accepts.
type Kind string

const (
	// KindMultiselect takes a set of accepted string values.
	KindMultiselect Kind = "multiselect"
	// KindRange takes [lowerBound, upperBound], each side optional.
	KindRange Kind = "range"
	// KindGroup takes flat "name=VALUE" tokens (flags and sub-ranges).
	KindGroup Kind = "group"
	// KindCodeSet takes per-bucket manual codes plus an optional file label.
	KindCodeSet Kind = "codeset"
	// KindGeo takes a set of geometry labels.
	KindGeo Kind = "geo"
)

// FilterSpec is the static metadata of one filter unit: UI contract, not
// behavior.
type FilterSpec struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
}

// RangeBounds is a requested numeric interval; nil sides are unconstrained.
type RangeBounds struct {
	Lower *float64
	Upper *float64
}

// Empty reports whether neither bound is set.
func (r RangeBounds) Empty() bool { return r.Lower == nil && r.Upper == nil }

// CodeBucket holds one logical code bucket of a code-set selection.
type CodeBucket struct {
	Manual []string
	File   string
}

// Advanced holds the advanced request options that sit outside the
// per-filter selection.
type Advanced struct {
	ExcludeSeen    bool   `json:"excludeSeen"`
	DuplicatesPath string `json:"duplicatesPath"`
}

// Selection is the normalized, strongly-typed "what to filter by" payload.
// It is built once at the request boundary; filters never see raw JSON.
type Selection struct {
	values map[string][]string
	ranges map[string]RangeBounds
	codes  map[string]map[string]CodeBucket
}

// Values returns the token/value set for a multiselect, group or geo filter.
func (s Selection) Values(key string) []string { return s.values[key] }

// Range returns the requested bounds for a range filter.
func (s Selection) Range(key string) RangeBounds { return s.ranges[key] }

// CodeBuckets returns the bucket map for a code-set filter.
func (s Selection) CodeBuckets(key string) map[string]CodeBucket { return s.codes[key] }

// NormalizeSelection validates a loosely-typed selection payload against the
// filter specs and produces a Selection. Unknown keys are ignored for forward
// compatibility; a value whose shape does not match its filter kind fails
// with ErrInvalidSelection.
func NormalizeSelection(raw map[string]json.RawMessage, specs []FilterSpec) (Selection, error) {
	sel := Selection{
		values: make(map[string][]string),
		ranges: make(map[string]RangeBounds),
		codes:  make(map[string]map[string]CodeBucket),
	}
	byKey := make(map[string]FilterSpec, len(specs))
	for _, sp := range specs {
		byKey[sp.Key] = sp
	}

	for key, msg := range raw {
		sp, ok := byKey[key]
		if !ok {
			continue
		}
		switch sp.Kind {
		case KindMultiselect, KindGroup, KindGeo:
			vals, err := decodeStringList(msg)
			if err != nil {
				return Selection{}, fmt.Errorf("%w: %s: %v", ErrInvalidSelection, key, err)
			}
			if len(vals) > 0 {
				sel.values[key] = vals
			}
		case KindRange:
			bounds, err := decodeRange(msg)
			if err != nil {
				return Selection{}, fmt.Errorf("%w: %s: %v", ErrInvalidSelection, key, err)
			}
			if !bounds.Empty() {
				sel.ranges[key] = bounds
			}
		case KindCodeSet:
			buckets, err := decodeCodeBuckets(msg)
			if err != nil {
				return Selection{}, fmt.Errorf("%w: %s: %v", ErrInvalidSelection, key, err)
			}
			if len(buckets) > 0 {
				sel.codes[key] = buckets
			}
		default:
			return Selection{}, fmt.Errorf("%w: %s: unknown filter kind %q", ErrInvalidSelection, key, sp.Kind)
		}
	}
	return sel, nil
}

func decodeStringList(msg json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(msg, &list); err != nil {
		return nil, fmt.Errorf("expected a string array")
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// decodeRange accepts the [min, max] pair the dashboard sends: each side a
// number, a numeric string, or "" for "no constraint on that side".
func decodeRange(msg json.RawMessage) (RangeBounds, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(msg, &pair); err != nil {
		return RangeBounds{}, fmt.Errorf("expected a [min, max] array")
	}
	if len(pair) > 2 {
		return RangeBounds{}, fmt.Errorf("expected at most 2 bounds, got %d", len(pair))
	}
	var bounds RangeBounds
	for i, raw := range pair {
		v, err := decodeBound(raw)
		if err != nil {
			return RangeBounds{}, err
		}
		if i == 0 {
			bounds.Lower = v
		} else {
			bounds.Upper = v
		}
	}
	if bounds.Lower != nil && bounds.Upper != nil && *bounds.Lower > *bounds.Upper {
		return RangeBounds{}, fmt.Errorf("lower bound %v above upper bound %v", *bounds.Lower, *bounds.Upper)
	}
	return bounds, nil
}

func decodeBound(raw json.RawMessage) (*float64, error) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return &num, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("bound must be a number or numeric string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bound %q is not numeric", s)
	}
	return &num, nil
}

func decodeCodeBuckets(msg json.RawMessage) (map[string]CodeBucket, error) {
	var raw map[string]struct {
		Codes []string `json:"codes"`
		File  string   `json:"file"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, fmt.Errorf("expected {bucket: {codes, file}} object")
	}
	out := make(map[string]CodeBucket, len(raw))
	for bucket, entry := range raw {
		b := CodeBucket{File: strings.TrimSpace(entry.File)}
		seen := make(map[string]struct{}, len(entry.Codes))
		for _, c := range entry.Codes {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			b.Manual = append(b.Manual, c)
		}
		if len(b.Manual) > 0 || b.File != "" {
			out[bucket] = b
		}
	}
	return out, nil
}
