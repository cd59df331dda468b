package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Serialized empties left behind by the upstream exporter. A cell holding one
// of these carries no value.
var emptyMarkers = map[string]struct{}{
	"[]":   {},
	"{}":   {},
	"null": {},
	"none": {},
}

// EmptyCell reports whether a cell holds no usable value.
func EmptyCell(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	_, ok := emptyMarkers[strings.ToLower(v)]
	return ok
}

// parseNumber parses a numeric cell, tolerating a comma decimal separator.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return f, err == nil
}

// cellBool interprets the boolean spellings that occur in the datasets.
func cellBool(v string) (val, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "ja", "yes", "waar", "1":
		return true, true
	case "false", "nee", "no", "onwaar", "0":
		return false, true
	}
	return false, false
}

// TokenizeCodes splits a code cell: either a single code or a stringified
// list like ['0161','0162'].
func TokenizeCodes(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if !strings.HasPrefix(cell, "[") {
		return []string{strings.Trim(cell, `'" `)}
	}
	cell = strings.TrimSuffix(strings.TrimPrefix(cell, "["), "]")
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(strings.TrimSpace(p), `'"`); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// groupTokens splits "name=value" selection entries into per-name value
// lists. Malformed entries are dropped.
func groupTokens(values []string) map[string][]string {
	out := make(map[string][]string)
	for _, v := range values {
		name, val, ok := strings.Cut(v, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.TrimSpace(val)
		if name == "" || val == "" {
			continue
		}
		out[name] = append(out[name], val)
	}
	return out
}

// boolFlag resolves a TRUE/FALSE token. Selecting both spellings for one
// flag cancels it out.
func boolFlag(tok map[string][]string, name string) (want, ok bool) {
	var sawTrue, sawFalse bool
	for _, v := range tok[name] {
		switch strings.ToUpper(v) {
		case "TRUE":
			sawTrue = true
		case "FALSE":
			sawFalse = true
		}
	}
	if sawTrue == sawFalse {
		return false, false
	}
	return sawTrue, true
}

// numberToken resolves the first numeric value of a token, warning about the
// ones that do not parse.
func numberToken(tok map[string][]string, key, name string, warn Warn) (float64, bool) {
	for _, v := range tok[name] {
		if f, ok := parseNumber(v); ok {
			return f, true
		}
		warn(key, fmt.Sprintf("ignoring %s token %q: not numeric", name, v))
	}
	return 0, false
}
