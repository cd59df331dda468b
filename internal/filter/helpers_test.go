package filter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/compfilter/compfilter/internal/domain"
)

// selection builds a normalized Selection from a loose payload, the same way
// the transport layer does.
func selection(t *testing.T, raw map[string]any) domain.Selection {
	t.Helper()
	msg := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", k, err)
		}
		msg[k] = b
	}
	sel, err := domain.NormalizeSelection(msg, NewRegistry(nil, nil, nil).Specs())
	if err != nil {
		t.Fatalf("normalize selection: %v", err)
	}
	return sel
}

// warnLog collects warnings emitted while compiling and running predicates.
type warnLog struct {
	msgs []string
}

func (w *warnLog) warn(key, msg string) {
	w.msgs = append(w.msgs, key+": "+msg)
}

func (w *warnLog) contains(substr string) bool {
	for _, m := range w.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func domainHeader(cols ...string) *domain.Header {
	return domain.NewHeader(cols)
}

func compile(t *testing.T, f Filter, header []string, raw map[string]any, w *warnLog) (Predicate, bool) {
	t.Helper()
	p, active, err := f.Compile(domain.NewHeader(header), selection(t, raw), w.warn)
	if err != nil {
		t.Fatalf("compile %s: %v", f.Spec().Key, err)
	}
	return p, active
}
