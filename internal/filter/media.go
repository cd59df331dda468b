package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/compfilter/compfilter/internal/domain"
)

// mediaChannels maps every selectable channel to its column candidates, in
// the order the dashboard lists them.
var mediaChannels = []struct {
	name    string
	columns []string
}{
	{"email", []string{"emailadres", "email"}},
	{"facebook", []string{"facebook"}},
	{"instagram", []string{"instagram"}},
	{"linkedin", []string{"linkedin"}},
	{"pinterest", []string{"pinterest"}},
	{"twitter", []string{"twitter"}},
	{"youtube", []string{"youtube"}},
	{"internetaddress", []string{"internetadres", "internetaddress", "website"}},
}

// mediaFilter matches rows that have a value for every selected channel.
type mediaFilter struct{}

func (f *mediaFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "media", Label: "Media channels", Kind: domain.KindMultiselect}
}

func (f *mediaFilter) Options(context.Context) ([]string, error) {
	out := make([]string, len(mediaChannels))
	for i, ch := range mediaChannels {
		out[i] = ch.name
	}
	return out, nil
}

func (f *mediaFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	selected := sel.Values("media")
	if len(selected) == 0 {
		return nil, false, nil
	}

	var cols []int
	for _, name := range selected {
		name = strings.ToLower(strings.TrimSpace(name))
		ch, ok := channelByName(name)
		if !ok {
			warn("media", fmt.Sprintf("unknown media channel %q ignored", name))
			continue
		}
		col, ok := h.Find(ch...)
		if !ok {
			warn("media", fmt.Sprintf("column for channel %q not present in dataset, channel skipped", name))
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, false, nil
	}
	return func(row []string) bool {
		for _, col := range cols {
			if EmptyCell(domain.Field(row, col)) {
				return false
			}
		}
		return true
	}, true, nil
}

func channelByName(name string) ([]string, bool) {
	for _, ch := range mediaChannels {
		if ch.name == name {
			return ch.columns, true
		}
	}
	return nil, false
}
