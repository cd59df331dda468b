package filter

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2019, time.March, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"iso", "2019-03-11"},
		{"compact", "20190311"},
		{"dutch numeric", "11-03-2019"},
		{"dutch long", "11 maart 2019"},
		{"dutch long mixed case", "11 Maart 2019"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.in)
			if !ok || !got.Equal(want) {
				t.Errorf("parseDate(%q) = %v,%v want %v", tt.in, got, ok, want)
			}
		})
	}

	for _, bad := range []string{"", "soon", "32 maart 2019", "2019-13-40"} {
		if _, ok := parseDate(bad); ok {
			t.Errorf("parseDate(%q) should fail", bad)
		}
	}
}
