package filter

import (
	"strconv"
	"strings"
	"time"
)

var dutchMonths = map[string]time.Month{
	"januari":   time.January,
	"februari":  time.February,
	"maart":     time.March,
	"april":     time.April,
	"mei":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"augustus":  time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// parseDate accepts the date spellings that occur in the datasets: ISO
// (2019-03-11), compact (20190311), Dutch numeric (11-03-2019) and the Dutch
// long form ("11 maart 2019").
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "20060102", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	parts := strings.Fields(strings.ToLower(s))
	if len(parts) == 3 {
		day, errDay := strconv.Atoi(parts[0])
		month, okMonth := dutchMonths[parts[1]]
		year, errYear := strconv.Atoi(parts[2])
		if errDay == nil && okMonth && errYear == nil && day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
