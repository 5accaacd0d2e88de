package notification

import (
	"fmt"
	"strings"
	"time"
)

// Period is a billing month.
type Period struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

var periodLayouts = []string{"January 2006", "Jan 2006", "2006-01"}

// ParsePeriod accepts "July 2024", "Jul 2024" or "2024-07".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Month: t.Month(), Year: t.Year()}, nil
		}
	}
	return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Key is the canonical YYYY-MM form.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
