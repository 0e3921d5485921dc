package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnparseableDate = errors.New("date does not match any accepted format")
	ErrAmbiguousDate   = errors.New("date is ambiguous between day-first and month-first formats")
)

var (
	isoLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02"}
	mdyLayouts = []string{"1/2/2006", "1-2-2006", "1.2.2006", "1/2/06", "1-2-06", "1.2.06"}
	dmyLayouts = []string{"2/1/2006", "2-1-2006", "2.1.2006", "2/1/06", "2-1-06", "2.1.06"}
)

// DateParser parses dates of birth against an ordered list of layouts.
// The first layout that parses wins, unless a later layout reads the same text
// as a different day, in which case the input is rejected as ambiguous.
type DateParser struct {
	layouts []string
}

func NewDateParser(layouts ...string) *DateParser {
	return &DateParser{layouts: append([]string(nil), layouts...)}
}

// DateParserFor returns the preset for an order name:
//
//	mdy   ISO, then month-first
//	dmy   ISO, then day-first
//	both  ISO, month-first, day-first (ambiguous input is rejected)
func DateParserFor(order string) (*DateParser, error) {
	switch strings.ToLower(order) {
	case "", "mdy":
		return NewDateParser(concat(isoLayouts, mdyLayouts)...), nil
	case "dmy":
		return NewDateParser(concat(isoLayouts, dmyLayouts)...), nil
	case "both":
		return NewDateParser(concat(isoLayouts, mdyLayouts, dmyLayouts)...), nil
	}
	return nil, fmt.Errorf("unknown date order %q", order)
}

func (p *DateParser) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseableDate
	}

	var (
		found  time.Time
		winner string
	)
	for _, layout := range p.layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = CivilDate(t)
		if winner == "" {
			found, winner = t, layout
			continue
		}
		if !t.Equal(found) {
			return time.Time{}, fmt.Errorf("%w: %q reads as %s (%s) and %s (%s)",
				ErrAmbiguousDate, s, found.Format("2006-01-02"), winner, t.Format("2006-01-02"), layout)
		}
	}
	if winner == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}
	return found, nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
