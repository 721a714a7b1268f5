package repair

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalTimestamp is the layout every repaired timestamp is written in.
const CanonicalTimestamp = "2006-01-02 15:04:05"

// timestampLayouts are tried in order; the first layout that parses wins.
// The compact YYYYMMDD forms must stay last so hyphen and slash forms are
// never read as digits.
var timestampLayouts = []func(string) (time.Time, bool){
	layout("2006-1-2 15:4:5"),
	layout("2006-1-2"),
	layout("2/1/2006"),
	layout("20060102"),
	compactDate,
}

func layout(l string) func(string) (time.Time, bool) {
	return func(text string) (time.Time, bool) {
		t, err := time.Parse(l, text)
		return t, err == nil
	}
}

// compactPattern reads YYYYMMDD where month and day may be a single digit.
// Alternatives are tried left to right, so "2023111" is November 1st.
var compactPattern = regexp.MustCompile(`^([0-9]{4})(1[0-2]|0[1-9]|[1-9])(3[01]|[12][0-9]|0[1-9]|[1-9])$`)

func compactDate(text string) (time.Time, bool) {
	m := compactPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// February 30th and friends roll over
		return time.Time{}, false
	}
	return t, true
}

func parseTimestamp(text string) (string, bool) {
	for _, parse := range timestampLayouts {
		if t, ok := parse(text); ok {
			return t.Format(CanonicalTimestamp), true
		}
	}
	return "", false
}

// parseInteger accepts a base-10 integer literal of any magnitude: optional
// surrounding whitespace, an optional sign, and digits that may be grouped
// with single underscores. The original text is kept.
func parseInteger(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if !isDigitRun(s) {
		return "", false
	}
	return text, true
}

// parseFloat accepts decimal and exponent notation, inf/infinity/nan, and
// underscore-grouped digits. Values that overflow are still floats.
func parseFloat(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, "xX") {
		return "", false
	}
	if strings.Contains(s, "_") {
		var ok bool
		if s, ok = stripDigitSeparators(s); !ok {
			return "", false
		}
	}
	// ParseFloat takes a sign before inf but not before nan
	if len(s) == 4 && (s[0] == '+' || s[0] == '-') && strings.EqualFold(s[1:], "nan") {
		s = s[1:]
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return "", false
		}
	}
	return text, true
}

// isDigitRun reports whether s is one or more ASCII digits, where single
// underscores may separate digits.
func isDigitRun(s string) bool {
	if s == "" {
		return false
	}
	prevDigit := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			prevDigit = true
		case c == '_' && prevDigit && i+1 < len(s):
			prevDigit = false
		default:
			return false
		}
	}
	return prevDigit
}

// stripDigitSeparators drops underscores that sit between two digits and
// rejects any other underscore.
func stripDigitSeparators(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i == 0 || i+1 == len(s) || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
